package variable

// AttachCluster records the set of co-advanced state variables for the
// relaxation/cluster variant (spec.md §9, SPEC_FULL.md §4.10): members of
// a cluster are advanced together within a single event so that a
// tightly-coupled group of algebraic-loop variables does not requantize
// one at a time and reintroduce the stiffness the grouping was meant to
// avoid.
func (v *Variable) AttachCluster(memberIDs []int) {
	v.Cluster = memberIDs
}

// InCluster reports whether this variable participates in a relaxation
// cluster.
func (v *Variable) InCluster() bool { return len(v.Cluster) > 0 }
