// Package graph implements the observer/observee dependency graph
// (spec.md §3 "Observer/Observee graph", §9 "Cyclic observer graphs"):
// variables live in a single owning arena and reference each other by
// index, so cyclic derivative dependencies never become cyclic ownership.
package graph

import (
	"sort"

	"github.com/qss-go/engine/variable"
)

// Graph owns the arena of variables and the finalized observer buckets
// each requantization needs to walk.
type Graph struct {
	Vars []*variable.Variable

	// observeeEdges[i] lists the raw (pre-finalize) observee indices added
	// during model construction, by observer i.
	observeeEdges map[int][]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{observeeEdges: make(map[int][]int)}
}

// Add appends v to the arena and returns its index.
func (g *Graph) Add(v *variable.Variable) int {
	g.Vars = append(g.Vars, v)
	return len(g.Vars) - 1
}

// AddObserveeEdge records that observerIdx's derivative depends on
// observeeIdx, i.e. observeeIdx must notify observerIdx on requantization.
// Call before Finalize.
func (g *Graph) AddObserveeEdge(observerIdx, observeeIdx int) {
	g.Vars[observeeIdx].Observers = append(g.Vars[observeeIdx].Observers, observerIdx)
	g.Vars[observerIdx].Observees = append(g.Vars[observerIdx].Observees, observeeIdx)
	g.observeeEdges[observerIdx] = append(g.observeeEdges[observerIdx], observeeIdx)
}

// Finalize implements finalize_observers() (spec.md "Lifecycle"):
// uniquifies and sorts each variable's observer list by (subtype, order,
// identity), computes the transitive computational-observer closure
// through passive variables, drops self-observation from the list (I5)
// in favor of the SelfObserver flag, and sets the
// HasUpstreamStateOrEIObserver flag. No other package reads that flag.
func (g *Graph) Finalize() {
	for i, v := range g.Vars {
		v.Observers = g.closure(i, make(map[int]bool))
		g.sortAndDedup(v)

		self := false
		filtered := v.Observers[:0]
		for _, o := range v.Observers {
			if o == i {
				self = true
				continue
			}
			filtered = append(filtered, o)
		}
		v.Observers = filtered
		if v.Kind.IsState() {
			v.SelfObserver = self
		}

		for _, o := range v.Observers {
			ov := g.Vars[o]
			if ov.Kind.IsState() || ov.Kind == variable.ZeroCrossing {
				v.HasUpstreamStateOrEIObserver = true
				break
			}
		}
	}
}

// closure computes the transitive observer set of variable i, walking
// through RealPassive variables (which have no requantization event of
// their own and so must forward their observers transitively) while
// stopping at any variable with its own event-driven advance.
func (g *Graph) closure(i int, visited map[int]bool) []int {
	var out []int
	for _, o := range g.Vars[i].Observers {
		if visited[o] {
			continue
		}
		visited[o] = true
		if g.Vars[o].Kind == variable.RealPassive {
			out = append(out, g.closure(o, visited)...)
			continue
		}
		out = append(out, o)
	}
	return out
}

func (g *Graph) sortAndDedup(v *variable.Variable) {
	sort.Slice(v.Observers, func(a, b int) bool {
		oa, ob := g.Vars[v.Observers[a]], g.Vars[v.Observers[b]]
		if oa.Kind != ob.Kind {
			return oa.Kind < ob.Kind
		}
		if oa.Order != ob.Order {
			return oa.Order < ob.Order
		}
		return v.Observers[a] < v.Observers[b]
	})
	out := v.Observers[:0]
	var last = -1
	for _, o := range v.Observers {
		if o == last {
			continue
		}
		out = append(out, o)
		last = o
	}
	v.Observers = out
}

// Bucket names the four observer-processing buckets spec.md §4.3 defines.
type Bucket int

const (
	BucketQSSState Bucket = iota
	BucketRealActive
	BucketOtherX
	BucketZC
)

// Buckets partitions observerIDs (already sorted/deduped by Finalize) into
// the four processing buckets the advance engine walks in order.
func (g *Graph) Buckets(observerIDs []int) map[Bucket][]int {
	out := map[Bucket][]int{}
	for _, id := range observerIDs {
		v := g.Vars[id]
		switch {
		case v.Kind == variable.QSSState || v.Kind == variable.LIQSSState || v.Kind == variable.XQSSState:
			out[BucketQSSState] = append(out[BucketQSSState], id)
		case v.Kind == variable.RealPassive:
			out[BucketRealActive] = append(out[BucketRealActive], id)
		case v.Kind == variable.ZeroCrossing:
			out[BucketZC] = append(out[BucketZC], id)
		default:
			out[BucketOtherX] = append(out[BucketOtherX], id)
		}
	}
	return out
}
