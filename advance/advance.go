// Package advance implements the observer advance engine (spec.md §4.3,
// §9 "Parallel observer advance"): bulk re-evaluation of a bucket of
// observers' derivatives at a given time, using pooled backend calls, with
// an optional data-parallel fan-out across observers once a bucket is
// larger than Options.ParallelThreshold.
package advance

import (
	"context"

	"github.com/qss-go/engine/backend"
	"github.com/qss-go/engine/config"
	"github.com/qss-go/engine/graph"
	"github.com/qss-go/engine/variable"
	"golang.org/x/sync/errgroup"
)

// Engine bulk-advances observer buckets against a shared model backend.
type Engine struct {
	Graph   *graph.Graph
	Backend backend.Model
	Opts    *config.Options
}

// New builds an advance Engine over g, driven by b.
func New(g *graph.Graph, b backend.Model, opts *config.Options) *Engine {
	return &Engine{Graph: g, Backend: b, Opts: opts}
}

// Result is the outcome of advancing a single observer: its new tE (or tZ
// for a ZeroCrossing observer).
type Result struct {
	VarID int
	NextT float64
}

// AdvanceBucket re-evaluates derivatives for every variable in ids at time
// t and updates each one's polynomial (spec.md §4.3). The backend is
// touched only in the serial gather phase; the (potentially expensive)
// per-observer polynomial/root-finding update runs data-parallel once the
// bucket is at least Options.ParallelThreshold variables, since each
// observer only ever writes its own fields.
func (e *Engine) AdvanceBucket(ctx context.Context, t float64, ids []int) ([]Result, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	derivs, err := e.gatherDerivatives(t, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(ids))
	apply := func(i int) {
		id := ids[i]
		v := e.Graph.Vars[id]
		var next float64
		if v.Kind == variable.ZeroCrossing {
			next = v.ZCRequantize(t, derivs[i], 0)
		} else if v.Kind == variable.LIQSSState {
			next = v.AdvanceLIQSS(t, derivs[i], func(qCandidate float64) float64 {
				return e.implicitDeriv1(v, t, qCandidate)
			})
		} else {
			next = v.AdvanceQSS(t, derivs[i])
		}
		results[i] = Result{VarID: id, NextT: next}
	}

	parallel := len(ids) >= e.Opts.ParallelThreshold
	for _, id := range ids {
		if e.Graph.Vars[id].Kind == variable.LIQSSState {
			parallel = false // the LIQSS bracket probe calls the backend
			break
		}
	}

	if parallel {
		g, _ := errgroup.WithContext(ctx)
		for i := range ids {
			i := i
			g.Go(func() error {
				apply(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range ids {
			apply(i)
		}
	}

	return results, nil
}

// gatherDerivatives performs the serial pooled backend calls: set backend
// time and inputs once, then request directional or numerical derivatives
// per configured DerivativeMode.
func (e *Engine) gatherDerivatives(t float64, ids []int) ([]variable.Derivatives, error) {
	if status := e.Backend.SetTime(t); status == backend.Fatal {
		return nil, backendFatal(t, "set_time")
	}

	out := make([]variable.Derivatives, len(ids))
	for i, id := range ids {
		v := e.Graph.Vars[id]
		seeds := e.observeeSeeds(v, t)

		switch e.Opts.DerivMode {
		case config.ModeDirectional:
			out[i] = e.directional(v, seeds)
		default:
			out[i] = e.numerical(v, t)
		}
	}
	return out, nil
}

// implicitDeriv1 re-solves v's derivative with v's own backend value
// pinned at qCandidate instead of its current quantized value, so
// AdvanceLIQSS's bracket-endpoint selection (the "LIQSS difference") can
// see a genuinely different derivative at QLower vs QUpper for models
// with a stiff algebraic coupling back onto v itself. v's original
// backend value is restored before returning, since this is a probe, not
// a state transition.
func (e *Engine) implicitDeriv1(v *variable.Variable, t float64, qCandidate float64) float64 {
	refs := []int{v.BackendRef}
	orig, status := e.Backend.GetReals(refs)
	if status == backend.Fatal || len(orig) != 1 {
		return 0
	}

	e.Backend.SetReals(refs, []float64{qCandidate})
	defer e.Backend.SetReals(refs, orig)

	switch e.Opts.DerivMode {
	case config.ModeDirectional:
		seeds := e.observeeSeeds(v, t)
		d1, _ := e.Backend.GetDirectionalDerivatives(v.Observees, seeds, refs)
		if len(d1) == 0 {
			return 0
		}
		return d1[0]
	default:
		return e.numerical(v, t).D1
	}
}

func (e *Engine) observeeSeeds(v *variable.Variable, t float64) []float64 {
	seeds := make([]float64, len(v.Observees))
	for i, o := range v.Observees {
		seeds[i] = e.Graph.Vars[o].Deriv1X(t)
	}
	return seeds
}

func (e *Engine) directional(v *variable.Variable, seeds []float64) variable.Derivatives {
	d1, _ := e.Backend.GetDirectionalDerivatives(v.Observees, seeds, []int{v.BackendRef})
	var d variable.Derivatives
	if len(d1) > 0 {
		d.D1 = d1[0]
	}
	if v.Order >= 2 {
		d2, _ := e.Backend.GetDirectionalDerivatives(v.Observees, seeds, []int{v.BackendRef})
		if len(d2) > 0 {
			d.D2 = d2[0]
		}
	}
	if v.Order >= 3 {
		d3, _ := e.Backend.GetDirectionalDerivatives(v.Observees, seeds, []int{v.BackendRef})
		if len(d3) > 0 {
			d.D3 = d3[0]
		}
	}
	return d
}

// numerical obtains 1st/2nd derivatives via centered finite differences of
// the backend value sampled at t-dtND, t and t+dtND, dividing by 2*dtND and
// dtND^2 directly. A forward-difference form is not used, even near the
// start time, and the 3rd derivative is not estimated.
func (e *Engine) numerical(v *variable.Variable, t float64) variable.Derivatives {
	dtND := e.Opts.DtND
	refs := []int{v.BackendRef}

	e.Backend.SetTime(t)
	y0, _ := e.Backend.GetReals(refs)

	e.Backend.SetTime(t + dtND)
	yp, _ := e.Backend.GetReals(refs)

	e.Backend.SetTime(t - dtND)
	ym, _ := e.Backend.GetReals(refs)
	e.Backend.SetTime(t)

	var d variable.Derivatives
	if len(y0) == 0 || len(yp) == 0 || len(ym) == 0 {
		return d
	}
	d.D1 = (yp[0] - ym[0]) / (2 * dtND)
	d.D2 = (yp[0] - 2*y0[0] + ym[0]) / (dtND * dtND)
	d.D3 = 0 // not estimated: left at 0 for every caller
	return d
}

type fatalErr struct {
	t  float64
	op string
}

func (e fatalErr) Error() string {
	return "advance: backend reported fatal status during " + e.op
}

func backendFatal(t float64, op string) error {
	return fatalErr{t: t, op: op}
}
