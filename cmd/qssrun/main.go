// Command qssrun runs one of the built-in analytic scenarios through the
// simulation core and writes its sampled output as CSV. It exists so the
// engine can be exercised end to end without embedding it in a host
// program; wiring a real FMU as backend.Model is deliberately out of scope
// (spec.md §1), so the set of selectable models is fixed rather than
// loaded from a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/qss-go/engine/backend/analytic"
	"github.com/qss-go/engine/binopt"
	"github.com/qss-go/engine/config"
	"github.com/qss-go/engine/graph"
	"github.com/qss-go/engine/qlog"
	"github.com/qss-go/engine/report"
	"github.com/qss-go/engine/sim"
	"github.com/qss-go/engine/variable"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "qssrun: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("qssrun", flag.ContinueOnError)
	scenario := fs.String("scenario", "decay", "scenario to run: decay, oscillator, bounce")
	method := fs.String("method", "qss2", "integration method: qss1/qss2/qss3, liqss1/liqss2/liqss3, xqss1/xqss2/xqss3")
	rtol := fs.Float64("rtol", 1e-4, "relative tolerance")
	atol := fs.Float64("atol", 1e-6, "absolute tolerance")
	tend := fs.Float64("tend", 10, "simulation end time")
	dtout := fs.Float64("dtout", 0.1, "sampled output interval")
	binSize := fs.Int("bin", 1, "bin optimizer max bin size (1 disables binning)")
	binAuto := fs.Bool("bin-auto", false, "enable closed-loop bin size tuning")
	output := fs.String("o", "", "CSV output path (default: stdout)")
	verbose := fs.Bool("v", false, "log warnings/info to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := parseMethod(*method)
	if err != nil {
		return err
	}

	opts, err := config.New(
		config.WithMethod(m),
		config.WithTolerances(*rtol, *atol),
		config.WithEndTime(*tend),
		config.WithOutputInterval(*dtout),
		config.WithBin(*binSize, 0.75, *binAuto),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	g, model, conds, err := buildScenario(*scenario, opts)
	if err != nil {
		return err
	}

	w := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	sink := report.NewCSVSink(w)

	log := qlog.NewNoOp()
	if *verbose {
		log = qlog.Default()
	}

	var sel *binopt.Selector
	if *binAuto || *binSize > 1 {
		sel = binopt.NewSelector(binopt.Config{MaxSize: *binSize, MinFrac: 0.75, Auto: *binAuto})
	}

	l := sim.New(g, model, opts, sel, sink, log)
	for _, c := range conds {
		l.AddConditional(c.zc, c.handlers, c.indicatorRef)
	}

	ctx := context.Background()
	if err := l.Init(ctx, 0); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := l.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Fprintf(os.Stderr, "qssrun: %s events, %d requants, %d zero-crossings, avg bin %.2f\n",
		*scenario, l.Stats.QSSRequants, l.Stats.ZeroCrossings, l.Stats.AverageBinSize())
	return nil
}

func parseMethod(s string) (config.Method, error) {
	switch s {
	case "qss1":
		return config.QSS1, nil
	case "qss2":
		return config.QSS2, nil
	case "qss3":
		return config.QSS3, nil
	case "liqss1":
		return config.LIQSS1, nil
	case "liqss2":
		return config.LIQSS2, nil
	case "liqss3":
		return config.LIQSS3, nil
	case "xqss1":
		return config.XQSS1, nil
	case "xqss2":
		return config.XQSS2, nil
	case "xqss3":
		return config.XQSS3, nil
	default:
		return 0, fmt.Errorf("unknown method %q", s)
	}
}

type conditionalSpec struct {
	zc           int
	handlers     []int
	indicatorRef int
}

// buildScenario wires one of the fixed analytic models into a graph, the
// way a real host program would wire an FMU's exposed state/derivative
// structure once at startup.
func buildScenario(name string, opts *config.Options) (*graph.Graph, *analytic.Model, []conditionalSpec, error) {
	kind := variable.QSSState
	if opts.Method.IsLIQSS() {
		kind = variable.LIQSSState
	} else if opts.Method.IsBroadcast() {
		kind = variable.XQSSState
	}

	switch name {
	case "decay":
		g := graph.New()
		x := variable.New("x", kind, opts.Method.Order(), 0, 1, 0, opts)
		g.Add(x)
		g.Finalize()
		model := analytic.New("decay", []float64{1}, func(t float64, xs []float64) []float64 {
			return []float64{-xs[0]}
		})
		return g, model, nil, nil

	case "oscillator":
		g := graph.New()
		pos := variable.New("pos", kind, opts.Method.Order(), 0, 1, 0, opts)
		vel := variable.New("vel", kind, opts.Method.Order(), 1, 0, 0, opts)
		posID := g.Add(pos)
		velID := g.Add(vel)
		g.AddObserveeEdge(posID, velID)
		g.AddObserveeEdge(velID, posID)
		g.Finalize()
		model := analytic.New("oscillator", []float64{1, 0}, func(t float64, xs []float64) []float64 {
			return []float64{xs[1], -xs[0]}
		})
		return g, model, nil, nil

	case "bounce":
		g := graph.New()
		h := variable.New("h", kind, opts.Method.Order(), 0, 1, 0, opts)
		v := variable.New("v", kind, opts.Method.Order(), 1, 0, 0, opts)
		z := variable.New("z", variable.ZeroCrossing, opts.Method.Order(), 0, 1, 0, opts)
		hID := g.Add(h)
		vID := g.Add(v)
		zID := g.Add(z)
		g.AddObserveeEdge(hID, vID)
		g.AddObserveeEdge(zID, hID)
		g.Finalize()
		model := analytic.New("bounce", []float64{1, 0}, func(t float64, xs []float64) []float64 {
			return []float64{xs[1], -9.81}
		}).WithIndicators(1,
			func(t float64, xs []float64) []float64 { return []float64{xs[0]} },
			func(idx int, t float64, xs []float64) []float64 {
				return []float64{math.Max(xs[0], 0), -0.8 * xs[1]}
			},
		)
		return g, model, []conditionalSpec{{zc: zID, handlers: []int{hID, vID}, indicatorRef: 0}}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown scenario %q (want decay, oscillator, bounce)", name)
	}
}
