// Package config holds the immutable, process-wide-in-spirit (but
// explicitly passed) tolerances and feature flags consumed read-only by the
// hot path: Method, tolerances, time-step clamps, bin-optimizer controls,
// and behavioral toggles.
package config

import (
	"fmt"
	"runtime"
)

// Method selects the integration family.
type Method int

const (
	QSS1 Method = iota
	QSS2
	QSS3
	LIQSS1
	LIQSS2
	LIQSS3
	XQSS1
	XQSS2
	XQSS3
)

func (m Method) String() string {
	switch m {
	case QSS1:
		return "QSS1"
	case QSS2:
		return "QSS2"
	case QSS3:
		return "QSS3"
	case LIQSS1:
		return "LIQSS1"
	case LIQSS2:
		return "LIQSS2"
	case LIQSS3:
		return "LIQSS3"
	case XQSS1:
		return "xQSS1"
	case XQSS2:
		return "xQSS2"
	case XQSS3:
		return "xQSS3"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// IsLIQSS reports whether m is one of the linearly-implicit variants.
func (m Method) IsLIQSS() bool { return m == LIQSS1 || m == LIQSS2 || m == LIQSS3 }

// IsBroadcast reports whether m publishes the full-order polynomial to
// observers (the "xQSS"/"fQSS" variants, spec.md §4.1).
func (m Method) IsBroadcast() bool { return m == XQSS1 || m == XQSS2 || m == XQSS3 }

// Order returns the quantization order (1, 2, or 3) implied by m.
func (m Method) Order() int {
	switch m {
	case QSS1, LIQSS1, XQSS1:
		return 1
	case QSS2, LIQSS2, XQSS2:
		return 2
	case QSS3, LIQSS3, XQSS3:
		return 3
	default:
		return 1
	}
}

// DerivativeMode selects how 2nd/3rd derivatives are obtained from the
// backend (spec.md §4.3).
type DerivativeMode int

const (
	// ModeDirectional uses a single directional-derivative call (d2d).
	ModeDirectional DerivativeMode = iota
	// ModeNumerical uses centered/forward finite differences (n2d).
	ModeNumerical
)

// Options is the immutable bundle of tolerances and feature flags. Build
// one with New and pass it by pointer; every Variable stores the same
// pointer (spec.md §9's "immutable ToleranceConfig by reference").
type Options struct { // betteralign:ignore
	Method Method

	// Tolerances.
	RTol  float64
	ATol  float64
	AFac  float64
	ZTol  float64
	ZMul  float64
	ZFac  float64
	ZRFac float64
	ZAFac float64

	// Step clamps.
	DtMin  float64
	DtMax  float64
	DtInf  float64
	DtZC   float64
	DtZMax float64
	DtND   float64
	DtOut  float64
	TEnd   float64

	// Bin optimizer.
	BinSize int
	BinFrac float64
	BinAuto bool

	// Watchdog.
	PassLimit              int
	MaxPassCountMultiplier int

	// Toggles.
	Cycles     bool
	Inflection bool
	Cluster    bool
	Refine     bool
	Perfect    bool
	Active     bool
	Steps      bool

	DerivMode DerivativeMode

	// ParallelThreshold is the observer-bucket size above which the advance
	// engine fans the bucket out across goroutines (spec.md §5).
	ParallelThreshold int

	// InflectionFrac gates how much earlier an inflection point must occur
	// than the tolerance-crossing time before it is preferred (spec.md
	// §4.1 step 8).
	InflectionFrac float64

	// ZMagMode selects whether the anti-chatter magnitude test (spec.md
	// §4.4) uses ZTol ("magnitude" mode) or 0 (always-accept mode).
	ZMagMode bool
}

// options is the builder-time mutable mirror of Options.
type options Options

// Option configures Options, following the teacher's functional-option
// idiom (eventloop.LoopOption / eventloop.WithXxx).
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(o *options) error { return f(o) }

func defaults() options {
	return options{
		Method:                 QSS2,
		RTol:                   1e-4,
		ATol:                   1e-6,
		AFac:                   1e-6,
		ZTol:                   1e-6,
		ZMul:                   1,
		ZFac:                   1,
		ZRFac:                  1,
		ZAFac:                  1,
		DtMin:                  1e-12,
		DtMax:                  1e300,
		DtInf:                  1e150,
		DtZC:                   1e-9,
		DtZMax:                 1.0,
		DtND:                   1e-6,
		DtOut:                  1,
		TEnd:                   10,
		BinSize:                1,
		BinFrac:                0.75,
		BinAuto:                false,
		PassLimit:              1000,
		MaxPassCountMultiplier: 10,
		DerivMode:              ModeDirectional,
		ParallelThreshold:      runtime.GOMAXPROCS(0) * 64,
		InflectionFrac:         0.25,
		ZMagMode:               true,
	}
}

// New builds an immutable *Options from defaults plus the given Option
// values, validating the combination. Mirrors eventloop.New's
// option-application-then-validate structure.
func New(opts ...Option) (*Options, error) {
	o := defaults()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(&o); err != nil {
			return nil, err
		}
	}
	if err := (*Options)(&o).validate(); err != nil {
		return nil, err
	}
	out := Options(o)
	return &out, nil
}

func (o *Options) validate() error {
	if o.RTol < 0 || o.ATol <= 0 {
		return fmt.Errorf("config: ATol must be > 0, RTol must be >= 0 (got RTol=%g ATol=%g)", o.RTol, o.ATol)
	}
	if o.DtMin <= 0 || o.DtMax <= 0 || o.DtMin > o.DtMax {
		return fmt.Errorf("config: require 0 < DtMin <= DtMax (got DtMin=%g DtMax=%g)", o.DtMin, o.DtMax)
	}
	if o.BinSize < 1 {
		return fmt.Errorf("config: BinSize must be >= 1 (got %d)", o.BinSize)
	}
	if o.BinFrac <= 0 || o.BinFrac > 1 {
		return fmt.Errorf("config: BinFrac must be in (0,1] (got %g)", o.BinFrac)
	}
	if o.PassLimit < 1 {
		return fmt.Errorf("config: PassLimit must be >= 1 (got %d)", o.PassLimit)
	}
	return nil
}

// Quantum returns Q(t) = max(RTol*|q|, ATol), the quantization tolerance
// band (spec.md §4, GLOSSARY).
func (o *Options) Quantum(q float64) float64 {
	a := o.RTol * abs(q)
	if a < o.ATol {
		return o.ATol
	}
	return a
}

// ZMag returns the anti-chatter minimum magnitude for zero-crossing root
// culling (spec.md §4.4).
func (o *Options) ZMag() float64 {
	if o.ZMagMode {
		return o.ZTol
	}
	return 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// --- Option constructors ---

func WithMethod(m Method) Option {
	return optionFunc(func(o *options) error { o.Method = m; return nil })
}

func WithTolerances(rTol, aTol float64) Option {
	return optionFunc(func(o *options) error { o.RTol, o.ATol = rTol, aTol; return nil })
}

func WithZeroCrossingTolerance(zTol float64) Option {
	return optionFunc(func(o *options) error { o.ZTol = zTol; return nil })
}

func WithStepClamps(dtMin, dtMax float64) Option {
	return optionFunc(func(o *options) error { o.DtMin, o.DtMax = dtMin, dtMax; return nil })
}

func WithDtInf(dtInf float64) Option {
	return optionFunc(func(o *options) error { o.DtInf = dtInf; return nil })
}

func WithDtND(dtND float64) Option {
	return optionFunc(func(o *options) error { o.DtND = dtND; return nil })
}

func WithOutputInterval(dtOut float64) Option {
	return optionFunc(func(o *options) error { o.DtOut = dtOut; return nil })
}

func WithEndTime(tEnd float64) Option {
	return optionFunc(func(o *options) error { o.TEnd = tEnd; return nil })
}

func WithBin(size int, frac float64, auto bool) Option {
	return optionFunc(func(o *options) error { o.BinSize, o.BinFrac, o.BinAuto = size, frac, auto; return nil })
}

func WithPassLimit(limit, maxMultiplier int) Option {
	return optionFunc(func(o *options) error { o.PassLimit, o.MaxPassCountMultiplier = limit, maxMultiplier; return nil })
}

func WithDerivativeMode(mode DerivativeMode) Option {
	return optionFunc(func(o *options) error { o.DerivMode = mode; return nil })
}

func WithParallelThreshold(n int) Option {
	return optionFunc(func(o *options) error { o.ParallelThreshold = n; return nil })
}

func WithInflection(enabled bool, frac float64) Option {
	return optionFunc(func(o *options) error { o.Inflection, o.InflectionFrac = enabled, frac; return nil })
}

func WithCluster(enabled bool) Option {
	return optionFunc(func(o *options) error { o.Cluster = enabled; return nil })
}

func WithRefine(enabled bool) Option {
	return optionFunc(func(o *options) error { o.Refine = enabled; return nil })
}

func WithPerfect(enabled bool) Option {
	return optionFunc(func(o *options) error { o.Perfect = enabled; return nil })
}

func WithActive(enabled bool) Option {
	return optionFunc(func(o *options) error { o.Active = enabled; return nil })
}

func WithSteps(enabled bool) Option {
	return optionFunc(func(o *options) error { o.Steps = enabled; return nil })
}

func WithCycles(enabled bool) Option {
	return optionFunc(func(o *options) error { o.Cycles = enabled; return nil })
}

func WithZMagMode(magnitude bool) Option {
	return optionFunc(func(o *options) error { o.ZMagMode = magnitude; return nil })
}
