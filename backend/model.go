// Package backend defines the capability interface the simulation core
// requires of a model implementation (spec.md §6). A production backend
// would wrap an FMI/FMU co-simulation or model-exchange unit; that
// integration is deliberately out of scope (spec.md §1) — backend/analytic
// provides a reference implementation over plain closures for tests and
// cmd/qssrun.
package backend

// CallStatus mirrors the FMI-style status codes a backend call can return.
type CallStatus int

const (
	OK CallStatus = iota
	Warning
	Discard
	Error
	Fatal
)

func (s CallStatus) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "Warning"
	case Discard:
		return "Discard"
	case Error:
		return "Error"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// EventInfo reports the discrete-event-handling flags a backend returns
// from event_iteration/completed_integrator_step.
type EventInfo struct {
	NewDiscreteStatesNeeded bool
	TerminateSimulation     bool
	NominalsChanged         bool
	ValuesChanged           bool
	NextEventTimeDefined    bool
	NextEventTime           float64
}

// Model is the minimum capability the simulation core requires of a model
// backend (spec.md §6 "Backend capability" table). Ref identifies a
// variable slot by the backend's own indexing scheme; the core never
// interprets it beyond passing it back.
type Model interface {
	Name() string

	// SetTime sets the backend's internal clock, returning the resulting
	// status (a backend may reject times outside its valid domain).
	SetTime(t float64) CallStatus

	// SetReals pushes values for the given refs into the backend.
	SetReals(refs []int, vals []float64) CallStatus

	// GetReals reads current values for the given refs at the backend's
	// current time.
	GetReals(refs []int) ([]float64, CallStatus)

	// GetDirectionalDerivatives returns J·seed for the given input/output
	// ref sets, without forming J explicitly.
	GetDirectionalDerivatives(inputRefs []int, inputSeeds []float64, outputRefs []int) ([]float64, CallStatus)

	EnterEventMode() CallStatus
	EventIteration() (EventInfo, CallStatus)
	EnterContinuousMode() CallStatus

	GetEventIndicators(refs []int) ([]float64, CallStatus)

	CompletedIntegratorStep() (enterEventMode bool, terminate bool, status CallStatus)
}

// HandlerApplier is an optional capability a Model may additionally
// implement: applying a discontinuous state update for event indicator
// idx. It is not part of the core FMI-style capability table (spec.md §6),
// since a real FMU applies handler side effects through its own
// event-mode protocol rather than a dedicated call; the reference
// backend/analytic.Model implements it so sim.Loop's Conditional dispatch
// has something concrete to invoke.
type HandlerApplier interface {
	ApplyHandler(idx int)
}
