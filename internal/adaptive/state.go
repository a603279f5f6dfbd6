package adaptive

// Phase is the adaptive controller's current mode.
type Phase int32

const (
	// PhaseRampUp increases TPS each tick until a downward signal, the
	// ceiling, or the stability criterion fires.
	PhaseRampUp Phase = iota
	// PhaseRampDown decreases TPS each tick; at the floor it enters
	// recovery and holds.
	PhaseRampDown
	// PhaseSustain holds a TPS believed stable until the sustain window
	// elapses or conditions worsen.
	PhaseSustain
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseRampUp:
		return "ramp_up"
	case PhaseRampDown:
		return "ramp_down"
	case PhaseSustain:
		return "sustain"
	default:
		return "unknown"
	}
}

// State is the single source of truth for the adaptive controller. It is
// published as one value through an atomic pointer so readers always
// observe a coherent tuple.
//
// Invariants:
//   - MinTPS ≤ CurrentTPS ≤ MaxTPS
//   - InRecovery ⇔ Phase == PhaseRampDown ∧ CurrentTPS == MinTPS
//   - StableIntervals resets to 0 on every phase transition and on every
//     adjustment that changes CurrentTPS
type State struct {
	// Phase is the current controller mode.
	Phase Phase

	// CurrentTPS is the rate the controller is emitting.
	CurrentTPS float64

	// LastAdjustmentMs is the elapsed time of the last tick.
	// -1 means the state is uninitialized.
	LastAdjustmentMs int64

	// PhaseStartMs is the elapsed time the current phase was entered.
	PhaseStartMs int64

	// StableIntervals counts consecutive healthy ticks at the current TPS.
	StableIntervals uint32

	// LastKnownGoodTPS is the highest TPS observed before a ramp-down.
	LastKnownGoodTPS float64

	// InRecovery is true while the controller holds at the floor waiting
	// for conditions to improve.
	InRecovery bool

	// TransitionCount counts phase transitions. Monotonic; metrics only.
	TransitionCount uint64
}

// MetricsSnapshot is the narrow decision input captured once per tick.
type MetricsSnapshot struct {
	// FailureRate is the whole-run failure fraction in [0, 1].
	FailureRate float64

	// RecentFailureRate is the failure fraction over a trailing window.
	RecentFailureRate float64

	// BackpressureLevel is the aggregated client-side pressure in [0, 1].
	BackpressureLevel float64

	// TotalExecutions is the number of recorded invocations so far.
	TotalExecutions uint64

	// ElapsedMs is the run time the snapshot was captured at.
	ElapsedMs int64
}

// SnapshotProvider supplies decision inputs to the controller. The engine
// wires a cached provider over the metrics collector after both exist, so
// neither package knows about the other.
type SnapshotProvider interface {
	Snapshot() MetricsSnapshot
}
