package adaptive

// Listener receives controller events. Callbacks fire synchronously on the
// tick goroutine after the new state is published and before the next tick
// is processed, so listeners must be cheap or forward to their own queue.
// Panics are recovered, logged and swallowed.
type Listener interface {
	// OnPhaseTransition fires when the controller changes phase.
	OnPhaseTransition(from, to Phase, tps float64, reason string)

	// OnTPSChange fires when the emitted TPS changes.
	OnTPSChange(previous, current float64, phase Phase)

	// OnStabilityDetected fires when the controller enters sustain via the
	// stability criterion.
	OnStabilityDetected(tps float64)

	// OnRecovery fires when the controller leaves the floor and resumes
	// ramping at a fraction of the last known good TPS.
	OnRecovery(lastKnownGoodTPS, recoveryTPS float64)
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields are skipped.
type ListenerFuncs struct {
	PhaseTransition   func(from, to Phase, tps float64, reason string)
	TPSChange         func(previous, current float64, phase Phase)
	StabilityDetected func(tps float64)
	Recovery          func(lastKnownGoodTPS, recoveryTPS float64)
}

// OnPhaseTransition implements Listener.
func (l ListenerFuncs) OnPhaseTransition(from, to Phase, tps float64, reason string) {
	if l.PhaseTransition != nil {
		l.PhaseTransition(from, to, tps, reason)
	}
}

// OnTPSChange implements Listener.
func (l ListenerFuncs) OnTPSChange(previous, current float64, phase Phase) {
	if l.TPSChange != nil {
		l.TPSChange(previous, current, phase)
	}
}

// OnStabilityDetected implements Listener.
func (l ListenerFuncs) OnStabilityDetected(tps float64) {
	if l.StabilityDetected != nil {
		l.StabilityDetected(tps)
	}
}

// OnRecovery implements Listener.
func (l ListenerFuncs) OnRecovery(lastKnownGoodTPS, recoveryTPS float64) {
	if l.Recovery != nil {
		l.Recovery(lastKnownGoodTPS, recoveryTPS)
	}
}

// Compile-time interface check
var _ Listener = ListenerFuncs{}
