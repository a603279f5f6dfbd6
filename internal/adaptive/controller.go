package adaptive

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Controller is the adaptive load pattern. It satisfies the load-pattern
// interface the engine drives, but unlike the pure patterns it closes a
// feedback loop: each tick it captures a metrics snapshot and may rewrite
// its own target TPS.
//
// TargetTPS is invoked on every release-loop iteration but only performs
// an adjustment when at least RampInterval has passed since the previous
// tick; between ticks it returns the published CurrentTPS unchanged.
//
// Thread Safety: Safe for concurrent use. State is published as a single
// value through an atomic pointer; the release goroutine is the only
// writer, readers (gauges, listeners) use atomic loads.
type Controller struct {
	config Config
	policy DecisionPolicy

	provider atomic.Pointer[SnapshotProvider]
	state    atomic.Pointer[State]

	listenerMu sync.RWMutex
	listeners  []Listener

	logger *zap.Logger
}

// decision is the outcome of one tick, derived purely from the prior state
// and a snapshot.
type decision struct {
	phase     Phase
	tps       float64
	reason    string
	stability bool // sustain entered via the stability criterion
	recovery  bool // ramp-up entered from the recovery floor
}

// NewController creates an adaptive controller. The snapshot provider is
// wired later via Bind, after the engine has assembled the metrics side.
func NewController(config Config, policy DecisionPolicy, logger *zap.Logger) (*Controller, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = NewThresholdPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		config: config,
		policy: policy,
		logger: logger,
	}
	c.state.Store(&State{
		Phase:            PhaseRampUp,
		CurrentTPS:       config.InitialTPS,
		LastAdjustmentMs: -1,
		LastKnownGoodTPS: config.InitialTPS,
	})
	return c, nil
}

// Bind installs the snapshot provider. Must be called before the run
// starts; until then ticks observe an all-zero snapshot.
func (c *Controller) Bind(provider SnapshotProvider) {
	if provider == nil {
		return
	}
	c.provider.Store(&provider)
}

// Subscribe registers a listener for controller events.
func (c *Controller) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns the current published state.
func (c *Controller) State() State {
	return *c.state.Load()
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// TargetTPS returns the rate for the given elapsed time, performing at
// most one adjustment per RampInterval.
func (c *Controller) TargetTPS(elapsedMs int64) float64 {
	st := c.state.Load()

	// First call initialises the tick clock.
	if st.LastAdjustmentMs < 0 {
		init := *st
		init.LastAdjustmentMs = elapsedMs
		init.PhaseStartMs = elapsedMs
		if c.state.CompareAndSwap(st, &init) {
			return init.CurrentTPS
		}
		return c.state.Load().CurrentTPS
	}

	if elapsedMs-st.LastAdjustmentMs < c.config.RampInterval.Milliseconds() {
		return st.CurrentTPS
	}

	m := c.snapshot()
	d := c.decide(st, m)
	next := c.apply(st, d, m, elapsedMs)

	if !c.state.CompareAndSwap(st, &next) {
		// Lost a race with another writer; honour whatever won.
		return c.state.Load().CurrentTPS
	}

	c.emit(st, &next, d)
	return next.CurrentTPS
}

// TotalDuration returns the configured run duration; zero means the run
// continues until stopped.
func (c *Controller) TotalDuration() time.Duration { return c.config.Duration }

// SupportsWarmupCooldown reports false.
func (c *Controller) SupportsWarmupCooldown() bool { return false }

// ShouldRecordMetrics reports true: the adaptive controller needs every
// invocation it generates reflected in its own feedback.
func (c *Controller) ShouldRecordMetrics(int64) bool { return true }

// Name returns the pattern type name.
func (c *Controller) Name() string { return "adaptive" }

// Phase returns a description of the current controller state.
func (c *Controller) Phase(int64) string {
	st := c.state.Load()
	if st.InRecovery {
		return fmt.Sprintf("recovery: holding at %.0f TPS floor", st.CurrentTPS)
	}
	return fmt.Sprintf("%s: %.0f TPS (%d transitions)", st.Phase, st.CurrentTPS, st.TransitionCount)
}

// snapshot captures the decision input, or a zero snapshot when no
// provider has been bound.
func (c *Controller) snapshot() MetricsSnapshot {
	if p := c.provider.Load(); p != nil {
		return (*p).Snapshot()
	}
	return MetricsSnapshot{}
}

// isStable reports whether ShouldRampUp has held for the required number
// of consecutive ticks, counting the current one.
func (c *Controller) isStable(st *State, m MetricsSnapshot) bool {
	return c.policy.ShouldRampUp(m) && st.StableIntervals+1 >= c.config.StableIntervalsRequired
}

// decide derives the tick decision from the prior state and the snapshot.
// Predicates are evaluated in a fixed order and the first match wins;
// ShouldRampDown is always checked before ShouldRampUp so that degrading
// conditions take precedence over improving ones in the same snapshot.
func (c *Controller) decide(st *State, m MetricsSnapshot) decision {
	cfg := c.config

	switch st.Phase {
	case PhaseRampUp:
		switch {
		case c.policy.ShouldRampDown(m):
			return decision{
				phase:  PhaseRampDown,
				tps:    max(cfg.MinTPS, st.CurrentTPS-cfg.RampDecrement),
				reason: fmt.Sprintf("degraded: failureRate=%.4f backpressure=%.2f", m.FailureRate, m.BackpressureLevel),
			}
		case st.CurrentTPS >= cfg.MaxTPS:
			return decision{phase: PhaseSustain, tps: st.CurrentTPS, reason: "reached max TPS"}
		case c.isStable(st, m):
			return decision{phase: PhaseSustain, tps: st.CurrentTPS, reason: "stability criterion met", stability: true}
		case c.policy.ShouldRampUp(m):
			return decision{
				phase:  PhaseRampUp,
				tps:    min(cfg.MaxTPS, st.CurrentTPS+cfg.RampIncrement),
				reason: "healthy: ramping up",
			}
		default:
			return decision{phase: PhaseRampUp, tps: st.CurrentTPS, reason: "moderate pressure: holding"}
		}

	case PhaseRampDown:
		if st.InRecovery {
			if c.policy.CanRecoverFromMinimum(m) {
				return decision{
					phase:    PhaseRampUp,
					tps:      max(cfg.MinTPS, st.LastKnownGoodTPS*cfg.RecoveryTPSRatio),
					reason:   fmt.Sprintf("recovered: resuming at %.0f%% of last known good", cfg.RecoveryTPSRatio*100),
					recovery: true,
				}
			}
			return decision{phase: PhaseRampDown, tps: cfg.MinTPS, reason: "recovery: holding at floor"}
		}
		if !c.policy.ShouldRampDown(m) {
			if c.isStable(st, m) {
				return decision{phase: PhaseSustain, tps: st.CurrentTPS, reason: "stability criterion met", stability: true}
			}
			return decision{phase: PhaseRampDown, tps: st.CurrentTPS, reason: "conditions easing: holding"}
		}
		return decision{
			phase:  PhaseRampDown,
			tps:    max(cfg.MinTPS, st.CurrentTPS-cfg.RampDecrement),
			reason: fmt.Sprintf("still degraded: failureRate=%.4f backpressure=%.2f", m.FailureRate, m.BackpressureLevel),
		}

	default: // PhaseSustain
		switch {
		case c.policy.ShouldRampDown(m):
			return decision{
				phase:  PhaseRampDown,
				tps:    max(cfg.MinTPS, st.CurrentTPS-cfg.RampDecrement),
				reason: fmt.Sprintf("degraded during sustain: failureRate=%.4f backpressure=%.2f", m.FailureRate, m.BackpressureLevel),
			}
		case m.ElapsedMs-st.PhaseStartMs >= cfg.SustainDuration.Milliseconds() &&
			c.policy.ShouldRampUp(m) && st.CurrentTPS < cfg.MaxTPS:
			return decision{
				phase:  PhaseRampUp,
				tps:    min(cfg.MaxTPS, st.CurrentTPS+cfg.RampIncrement),
				reason: "sustain window elapsed: probing upward",
			}
		default:
			return decision{phase: PhaseSustain, tps: st.CurrentTPS, reason: "sustaining"}
		}
	}
}

// apply produces the successor state for a decision. The stability counter
// resets on every phase transition and on every TPS change; otherwise it
// increments exactly when ShouldRampUp holds. InRecovery is recomputed so
// the recovery invariant holds by construction.
func (c *Controller) apply(st *State, d decision, m MetricsSnapshot, elapsedMs int64) State {
	next := *st

	switch {
	case d.phase != st.Phase:
		next.Phase = d.phase
		next.PhaseStartMs = elapsedMs
		next.StableIntervals = 0
		next.TransitionCount++
		if d.phase == PhaseRampDown {
			next.LastKnownGoodTPS = max(st.LastKnownGoodTPS, st.CurrentTPS)
		}
		next.CurrentTPS = d.tps
	case d.tps != st.CurrentTPS:
		next.StableIntervals = 0
		next.CurrentTPS = d.tps
	default:
		if c.policy.ShouldRampUp(m) {
			next.StableIntervals++
		} else {
			next.StableIntervals = 0
		}
	}

	next.InRecovery = next.Phase == PhaseRampDown && next.CurrentTPS == c.config.MinTPS
	next.LastAdjustmentMs = elapsedMs
	return next
}

// emit notifies listeners after the new state has been published.
func (c *Controller) emit(prev *State, next *State, d decision) {
	c.listenerMu.RLock()
	listeners := c.listeners
	c.listenerMu.RUnlock()
	if len(listeners) == 0 {
		if next.Phase != prev.Phase {
			c.logger.Info("adaptive phase transition",
				zap.Stringer("from", prev.Phase),
				zap.Stringer("to", next.Phase),
				zap.Float64("tps", next.CurrentTPS),
				zap.String("reason", d.reason))
		}
		return
	}

	for _, l := range listeners {
		c.notify(l, prev, next, d)
	}
}

// notify delivers all events of one tick to one listener, recovering from
// panics so listener failures never reach the decision loop.
func (c *Controller) notify(l Listener, prev *State, next *State, d decision) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("adaptive listener panicked", zap.Any("panic", r))
		}
	}()

	if next.Phase != prev.Phase {
		l.OnPhaseTransition(prev.Phase, next.Phase, next.CurrentTPS, d.reason)
		if d.stability {
			l.OnStabilityDetected(next.CurrentTPS)
		}
		if d.recovery {
			l.OnRecovery(next.LastKnownGoodTPS, next.CurrentTPS)
		}
	}
	if next.CurrentTPS != prev.CurrentTPS {
		l.OnTPSChange(prev.CurrentTPS, next.CurrentTPS, next.Phase)
	}
}
