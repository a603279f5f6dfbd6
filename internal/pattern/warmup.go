package pattern

import (
	"fmt"
	"time"
)

// WarmupCooldown decorates another pattern and suppresses metric recording
// during the head (warmup) and tail (cooldown) windows of the run. The
// target TPS is unchanged: the load is still generated, it just does not
// pollute the aggregated results.
//
// Thread Safety: Safe for concurrent use (read-only after creation).
type WarmupCooldown struct {
	inner    LoadPattern
	warmup   time.Duration
	cooldown time.Duration
}

// NewWarmupCooldown wraps inner with warmup and cooldown windows. The inner
// pattern must have a bounded total duration and the windows must leave a
// non-empty measured middle.
func NewWarmupCooldown(inner LoadPattern, warmup, cooldown time.Duration) (*WarmupCooldown, error) {
	if inner == nil {
		return nil, fmt.Errorf("warmup/cooldown requires an inner pattern")
	}
	if warmup < 0 || cooldown < 0 {
		return nil, fmt.Errorf("warmup and cooldown cannot be negative")
	}
	total := inner.TotalDuration()
	if total <= 0 {
		return nil, fmt.Errorf("warmup/cooldown requires a bounded pattern duration")
	}
	if warmup+cooldown >= total {
		return nil, fmt.Errorf("warmup (%v) plus cooldown (%v) must be less than total duration (%v)",
			warmup, cooldown, total)
	}
	return &WarmupCooldown{inner: inner, warmup: warmup, cooldown: cooldown}, nil
}

// TargetTPS delegates to the wrapped pattern.
func (w *WarmupCooldown) TargetTPS(elapsedMs int64) float64 {
	return w.inner.TargetTPS(elapsedMs)
}

// TotalDuration returns the wrapped pattern's duration.
func (w *WarmupCooldown) TotalDuration() time.Duration {
	return w.inner.TotalDuration()
}

// SupportsWarmupCooldown reports true.
func (w *WarmupCooldown) SupportsWarmupCooldown() bool { return true }

// ShouldRecordMetrics reports false during the warmup and cooldown windows.
func (w *WarmupCooldown) ShouldRecordMetrics(elapsedMs int64) bool {
	if elapsedMs < w.warmup.Milliseconds() {
		return false
	}
	cutoffMs := w.inner.TotalDuration().Milliseconds() - w.cooldown.Milliseconds()
	return elapsedMs < cutoffMs
}

// Name returns the decorated pattern name.
func (w *WarmupCooldown) Name() string {
	return w.inner.Name() + "+warmup_cooldown"
}

// Phase returns the wrapped phase annotated with the current window.
func (w *WarmupCooldown) Phase(elapsedMs int64) string {
	if elapsedMs < w.warmup.Milliseconds() {
		return "warmup: " + w.inner.Phase(elapsedMs)
	}
	if !w.ShouldRecordMetrics(elapsedMs) {
		return "cooldown: " + w.inner.Phase(elapsedMs)
	}
	return w.inner.Phase(elapsedMs)
}
