package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulseload/pulseload/internal/metrics"
)

// Exit codes for assertion results.
const (
	// ExitCodeSuccess indicates all assertions passed.
	ExitCodeSuccess = 0
	// ExitCodeAssertionFailure indicates one or more assertions failed.
	ExitCodeAssertionFailure = 2
)

// Assertions defines SLO thresholds evaluated against the final snapshot.
// Nil fields are not checked.
type Assertions struct {
	// MaxFailureRate is the highest acceptable failure fraction [0, 1].
	MaxFailureRate *float64 `yaml:"maxFailureRate,omitempty" json:"maxFailureRate,omitempty"`

	// MaxSuccessP95 bounds the 95th percentile success latency.
	MaxSuccessP95 *time.Duration `yaml:"maxSuccessP95,omitempty" json:"maxSuccessP95,omitempty"`

	// MaxSuccessP99 bounds the 99th percentile success latency.
	MaxSuccessP99 *time.Duration `yaml:"maxSuccessP99,omitempty" json:"maxSuccessP99,omitempty"`

	// MinResponseTPS is the lowest acceptable observed response TPS.
	MinResponseTPS *float64 `yaml:"minResponseTPS,omitempty" json:"minResponseTPS,omitempty"`

	// MinTotalExecutions is the lowest acceptable invocation count.
	MinTotalExecutions *uint64 `yaml:"minTotalExecutions,omitempty" json:"minTotalExecutions,omitempty"`
}

// Empty reports whether no thresholds are configured.
func (a *Assertions) Empty() bool {
	return a == nil || (a.MaxFailureRate == nil && a.MaxSuccessP95 == nil &&
		a.MaxSuccessP99 == nil && a.MinResponseTPS == nil && a.MinTotalExecutions == nil)
}

// AssertionResult is the outcome of one threshold check.
type AssertionResult struct {
	// Name identifies the assertion (e.g. "maxFailureRate").
	Name string

	// Passed reports whether the check held.
	Passed bool

	// Expected is the threshold rendered for humans.
	Expected string

	// Actual is the measured value rendered for humans.
	Actual string
}

// AssertionResults holds the outcome of a full evaluation.
type AssertionResults struct {
	// Results lists every evaluated assertion.
	Results []AssertionResult

	// PassedCount and FailedCount partition Results.
	PassedCount int
	FailedCount int

	// AllPassed reports whether every assertion held.
	AllPassed bool
}

// Summary returns a one-line human-readable result.
func (r *AssertionResults) Summary() string {
	if len(r.Results) == 0 {
		return "No assertions configured"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Assertions: %d/%d passed", r.PassedCount, len(r.Results))
	if r.FailedCount > 0 {
		fmt.Fprintf(&sb, " (%d FAILED)", r.FailedCount)
	}
	return sb.String()
}

// FailedResults returns only the failed checks.
func (r *AssertionResults) FailedResults() []AssertionResult {
	failed := make([]AssertionResult, 0, r.FailedCount)
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Evaluate checks every configured threshold against the snapshot.
func (a *Assertions) Evaluate(snap metrics.AggregatedSnapshot) AssertionResults {
	var results AssertionResults

	add := func(name string, passed bool, expected, actual string) {
		results.Results = append(results.Results, AssertionResult{
			Name:     name,
			Passed:   passed,
			Expected: expected,
			Actual:   actual,
		})
		if passed {
			results.PassedCount++
		} else {
			results.FailedCount++
		}
	}

	if a.MaxFailureRate != nil {
		actual := snap.FailureRate()
		add("maxFailureRate", actual <= *a.MaxFailureRate,
			fmt.Sprintf("≤ %.4f", *a.MaxFailureRate), fmt.Sprintf("%.4f", actual))
	}
	if a.MaxSuccessP95 != nil {
		actual, ok := snap.SuccessLatency[0.95]
		add("maxSuccessP95", ok && actual <= *a.MaxSuccessP95,
			fmt.Sprintf("≤ %v", *a.MaxSuccessP95), actual.String())
	}
	if a.MaxSuccessP99 != nil {
		actual, ok := snap.SuccessLatency[0.99]
		add("maxSuccessP99", ok && actual <= *a.MaxSuccessP99,
			fmt.Sprintf("≤ %v", *a.MaxSuccessP99), actual.String())
	}
	if a.MinResponseTPS != nil {
		add("minResponseTPS", snap.ResponseTPS >= *a.MinResponseTPS,
			fmt.Sprintf("≥ %.2f", *a.MinResponseTPS), fmt.Sprintf("%.2f", snap.ResponseTPS))
	}
	if a.MinTotalExecutions != nil {
		add("minTotalExecutions", snap.TotalExecutions >= *a.MinTotalExecutions,
			fmt.Sprintf("≥ %d", *a.MinTotalExecutions), fmt.Sprintf("%d", snap.TotalExecutions))
	}

	results.AllPassed = results.FailedCount == 0
	return results
}
