package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64           { return &v }
func durPtr(v time.Duration) *time.Duration { return &v }
func uintPtr(v uint64) *uint64              { return &v }

func TestAssertionsEmpty(t *testing.T) {
	var a *Assertions
	assert.True(t, a.Empty())
	assert.True(t, (&Assertions{}).Empty())
	assert.False(t, (&Assertions{MaxFailureRate: floatPtr(0.1)}).Empty())
}

func TestAssertionsAllPass(t *testing.T) {
	a := Assertions{
		MaxFailureRate:     floatPtr(0.05),
		MaxSuccessP95:      durPtr(50 * time.Millisecond),
		MaxSuccessP99:      durPtr(100 * time.Millisecond),
		MinResponseTPS:     floatPtr(50),
		MinTotalExecutions: uintPtr(500),
	}

	results := a.Evaluate(sampleSnapshot())
	assert.True(t, results.AllPassed)
	assert.Equal(t, 5, results.PassedCount)
	assert.Zero(t, results.FailedCount)
	assert.Contains(t, results.Summary(), "5/5 passed")
}

func TestAssertionsFailures(t *testing.T) {
	a := Assertions{
		MaxFailureRate: floatPtr(0.01),
		MaxSuccessP95:  durPtr(time.Millisecond),
		MinResponseTPS: floatPtr(500),
	}

	results := a.Evaluate(sampleSnapshot())
	assert.False(t, results.AllPassed)
	assert.Equal(t, 3, results.FailedCount)

	failed := results.FailedResults()
	require.Len(t, failed, 3)
	names := []string{failed[0].Name, failed[1].Name, failed[2].Name}
	assert.Contains(t, names, "maxFailureRate")
	assert.Contains(t, names, "maxSuccessP95")
	assert.Contains(t, names, "minResponseTPS")
	assert.Contains(t, results.Summary(), "FAILED")
}

func TestAssertionsMissingPercentileFails(t *testing.T) {
	a := Assertions{MaxSuccessP95: durPtr(time.Second)}

	snap := sampleSnapshot()
	snap.SuccessLatency = nil

	results := a.Evaluate(snap)
	assert.False(t, results.AllPassed, "a threshold on an absent percentile cannot pass")
}

func TestAssertionsNoneConfigured(t *testing.T) {
	results := (&Assertions{}).Evaluate(sampleSnapshot())
	assert.True(t, results.AllPassed)
	assert.Equal(t, "No assertions configured", results.Summary())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExitCodeSuccess)
	assert.Equal(t, 2, ExitCodeAssertionFailure)
}
