package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Treamyracle/INFOMEDIA/internal/agent/tools"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, window time.Duration) (*VerificationBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewVerificationBreaker(threshold, window)
	b.now = clk.Now
	return b, clk
}

var mismatch = tools.Failure(tools.ReasonMismatch, "x")

func TestVerificationBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		b.Record("s", mismatch)
	}
	assert.ErrorIs(t, b.Check("s"), ErrVerificationLocked)
	assert.Equal(t, CircuitOpen, b.State("s"))
	assert.NoError(t, b.Check("other"), "sessions are independent")
}

func TestVerificationBreaker_ClosedBeforeThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	b.Record("s", mismatch)
	b.Record("s", tools.Failure(tools.ReasonOwnerMismatch, "x"))
	assert.NoError(t, b.Check("s"))
	assert.Equal(t, CircuitClosed, b.State("s"))
}

func TestVerificationBreaker_IgnoresNonVerificationFailures(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	for i := 0; i < 5; i++ {
		b.Record("s", tools.Failure(tools.ReasonIncompleteInput, "x"))
		b.Record("s", tools.Failure(tools.ReasonInsufficientBalance, "x"))
	}
	assert.NoError(t, b.Check("s"))
}

func TestVerificationBreaker_FailuresOutsideWindowExpire(t *testing.T) {
	b, clk := newTestBreaker(2, time.Minute)
	b.Record("s", mismatch)
	clk.Advance(2 * time.Minute)
	b.Record("s", mismatch)
	assert.NoError(t, b.Check("s"))
}

func TestVerificationBreaker_HalfOpenProbe(t *testing.T) {
	b, clk := newTestBreaker(2, time.Minute)
	b.Record("s", mismatch)
	b.Record("s", mismatch)
	clk.Advance(2 * time.Minute)

	assert.NoError(t, b.Check("s"), "first check after window is the probe")
	assert.Equal(t, CircuitHalfOpen, b.State("s"))
	assert.ErrorIs(t, b.Check("s"), ErrVerificationLocked, "only one probe")

	b.Record("s", tools.Success("ok", nil))
	assert.Equal(t, CircuitClosed, b.State("s"))
	assert.NoError(t, b.Check("s"))
}

func TestVerificationBreaker_FailedProbeReopens(t *testing.T) {
	b, clk := newTestBreaker(2, time.Minute)
	b.Record("s", mismatch)
	b.Record("s", mismatch)
	clk.Advance(2 * time.Minute)
	assert.NoError(t, b.Check("s"))

	b.Record("s", mismatch)
	assert.Equal(t, CircuitOpen, b.State("s"))
	assert.ErrorIs(t, b.Check("s"), ErrVerificationLocked)
}

func TestVerificationBreaker_ResetAndGuards(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	b.Record("s", mismatch)
	assert.Error(t, b.Check("s"))
	b.Reset("s")
	assert.NoError(t, b.Check("s"))

	assert.True(t, b.Guards(tools.PasswordResetName))
	assert.True(t, b.Guards(tools.WithdrawalName))
	assert.False(t, b.Guards(tools.PhysicalCardName))
}
