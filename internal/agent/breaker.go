package agent

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Treamyracle/INFOMEDIA/internal/agent/tools"
)

// CircuitState represents the verification breaker state of a session.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal: verification tools run
	CircuitOpen                         // Tripped: verification tools refused
	CircuitHalfOpen                     // Probe: one verification attempt allowed
)

// ErrVerificationLocked is returned by Check while a session is locked out.
var ErrVerificationLocked = errors.New("verification locked after repeated failures")

// verificationFailures are the outcomes that count as a failed identity
// check. Incomplete input does not count; it is a conversation problem,
// not a guess.
var verificationFailures = map[tools.Reason]bool{
	tools.ReasonUnknownAccount: true,
	tools.ReasonMismatch:       true,
	tools.ReasonOwnerMismatch:  true,
}

// verificationTools are the tools that check a claimed identity against the
// account store.
var verificationTools = map[string]bool{
	tools.PasswordResetName: true,
	tools.WithdrawalName:    true,
}

// VerificationBreaker counts failed identity checks per session and opens
// the circuit when repeated failures exceed the threshold within a window,
// so a conversation cannot enumerate NIK, email and birthdate combinations.
//
// State is keyed by session id only. A client that starts a new session
// starts with a closed circuit; across sessions, guessing is bounded by the
// server's per-address rate limit, not by this breaker. Entries are removed
// when the session ends or its vault expires.
type VerificationBreaker struct {
	mu        sync.Mutex
	sessions  map[string]*sessionCircuit
	threshold int
	window    time.Duration
	now       func() time.Time
}

type sessionCircuit struct {
	failures      []time.Time
	state         CircuitState
	openedAt      time.Time
	probeInFlight bool
}

// NewVerificationBreaker creates a breaker.
// threshold: failures in window to trip the circuit (default 3).
// window: sliding window and lockout duration (default 15m).
func NewVerificationBreaker(threshold int, window time.Duration) *VerificationBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &VerificationBreaker{
		sessions:  make(map[string]*sessionCircuit),
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// Guards reports whether the breaker applies to the named tool.
func (b *VerificationBreaker) Guards(tool string) bool {
	return verificationTools[tool]
}

// Check returns nil if the session may attempt a verification, or
// ErrVerificationLocked. In half-open state, allows one probe.
func (b *VerificationBreaker) Check(sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, ok := b.sessions[sessionID]
	if !ok {
		return nil
	}

	switch sc.state {
	case CircuitOpen:
		if b.now().Sub(sc.openedAt) > b.window {
			sc.state = CircuitHalfOpen
			sc.probeInFlight = true
			return nil
		}
		return ErrVerificationLocked
	case CircuitHalfOpen:
		if sc.probeInFlight {
			return ErrVerificationLocked
		}
		sc.probeInFlight = true
		return nil
	}
	return nil
}

// Record feeds a verification tool's outcome into the breaker.
func (b *VerificationBreaker) Record(sessionID string, o tools.Outcome) {
	switch {
	case o.OK():
		b.recordSuccess(sessionID)
	case verificationFailures[o.Reason]:
		b.recordFailure(sessionID, o.Reason)
	default:
		// Not an identity verdict; release a half-open probe unchanged.
		b.mu.Lock()
		if sc, ok := b.sessions[sessionID]; ok {
			sc.probeInFlight = false
		}
		b.mu.Unlock()
	}
}

func (b *VerificationBreaker) recordFailure(sessionID string, reason tools.Reason) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, ok := b.sessions[sessionID]
	if !ok {
		sc = &sessionCircuit{}
		b.sessions[sessionID] = sc
	}
	now := b.now()

	// Half-open: failed probe reopens immediately.
	if sc.state == CircuitHalfOpen {
		sc.state = CircuitOpen
		sc.openedAt = now
		sc.probeInFlight = false
		return
	}

	cutoff := now.Add(-b.window)
	sc.failures = append(filterAfter(sc.failures, cutoff), now)

	if len(sc.failures) >= b.threshold && sc.state == CircuitClosed {
		sc.state = CircuitOpen
		sc.openedAt = now
		log.Warn().
			Str("session_id", sessionID).
			Str("last_reason", string(reason)).
			Int("failure_count", len(sc.failures)).
			Dur("window", b.window).
			Msg("verification_lockout")
	}
}

func (b *VerificationBreaker) recordSuccess(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sc, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	if sc.state == CircuitHalfOpen {
		sc.state = CircuitClosed
		sc.failures = nil
		sc.probeInFlight = false
	}
}

// Reset forgets a session (operator override or session end).
func (b *VerificationBreaker) Reset(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

// Len returns the number of sessions with breaker state.
func (b *VerificationBreaker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// State returns the current circuit state for a session.
func (b *VerificationBreaker) State(sessionID string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	sc, ok := b.sessions[sessionID]
	if !ok {
		return CircuitClosed
	}
	return sc.state
}

func filterAfter(times []time.Time, cutoff time.Time) []time.Time {
	var result []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
