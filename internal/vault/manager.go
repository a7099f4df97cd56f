package vault

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL is how long an idle conversation keeps its bindings.
const DefaultSessionTTL = 30 * time.Minute

// Manager owns the sessions of every live conversation. Sessions are created
// on first use and expire after TTL of inactivity, so bindings from one
// conversation can never be resolved from another.
type Manager struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	onExpire []func(id string)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager. ttl <= 0 disables expiry.
func NewManager(ttl time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL returns the idle timeout.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// OnExpire registers fn to run with the id of every session Sweep removes.
// Hooks run after the manager's lock is released.
func (m *Manager) OnExpire(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = append(m.onExpire, fn)
}

// Get returns the session for id, creating it if needed, and marks it active.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, m.now)
		m.sessions[id] = s
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		recordActiveSessions(ctx, int64(n))
	} else {
		s.Touch()
	}
	return s
}

// Lookup returns the session for id without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Drop discards a session and all of its bindings.
func (m *Manager) Drop(ctx context.Context, id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		recordActiveSessions(ctx, int64(n))
	}
	return ok
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if s.Touched().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	n := len(m.sessions)
	hooks := m.onExpire
	m.mu.Unlock()

	for _, id := range expired {
		for _, fn := range hooks {
			fn(id)
		}
	}
	removed := len(expired)
	if removed > 0 {
		sessionsExpired.Add(ctx, int64(removed))
		recordActiveSessions(ctx, int64(n))
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
