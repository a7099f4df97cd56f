package vault

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Session is the tag vault of one conversation. A tag maps to at most one
// value at any instant; a later Bind for the same tag wins.
type Session struct {
	id  string
	now func() time.Time

	mu       sync.RWMutex
	bindings map[string]string
	touched  time.Time
}

// NewSession creates an empty, standalone session. Most callers obtain
// sessions from a Manager instead.
func NewSession(id string) *Session {
	return newSession(id, time.Now)
}

func newSession(id string, now func() time.Time) *Session {
	return &Session{
		id:       id,
		now:      now,
		bindings: make(map[string]string),
		touched:  now(),
	}
}

// ID returns the conversation identifier the session belongs to.
func (s *Session) ID() string {
	return s.id
}

// Bind stores value under tag, replacing any previous value.
func (s *Session) Bind(tag, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[tag] = value
	s.touched = s.now()
}

// Resolve returns the value currently bound to tag.
func (s *Session) Resolve(tag string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.bindings[tag]
	return v, ok
}

// Snapshot returns a copy of every binding. Only for debug exposure and tests.
func (s *Session) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.bindings))
	for k, v := range s.bindings {
		out[k] = v
	}
	return out
}

// Tags returns the bound tags in sorted order.
func (s *Session) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := make([]string, 0, len(s.bindings))
	for t := range s.bindings {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of bound tags.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touched = s.now()
	s.mu.Unlock()
}

// Touched returns the last time the session was bound or touched.
func (s *Session) Touched() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touched
}

// Mask replaces every bound value occurring in text with its tag. Longer
// values win over values they contain.
func (s *Session) Mask(text string) string {
	s.mu.RLock()
	pairs := make([][2]string, 0, len(s.bindings))
	for tag, v := range s.bindings {
		if v == "" {
			continue
		}
		pairs = append(pairs, [2]string{v, tag})
	}
	s.mu.RUnlock()
	if len(pairs) == 0 {
		return text
	}

	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i][0]) != len(pairs[j][0]) {
			return len(pairs[i][0]) > len(pairs[j][0])
		}
		return pairs[i][1] < pairs[j][1]
	})
	oldnew := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		oldnew = append(oldnew, p[0], p[1])
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}

// Unmask replaces every bound tag in text with its value. Unknown tags are
// left as they are.
func (s *Session) Unmask(text string) string {
	return TagPattern.ReplaceAllStringFunc(text, func(tag string) string {
		if v, ok := s.Resolve(tag); ok {
			return v
		}
		return tag
	})
}
