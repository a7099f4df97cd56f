package agent

import (
	"sync"

	"github.com/Treamyracle/INFOMEDIA/internal/llm"
)

// DefaultMaxHistory caps the redacted messages kept per conversation.
const DefaultMaxHistory = 20

// conversation is the redacted message history of one session. Its mutex
// is held for a whole turn, so turns in one session run one at a time.
type conversation struct {
	mu   sync.Mutex
	msgs []llm.Message
}

// append adds msgs and trims the oldest so at most limit remain. A trimmed
// history never starts with a tool result.
func (c *conversation) append(limit int, msgs ...llm.Message) {
	c.msgs = append(c.msgs, msgs...)
	if limit <= 0 || len(c.msgs) <= limit {
		return
	}
	start := len(c.msgs) - limit
	for start < len(c.msgs) && c.msgs[start].Role != llm.RoleUser {
		start++
	}
	c.msgs = append([]llm.Message(nil), c.msgs[start:]...)
}

func (c *conversation) history() []llm.Message {
	out := make([]llm.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

type conversations struct {
	mu    sync.Mutex
	byID  map[string]*conversation
	alive func(id string) bool
}

func newConversations(alive func(id string) bool) *conversations {
	return &conversations{byID: make(map[string]*conversation), alive: alive}
}

// get returns the conversation for id, dropping histories whose vault
// session has expired.
func (cs *conversations) get(id string) *conversation {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for other := range cs.byID {
		if other != id && !cs.alive(other) {
			delete(cs.byID, other)
		}
	}
	c, ok := cs.byID[id]
	if !ok {
		c = &conversation{}
		cs.byID[id] = c
	}
	return c
}

func (cs *conversations) drop(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.byID, id)
}

func (cs *conversations) len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.byID)
}
