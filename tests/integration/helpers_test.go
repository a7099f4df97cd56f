//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/agent"
	"github.com/Treamyracle/INFOMEDIA/internal/agent/tools"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/llm"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/server"
	"github.com/Treamyracle/INFOMEDIA/internal/testutil"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// recordingLLM is an OpenAI-compatible server that answers from a script and
// keeps every request body.
type recordingLLM struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
}

func newRecordingLLM(t *testing.T, replies ...testutil.OpenAIMessage) *recordingLLM {
	t.Helper()
	rl := &recordingLLM{}
	rl.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		rl.mu.Lock()
		idx := len(rl.bodies)
		rl.bodies = append(rl.bodies, string(raw))
		rl.mu.Unlock()
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		msg := replies[idx]
		finish := "stop"
		if len(msg.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testutil.OpenAICompatibleResponse{
			ID:      "chatcmpl-it",
			Object:  "chat.completion",
			Model:   "mock-model",
			Choices: []testutil.OpenAIChoice{{Message: msg, FinishReason: finish}},
		})
	}))
	t.Cleanup(rl.Close)
	return rl
}

func (rl *recordingLLM) Bodies() []string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return append([]string(nil), rl.bodies...)
}

// newNERServer reports each of names as a PERSON wherever it occurs in the
// submitted text, with code-point offsets.
func newNERServer(t *testing.T, names ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		ents := []ner.Entity{}
		for _, n := range names {
			if i := strings.Index(req.Text, n); i >= 0 {
				start := utf8.RuneCountInString(req.Text[:i])
				ents = append(ents, ner.Entity{Text: n, Label: "PERSON", Score: 0.97, Start: start, End: start + utf8.RuneCountInString(n)})
			}
		}
		resp := map[string]interface{}{
			"status":      "success",
			"data":        map[string]interface{}{"original_text": req.Text, "entities": ents},
			"performance": map[string]float64{"latency_ms": 3.2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	Handler  http.Handler
	Accounts *accounts.SQLiteStore
	Audit    *audit.Store
}

// setupStack wires the real pipeline, SQLite stores, NER client and OpenAI
// provider behind the HTTP server.
func setupStack(t *testing.T, llmURL, nerURL string) *stack {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	acct, err := accounts.NewSQLiteStore(filepath.Join(dir, "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = acct.Close() })
	require.NoError(t, accounts.Seed(ctx, acct, accounts.DefaultSeed()))

	aud, err := audit.NewStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = aud.Close() })

	runner := agent.NewRunner(agent.RunnerConfig{
		Sessions:     vault.NewManager(vault.DefaultSessionTTL),
		Pipeline:     redaction.NewPipeline(classifier.MustNewScanner(), ner.NewClient(nerURL)),
		Tools:        tools.DefaultRegistry(acct),
		Provider:     llm.NewOpenAIProvider("sk-test", llmURL),
		Model:        "mock-model",
		Audit:        aud,
		Breaker:      agent.NewVerificationBreaker(3, 0),
		RestoreReply: true,
	})
	srv := server.NewServer(runner, server.WithAuditStore(aud))
	return &stack{Handler: srv.Routes(), Accounts: acct, Audit: aud}
}
