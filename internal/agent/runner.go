// Package agent runs one conversational turn: redact the user's message,
// let the model answer or call tools, and hand tool outcomes back to the
// model in tagged form.
//
// The model never sees a value the vault holds. User text is redacted
// before it is sent, and every tool outcome is masked with the session's
// bindings before it re-enters the conversation.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Treamyracle/INFOMEDIA/internal/agent/tools"
	"github.com/Treamyracle/INFOMEDIA/internal/audit"
	"github.com/Treamyracle/INFOMEDIA/internal/llm"
	"github.com/Treamyracle/INFOMEDIA/internal/redaction"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/agent")

// DefaultMaxToolRounds bounds model round trips that request tools.
const DefaultMaxToolRounds = 5

// ErrEmptyMessage is returned for a blank user message.
var ErrEmptyMessage = errors.New("message is empty")

// Runner executes conversational turns.
type Runner struct {
	sessions      *vault.Manager
	pipeline      *redaction.Pipeline
	tools         *tools.Registry
	provider      llm.Provider
	model         string
	temperature   float64
	audit         audit.Recorder
	breaker       *VerificationBreaker
	restoreReply  bool
	debugVault    bool
	maxToolRounds int
	maxHistory    int
	convs         *conversations
}

// RunnerConfig holds the dependencies for constructing a Runner.
type RunnerConfig struct {
	Sessions      *vault.Manager
	Pipeline      *redaction.Pipeline
	Tools         *tools.Registry
	Provider      llm.Provider
	Model         string
	Temperature   float64
	Audit         audit.Recorder       // optional; nil = no audit trail
	Breaker       *VerificationBreaker // optional; nil = no lockout
	RestoreReply  bool                 // unmask tags in the final reply
	DebugVault    bool                 // include original text and vault in responses
	MaxToolRounds int                  // <= 0 uses DefaultMaxToolRounds
	MaxHistory    int                  // <= 0 uses DefaultMaxHistory
}

// NewRunner creates a runner with the given dependencies.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		sessions:      cfg.Sessions,
		pipeline:      cfg.Pipeline,
		tools:         cfg.Tools,
		provider:      cfg.Provider,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		audit:         cfg.Audit,
		breaker:       cfg.Breaker,
		restoreReply:  cfg.RestoreReply,
		debugVault:    cfg.DebugVault,
		maxToolRounds: cfg.MaxToolRounds,
		maxHistory:    cfg.MaxHistory,
	}
	if r.maxToolRounds <= 0 {
		r.maxToolRounds = DefaultMaxToolRounds
	}
	if r.maxHistory <= 0 {
		r.maxHistory = DefaultMaxHistory
	}
	r.convs = newConversations(func(id string) bool {
		_, ok := cfg.Sessions.Lookup(id)
		return ok
	})
	cfg.Sessions.OnExpire(r.forget)
	return r
}

// forget drops the per-session state the runner keeps beside the vault.
func (r *Runner) forget(sessionID string) {
	r.convs.drop(sessionID)
	if r.breaker != nil {
		r.breaker.Reset(sessionID)
	}
}

// ChatResponse is the output of one turn.
type ChatResponse struct {
	Reply       string          `json:"reply"`
	SessionID   string          `json:"session_id"`
	ToolsCalled []string        `json:"tools_called"`
	Outcomes    []tools.Outcome `json:"-"`
	Degraded    bool            `json:"degraded"`
	Debug       *Debug          `json:"debug,omitempty"`
}

// Debug exposes raw values for local debugging. Only populated when the
// runner is configured with DebugVault.
type Debug struct {
	Original     string            `json:"original"`
	PatternClean string            `json:"pattern_clean"`
	Clean        string            `json:"final_clean"`
	Vault        map[string]string `json:"session_data"`
}

// Chat runs one turn for sessionID. An empty sessionID starts a new
// session. Agent failures become an apology reply, not an error.
func (r *Runner) Chat(ctx context.Context, sessionID, message string) (*ChatResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	startTime := time.Now()

	ctx, span := tracer.Start(ctx, "agent.chat",
		trace.WithAttributes(domiotel.SessionID.String(sessionID)))
	defer span.End()

	if _, existed := r.sessions.Lookup(sessionID); !existed {
		r.convs.drop(sessionID)
	}
	s := r.sessions.Get(ctx, sessionID)
	conv := r.convs.get(sessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	res := r.pipeline.Redact(ctx, s, message)

	userMsg := llm.Message{Role: llm.RoleUser, Content: res.Clean}
	msgs := append([]llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt}}, conv.history()...)
	msgs = append(msgs, userMsg)
	turn := []llm.Message{userMsg}

	resp := &ChatResponse{SessionID: sessionID, ToolsCalled: []string{}, Degraded: res.Degraded}
	var (
		auditCalls []audit.ToolCall
		agentErr   error
		reply      string
	)

	for round := 0; ; round++ {
		llmResp, err := r.provider.Generate(ctx, &llm.Request{
			Model:       r.model,
			Messages:    msgs,
			Temperature: r.temperature,
			Tools:       r.declarations(),
		})
		if err != nil {
			agentErr = err
			span.RecordError(err)
			span.SetStatus(codes.Error, "agent call failed")
			reply = apologyPrefix + s.Mask(err.Error())
			break
		}
		if len(llmResp.ToolCalls) == 0 {
			reply = cleanReply(llmResp.Content)
			turn = append(turn, llm.Message{Role: llm.RoleAssistant, Content: llmResp.Content})
			break
		}
		if round >= r.maxToolRounds {
			log.Warn().Str("session_id", sessionID).Int("rounds", round).Msg("agent_tool_rounds_exceeded")
			reply = tooManyRoundsReply
			break
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Content: llmResp.Content, ToolCalls: llmResp.ToolCalls}
		msgs = append(msgs, assistant)
		turn = append(turn, assistant)
		for _, tc := range llmResp.ToolCalls {
			out := r.dispatch(ctx, s, tc)
			resp.ToolsCalled = append(resp.ToolsCalled, tc.Name)
			resp.Outcomes = append(resp.Outcomes, out)
			auditCalls = append(auditCalls, audit.ToolCall{Tool: tc.Name, Status: string(out.Status), Reason: string(out.Reason)})

			toolMsg := llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    encodeOutcome(maskOutcome(s, out)),
			}
			msgs = append(msgs, toolMsg)
			turn = append(turn, toolMsg)
		}
	}

	if agentErr == nil {
		conv.append(r.maxHistory, turn...)
	}

	if r.restoreReply {
		reply = s.Unmask(reply)
	}
	resp.Reply = reply

	if r.debugVault {
		resp.Debug = &Debug{
			Original:     res.Original,
			PatternClean: res.PatternClean,
			Clean:        res.Clean,
			Vault:        s.Snapshot(),
		}
	}

	duration := time.Since(startTime)
	r.record(ctx, &audit.Event{
		SessionID:    sessionID,
		Kind:         audit.KindChat,
		Labels:       boundLabels(res.Bindings),
		Tags:         res.Tags(),
		Degraded:     res.Degraded,
		NERLatencyMS: res.Performance.LatencyMS,
		ToolCalls:    auditCalls,
		Model:        r.model,
		DurationMS:   duration.Milliseconds(),
		Error:        errString(s, agentErr),
	})

	span.SetAttributes(
		domiotel.PIITagsBound.Int(len(res.Bindings)),
		attribute.Int("agent.tool_calls", len(resp.ToolsCalled)),
	)
	log.Info().
		Str("session_id", sessionID).
		Int("tags_bound", len(res.Bindings)).
		Strs("tools_called", resp.ToolsCalled).
		Bool("degraded", res.Degraded).
		Bool("agent_error", agentErr != nil).
		Int64("duration_ms", duration.Milliseconds()).
		Func(domiotel.LogTraceFields(ctx)).
		Msg("chat_completed")

	return resp, nil
}

// Redact runs only the redaction pipeline for sessionID and audits it.
func (r *Runner) Redact(ctx context.Context, sessionID, text string) (*redaction.Result, string) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	s := r.sessions.Get(ctx, sessionID)
	res := r.pipeline.Redact(ctx, s, text)
	r.record(ctx, &audit.Event{
		SessionID:    sessionID,
		Kind:         audit.KindRedact,
		Labels:       boundLabels(res.Bindings),
		Tags:         res.Tags(),
		Degraded:     res.Degraded,
		NERLatencyMS: res.Performance.LatencyMS,
	})
	return res, sessionID
}

// EndSession discards a session's vault, history and lockout state.
func (r *Runner) EndSession(ctx context.Context, sessionID string) bool {
	r.forget(sessionID)
	return r.sessions.Drop(ctx, sessionID)
}

// DebugEnabled reports whether responses may carry raw values.
func (r *Runner) DebugEnabled() bool { return r.debugVault }

// SessionSnapshot returns a copy of the session's vault, or nil when the
// session does not exist. Callers must gate it on DebugEnabled.
func (r *Runner) SessionSnapshot(sessionID string) map[string]string {
	s, ok := r.sessions.Lookup(sessionID)
	if !ok {
		return nil
	}
	return s.Snapshot()
}

// ActiveSessions returns the number of live session vaults.
func (r *Runner) ActiveSessions() int { return r.sessions.Len() }

func (r *Runner) dispatch(ctx context.Context, s *vault.Session, tc llm.ToolCall) tools.Outcome {
	guarded := r.breaker != nil && r.breaker.Guards(tc.Name)
	if guarded {
		if err := r.breaker.Check(s.ID()); err != nil {
			log.Warn().Str("session_id", s.ID()).Str("tool", tc.Name).Msg("verification_locked")
			return tools.Failure(tools.ReasonVerificationLocked,
				"Gagal: terlalu banyak verifikasi gagal. Silakan coba lagi nanti.")
		}
	}
	out := r.tools.Dispatch(ctx, s, tc.Name, tc.Arguments)
	if guarded {
		r.breaker.Record(s.ID(), out)
	}
	return out
}

func (r *Runner) declarations() []llm.Tool {
	list := r.tools.List()
	out := make([]llm.Tool, len(list))
	for i, t := range list {
		out[i] = llm.Tool{Name: t.Name(), Description: t.Description(), Parameters: t.InputSchema()}
	}
	return out
}

func (r *Runner) record(ctx context.Context, ev *audit.Event) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Record(ctx, ev); err != nil {
		log.Error().Err(err).Str("session_id", ev.SessionID).Msg("failed_to_record_audit_event")
	}
}

// maskOutcome replaces every bound value in the outcome's text fields with
// its tag.
func maskOutcome(s *vault.Session, o tools.Outcome) tools.Outcome {
	masked := tools.Outcome{Status: o.Status, Reason: o.Reason, Message: s.Mask(o.Message)}
	if o.Data != nil {
		masked.Data = make(map[string]any, len(o.Data))
		for k, v := range o.Data {
			if str, ok := v.(string); ok {
				v = s.Mask(str)
			}
			masked.Data[k] = v
		}
	}
	return masked
}

func encodeOutcome(o tools.Outcome) string {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf(`{"status":%q,"message":"unencodable outcome"}`, o.Status)
	}
	return string(data)
}

func boundLabels(bindings []vault.Binding) []string {
	seen := make(map[string]bool, len(bindings))
	var out []string
	for _, b := range bindings {
		if !seen[string(b.Label)] {
			seen[string(b.Label)] = true
			out = append(out, string(b.Label))
		}
	}
	sort.Strings(out)
	return out
}

func errString(s *vault.Session, err error) string {
	if err == nil {
		return ""
	}
	return s.Mask(err.Error())
}
