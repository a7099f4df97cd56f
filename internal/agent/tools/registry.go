package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Treamyracle/INFOMEDIA/internal/accounts"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/agent/tools")

// Registry holds the tools available to the agent.
// Thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// DefaultRegistry registers the password reset, physical card and withdrawal
// tools over store.
func DefaultRegistry(store accounts.Store) *Registry {
	r := NewRegistry()
	for _, t := range []Tool{NewPasswordReset(store), NewPhysicalCard(), NewWithdrawal(store)} {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("tools: %v", err))
		}
	}
	return r
}

// Register adds a tool, compiling its input schema.
func (r *Registry) Register(t Tool) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(t.InputSchema()))
	if err != nil {
		return fmt.Errorf("compiling schema for %s: %w", t.Name(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.schemas[t.Name()] = schema
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Dispatch validates raw arguments and runs the named tool. It always
// returns an Outcome; a panicking tool becomes a failure.
func (r *Registry) Dispatch(ctx context.Context, s *vault.Session, name string, raw json.RawMessage) (out Outcome) {
	ctx, span := tracer.Start(ctx, "tools.dispatch",
		trace.WithAttributes(domiotel.GenAIToolName.String(name)))
	defer span.End()

	var sessionID string
	if s != nil {
		sessionID = s.ID()
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("tool", name).Interface("panic", p).Msg("tool_panic")
			out = Failure(ReasonInternal, "Gagal: terjadi kesalahan internal.")
		}
		span.SetAttributes(
			domiotel.ToolOutcomeStatus.String(string(out.Status)),
			domiotel.ToolOutcomeReason.String(string(out.Reason)),
		)
		if out.Status == StatusFailure {
			span.SetStatus(codes.Error, string(out.Reason))
		}
		recordOutcome(ctx, name, out)
		log.Info().
			Str("session_id", sessionID).
			Str("tool", name).
			Str("status", string(out.Status)).
			Str("reason", string(out.Reason)).
			Func(domiotel.LogTraceFields(ctx)).
			Msg("tool_outcome")
	}()

	r.mu.RLock()
	t, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return Failure(ReasonUnknownTool, fmt.Sprintf("Gagal: tool %q tidak tersedia.", name))
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := validateArgs(schema, raw); err != nil {
		return Failure(ReasonInvalidArguments, "Gagal: argumen tidak valid: "+err.Error())
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Failure(ReasonInvalidArguments, "Gagal: argumen tidak valid.")
	}
	args := make(map[string]string, len(decoded))
	for k, v := range decoded {
		if str, ok := v.(string); ok {
			args[k] = str
		}
	}

	return t.Execute(ctx, s, args)
}

// validateArgs checks raw against schema. Missing required properties are
// not an error here: the tool reports them as incomplete input.
func validateArgs(schema *gojsonschema.Schema, raw json.RawMessage) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var msgs []string
	for _, e := range result.Errors() {
		if e.Type() == "required" {
			continue
		}
		msgs = append(msgs, e.String())
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
