// Package redaction composes the pattern and entity stages into the pipeline
// that turns raw user text into tagged text before the agent sees it.
package redaction

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/redaction")

// Stage names recorded on bindings.
const (
	StagePattern = "pattern"
	StageEntity  = "entity"
)

// Result is everything one pipeline pass produced. Original and PatternClean
// hold raw PII and must only leave the process behind debug gating.
type Result struct {
	Original     string          `json:"original"`
	PatternClean string          `json:"pattern_clean"`
	Clean        string          `json:"clean"`
	Entities     []Entity        `json:"entities"`
	Performance  ner.Performance `json:"performance"`
	Degraded     bool            `json:"degraded"`
	Bindings     []vault.Binding `json:"bindings"`
}

// Tags returns the tags bound in this pass, in binding order.
func (r *Result) Tags() []string {
	out := make([]string, len(r.Bindings))
	for i, b := range r.Bindings {
		out[i] = b.Tag
	}
	return out
}

// Pipeline runs the pattern stage then the entity stage.
type Pipeline struct {
	scanner  *classifier.Scanner
	entities *EntityRedactor
}

// NewPipeline creates a pipeline. A nil recognizer runs pattern-only.
func NewPipeline(scanner *classifier.Scanner, recognizer ner.Recognizer) *Pipeline {
	return &Pipeline{
		scanner:  scanner,
		entities: NewEntityRedactor(recognizer),
	}
}

// Redact produces the tagged form of raw, binding every value into s.
func (p *Pipeline) Redact(ctx context.Context, s *vault.Session, raw string) *Result {
	ctx, span := tracer.Start(ctx, "redaction.pipeline")
	defer span.End()

	b := vault.NewBinder(s)

	b.SetStage(StagePattern)
	patternClean := p.scanner.Redact(ctx, raw, countingBinder{ctx: ctx, b: b})

	b.SetStage(StageEntity)
	er := p.entities.Redact(ctx, patternClean, b)

	bound := b.Bound()
	span.SetAttributes(
		domiotel.SessionID.String(s.ID()),
		domiotel.PIITagsBound.Int(len(bound)),
		domiotel.PIIDegraded.Bool(er.Degraded),
	)
	log.Debug().
		Str("session_id", s.ID()).
		Int("tags_bound", len(bound)).
		Int("entities", len(er.Entities)).
		Bool("degraded", er.Degraded).
		Func(domiotel.LogTraceFields(ctx)).
		Msg("redaction_complete")

	return &Result{
		Original:     raw,
		PatternClean: patternClean,
		Clean:        er.Text,
		Entities:     er.Entities,
		Performance:  er.Performance,
		Degraded:     er.Degraded,
		Bindings:     bound,
	}
}

// countingBinder records the pattern-stage metric for each binding.
type countingBinder struct {
	ctx context.Context
	b   *vault.Binder
}

func (c countingBinder) Bind(l vault.Label, value string) string {
	recordTagBound(c.ctx, l, StagePattern)
	return c.b.Bind(l, value)
}
