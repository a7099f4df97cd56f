package redaction

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Treamyracle/INFOMEDIA/internal/classifier"
	"github.com/Treamyracle/INFOMEDIA/internal/ner"
	"github.com/Treamyracle/INFOMEDIA/internal/vault"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

// ReasonDetectorUnavailable marks a pass that fell back to pattern-only output.
const ReasonDetectorUnavailable = "detector-unavailable"

// Skip reasons reported on entities that were not substituted.
const (
	SkipForbiddenZone = "forbidden-zone"
	SkipOverlap       = "overlap"
	SkipInvalidRange  = "invalid-range"
	SkipLabel         = "unsupported-label"
)

// Entity is one detection as reported for diagnostics. Start and End are the
// recognizer's code-point offsets into the text it was given.
type Entity struct {
	Text     string  `json:"text"`           // source slice at the resolved offsets
	Word     string  `json:"word,omitempty"` // recognizer's own rendering of the span
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Redacted bool    `json:"redacted"`
	Skipped  string  `json:"skipped,omitempty"`
}

// EntityResult is the output of one entity pass.
type EntityResult struct {
	Text        string          `json:"text"`
	Entities    []Entity        `json:"entities"`
	Performance ner.Performance `json:"performance"`
	Degraded    bool            `json:"degraded"`
}

// EntityRedactor substitutes recognizer detections with tags, leaving tags
// placed by earlier stages intact.
type EntityRedactor struct {
	recognizer ner.Recognizer
}

// NewEntityRedactor wraps r. A nil recognizer behaves like ner.Disabled.
func NewEntityRedactor(r ner.Recognizer) *EntityRedactor {
	if r == nil {
		r = ner.Disabled{}
	}
	return &EntityRedactor{recognizer: r}
}

// Redact runs one entity pass over text. It never fails: when the recognizer
// errors the input comes back unchanged with Degraded set.
func (r *EntityRedactor) Redact(ctx context.Context, text string, b classifier.TagBinder) *EntityResult {
	ctx, span := tracer.Start(ctx, "redaction.entities")
	defer span.End()

	started := time.Now()
	pred, err := r.recognizer.Predict(ctx, text)
	if err != nil {
		recordNERFailure(ctx)
		span.SetAttributes(domiotel.PIIDegraded.Bool(true))
		log.Warn().
			Err(err).
			Str("reason", ReasonDetectorUnavailable).
			Func(domiotel.LogTraceFields(ctx)).
			Msg("entity_recognizer_unavailable")
		return &EntityResult{Text: text, Entities: []Entity{}, Degraded: true}
	}
	recordNERLatency(ctx, time.Since(started))

	zones := ForbiddenZones(text)
	offsets := byteOffsets(text)

	order := make([]int, len(pred.Entities))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pred.Entities[order[a]].Start > pred.Entities[order[b]].Start
	})

	out := text
	entities := make([]Entity, len(pred.Entities))
	var done []Zone
	for _, i := range order {
		e := pred.Entities[i]
		entities[i] = Entity{Word: e.Text, Label: e.Label, Score: e.Score, Start: e.Start, End: e.End}

		z, ok := toZone(offsets, e.Start, e.End)
		if !ok {
			entities[i].Skipped = SkipInvalidRange
			continue
		}
		entities[i].Text = text[z.Start:z.End]
		switch {
		case overlapsAny(z, zones):
			entities[i].Skipped = SkipForbiddenZone
			continue
		case overlapsAny(z, done):
			entities[i].Skipped = SkipOverlap
			continue
		}

		label := vault.Label(e.Label)
		if !label.Valid() {
			entities[i].Skipped = SkipLabel
			continue
		}

		// Substitution runs back to front, so every earlier offset is still
		// valid in out.
		tag := b.Bind(label, text[z.Start:z.End])
		out = out[:z.Start] + tag + out[z.End:]
		done = append(done, z)
		entities[i].Redacted = true
		recordTagBound(ctx, label, StageEntity)
	}

	span.SetAttributes(
		domiotel.PIIEntityCount.Int(len(entities)),
		attribute.Int("pii.entities_redacted", len(done)),
	)
	return &EntityResult{
		Text:        out,
		Entities:    entities,
		Performance: pred.Performance,
	}
}
