// Package ner is the client side of the external entity-recognition service
// that finds names and addresses the pattern stage cannot.
package ner

import (
	"context"
	"errors"
	"time"

	domiotel "github.com/Treamyracle/INFOMEDIA/internal/otel"
)

var tracer = domiotel.Tracer("github.com/Treamyracle/INFOMEDIA/internal/ner")

// DefaultTimeout bounds one recognition call.
const DefaultTimeout = 30 * time.Second

// ErrUnavailable is returned when no recognizer is configured.
var ErrUnavailable = errors.New("entity recognizer unavailable")

// Recognizer detects entities in free text.
type Recognizer interface {
	Predict(ctx context.Context, text string) (*Prediction, error)
}

// Entity is one detected span. Start and End are code-point offsets into the
// submitted text, half-open, as the service reports them.
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Performance is the service's self-reported cost of a call.
type Performance struct {
	LatencyMS  float64 `json:"latency_ms"`
	MemoryMB   float64 `json:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Prediction is the decoded service response.
type Prediction struct {
	Status       string      `json:"status"`
	OriginalText string      `json:"original_text"`
	Entities     []Entity    `json:"entities"`
	Performance  Performance `json:"performance"`
}

// Disabled is a Recognizer for deployments without an entity service. Every
// call fails with ErrUnavailable so the caller takes its degraded path.
type Disabled struct{}

// Predict always returns ErrUnavailable.
func (Disabled) Predict(context.Context, string) (*Prediction, error) {
	return nil, ErrUnavailable
}
