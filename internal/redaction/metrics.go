package redaction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

var meter = otel.Meter("github.com/Treamyracle/INFOMEDIA/internal/redaction")

var (
	tagsBound   metric.Int64Counter
	nerFailures metric.Int64Counter
	nerLatency  metric.Float64Histogram
)

func init() {
	var err error
	tagsBound, err = meter.Int64Counter("redaction.tags.bound",
		metric.WithDescription("Values replaced by a tag, by label and stage"))
	if err != nil {
		tagsBound, _ = meter.Int64Counter("redaction.tags.bound.fallback")
	}

	nerFailures, err = meter.Int64Counter("redaction.ner.failures",
		metric.WithDescription("Entity recognizer calls that failed or timed out"))
	if err != nil {
		nerFailures, _ = meter.Int64Counter("redaction.ner.failures.fallback")
	}

	nerLatency, err = meter.Float64Histogram("redaction.ner.latency",
		metric.WithDescription("Entity recognizer round trip"),
		metric.WithUnit("ms"))
	if err != nil {
		nerLatency, _ = meter.Float64Histogram("redaction.ner.latency.fallback")
	}
}

func recordTagBound(ctx context.Context, l vault.Label, stage string) {
	tagsBound.Add(ctx, 1, metric.WithAttributes(
		attribute.String("label", string(l)),
		attribute.String("stage", stage),
	))
}

func recordNERFailure(ctx context.Context) {
	nerFailures.Add(ctx, 1)
}

func recordNERLatency(ctx context.Context, d time.Duration) {
	nerLatency.Record(ctx, float64(d.Microseconds())/1000)
}
