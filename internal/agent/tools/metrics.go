package tools

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/Treamyracle/INFOMEDIA/internal/agent/tools")

var toolOutcomes metric.Int64Counter

func init() {
	var err error
	toolOutcomes, err = meter.Int64Counter("tools.outcomes",
		metric.WithDescription("Tool calls by tool, status and reason"))
	if err != nil {
		toolOutcomes, _ = meter.Int64Counter("tools.outcomes.fallback")
	}
}

func recordOutcome(ctx context.Context, tool string, o Outcome) {
	toolOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", string(o.Status)),
		attribute.String("reason", string(o.Reason)),
	))
}
