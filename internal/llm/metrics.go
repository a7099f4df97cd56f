package llm

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const usageMeterName = "github.com/Treamyracle/INFOMEDIA/internal/llm"

var (
	tokenHistogram         metric.Int64Histogram
	usageMetricsOnce       sync.Once
	usageMetricsRegistered bool
)

func initUsageMetrics() {
	meter := otel.Meter(usageMeterName)
	var err error
	tokenHistogram, err = meter.Int64Histogram(
		"llm.tokens",
		metric.WithDescription("Tokens per agent request"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return
	}
	usageMetricsRegistered = true
}

// RecordUsage records prompt and completion token counts for one call.
func RecordUsage(ctx context.Context, model string, inputTokens, outputTokens int) {
	usageMetricsOnce.Do(initUsageMetrics)
	if !usageMetricsRegistered {
		return
	}
	tokenHistogram.Record(ctx, int64(inputTokens), metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "input"),
	))
	tokenHistogram.Record(ctx, int64(outputTokens), metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "output"),
	))
}
