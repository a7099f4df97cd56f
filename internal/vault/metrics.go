package vault

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/Treamyracle/INFOMEDIA/internal/vault")

var (
	sessionsActive  metric.Int64Gauge
	sessionsExpired metric.Int64Counter
)

func init() {
	var err error
	sessionsActive, err = meter.Int64Gauge("vault.sessions.active",
		metric.WithDescription("Conversations currently holding tag bindings"))
	if err != nil {
		sessionsActive, _ = meter.Int64Gauge("vault.sessions.active.fallback")
	}

	sessionsExpired, err = meter.Int64Counter("vault.sessions.expired",
		metric.WithDescription("Sessions evicted after idle timeout"))
	if err != nil {
		sessionsExpired, _ = meter.Int64Counter("vault.sessions.expired.fallback")
	}
}

func recordActiveSessions(ctx context.Context, n int64) {
	sessionsActive.Record(ctx, n)
}
