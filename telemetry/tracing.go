package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/boa-portal/membership-sync/db"
)

// Tracer returns the named tracer from the global provider. Without an SDK
// installed the provider is a no-op.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// DBHooks returns the statement hooks for a database: structured logging,
// Prometheus metrics and OpenTelemetry spans. A nil m omits metrics.
func DBHooks(logCfg db.LogHookConfig, m *Metrics, serviceName, system string) []db.Hook {
	hooks := []db.Hook{
		db.NewLogHook(logCfg),
		db.NewTracingHook(Tracer(serviceName+"/db"), system),
	}
	if m != nil {
		hooks = append(hooks, db.NewMetricsHook(m))
	}
	return hooks
}
