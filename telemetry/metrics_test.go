package telemetry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/db/dbtest"
	"github.com/boa-portal/membership-sync/importer"
	"github.com/boa-portal/membership-sync/reconciler"
	"github.com/boa-portal/membership-sync/telemetry"
)

func TestMetrics_ObserveImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.ObserveImport(&importer.ImportResult{Total: 5, Success: 3, Failed: 2}, 120*time.Millisecond)

	requireSeries(t, reg, "membership_sync_import_batches_total", 1)
	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "membership_sync_import_rows_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			values[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	require.Equal(t, map[string]float64{"success": 3, "failed": 2}, values)
}

func TestMetrics_ObserveReconcile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.ObserveReconcile(reconciler.Stats{Activated: 4, Deactivated: 1}, time.Millisecond)
	m.ObserveReconcile(reconciler.Stats{Err: errors.New("boom")}, time.Millisecond)
	m.ObserveReconcileSkipped()

	requireSeries(t, reg, "membership_sync_reconcile_passes_total", 3)
	requireSeries(t, reg, "membership_sync_reconcile_rows_total", 2)
}

func TestMetrics_RecordQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordQuery("select", time.Millisecond, true)
	m.RecordQuery("update", time.Millisecond, false)

	requireSeries(t, reg, "membership_sync_db_queries_total", 2)
}

func TestDBHooks(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	require.Len(t, telemetry.DBHooks(telemetryLogConfig(), m, "membersctl", "mysql"), 3)
	require.Len(t, telemetry.DBHooks(telemetryLogConfig(), nil, "membersctl", "mysql"), 2)
}

func telemetryLogConfig() db.LogHookConfig {
	return db.LogHookConfig{SlowQueryThreshold: time.Second}
}

func requireSeries(t *testing.T, reg *prometheus.Registry, name string, want int) {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	require.Equal(t, want, n, name)
}

func TestRegisterDBStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := dbtest.Open(t)

	require.NoError(t, telemetry.RegisterDBStats(reg, d, "boa"))
	requireSeries(t, reg, "go_sql_open_connections", 1)
	requireSeries(t, reg, "go_sql_max_open_connections", 1)

	// A second collector for the same database name is rejected.
	require.Error(t, telemetry.RegisterDBStats(reg, d, "boa"))
}
