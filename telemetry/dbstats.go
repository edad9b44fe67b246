package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/boa-portal/membership-sync/db"
)

// RegisterDBStats exports the connection pool statistics of d as the
// go_sql_* series labelled with dbName.
func RegisterDBStats(reg prometheus.Registerer, d *db.DB, dbName string) error {
	return reg.Register(collectors.NewDBStatsCollector(d.Raw(), dbName))
}
