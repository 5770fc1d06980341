package metrics

import "github.com/prometheus/client_golang/prometheus"

// DashboardMetrics — метрики операций над размещёнными заказами.
type DashboardMetrics struct {
	statusChanges  *prometheus.CounterVec
	ordersDeleted  prometheus.Counter
	exports        prometheus.Counter
	exportedLines  prometheus.Counter
	overviewErrors prometheus.Counter
}

func NewDashboardMetrics() *DashboardMetrics {
	return NewDashboardMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewDashboardMetricsWithRegisterer(registerer prometheus.Registerer) *DashboardMetrics {
	return &DashboardMetrics{
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_order_status_changes_total",
			Help: "Order status changes by target status",
		}, []string{"status"}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_orders_deleted_total",
			Help: "Total number of orders deleted from the dashboard",
		}),
		exports: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_dispatch_exports_total",
			Help: "Total number of dispatch sheets exported",
		}),
		exportedLines: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_dispatch_export_rows_total",
			Help: "Total number of rows written to dispatch sheets",
		}),
		overviewErrors: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_dashboard_overview_errors_total",
			Help: "Total number of failed order list fetches",
		}),
	}
}

func (m *DashboardMetrics) RecordStatusChange(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *DashboardMetrics) RecordOrderDeleted() { m.ordersDeleted.Inc() }

// RecordExport фиксирует выгрузку листа отгрузки и число строк в нём.
func (m *DashboardMetrics) RecordExport(rows int) {
	m.exports.Inc()
	if rows > 0 {
		m.exportedLines.Add(float64(rows))
	}
}

func (m *DashboardMetrics) RecordOverviewError() { m.overviewErrors.Inc() }
