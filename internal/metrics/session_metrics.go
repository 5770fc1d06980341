package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics — метрики сессий сборки заказа.
type SessionMetrics struct {
	opened        prometheus.Counter
	closed        prometheus.Counter
	purged        prometheus.Counter
	catalogLoads  *prometheus.CounterVec
	cartMutations *prometheus.CounterVec
}

func NewSessionMetrics() *SessionMetrics {
	return NewSessionMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewSessionMetricsWithRegisterer(registerer prometheus.Registerer) *SessionMetrics {
	return &SessionMetrics{
		opened: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_builder_sessions_opened_total",
			Help: "Total number of builder sessions opened",
		}),
		closed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_builder_sessions_closed_total",
			Help: "Total number of builder sessions closed explicitly",
		}),
		purged: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_builder_sessions_purged_total",
			Help: "Total number of expired builder sessions removed by the janitor",
		}),
		catalogLoads: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_catalog_loads_total",
			Help: "Catalog loads by outcome (ok, empty, error)",
		}, []string{"outcome"}),
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_cart_mutations_total",
			Help: "Cart mutations by resulting change",
		}, []string{"change"}),
	}
}

func (m *SessionMetrics) RecordOpened() { m.opened.Inc() }

func (m *SessionMetrics) RecordClosed() { m.closed.Inc() }

// RecordPurged добавляет число удалённых janitor'ом сессий.
func (m *SessionMetrics) RecordPurged(n int) {
	if n > 0 {
		m.purged.Add(float64(n))
	}
}

// RecordCatalogLoad фиксирует исход загрузки каталога: ok, empty или error.
func (m *SessionMetrics) RecordCatalogLoad(outcome string) {
	m.catalogLoads.WithLabelValues(outcome).Inc()
}

func (m *SessionMetrics) RecordCartMutation(change string) {
	m.cartMutations.WithLabelValues(change).Inc()
}
