package metrics

import "github.com/prometheus/client_golang/prometheus"

// ClientMetrics exposes counters for the payment-details flows.
type ClientMetrics struct {
	upsertsTotal *prometheus.CounterVec
	lookupsTotal *prometheus.CounterVec
	uploadsTotal *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		upsertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upilink",
			Subsystem: "clients",
			Name:      "upserts_total",
			Help:      "Total upsert requests by operation and outcome",
		}, []string{"operation", "status"}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upilink",
			Subsystem: "clients",
			Name:      "lookups_total",
			Help:      "Total payment-details lookups by outcome and cache result",
		}, []string{"status", "cache"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upilink",
			Subsystem: "uploads",
			Name:      "images_total",
			Help:      "Total QR image uploads by outcome",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upsertsTotal, m.lookupsTotal, m.uploadsTotal)
	return m
}

func (m *ClientMetrics) ObserveUpsert(operation, status string) {
	if m == nil {
		return
	}
	m.upsertsTotal.WithLabelValues(operation, status).Inc()
}

func (m *ClientMetrics) ObserveLookup(status, cache string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(status, cache).Inc()
}

func (m *ClientMetrics) ObserveUpload(status string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(status).Inc()
}
