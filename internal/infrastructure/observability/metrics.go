package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

const namespace = "wormaceptor"

// Metrics owns a private registry and implements usecase.Recorder.
type Metrics struct {
	registry           *prometheus.Registry
	CapturedTotal      *prometheus.CounterVec
	WriteFailuresTotal *prometheus.CounterVec
	WriteQueueDepth    prometheus.Gauge
	ActivityEntries    prometheus.Gauge
	PurgesTotal        *prometheus.CounterVec
	DeletedTotal       prometheus.Counter
	ProxyErrorsTotal   *prometheus.CounterVec
	BuildInfo          *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		CapturedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_captured_total",
			Help:      "Transaction writes applied, by resulting status",
		}, []string{"status"}),
		WriteFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_write_failures_total",
			Help:      "Capture writes dropped or rejected by the store",
		}, []string{"op"}),
		WriteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "write_queue_depth",
			Help:      "Pending asynchronous capture writes",
		}),
		ActivityEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activity_entries",
			Help:      "Entries held in the activity buffer",
		}),
		PurgesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_purges_total",
			Help:      "Retention evaluations by result (ok, skipped, error)",
		}, []string{"result"}),
		DeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Transactions deleted by retention",
		}),
		ProxyErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_errors_total",
			Help:      "Total proxy errors by stage",
		}, []string{"stage"}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Constant 1, labelled with the running build",
		}, []string{"version", "commit"}),
	}
	r.MustRegister(m.CapturedTotal, m.WriteFailuresTotal, m.WriteQueueDepth, m.ActivityEntries,
		m.PurgesTotal, m.DeletedTotal, m.ProxyErrorsTotal, m.BuildInfo)
	b := Build()
	m.BuildInfo.WithLabelValues(b.Version, b.Commit).Set(1)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Captured(status domain.Status) {
	m.CapturedTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) WriteFailed(op string) { m.WriteFailuresTotal.WithLabelValues(op).Inc() }
func (m *Metrics) QueueDepth(n int)      { m.WriteQueueDepth.Set(float64(n)) }
func (m *Metrics) ActivitySize(n int)    { m.ActivityEntries.Set(float64(n)) }

func (m *Metrics) Purged(result string, deleted int64) {
	m.PurgesTotal.WithLabelValues(result).Inc()
	if deleted > 0 {
		m.DeletedTotal.Add(float64(deleted))
	}
}
