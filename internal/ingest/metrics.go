package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	EntriesReceived *prometheus.CounterVec
	WriteErrors     prometheus.Counter
	BytesWritten    prometheus.Counter
	ActiveFileSize  prometheus.Gauge
	RingEntries     prometheus.Gauge
	ActiveTCPConns  prometheus.Gauge
	RotationTotal   prometheus.Counter
	RotationErrors  prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntriesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logsink_entries_received_total",
			Help: "Total entries received per transport",
		}, []string{"transport"}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_write_errors_total",
			Help: "Total failed appends to the active file",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_bytes_written_total",
			Help: "Total bytes appended to the active file",
		}),
		ActiveFileSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsink_active_file_bytes",
			Help: "Current size of the active file",
		}),
		RingEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsink_ring_entries",
			Help: "Entries currently held in the recent-entry ring",
		}),
		ActiveTCPConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsink_active_tcp_connections",
			Help: "Currently open ingestion TCP connections",
		}),
		RotationTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_rotation_total",
			Help: "Total successful file rotations",
		}),
		RotationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsink_rotation_errors_total",
			Help: "Total failed file rotations",
		}),
	}
	reg.MustRegister(
		m.EntriesReceived,
		m.WriteErrors,
		m.BytesWritten,
		m.ActiveFileSize,
		m.RingEntries,
		m.ActiveTCPConns,
		m.RotationTotal,
		m.RotationErrors,
	)
	return m
}
