// Package metrics holds the editor's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Saves        *prometheus.CounterVec
	SaveDuration prometheus.Histogram
	SavedChunks  prometheus.Counter
	History      *prometheus.CounterVec
	DirtyChunks  prometheus.Counter
	Chunks       prometheus.Gauge
	UndoBytes    prometheus.Gauge
	Clients      prometheus.Gauge
}

// New registers every collector on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "voxelsculpt_ticks_total",
			Help: "Editor ticks run.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxelsculpt_tick_duration_seconds",
			Help:    "Wall time of one editor tick.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxelsculpt_saves_total",
			Help: "Save attempts by result.",
		}, []string{"result"}),
		SaveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxelsculpt_save_duration_seconds",
			Help:    "Wall time of a save, including compression and fsync.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		SavedChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "voxelsculpt_saved_chunks_total",
			Help: "Chunk deltas written to the database.",
		}),
		History: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxelsculpt_history_ops_total",
			Help: "Edit timeline operations by kind (commit, undo, redo, cancel).",
		}, []string{"op"}),
		DirtyChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "voxelsculpt_dirty_chunks_total",
			Help: "Chunks reported dirty to the renderer.",
		}),
		Chunks: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxelsculpt_chunks",
			Help: "Chunks resident in the chunk map.",
		}),
		UndoBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxelsculpt_undo_bytes",
			Help: "Snapshot bytes held on the undo stack.",
		}),
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxelsculpt_ws_clients",
			Help: "Connected websocket clients.",
		}),
	}
}

// ObserveSave records one save attempt.
func (m *Metrics) ObserveSave(start time.Time, chunks int, err error) {
	if m == nil {
		return
	}
	m.SaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.Saves.WithLabelValues("error").Inc()
		return
	}
	m.Saves.WithLabelValues("ok").Inc()
	m.SavedChunks.Add(float64(chunks))
}

func (m *Metrics) HistoryOp(op string) {
	if m == nil {
		return
	}
	m.History.WithLabelValues(op).Inc()
}
