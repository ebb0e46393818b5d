// Package metrics exposes sync outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/llehouerou/framesync/internal/orchestrator"
)

const namespace = "framesync"

// Metrics implements mediasync.Observer and orchestrator.Recorder.
type Metrics struct {
	SeeksTotal   *prometheus.CounterVec
	SeekDuration *prometheus.HistogramVec
	PlaysTotal   *prometheus.CounterVec
	PlayDuration prometheus.Histogram

	TicksTotal      *prometheus.CounterVec
	TickErrorsTotal prometheus.Counter
	FrameDrift      prometheus.Histogram
	MediaSpeed      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SeeksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "seeks_total",
				Help:      "Total number of seeks by outcome",
			},
			[]string{"outcome"},
		),
		SeekDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "seek_duration_seconds",
				Help:      "Seek duration in seconds, quiescence wait included",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		PlaysTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plays_total",
				Help:      "Total number of play requests by outcome",
			},
			[]string{"outcome"},
		),
		PlayDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "play_start_duration_seconds",
				Help:      "Time until playback actually started",
				Buckets:   prometheus.DefBuckets,
			},
		),
		TicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Total number of sync ticks by action and step",
			},
			[]string{"action", "step"},
		),
		TickErrorsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tick_errors_total",
				Help:      "Total number of ticks that returned an error",
			},
		),
		FrameDrift: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "frame_drift_frames",
				Help:      "Requested minus displayed frame after a soft-sync tick",
				Buckets:   []float64{-30, -8, -4, -2, -1, 0, 1, 2, 4, 8, 30},
			},
		),
		MediaSpeed: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "media_speed",
				Help:      "Remapped media speed at the last tick",
			},
		),
	}
}

// ObserveSeek records a finished seek.
func (m *Metrics) ObserveSeek(outcome string, elapsed time.Duration) {
	m.SeeksTotal.WithLabelValues(outcome).Inc()
	m.SeekDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObservePlay records a finished play request.
func (m *Metrics) ObservePlay(outcome string, elapsed time.Duration) {
	m.PlaysTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.PlayDuration.Observe(elapsed.Seconds())
	}
}

// Record records a tick report.
func (m *Metrics) Record(rep orchestrator.Report) {
	if rep.Err != nil {
		m.TickErrorsTotal.Inc()
	}
	step := ""
	if rep.Action == orchestrator.ActionSync {
		step = rep.Sync.Step.String()
		m.FrameDrift.Observe(float64(rep.Drift()))
	}
	m.TicksTotal.WithLabelValues(string(rep.Action), step).Inc()
	if rep.Action != orchestrator.ActionIdle && rep.Action != orchestrator.ActionStop {
		m.MediaSpeed.Set(rep.Speed)
	}
}

// NewRouter serves the metrics of g on /metrics and a liveness probe on
// /healthz.
func NewRouter(g prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods("GET")
	return r
}
