package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/framesync/internal/mediasync"
	"github.com/llehouerou/framesync/internal/orchestrator"
)

// Compile-time interface checks.
var (
	_ mediasync.Observer    = (*Metrics)(nil)
	_ orchestrator.Recorder = (*Metrics)(nil)
)

// sample returns the value of the counter or gauge name with the given
// labels, or the sample count of a histogram.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if want, ok := labels[l.GetName()]; ok && want != l.GetValue() {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestObserveSeek(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSeek("success", 120*time.Millisecond)
	m.ObserveSeek("success", 80*time.Millisecond)
	m.ObserveSeek("timeout", 10*time.Second)

	assert.InDelta(t, 2.0, sample(t, reg, "framesync_seeks_total", map[string]string{"outcome": "success"}), 1e-9)
	assert.InDelta(t, 1.0, sample(t, reg, "framesync_seeks_total", map[string]string{"outcome": "timeout"}), 1e-9)
	assert.InDelta(t, 2.0, sample(t, reg, "framesync_seek_duration_seconds", map[string]string{"outcome": "success"}), 1e-9)
}

func TestObservePlay(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePlay("success", 40*time.Millisecond)
	m.ObservePlay("play_error", time.Millisecond)

	assert.InDelta(t, 1.0, sample(t, reg, "framesync_plays_total", map[string]string{"outcome": "play_error"}), 1e-9)
	assert.InDelta(t, 1.0, sample(t, reg, "framesync_play_start_duration_seconds", nil), 1e-9)
}

func TestRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Record(orchestrator.Report{
		Action: orchestrator.ActionSync,
		Speed:  1.5,
		Sync: mediasync.SyncResult{
			ActualFrameNumber:   10,
			ResolvedFrameNumber: 12,
			Step:                mediasync.StateMeasuring,
		},
	})
	m.Record(orchestrator.Report{Action: orchestrator.ActionIdle, Speed: 0})
	m.Record(orchestrator.Report{Action: orchestrator.ActionSeek, Err: errors.New("locate failed"), Speed: 1.5})

	assert.InDelta(t, 1.0, sample(t, reg, "framesync_ticks_total", map[string]string{"action": "sync", "step": "measuring"}), 1e-9)
	assert.InDelta(t, 1.0, sample(t, reg, "framesync_ticks_total", map[string]string{"action": "idle"}), 1e-9)
	assert.InDelta(t, 1.0, sample(t, reg, "framesync_tick_errors_total", nil), 1e-9)
	assert.InDelta(t, 1.0, sample(t, reg, "framesync_frame_drift_frames", nil), 1e-9)
	assert.InDelta(t, 1.5, sample(t, reg, "framesync_media_speed", nil), 1e-9)
}

func TestNewRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveSeek("success", time.Millisecond)
	srv := httptest.NewServer(NewRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `framesync_seeks_total{outcome="success"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
