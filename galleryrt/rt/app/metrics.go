package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
)

// Metrics implements core.Recorder on a private Prometheus registry.
type Metrics struct {
	Registry *prometheus.Registry

	frames        *prometheus.CounterVec
	frameSeconds  *prometheus.HistogramVec
	builds        *prometheus.CounterVec
	buildFailures *prometheus.CounterVec
	liveBuffers   prometheus.Gauge
}

var _ core.Recorder = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallery_frames_submitted_total",
				Help: "Command buffers submitted by scene",
			},
			[]string{"scene"},
		),
		frameSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gallery_frame_seconds",
				Help:    "CPU time spent encoding and submitting a frame",
				Buckets: []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
			},
			[]string{"scene"},
		),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallery_builds_total",
				Help: "Resource builds by scene",
			},
			[]string{"scene"},
		),
		buildFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gallery_build_failures_total",
				Help: "Rejected or failed resource builds by scene",
			},
			[]string{"scene"},
		),
		liveBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gallery_live_buffers",
			Help: "GPU buffers currently allocated",
		}),
	}
	m.Registry.MustRegister(m.frames, m.frameSeconds, m.builds, m.buildFailures, m.liveBuffers)
	return m
}

func (m *Metrics) FrameSubmitted(scene string, elapsed time.Duration) {
	m.frames.WithLabelValues(scene).Inc()
	m.frameSeconds.WithLabelValues(scene).Observe(elapsed.Seconds())
}

func (m *Metrics) BuildFinished(scene string, err error) {
	m.builds.WithLabelValues(scene).Inc()
	if err != nil {
		m.buildFailures.WithLabelValues(scene).Inc()
	}
}

func (m *Metrics) LiveBuffers(n int) {
	m.liveBuffers.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log core.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Infof("Metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("Metrics server exited: %v", err)
		}
	}()
}
