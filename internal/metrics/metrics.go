// Package metrics exports reconciler activity as Prometheus metrics.
//
// Metrics collected (namespace "scene"):
//   - scene_host_ops_total: host operations by op and outcome
//   - scene_renders_total: component renders by component and outcome
//   - scene_render_duration_seconds: component render duration
//   - scene_flushes_total: scheduler flushes that did work
//   - scene_flush_rendered: components re-rendered per flush
//   - scene_frames_total: host frames ticked
//   - scene_objects: live scene objects, sampled per frame
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joeycumines/goja-scene/internal/react"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scene"

// Collector implements react.Observer on top of Prometheus collectors.
type Collector struct {
	registry *prometheus.Registry

	hostOps        *prometheus.CounterVec
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	flushes        prometheus.Counter
	flushRendered  prometheus.Histogram
	frames         prometheus.Counter
	objects        prometheus.Gauge
}

var _ react.Observer = (*Collector)(nil)

// New registers the collectors on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		hostOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_ops_total",
			Help:      "Host adapter operations by op and outcome",
		}, []string{"op", "outcome"}),
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Component renders by component and outcome",
		}, []string{"component", "outcome"}),
		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Component render duration in seconds",
			Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"component"}),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Scheduler flushes that re-rendered at least one component",
		}),
		flushRendered: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_rendered",
			Help:      "Components re-rendered per flush",
			Buckets:   prometheus.LinearBuckets(1, 2, 8),
		}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Host frames ticked",
		}),
		objects: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Live scene objects",
		}),
	}
}

// Registry exposes the underlying registry, for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) HostOp(op string, err error) {
	c.hostOps.WithLabelValues(op, outcome(err)).Inc()
}

func (c *Collector) Rendered(component string, took time.Duration, err error) {
	c.renders.WithLabelValues(component, outcome(err)).Inc()
	c.renderDuration.WithLabelValues(component).Observe(took.Seconds())
}

func (c *Collector) Flushed(rendered int, _ time.Duration) {
	if rendered == 0 {
		return
	}
	c.flushes.Inc()
	c.flushRendered.Observe(float64(rendered))
}

// Frame records one host frame and the scene size after it.
func (c *Collector) Frame(objects int) {
	c.frames.Inc()
	c.objects.Set(float64(objects))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Serve listens on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: c.Handler(), ReadHeaderTimeout: 5 * time.Second}
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
