package hooks

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muralikrish9/cyberroomba/pkg/duration"
	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes pipeline metrics for Prometheus scraping. It
// starts an HTTP server serving metrics at the configured path and
// updates counters and gauges from dispatched events.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	opts     PrometheusOptions

	hostsTotal    *prometheus.CounterVec
	findingsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec

	progressPercent    *prometheus.GaugeVec
	runDurationSeconds *prometheus.GaugeVec

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Port for the metrics server (default: 9090).
	Port int

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default: 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default: 10s).
	WriteTimeout time.Duration
}

// NewPrometheusHook creates the hook and starts the metrics server.
// The server runs until Close is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = duration.WebhookShutdown
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = duration.WebhookTimeout
	}

	// Custom registry, don't pollute the default one.
	hook := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
	}

	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	hook.startServer()
	return hook, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.hostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberroomba_hosts_total",
			Help: "Total fused host records produced",
		},
		[]string{"workflow", "alive"},
	)

	h.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberroomba_findings_total",
			Help: "Total normalized findings recorded",
		},
		[]string{"source", "severity"},
	)

	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberroomba_errors_total",
			Help: "Total errors during pipeline runs",
		},
		[]string{"fatal"},
	)

	h.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyberroomba_runs_total",
			Help: "Total stage runs by outcome",
		},
		[]string{"outcome"},
	)

	h.progressPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyberroomba_progress_percent",
			Help: "Completion percentage of the current batch",
		},
		[]string{"phase"},
	)

	h.runDurationSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyberroomba_run_duration_seconds",
			Help: "Duration of the last completed run",
		},
		[]string{"workflow"},
	)

	collectors := []prometheus.Collector{
		h.hostsTotal,
		h.findingsTotal,
		h.errorsTotal,
		h.runsTotal,
		h.progressPercent,
		h.runDurationSeconds,
	}
	for _, c := range collectors {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *PrometheusHook) startServer() {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.opts.Port),
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("prometheus: metrics server error: %v", err)
		}
	}()
}

// EventTypes returns nil: metrics are derived from all events.
func (h *PrometheusHook) EventTypes() []events.EventType { return nil }

// OnEvent updates metrics from the event stream.
func (h *PrometheusHook) OnEvent(_ context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.HostEvent:
		h.hostsTotal.WithLabelValues("recon", fmt.Sprint(e.Alive)).Inc()
	case *events.FindingEvent:
		h.findingsTotal.WithLabelValues(e.Finding.Source, string(e.Severity)).Inc()
	case *events.ErrorEvent:
		h.errorsTotal.WithLabelValues(fmt.Sprint(e.Fatal)).Inc()
	case *events.ProgressEvent:
		h.progressPercent.WithLabelValues(e.Phase).Set(e.Percentage)
	case *events.SummaryEvent:
		h.runDurationSeconds.WithLabelValues(e.Workflow).Set(float64(e.DurationMS) / 1000.0)
	case *events.CompleteEvent:
		outcome := "success"
		if !e.Success {
			outcome = "failed"
		}
		h.runsTotal.WithLabelValues(outcome).Inc()
	}
	return nil
}

// Close shuts down the metrics server.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), duration.WebhookShutdown)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// Registry exposes the underlying registry for tests.
func (h *PrometheusHook) Registry() *prometheus.Registry { return h.registry }
