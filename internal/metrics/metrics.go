// Package metrics exports the engine counters to Prometheus
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PixPMusic/gopher-learn/internal/engine"
)

const namespace = "gopher_learn"

// Registry holds the engine metrics on a private Prometheus registry
type Registry struct {
	registry *prometheus.Registry
}

type counter struct {
	name, help string
	load       func(*engine.Stats) uint64
}

var counters = []counter{
	{"events_total", "Raw events processed.", func(s *engine.Stats) uint64 { return s.Events.Load() }},
	{"matches_total", "Events decoded by a mapping.", func(s *engine.Stats) uint64 { return s.Matches.Load() }},
	{"writes_total", "Target writes that changed a parameter.", func(s *engine.Stats) uint64 { return s.Writes.Load() }},
	{"deferred_writes_total", "Writes handed to the control path.", func(s *engine.Stats) uint64 { return s.DeferredWrites.Load() }},
	{"external_changes_total", "Parameter changes not caused by the engine.", func(s *engine.Stats) uint64 { return s.ExternalChanges.Load() }},
	{"suppressed_total", "Control values suppressed by a mode.", func(s *engine.Stats) uint64 { return s.Suppressed.Load() }},
	{"jump_rejected_total", "Control values rejected by the jump guard.", func(s *engine.Stats) uint64 { return s.JumpRejected.Load() }},
	{"formula_errors_total", "Failed formula evaluations.", func(s *engine.Stats) uint64 { return s.FormulaErrors.Load() }},
	{"unavailable_total", "Writes to unavailable targets.", func(s *engine.Stats) uint64 { return s.Unavailable.Load() }},
	{"feedback_sent_total", "Feedback events sent.", func(s *engine.Stats) uint64 { return s.FeedbackSent.Load() }},
	{"feedback_suppressed_total", "Feedback events suppressed.", func(s *engine.Stats) uint64 { return s.FeedbackSuppressed.Load() }},
	{"plans_applied_total", "Configurations applied.", func(s *engine.Stats) uint64 { return s.PlansApplied.Load() }},
	{"plans_superseded_total", "Configurations replaced before they were applied.", func(s *engine.Stats) uint64 { return s.PlansSuperseded.Load() }},
}

var drops = []counter{
	{"events", "", func(s *engine.Stats) uint64 { return s.DroppedEvents.Load() }},
	{"notifications", "", func(s *engine.Stats) uint64 { return s.DroppedNotifications.Load() }},
	{"feedback", "", func(s *engine.Stats) uint64 { return s.DroppedFeedback.Load() }},
	{"reports", "", func(s *engine.Stats) uint64 { return s.DroppedReports.Load() }},
	{"deferred", "", func(s *engine.Stats) uint64 { return s.DroppedDeferred.Load() }},
	{"learn", "", func(s *engine.Stats) uint64 { return s.DroppedLearn.Load() }},
}

// NewRegistry registers the counters of e together with the Go runtime
// collectors
func NewRegistry(e *engine.Engine) *Registry {
	reg := prometheus.NewRegistry()
	stats := e.Stats()

	for _, c := range counters {
		load := c.load
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(load(stats)) }))
	}
	for _, d := range drops {
		load := d.load
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "engine",
			Name:        "dropped_total",
			Help:        "Items dropped because a queue was full.",
			ConstLabels: prometheus.Labels{"queue": d.name},
		}, func() float64 { return float64(load(stats)) }))
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "generation",
		Help:      "Generation of the active configuration.",
	}, func() float64 { return float64(e.Generation()) }))

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{registry: reg}
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (r *Registry) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("metrics listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
