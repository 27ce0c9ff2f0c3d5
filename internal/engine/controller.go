package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PixPMusic/gopher-learn/internal/config"
	"github.com/PixPMusic/gopher-learn/internal/mapping"
	"github.com/PixPMusic/gopher-learn/internal/target"
)

// Controller is the control-path side of an engine: it builds plans from
// configurations, logs reports and applies deferred writes.
type Controller struct {
	engine   *Engine
	resolver target.Resolver
	values   func() []float64
	log      *slog.Logger
}

// NewController creates a controller. values returns the current host
// parameter values in index order and may be nil.
func NewController(e *Engine, res target.Resolver, values func() []float64, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		engine:   e,
		resolver: res,
		values:   values,
		log:      log.With(slog.String("component", "controller")),
	}
}

// Apply builds cfg and hands the plan to the engine. A configuration with
// structural errors is rejected whole and the running plan stays. Mappings
// disabled for an invalid mode are logged and left out.
func (c *Controller) Apply(cfg *config.Config) (uint64, error) {
	plan, disabled, err := mapping.Build(cfg, c.resolver)
	if err != nil {
		return 0, fmt.Errorf("building plan: %w", err)
	}
	for _, d := range disabled {
		c.log.Warn("mapping disabled", slog.String("error", d.Error()))
	}

	plan.Values = make([]float64, plan.Params)
	if c.values != nil {
		copy(plan.Values, c.values())
	}

	n := 0
	plan.Mappings(func(*mapping.Compartment, *mapping.Mapping) { n++ })
	gen := c.engine.Load(plan)
	c.log.Info("configuration submitted",
		slog.Uint64("generation", gen),
		slog.Int("mappings", n),
		slog.Int("disabled", len(disabled)),
		slog.Int("targets", len(plan.Bindings)))
	return gen, nil
}

// Run consumes reports and deferred writes until ctx is done
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-c.engine.Reports():
			c.logReport(r)
		case d := <-c.engine.Deferred():
			c.applyDeferred(d)
		}
	}
}

func (c *Controller) logReport(r Report) {
	attrs := []any{slog.Uint64("generation", r.Generation)}
	if r.Mapping != "" {
		attrs = append(attrs,
			slog.String("compartment", r.Compartment.String()),
			slog.String("mapping", r.Mapping),
			slog.String("target", r.Target))
	}
	switch r.Kind {
	case ReportPlanApplied:
		c.log.Info("configuration active", attrs...)
	case ReportUnavailable:
		c.log.Warn("target unavailable, mapping inert", attrs...)
	case ReportRecovered:
		c.log.Info("target available again", attrs...)
	case ReportWriteFailed:
		c.log.Error("target write failed", append(attrs, slog.Any("error", r.Err))...)
	}
}

// applyDeferred performs a write queued by the real-time path unless the plan
// it came from was superseded
func (c *Controller) applyDeferred(d DeferredWrite) {
	if gen := c.engine.Generation(); d.Generation != gen {
		c.log.Debug("discarding stale deferred write",
			slog.String("mapping", d.Mapping),
			slog.Uint64("generation", d.Generation),
			slog.Uint64("current", gen))
		return
	}
	if err := d.Param.Write(d.Value); err != nil {
		c.log.Error("deferred write failed",
			slog.String("mapping", d.Mapping),
			slog.String("target", d.Target),
			slog.Any("error", err))
	}
}
