// Package refresh runs the fetch-and-replace cycle that keeps the store in
// sync with the upstream feeds, and schedules it.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/navaids/internal/config"
	"github.com/sells-group/navaids/internal/ingest"
	"github.com/sells-group/navaids/internal/model"
	"github.com/sells-group/navaids/internal/monitoring"
	"github.com/sells-group/navaids/internal/store"
)

// ErrRefreshInProgress is returned when a cycle is triggered while another
// is still running.
var ErrRefreshInProgress = eris.New("refresh: refresh already in progress")

// ErrNoPoints fails a swap cycle whose sources produced nothing, so the
// prior records stay in place.
var ErrNoPoints = eris.New("refresh: no points fetched")

// State is the coordinator lifecycle state.
type State int32

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Options selects the strategy and sources for each cycle.
type Options struct {
	Strategy string
	Sources  []string
}

// SourceSummary is the per-source outcome of a cycle.
type SourceSummary struct {
	Name     string   `json:"name"`
	Points   int      `json:"points"`
	Failures int      `json:"failures"`
	Failed   []string `json:"failed,omitempty"`
}

// Summary describes a completed cycle.
type Summary struct {
	RunID    int64           `json:"run_id"`
	Strategy string          `json:"strategy"`
	Stored   int64           `json:"stored"`
	Sources  []SourceSummary `json:"sources"`
	Duration time.Duration   `json:"duration"`
}

// Coordinator runs at most one refresh cycle at a time.
type Coordinator struct {
	store     store.Store
	collector *ingest.Collector
	registry  *ingest.Registry
	metrics   *monitoring.Metrics
	opts      Options

	running atomic.Bool
}

// NewCoordinator creates a Coordinator. metrics may be nil.
func NewCoordinator(st store.Store, col *ingest.Collector, reg *ingest.Registry, metrics *monitoring.Metrics, opts Options) *Coordinator {
	if opts.Strategy == "" {
		opts.Strategy = config.StrategySwap
	}
	return &Coordinator{
		store:     st,
		collector: col,
		registry:  reg,
		metrics:   metrics,
		opts:      opts,
	}
}

// State reports whether a cycle is running.
func (c *Coordinator) State() State {
	if c.running.Load() {
		return Refreshing
	}
	return Idle
}

// Run executes one refresh cycle. A concurrent call returns
// ErrRefreshInProgress without touching the store.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer c.running.Store(false)

	log := zap.L().With(zap.String("component", "refresh.coordinator"), zap.String("strategy", c.opts.Strategy))
	start := time.Now()
	if c.metrics != nil {
		c.metrics.RefreshRunning.Set(1)
		defer c.metrics.RefreshRunning.Set(0)
	}

	sources, err := c.registry.Select(c.opts.Sources)
	if err != nil {
		return nil, err
	}

	runID, err := c.store.StartRefresh(ctx, c.opts.Strategy)
	if err != nil {
		c.observe("failure", start)
		return nil, eris.Wrap(err, "refresh: start run")
	}
	log = log.With(zap.Int64("run_id", runID))
	log.Info("refresh started", zap.Int("sources", len(sources)))

	sum := &Summary{RunID: runID, Strategy: c.opts.Strategy}
	switch c.opts.Strategy {
	case config.StrategyDeleteFirst:
		err = c.deleteFirst(ctx, sources, sum)
	default:
		err = c.swap(ctx, sources, sum)
	}
	sum.Duration = time.Since(start)

	if err != nil {
		log.Error("refresh failed", zap.Error(err))
		if ferr := c.store.FailRefresh(context.WithoutCancel(ctx), runID, err.Error()); ferr != nil {
			log.Warn("refresh: record failure", zap.Error(ferr))
		}
		c.observe("failure", start)
		return sum, err
	}

	if err := c.store.CompleteRefresh(ctx, runID, sum.Stored, metadata(sum)); err != nil {
		c.observe("failure", start)
		return sum, eris.Wrap(err, "refresh: complete run")
	}
	c.observe("success", start)
	if c.metrics != nil {
		c.metrics.PointsStored.Set(float64(sum.Stored))
	}
	log.Info("refresh complete", zap.Int64("stored", sum.Stored), zap.Duration("elapsed", sum.Duration))
	return sum, nil
}

// swap fetches first, then replaces the stored points in one transaction.
func (c *Coordinator) swap(ctx context.Context, sources []ingest.Source, sum *Summary) error {
	points := c.collect(ctx, sources, sum)
	if len(points) == 0 {
		return ErrNoPoints
	}
	n, err := c.store.Replace(ctx, points)
	if err != nil {
		return eris.Wrap(err, "refresh: replace points")
	}
	sum.Stored = n
	return nil
}

// deleteFirst clears the store before fetching. A failure after the delete
// leaves the store empty until the next successful cycle.
func (c *Coordinator) deleteFirst(ctx context.Context, sources []ingest.Source, sum *Summary) error {
	if _, err := c.store.DeleteAll(ctx); err != nil {
		return eris.Wrap(err, "refresh: delete points")
	}
	points := c.collect(ctx, sources, sum)
	n, err := c.store.InsertAll(ctx, points)
	if err != nil {
		return eris.Wrap(err, "refresh: insert points")
	}
	sum.Stored = n
	return nil
}

func (c *Coordinator) collect(ctx context.Context, sources []ingest.Source, sum *Summary) []model.Point {
	results := c.collector.Collect(ctx, sources)
	for _, r := range results {
		s := SourceSummary{Name: r.Source, Points: len(r.Points), Failures: len(r.Failures)}
		for _, f := range r.Failures {
			s.Failed = append(s.Failed, f.URL)
		}
		sum.Sources = append(sum.Sources, s)
	}
	return ingest.Merge(results)
}

func (c *Coordinator) observe(outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RefreshRuns.WithLabelValues(outcome).Inc()
	c.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
}

func metadata(sum *Summary) map[string]any {
	sources := make(map[string]any, len(sum.Sources))
	for _, s := range sum.Sources {
		entry := map[string]any{"points": s.Points, "failures": s.Failures}
		if len(s.Failed) > 0 {
			entry["failed"] = s.Failed
		}
		sources[s.Name] = entry
	}
	return map[string]any{"sources": sources}
}
