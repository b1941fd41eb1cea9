package monitoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/model"
)

// RefreshSource is the subset of the store read by the health collector.
type RefreshSource interface {
	ListRefreshes(ctx context.Context, limit int) ([]model.RefreshRun, error)
	LastSuccess(ctx context.Context) (*time.Time, error)
	Count(ctx context.Context) (int64, error)
}

// Snapshot is a point-in-time view of refresh health.
type Snapshot struct {
	RefreshTotal    int     `json:"refresh_total"`
	RefreshComplete int     `json:"refresh_complete"`
	RefreshFailed   int     `json:"refresh_failed"`
	RefreshRunning  int     `json:"refresh_running"`
	RefreshFailRate float64 `json:"refresh_fail_rate"`

	LastSuccess    *time.Time `json:"last_success,omitempty"`
	LastRowsSynced int64      `json:"last_rows_synced"`
	LastError      string     `json:"last_error,omitempty"`
	PointsStored   int64      `json:"points_stored"`

	// Stale is set when no cycle has completed within the staleness window.
	Stale bool `json:"stale"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Ready reports whether the store can serve queries: a cycle has completed
// or points are present from an earlier process.
func (s *Snapshot) Ready() bool {
	return s.LastSuccess != nil || s.PointsStored > 0
}

// historyLimit bounds how many refresh log rows a snapshot reads.
const historyLimit = 1000

// Collector builds snapshots from the refresh log and the point count.
type Collector struct {
	src       RefreshSource
	clock     clockwork.Clock
	staleness time.Duration
}

// NewCollector creates a health collector. A refresh older than staleness
// marks the snapshot stale; zero disables the check.
func NewCollector(src RefreshSource, clock clockwork.Clock, staleness time.Duration) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{src: src, clock: clock, staleness: staleness}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.clock.Now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.src.ListRefreshes(ctx, historyLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list refreshes")
	}

	// Runs arrive newest first.
	for _, r := range runs {
		if r.Status == model.RefreshComplete && snap.LastSuccess == nil {
			started := r.StartedAt
			snap.LastSuccess = &started
			snap.LastRowsSynced = r.RowsSynced
		}
		if r.Status == model.RefreshFailed && snap.LastError == "" && snap.LastSuccess == nil {
			snap.LastError = r.Error
		}
		if lookbackHours > 0 && r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RefreshTotal++
		switch r.Status {
		case model.RefreshComplete:
			snap.RefreshComplete++
		case model.RefreshFailed:
			snap.RefreshFailed++
		case model.RefreshRunning:
			snap.RefreshRunning++
		}
	}
	if finished := snap.RefreshComplete + snap.RefreshFailed; finished > 0 {
		snap.RefreshFailRate = float64(snap.RefreshFailed) / float64(finished)
	}

	// The history window can miss an old success; the log itself cannot.
	last, err := c.src.LastSuccess(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: last success")
	}
	if last != nil && (snap.LastSuccess == nil || last.After(*snap.LastSuccess)) {
		snap.LastSuccess = last
	}

	if snap.PointsStored, err = c.src.Count(ctx); err != nil {
		return nil, eris.Wrap(err, "monitoring: count points")
	}

	if c.staleness > 0 {
		snap.Stale = snap.LastSuccess == nil || now.Sub(*snap.LastSuccess) > c.staleness
	}
	return snap, nil
}
