package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/navaids/internal/feed"
	"github.com/sells-group/navaids/internal/fetcher"
	"github.com/sells-group/navaids/internal/model"
	"github.com/sells-group/navaids/internal/monitoring"
)

// Failure is one document that contributed no points.
type Failure struct {
	URL string
	Err error
}

// Result is the merged outcome of fetching one source.
type Result struct {
	Source   string
	Points   []model.Point
	Failures []Failure
}

// Collector fetches sources with bounded concurrency. A failed document
// yields no points and never cancels its siblings.
type Collector struct {
	fetcher     fetcher.Fetcher
	metrics     *monitoring.Metrics
	timeout     time.Duration
	concurrency int
}

// NewCollector creates a Collector. metrics may be nil.
func NewCollector(f fetcher.Fetcher, metrics *monitoring.Metrics, timeout time.Duration, concurrency int) *Collector {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Collector{fetcher: f, metrics: metrics, timeout: timeout, concurrency: concurrency}
}

// FetchOne downloads url and extracts its points.
func (c *Collector) FetchOne(ctx context.Context, url string, ex feed.Extractor) ([]model.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.fetcher.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: fetch %s", url)
	}
	defer body.Close() //nolint:errcheck

	points, err := ex.Extract(body)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: extract %s", url)
	}
	return points, nil
}

// FetchAll fetches every target of src and merges the points in target
// order once all requests settle.
func (c *Collector) FetchAll(ctx context.Context, src Source) Result {
	log := zap.L().With(zap.String("component", "ingest.collector"), zap.String("source", src.Name))

	perURL := make([][]model.Point, len(src.Targets))
	errs := make([]error, len(src.Targets))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, t := range src.Targets {
		g.Go(func() error {
			start := time.Now()
			points, err := c.FetchOne(ctx, t.URL, t.Extractor)
			if c.metrics != nil {
				c.metrics.ObserveFetch(src.Name, time.Since(start), len(points), err)
			}
			perURL[i], errs[i] = points, err
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Source: src.Name}
	for i, t := range src.Targets {
		if errs[i] != nil {
			log.Warn("feed document failed", zap.String("url", t.URL), zap.Error(errs[i]))
			res.Failures = append(res.Failures, Failure{URL: t.URL, Err: errs[i]})
			continue
		}
		res.Points = append(res.Points, perURL[i]...)
	}

	log.Info("source fetched",
		zap.Int("documents", len(src.Targets)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("points", len(res.Points)),
	)
	return res
}

// Collect fetches every source concurrently and returns results in the
// order given.
func (c *Collector) Collect(ctx context.Context, sources []Source) []Result {
	results := make([]Result, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i] = c.FetchAll(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Merge concatenates the points of results in order.
func Merge(results []Result) []model.Point {
	var n int
	for _, r := range results {
		n += len(r.Points)
	}
	points := make([]model.Point, 0, n)
	for _, r := range results {
		points = append(points, r.Points...)
	}
	return points
}
