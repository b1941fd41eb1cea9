package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/fetcher"
	"github.com/sells-group/navaids/internal/ingest"
	"github.com/sells-group/navaids/internal/monitoring"
	"github.com/sells-group/navaids/internal/refresh"
	"github.com/sells-group/navaids/internal/store"
)

// openStore validates cfg for command, opens the configured store, and
// applies migrations.
func openStore(ctx context.Context, command string) (store.Store, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newCoordinator wires the fetcher, collector, and source registry around st.
func newCoordinator(st store.Store, metrics *monitoring.Metrics, sources []string, strategy string) *refresh.Coordinator {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           cfg.Fetch.Timeout,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})
	col := ingest.NewCollector(f, metrics, cfg.Fetch.Timeout, cfg.Fetch.Concurrency)
	reg := ingest.DefaultRegistry(cfg.Feeds)

	if len(sources) == 0 {
		sources = cfg.Refresh.Sources
	}
	if strategy == "" {
		strategy = cfg.Refresh.Strategy
	}
	return refresh.NewCoordinator(st, col, reg, metrics, refresh.Options{
		Strategy: strategy,
		Sources:  sources,
	})
}
