package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/model"
)

// StartRefresh records the beginning of a refresh cycle and returns its ID.
func (s *PostgresStore) StartRefresh(ctx context.Context, strategy string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO navaid.refresh_log (strategy, status, started_at)
		 VALUES ($1, 'running', now()) RETURNING id`,
		strategy,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "refreshlog: start %s", strategy)
	}
	return id, nil
}

// CompleteRefresh marks a cycle as complete with its row count.
func (s *PostgresStore) CompleteRefresh(ctx context.Context, id int64, rows int64, metadata map[string]any) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		if metaJSON, err = json.Marshal(metadata); err != nil {
			return eris.Wrap(err, "refreshlog: marshal metadata")
		}
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE navaid.refresh_log
		 SET status = 'complete', completed_at = now(), rows_synced = $1, metadata = $2
		 WHERE id = $3`,
		rows, metaJSON, id,
	)
	return eris.Wrapf(err, "refreshlog: complete %d", id)
}

// FailRefresh marks a cycle as failed.
func (s *PostgresStore) FailRefresh(ctx context.Context, id int64, msg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE navaid.refresh_log
		 SET status = 'failed', completed_at = now(), error = $1
		 WHERE id = $2`,
		msg, id,
	)
	return eris.Wrapf(err, "refreshlog: fail %d", id)
}

// ListRefreshes returns the most recent cycles first.
func (s *PostgresStore) ListRefreshes(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, strategy, status, started_at, completed_at, rows_synced, error, metadata
		 FROM navaid.refresh_log ORDER BY started_at DESC, id DESC LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "refreshlog: list")
	}
	defer rows.Close()

	var runs []model.RefreshRun
	for rows.Next() {
		r, err := scanRefresh(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "refreshlog: iterate")
}

// LastSuccess returns when the newest completed cycle started.
func (s *PostgresStore) LastSuccess(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT started_at FROM navaid.refresh_log
		 WHERE status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
	).Scan(&t)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "refreshlog: last success")
	}
	return &t, nil
}

func scanRefresh(row scannable) (model.RefreshRun, error) {
	var r model.RefreshRun
	var status string
	var errStr *string
	var metaJSON []byte
	if err := row.Scan(&r.ID, &r.Strategy, &status, &r.StartedAt, &r.CompletedAt, &r.RowsSynced, &errStr, &metaJSON); err != nil {
		return r, eris.Wrap(err, "refreshlog: scan")
	}
	r.Status = model.RefreshStatus(status)
	r.Error = model.Deref(errStr)
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &r.Metadata)
	}
	return r, nil
}
