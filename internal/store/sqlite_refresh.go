package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/navaids/internal/model"
)

// StartRefresh records the beginning of a refresh cycle and returns its ID.
func (s *SQLiteStore) StartRefresh(ctx context.Context, strategy string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_log (strategy, status, started_at) VALUES (?, ?, ?)`,
		strategy, string(model.RefreshRunning), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "refreshlog: start %s", strategy)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "refreshlog: last insert id")
}

// CompleteRefresh marks a cycle as complete with its row count.
func (s *SQLiteStore) CompleteRefresh(ctx context.Context, id int64, rows int64, metadata map[string]any) error {
	var meta any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "refreshlog: marshal metadata")
		}
		meta = string(b)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_log SET status = ?, completed_at = ?, rows_synced = ?, metadata = ? WHERE id = ?`,
		string(model.RefreshComplete), time.Now().UTC(), rows, meta, id,
	)
	if err != nil {
		return eris.Wrapf(err, "refreshlog: complete %d", id)
	}
	return checkRowsAffected(res, id)
}

// FailRefresh marks a cycle as failed.
func (s *SQLiteStore) FailRefresh(ctx context.Context, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_log SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RefreshFailed), time.Now().UTC(), msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "refreshlog: fail %d", id)
	}
	return checkRowsAffected(res, id)
}

// ListRefreshes returns the most recent cycles first.
func (s *SQLiteStore) ListRefreshes(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, status, started_at, completed_at, rows_synced, error, metadata
		 FROM refresh_log ORDER BY started_at DESC, id DESC LIMIT ?`,
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
func (s *SQLiteStore) LastSuccess(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM refresh_log WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT 1`,
		string(model.RefreshComplete),
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "refreshlog: last success")
	}
	return &t, nil
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "refreshlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("refreshlog: run not found: %d", id)
	}
	return nil
}
