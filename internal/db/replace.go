package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DeleteAll removes every row from a table and returns the count removed.
func DeleteAll(ctx context.Context, pool Pool, table Table) (int64, error) {
	tag, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table.Sanitize()))
	if err != nil {
		return 0, eris.Wrapf(err, "db: delete from %s", table)
	}
	return tag.RowsAffected(), nil
}

// ReplaceAll swaps the full contents of a table inside one transaction:
// DELETE then COPY then COMMIT. Readers see either the old rows or the new
// rows, never an empty table. Any failure rolls back and leaves the prior
// contents in place.
func ReplaceAll(ctx context.Context, pool Pool, table Table, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table.Sanitize())); err != nil {
		return 0, eris.Wrapf(err, "db: replace: delete from %s", table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, table.Identifier(), columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}
