package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table is a possibly schema-qualified table name such as "navaid.points".
type Table string

// Identifier splits the table name into a pgx identifier.
func (t Table) Identifier() pgx.Identifier {
	parts := strings.SplitN(string(t), ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{string(t)}
}

// Sanitize returns the quoted form safe for interpolation into SQL.
func (t Table) Sanitize() string {
	return t.Identifier().Sanitize()
}

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table Table, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, table.Identifier(), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}
