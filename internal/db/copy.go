package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFromBatched bulk-loads rows into table over the COPY protocol,
// batchSize rows per COPY, so one oversized file does not hold a single
// COPY open end to end. Returns the number of rows written.
func CopyFromBatched(ctx context.Context, pool Pool, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}

	ident := pgx.Identifier{table}
	var written int64
	for start := 0; start < len(rows); start += batchSize {
		batch := rows[start:min(start+batchSize, len(rows))]
		n, err := pool.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(batch))
		if err != nil {
			return written, eris.Wrapf(err, "db: COPY INTO %s at row %d", table, start)
		}
		written += n
	}
	return written, nil
}
