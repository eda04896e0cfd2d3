package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/confiture/confiture/pkg/copyconv"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Preparer is the transaction surface COPY loading needs; *sqlx.Tx and
// *sql.Tx both satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// CopyLoad streams a converted payload into its target table via COPY FROM
// STDIN inside the given transaction and returns the number of rows loaded.
// The caller owns the transaction; a failed load leaves it in an aborted
// state, so callers run loads under a SAVEPOINT.
func CopyLoad(ctx context.Context, tx Preparer, payload *copyconv.Payload) (int64, error) {
	records, err := payload.Records()
	if err != nil {
		return 0, errors.Wrap(err, "failed to decode COPY payload")
	}

	stmt, err := tx.PrepareContext(ctx, copyInStatement(payload))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to prepare COPY for table %q", payload.Table)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, record...); err != nil {
			return 0, errors.Wrapf(err, "failed to buffer COPY row for table %q", payload.Table)
		}
	}

	// The empty exec flushes the buffered rows and reports the loaded count.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to flush COPY for table %q", payload.Table)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read COPY row count")
	}

	return n, nil
}

// copyInStatement builds the driver's COPY statement, handling a possibly
// schema-qualified table name and an omitted column list.
func copyInStatement(payload *copyconv.Payload) string {
	if len(payload.Columns) == 0 {
		parts := strings.Split(payload.Table, ".")
		for i, p := range parts {
			parts[i] = pq.QuoteIdentifier(p)
		}

		return "COPY " + strings.Join(parts, ".") + " FROM STDIN"
	}

	if schema, table, ok := strings.Cut(payload.Table, "."); ok {
		return pq.CopyInSchema(schema, table, payload.Columns...)
	}

	return pq.CopyIn(payload.Table, payload.Columns...)
}
