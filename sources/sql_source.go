package sources

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarvoice/qtype/secret"
)

// PoolOpener abstracts pgxpool.NewWithConfig/pgxpool.New for testing; the
// concrete implementation below wraps the real pgxpool constructor the
// same way rakunlabs-at's postgres store wires database/sql's pgx stdlib
// driver, minus the goqu query builder layer that package does not carry
// as a qtype dependency — SQLSource issues the step-declared query text
// directly (see DESIGN.md).
type PoolOpener func(ctx context.Context, connString string) (SQLPool, error)

// SQLPool is the narrow pool surface SQLSource depends on, satisfied by
// *pgxpool.Pool.
type SQLPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// OpenPgxPool is the production PoolOpener, backed by jackc/pgx/v5's
// connection pool.
func OpenPgxPool(ctx context.Context, connString string) (SQLPool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("sources: open postgres pool: %w", err)
	}
	return pool, nil
}

// QuerySQL runs query against uri (a pgx connection string) with args,
// returning one map[string]any per row keyed by column name, the same
// row-dict shape ReadRows produces so exec/steps can treat file and SQL
// sources identically at the boundary. auth, when non-nil and holding an
// aws.Config (a cloud AuthProvider), is accepted for connectors that need
// a session-scoped token (e.g. IAM auth to RDS/Athena) but is otherwise
// unused by the plain Postgres path pgx drives directly.
func QuerySQL(ctx context.Context, open PoolOpener, uri, query string, args []any, auth *secret.Provider) ([]map[string]any, error) {
	_ = auth // reserved for IAM-token connection strings; see DESIGN.md

	pool, err := open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sources: execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("sources: scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sources: iterate rows: %w", err)
	}
	return out, nil
}
