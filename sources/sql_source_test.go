package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRows struct {
	cols []string
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                  {}
func (r *fakeRows) Err() error               { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error { return nil }
func (r *fakeRows) Values() ([]any, error)  { return r.data[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte     { return nil }
func (r *fakeRows) Conn() *pgx.Conn         { return nil }

type fakePool struct {
	rows   *fakeRows
	err    error
	closed bool
}

func (p *fakePool) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.rows, nil
}
func (p *fakePool) Close() { p.closed = true }

func TestQuerySQLConvertsRowsToMaps(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{
		cols: []string{"id", "name"},
		data: [][]any{{int64(1), "Ada"}, {int64(2), "Grace"}},
	}}
	open := func(context.Context, string) (SQLPool, error) { return pool, nil }

	rows, err := QuerySQL(context.Background(), open, "postgres://x", "select * from t", nil, nil)
	if err != nil {
		t.Fatalf("QuerySQL: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["name"] != "Ada" {
		t.Errorf("rows[0][name] = %v, want Ada", rows[0]["name"])
	}
	if !pool.closed {
		t.Error("expected pool to be closed")
	}
}

func TestQuerySQLPropagatesOpenError(t *testing.T) {
	open := func(context.Context, string) (SQLPool, error) { return nil, errors.New("dial failed") }
	if _, err := QuerySQL(context.Background(), open, "postgres://x", "select 1", nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
