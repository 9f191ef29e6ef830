package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gridintake/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the slice of pgx shared by *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// trace carries the optional tracer and its slow threshold
type trace struct {
	tracer pg.QueryTracer
	slowUS int64
}

func (t trace) emit(ctx context.Context, ev pg.QueryEvent, start time.Time) {
	if t.tracer == nil {
		return
	}
	ev.ElapsedUS = time.Since(start).Microseconds()
	ev.Slow = t.slowUS >= 0 && ev.ElapsedUS >= t.slowUS
	t.tracer.OnQuery(ctx, ev)
}

// querier adapts a pgxQuerier to RowQuerier and traces every round trip
type querier struct {
	db pgxQuerier
	trace
}

func (q querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := q.db.Exec(ctx, sql, args...)
	q.emit(ctx, pg.QueryEvent{SQL: sql, Args: args, Err: err}, start)
	return tag{ct}, err
}

// Query traces on open, scan time is not included
func (q querier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := q.db.Query(ctx, sql, args...)
	q.emit(ctx, pg.QueryEvent{SQL: sql, Args: args, Err: err}, start)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

// QueryRow traces after Scan so the scan error is reported
func (q querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return row{
		r: q.db.QueryRow(ctx, sql, args...),
		after: func(err error) {
			q.emit(ctx, pg.QueryEvent{SQL: sql, Args: args, Err: err}, start)
		},
	}
}

// CopyFrom traces the table and row count, never the row payload
func (q querier) CopyFrom(ctx context.Context, table string, columns []string, src [][]any) (int64, error) {
	start := time.Now()
	n, err := q.db.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(src))
	q.emit(ctx, pg.QueryEvent{SQL: "COPY " + table + " FROM STDIN", Err: err, Rows: n}, start)
	return n, err
}

// pgAdapter is the pool-backed TxRunner handed out by Open
type pgAdapter struct {
	querier
	p *pg.PG
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{
		querier: querier{db: p.Pool, trace: trace{tracer: p.Tracer, slowUS: p.SlowUS()}},
		p:       p,
	}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

// Tx runs fn inside one transaction; statements issued through the
// RowQuerier fn receives are traced like pool statements
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	return runTx(ctx, tx, querier{db: tx, trace: a.trace}, fn)
}

// runTx commits when fn returns nil and rolls back otherwise, including on panic
// rollback uses a detached context so a cancelled job still releases its locks
func runTx(ctx context.Context, tx pgx.Tx, q RowQuerier, fn func(RowQuerier) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
	}()
	if err = fn(q); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	return tx.Commit(ctx)
}

// identifier splits an optionally schema-qualified table name
func identifier(table string) pgx.Identifier {
	if i := strings.IndexByte(table, '.'); i > 0 {
		return pgx.Identifier{table[:i], table[i+1:]}
	}
	return pgx.Identifier{table}
}

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
