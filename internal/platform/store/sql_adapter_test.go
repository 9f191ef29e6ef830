package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gridintake/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxFakeRow implements pgx.Row
type pgxFakeRow struct {
	scan func(dest ...any) error
}

func (r *pgxFakeRow) Scan(dest ...any) error {
	if r.scan != nil {
		return r.scan(dest...)
	}
	return nil
}

// pgxFakeRows implements pgx.Rows
type pgxFakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	idx    int
	err    error
	closed bool
	ct     pgconn.CommandTag
}

func newPgxFakeRows(cols []string, data [][]any) *pgxFakeRows {
	fds := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		// Name is a string in pgx/v5
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return &pgxFakeRows{fields: fds, data: data, idx: -1}
}

func (r *pgxFakeRows) Conn() *pgx.Conn { return nil }

func (r *pgxFakeRows) Close()                        { r.closed = true }
func (r *pgxFakeRows) Err() error                    { return r.err }
func (r *pgxFakeRows) CommandTag() pgconn.CommandTag { return r.ct }
func (r *pgxFakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return r.fields
}
func (r *pgxFakeRows) Next() bool {
	if r.err != nil {
		return false
	}
	r.idx++
	return r.idx >= 0 && r.idx < len(r.data)
}
func (r *pgxFakeRows) RawValues() [][]byte { return nil }
func (r *pgxFakeRows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, errors.New("out of range")
	}
	return r.data[r.idx], nil
}
func (r *pgxFakeRows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("scan out of range")
	}
	row := r.data[r.idx]
	if len(row) != len(dest) {
		return errors.New("dest len mismatch")
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || !dv.Elem().CanSet() {
			return errors.New("dest not pointer")
		}
		val := reflect.ValueOf(row[i])
		if val.IsValid() && val.Type().AssignableTo(dv.Elem().Type()) {
			dv.Elem().Set(val)
			continue
		}
		if val.IsValid() && val.Type().ConvertibleTo(dv.Elem().Type()) {
			dv.Elem().Set(val.Convert(dv.Elem().Type()))
			continue
		}
		return errors.New("type mismatch")
	}
	return nil
}

// pgxFakeTx implements pgx.Tx; the querier tests use it as a bare pgxQuerier
type pgxFakeTx struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	copyFn     func(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error)

	commits, rollbacks int
	rollbackCtxErr     error
}

func (f *pgxFakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.execFn != nil {
		return f.execFn(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *pgxFakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, sql, args...)
	}
	return newPgxFakeRows([]string{"n"}, [][]any{{1}}), nil
}

func (f *pgxFakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.queryRowFn != nil {
		return f.queryRowFn(ctx, sql, args...)
	}
	return &pgxFakeRow{}
}

func (f *pgxFakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyFn != nil {
		return f.copyFn(ctx, table, cols, src)
	}
	return 0, errors.New("not implemented")
}

func (f *pgxFakeTx) Commit(context.Context) error { f.commits++; return nil }
func (f *pgxFakeTx) Rollback(ctx context.Context) error {
	f.rollbacks++
	f.rollbackCtxErr = ctx.Err()
	return nil
}

func (f *pgxFakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *pgxFakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *pgxFakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (f *pgxFakeTx) Conn() *pgx.Conn                       { return nil }
func (f *pgxFakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }

type captureTracer struct{ events []pg.QueryEvent }

func (c *captureTracer) OnQuery(_ context.Context, ev pg.QueryEvent) { c.events = append(c.events, ev) }

func TestRows_Columns_Next_Scan_Close(t *testing.T) {
	t.Parallel()

	fr := newPgxFakeRows([]string{"uc_id", "cod_id"}, [][]any{{"a", 1}, {"b", 2}})
	rs := rows{r: fr}

	if cols := rs.Columns(); !reflect.DeepEqual(cols, []string{"uc_id", "cod_id"}) {
		t.Fatalf("Columns mismatch: %#v", cols)
	}
	var ids []string
	for rs.Next() {
		var id string
		var cod int
		if err := rs.Scan(&id, &cod); err != nil {
			t.Fatalf("Scan: %v", err)
		}
		ids = append(ids, id)
	}
	rs.Close()
	if !fr.closed || !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("closed=%v ids=%v", fr.closed, ids)
	}

	broken := newPgxFakeRows([]string{"n"}, nil)
	broken.err = errors.New("boom")
	rs = rows{r: broken}
	if rs.Next() || rs.Err() == nil {
		t.Fatalf("iterator error should stop Next and surface in Err")
	}
}

func TestQuerier_TracesEveryRoundTrip(t *testing.T) {
	t.Parallel()

	fx := &pgxFakeTx{
		execFn: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
		queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
			return newPgxFakeRows([]string{"id"}, [][]any{{1}}), nil
		},
		queryRowFn: func(context.Context, string, ...any) pgx.Row {
			return &pgxFakeRow{scan: func(dest ...any) error {
				*dest[0].(*int) = 42
				return nil
			}}
		},
	}
	tr := &captureTracer{}
	q := querier{db: fx, trace: trace{tracer: tr, slowUS: 0}}
	ctx := context.Background()

	ct, err := q.Exec(ctx, "update jobs set status=$1 where id=$2", "done", 1)
	if err != nil || ct.RowsAffected() != 1 || ct.String() != "UPDATE 1" {
		t.Fatalf("Exec = %v, %v", ct, err)
	}
	rs, err := q.Query(ctx, "select id from jobs")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	rs.Close()
	var n int
	if err := q.QueryRow(ctx, "select 1").Scan(&n); err != nil || n != 42 {
		t.Fatalf("QueryRow = %d, %v", n, err)
	}

	if len(tr.events) != 3 {
		t.Fatalf("events = %d, want 3", len(tr.events))
	}
	if tr.events[0].SQL != "update jobs set status=$1 where id=$2" || !tr.events[0].Slow {
		t.Fatalf("exec event = %+v", tr.events[0])
	}
}

func TestQuerier_PropagatesErrors(t *testing.T) {
	t.Parallel()

	fx := &pgxFakeTx{
		execFn: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag(""), errors.New("exec failed")
		},
		queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
			return nil, errors.New("query failed")
		},
		queryRowFn: func(context.Context, string, ...any) pgx.Row {
			return &pgxFakeRow{scan: func(...any) error { return errors.New("scan failed") }}
		},
	}
	tr := &captureTracer{}
	q := querier{db: fx, trace: trace{tracer: tr, slowUS: -1}}
	ctx := context.Background()

	if _, err := q.Exec(ctx, "x"); err == nil {
		t.Fatalf("expected Exec error")
	}
	if _, err := q.Query(ctx, "x"); err == nil {
		t.Fatalf("expected Query error")
	}
	var n int
	if err := q.QueryRow(ctx, "x").Scan(&n); err == nil {
		t.Fatalf("expected Scan error")
	}
	for i, ev := range tr.events {
		if ev.Err == nil || ev.Slow {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
}

func TestQuerier_NoTracer(t *testing.T) {
	t.Parallel()

	q := querier{db: &pgxFakeTx{}}
	if _, err := q.Exec(context.Background(), "select 1"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
}

func TestQuerier_CopyFrom_DrainsSourceAndTraces(t *testing.T) {
	t.Parallel()

	var gotTable pgx.Identifier
	var gotCols []string
	fx := &pgxFakeTx{
		copyFn: func(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
			gotTable, gotCols = table, cols
			var n int64
			for src.Next() {
				if _, err := src.Values(); err != nil {
					return n, err
				}
				n++
			}
			return n, src.Err()
		},
	}
	tr := &captureTracer{}
	q := querier{db: fx, trace: trace{tracer: tr, slowUS: -1}}

	n, err := q.CopyFrom(context.Background(), "stage_lead_bruto", []string{"uc_id", "cod_id"},
		[][]any{{"a", "1"}, {"b", "2"}, {"c", "3"}})
	if err != nil || n != 3 {
		t.Fatalf("CopyFrom = %d, %v", n, err)
	}
	if !reflect.DeepEqual(gotTable, pgx.Identifier{"stage_lead_bruto"}) || !reflect.DeepEqual(gotCols, []string{"uc_id", "cod_id"}) {
		t.Fatalf("table=%v cols=%v", gotTable, gotCols)
	}
	if len(tr.events) != 1 || tr.events[0].Rows != 3 || tr.events[0].Args != nil {
		t.Fatalf("copy trace = %+v", tr.events)
	}
}

func TestRunTx_CommitRollbackPanic(t *testing.T) {
	t.Parallel()

	ok := &pgxFakeTx{}
	if err := runTx(context.Background(), ok, querier{db: ok}, func(RowQuerier) error { return nil }); err != nil {
		t.Fatalf("runTx: %v", err)
	}
	if ok.commits != 1 || ok.rollbacks != 0 {
		t.Fatalf("commit path: commits=%d rollbacks=%d", ok.commits, ok.rollbacks)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failed := &pgxFakeTx{}
	boom := errors.New("chunk failed")
	if err := runTx(ctx, failed, querier{db: failed}, func(RowQuerier) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("runTx err = %v", err)
	}
	if failed.commits != 0 || failed.rollbacks != 1 || failed.rollbackCtxErr != nil {
		t.Fatalf("rollback path: %+v", failed)
	}

	panicked := &pgxFakeTx{}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("panic should propagate")
			}
		}()
		_ = runTx(context.Background(), panicked, querier{db: panicked}, func(RowQuerier) error { panic("bad row") })
	}()
	if panicked.rollbacks != 1 || panicked.commits != 0 {
		t.Fatalf("panic path: %+v", panicked)
	}
}

func TestIdentifier_SchemaQualified(t *testing.T) {
	t.Parallel()

	if id := identifier("public.lead_bruto"); !reflect.DeepEqual(id, pgx.Identifier{"public", "lead_bruto"}) {
		t.Fatalf("identifier = %v", id)
	}
	if id := identifier("lead_bruto"); len(id) != 1 {
		t.Fatalf("identifier = %v", id)
	}
}
