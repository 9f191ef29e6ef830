package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	perr "gridintake/internal/platform/errors"

	"github.com/jackc/pgx/v5"
)

// affectedTag reports a fixed row count
type affectedTag int64

func (n affectedTag) String() string      { return fmt.Sprintf("UPDATE %d", int64(n)) }
func (n affectedTag) RowsAffected() int64 { return int64(n) }

// scripted answers every call from canned values and remembers the last statement
type scripted struct {
	stmt string
	args []any

	affected affectedTag
	execErr  error

	result   *cannedRows
	queryErr error

	scalar  any
	scanErr error
}

func (s *scripted) Exec(_ context.Context, stmt string, args ...any) (CommandTag, error) {
	s.stmt, s.args = stmt, args
	return s.affected, s.execErr
}

func (s *scripted) Query(_ context.Context, stmt string, args ...any) (Rows, error) {
	s.stmt, s.args = stmt, args
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.result, nil
}

func (s *scripted) QueryRow(_ context.Context, stmt string, args ...any) Row {
	s.stmt, s.args = stmt, args
	return scalarRow{v: s.scalar, err: s.scanErr}
}

func (s *scripted) CopyFrom(context.Context, string, []string, [][]any) (int64, error) {
	return 0, errors.New("not scripted")
}

type scalarRow struct {
	v   any
	err error
}

func (r scalarRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch p := dest[0].(type) {
	case *int64:
		*p = r.v.(int64)
	case *string:
		*p = r.v.(string)
	default:
		return fmt.Errorf("unsupported dest %T", dest[0])
	}
	return nil
}

// cannedRows yields job ids, one per row
type cannedRows struct {
	ids    []int64
	pos    int
	err    error
	closed bool
}

func jobRows(ids ...int64) *cannedRows { return &cannedRows{ids: ids, pos: -1} }

func (r *cannedRows) Next() bool {
	if r.err != nil {
		return false
	}
	r.pos++
	return r.pos < len(r.ids)
}

func (r *cannedRows) Scan(dest ...any) error {
	p, ok := dest[0].(*int64)
	if !ok {
		return fmt.Errorf("unsupported dest %T", dest[0])
	}
	*p = r.ids[r.pos]
	return nil
}

func (r *cannedRows) Err() error        { return r.err }
func (r *cannedRows) Close()            { r.closed = true }
func (r *cannedRows) Columns() []string { return []string{"id"} }

func scanID(r Row) (int64, error) {
	var id int64
	err := r.Scan(&id)
	return id, err
}

func TestExecOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name  string
		q     *scripted
		check func(error) bool
	}{
		{"one row", &scripted{affected: 1}, func(err error) bool { return err == nil }},
		{"no row", &scripted{affected: 0}, func(err error) bool { return errors.Is(err, perr.ErrNotFound) }},
		{"many rows", &scripted{affected: 3}, func(err error) bool { return perr.IsCode(err, perr.ErrorCodeConflict) }},
		{"driver error", &scripted{execErr: errors.New("conn reset")}, func(err error) bool {
			return err != nil && err.Error() == "conn reset"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ExecOne(ctx, tc.q, "UPDATE jobs SET status = 'done' WHERE id = $1", int64(7))
			if !tc.check(err) {
				t.Fatalf("ExecOne = %v", err)
			}
		})
	}

	q := &scripted{affected: 1}
	_ = ExecOne(ctx, q, "UPDATE jobs SET status = 'done' WHERE id = $1", int64(7))
	if len(q.args) != 1 || q.args[0] != int64(7) {
		t.Fatalf("args = %v", q.args)
	}
}

func TestScalar(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	id, err := Scalar[int64](ctx, &scripted{scalar: int64(42)}, "INSERT INTO jobs ... RETURNING id")
	if err != nil || id != 42 {
		t.Fatalf("Scalar = %d, %v", id, err)
	}

	st, err := Scalar[string](ctx, &scripted{scanErr: pgx.ErrNoRows}, "SELECT status FROM jobs WHERE id = $1", 1)
	if st != "" || !IsNoRows(err) {
		t.Fatalf("Scalar on empty result = %q, %v", st, err)
	}
}

func TestOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rows := jobRows(5)
	id, err := One(ctx, &scripted{result: rows}, scanID, "SELECT id FROM jobs")
	if err != nil || id != 5 {
		t.Fatalf("One = %d, %v", id, err)
	}
	if !rows.closed {
		t.Fatal("rows left open")
	}

	if _, err := One(ctx, &scripted{result: jobRows()}, scanID, "q"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("empty result = %v, want ErrNotFound", err)
	}
	if _, err := One(ctx, &scripted{result: jobRows(1, 2)}, scanID, "q"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("two rows = %v, want conflict", err)
	}
	if _, err := One(ctx, &scripted{queryErr: errors.New("down")}, scanID, "q"); err == nil {
		t.Fatal("query error swallowed")
	}

	broken := jobRows()
	broken.err = errors.New("stream cut")
	if _, err := One(ctx, &scripted{result: broken}, scanID, "q"); err == nil || errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("iteration error = %v", err)
	}
}

func TestIsNoRows(t *testing.T) {
	t.Parallel()

	if !IsNoRows(pgx.ErrNoRows) || !IsNoRows(perr.Wrap(pgx.ErrNoRows, perr.ErrorCodeDB, "lease")) {
		t.Fatal("no rows should match bare and wrapped")
	}
	if IsNoRows(errors.New("boom")) || IsNoRows(nil) {
		t.Fatal("other errors must not match")
	}
}
