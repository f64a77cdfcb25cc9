package store

import (
	"context"
	stderrs "errors"
	"testing"

	perr "awardarchive/internal/platform/errors"
)

// fake seams

type fakeTag struct{ s string }

func (f fakeTag) String() string { return f.s }
func (f fakeTag) RowsAffected() int64 {
	return 1
}

type fakeRow struct{ vals []any }

func (f fakeRow) Scan(dest ...any) error {
	for i := range dest {
		if i >= len(f.vals) {
			break
		}
		switch d := dest[i].(type) {
		case *int:
			d2, _ := f.vals[i].(int)
			*d = d2
		case *string:
			d2, _ := f.vals[i].(string)
			*d = d2
		}
	}
	return nil
}

type fakeRows struct {
	data [][]any
	cols []string
	pos  int
}

func (f *fakeRows) Next() bool { f.pos++; return f.pos <= len(f.data) }
func (f *fakeRows) Scan(dest ...any) error {
	return fakeRow{vals: f.data[f.pos-1]}.Scan(dest...)
}
func (f *fakeRows) Err() error        { return nil }
func (f *fakeRows) Close()            {}
func (f *fakeRows) Columns() []string { return f.cols }

type fakeQuerier struct {
	tag  string
	rows *fakeRows
	row  fakeRow
	err  error
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return fakeTag{s: f.tag}, f.err
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row { return f.row }

func TestExecOne(t *testing.T) {
	q := &fakeQuerier{tag: "UPDATE 1"}
	if err := ExecOne(context.Background(), q, "UPDATE x"); err != nil {
		t.Fatalf("ExecOne = %v", err)
	}
	q = &fakeQuerier{tag: "UPDATE 0"}
	if err := ExecOne(context.Background(), q, "UPDATE x"); err == nil {
		t.Fatalf("ExecOne should fail on zero rows")
	}
	q = &fakeQuerier{tag: "UPDATE 1", err: stderrs.New("boom")}
	if err := ExecOne(context.Background(), q, "UPDATE x"); err == nil {
		t.Fatalf("ExecOne should surface exec errors")
	}
}

func TestScalar(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{vals: []any{42}}}
	got, err := Scalar[int](context.Background(), q, "SELECT count(*)")
	if err != nil || got != 42 {
		t.Fatalf("Scalar = (%d, %v), want (42, nil)", got, err)
	}
}

func TestOne(t *testing.T) {
	scan := func(r Row) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	}

	q := &fakeQuerier{rows: &fakeRows{data: [][]any{{"united"}}, cols: []string{"source"}}}
	got, err := One(context.Background(), q, scan, "SELECT source")
	if err != nil || got != "united" {
		t.Fatalf("One = (%q, %v)", got, err)
	}

	q = &fakeQuerier{rows: &fakeRows{cols: []string{"source"}}}
	if _, err := One(context.Background(), q, scan, "SELECT source"); !stderrs.Is(err, perr.ErrNotFound) {
		t.Fatalf("One on empty set should be ErrNotFound, got %v", err)
	}

	q = &fakeQuerier{rows: &fakeRows{data: [][]any{{"a"}, {"b"}}, cols: []string{"source"}}}
	if _, err := One(context.Background(), q, scan, "SELECT source"); err == nil {
		t.Fatalf("One should reject multi-row results")
	}
}

func TestMany(t *testing.T) {
	scan := func(r Row) (string, error) {
		var s string
		err := r.Scan(&s)
		return s, err
	}
	q := &fakeQuerier{rows: &fakeRows{data: [][]any{{"a"}, {"b"}, {"c"}}, cols: []string{"source"}}}
	got, err := Many(context.Background(), q, scan, "SELECT source")
	if err != nil || len(got) != 3 || got[2] != "c" {
		t.Fatalf("Many = (%v, %v)", got, err)
	}
}
