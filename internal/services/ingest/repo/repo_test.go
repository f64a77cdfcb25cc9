package repo

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"awardarchive/internal/platform/store"
	"awardarchive/internal/services/ingest/domain"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTag struct{ n int64 }

func (t fakeTag) String() string      { return "FAKE" }
func (t fakeTag) RowsAffected() int64 { return t.n }

type fakeRows struct {
	cols []string
	data [][]any
	at   int
}

func (r *fakeRows) Next() bool { r.at++; return r.at <= len(r.data) }
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.at-1]
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row[i].(string)
		case *int:
			*d = row[i].(int)
		case *[]byte:
			*d = row[i].([]byte)
		case *time.Time:
			*d = row[i].(time.Time)
		case *sql.NullTime:
			*d = row[i].(sql.NullTime)
		}
	}
	return nil
}
func (r *fakeRows) Err() error        { return nil }
func (r *fakeRows) Close()            {}
func (r *fakeRows) Columns() []string { return r.cols }

type fakeQuerier struct {
	execs []execCall
	rows  *fakeRows
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return fakeTag{n: 1}, nil
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	return nil
}

func TestStartRun(t *testing.T) {
	q := &fakeQuerier{}
	r := NewPG().Bind(q)

	err := r.StartRun(context.Background(), "run-1", "seats_aero", "award_availability", domain.Cursor{Skip: 500})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if len(q.execs) != 1 {
		t.Fatalf("execs = %d", len(q.execs))
	}
	call := q.execs[0]
	if !strings.Contains(call.sql, "INSERT INTO ingest_runs") {
		t.Fatalf("sql = %s", call.sql)
	}
	if call.args[0] != "run-1" || call.args[3] != domain.RunStatusRunning {
		t.Fatalf("args = %v", call.args)
	}
	if cur := string(call.args[4].([]byte)); !strings.Contains(cur, `"skip":500`) {
		t.Fatalf("cursor json = %s", cur)
	}
}

func TestCheckpointPage(t *testing.T) {
	q := &fakeQuerier{}
	r := NewPG().Bind(q)

	err := r.CheckpointPage(context.Background(), "run-1", domain.Cursor{Token: "tok"}, 100, 90, 10)
	if err != nil {
		t.Fatalf("CheckpointPage: %v", err)
	}
	call := q.execs[0]
	if !strings.Contains(call.sql, "pages    = pages + 1") {
		t.Fatalf("sql = %s", call.sql)
	}
	if call.args[1] != 100 || call.args[2] != 90 || call.args[3] != 10 {
		t.Fatalf("args = %v", call.args)
	}
	if cur := string(call.args[4].([]byte)); !strings.Contains(cur, `"token":"tok"`) {
		t.Fatalf("cursor json = %s", cur)
	}
}

func TestFinishRunStatus(t *testing.T) {
	q := &fakeQuerier{}
	r := NewPG().Bind(q)

	ok := domain.RunSummary{Pages: 2, Records: 10, Inserted: 8, Updated: 1}
	if err := r.FinishRun(context.Background(), "run-1", ok); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if q.execs[0].args[1] != domain.RunStatusDone || q.execs[0].args[7] != "" {
		t.Fatalf("done args = %v", q.execs[0].args)
	}

	failed := domain.RunSummary{Pages: 1, Err: context.DeadlineExceeded}
	if err := r.FinishRun(context.Background(), "run-2", failed); err != nil {
		t.Fatalf("FinishRun failed run: %v", err)
	}
	if q.execs[1].args[1] != domain.RunStatusFailed {
		t.Fatalf("failed status = %v", q.execs[1].args[1])
	}
	if q.execs[1].args[7] == "" {
		t.Fatalf("failed run must persist the error text")
	}
}

func TestRecentRuns(t *testing.T) {
	started := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	finished := sql.NullTime{Time: started.Add(time.Minute), Valid: true}
	q := &fakeQuerier{rows: &fakeRows{
		data: [][]any{
			{"run-2", "iprefer", "iprefer_hotels", "running", 1, 10, 10, 0, []byte(`{"skip":10}`), "", started, sql.NullTime{}},
			{"run-1", "seats_aero", "award_availability", "done", 3, 300, 250, 50, []byte(`{"skip":300}`), "", started, finished},
		},
	}}
	r := NewPG().Bind(q)

	runs, err := r.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	if runs[0].ID != "run-2" || runs[0].FinishedAt != nil {
		t.Fatalf("running run = %+v", runs[0])
	}
	if runs[1].Cursor.Skip != 300 || runs[1].FinishedAt == nil {
		t.Fatalf("done run = %+v", runs[1])
	}
}
