package service

import (
	"context"
	"testing"
	"time"

	"awardarchive/internal/adapters/tablestore/memstore"
	"awardarchive/internal/core/stamp"
	"awardarchive/internal/core/tabular"
	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/services/ingest/domain"
)

// scriptFetcher replays a fixed sequence of pages and records the cursors
// it was called with
type scriptFetcher struct {
	pages []domain.Page
	errAt int // call index that fails, -1 for never
	calls []domain.Cursor
}

func (f *scriptFetcher) FetchPage(ctx context.Context, cur domain.Cursor, pageSize int) (domain.Page, error) {
	n := len(f.calls)
	f.calls = append(f.calls, cur)
	if f.errAt >= 0 && n == f.errAt {
		return domain.Page{}, perr.Unavailablef("upstream gone away")
	}
	if n >= len(f.pages) {
		return domain.Page{}, nil
	}
	return f.pages[n], nil
}

func availRow(route, date string, miles int64) tabular.Record {
	return tabular.Record{
		"route_id": route,
		"date":     date,
		"miles":    miles,
		"cabin":    "business",
	}
}

func availTable() domain.TableSpec {
	return domain.TableSpec{
		Name:        "award_availability",
		MergeKeys:   []string{"route_id", "date"},
		PartitionBy: []string{"date"},
	}
}

func newTestService(store domain.TableStore, runs domain.RunsRepo) (*Service, *[]time.Duration) {
	svc := New(store, runs, Config{MergeRetryBase: 2 * time.Second})
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	var slept []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return svc, &slept
}

func onePage(rows ...tabular.Record) *scriptFetcher {
	return &scriptFetcher{pages: []domain.Page{{Records: rows}}, errAt: -1}
}

func TestRunSourceBootstrap(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	sum := svc.RunSource(context.Background(), domain.SourceSpec{
		Name:  "seats_aero",
		Fetch: onePage(availRow("LAX-NRT", "2026-05-01", 85000), availRow("SFO-HND", "2026-05-01", 90000)),
		Table: availTable(),
	})

	if sum.Err != nil {
		t.Fatalf("unexpected error: %v", sum.Err)
	}
	if !sum.TableCreated || sum.Inserted != 2 || sum.Updated != 0 || sum.Pages != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	rows := store.Rows("award_availability")
	if len(rows) != 2 {
		t.Fatalf("stored rows = %d", len(rows))
	}
	for _, r := range rows {
		if r[stamp.HashColumn] == nil || r[stamp.TimestampColumn] == nil {
			t.Fatalf("row missing stamp columns: %v", r)
		}
	}
}

func TestRunSourceIdempotent(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	feed := func() *scriptFetcher {
		return onePage(availRow("LAX-NRT", "2026-05-01", 85000), availRow("SFO-HND", "2026-05-01", 90000))
	}
	src := domain.SourceSpec{Name: "seats_aero", Table: availTable()}

	src.Fetch = feed()
	first := svc.RunSource(context.Background(), src)
	if first.Err != nil || first.Inserted != 2 {
		t.Fatalf("first run = %+v", first)
	}

	src.Fetch = feed()
	second := svc.RunSource(context.Background(), src)
	if second.Err != nil {
		t.Fatalf("second run: %v", second.Err)
	}
	if second.Inserted != 0 || second.Updated != 0 || second.TableCreated {
		t.Fatalf("re-ingest must be a no-op, got %+v", second)
	}
	if got := len(store.Rows("award_availability")); got != 2 {
		t.Fatalf("rows after re-ingest = %d", got)
	}
}

func TestRunSourceUpdatesChangedRows(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)
	src := domain.SourceSpec{Name: "seats_aero", Table: availTable()}

	src.Fetch = onePage(availRow("LAX-NRT", "2026-05-01", 85000))
	if sum := svc.RunSource(context.Background(), src); sum.Err != nil {
		t.Fatalf("seed run: %v", sum.Err)
	}

	src.Fetch = onePage(availRow("LAX-NRT", "2026-05-01", 70000))
	sum := svc.RunSource(context.Background(), src)
	if sum.Err != nil || sum.Inserted != 0 || sum.Updated != 1 {
		t.Fatalf("changed-row run = %+v", sum)
	}

	rows := store.Rows("award_availability")
	if len(rows) != 1 || rows[0]["miles"] != int64(70000) {
		t.Fatalf("stored rows = %v", rows)
	}
}

func TestBatchDedupLastWins(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	sum := svc.RunSource(context.Background(), domain.SourceSpec{
		Name: "seats_aero",
		Fetch: onePage(
			availRow("LAX-NRT", "2026-05-01", 85000),
			availRow("SFO-HND", "2026-05-01", 90000),
			availRow("LAX-NRT", "2026-05-01", 60000), // same key, later wins
		),
		Table: availTable(),
	})
	if sum.Err != nil {
		t.Fatalf("run: %v", sum.Err)
	}
	if sum.Records != 3 || sum.Inserted != 2 {
		t.Fatalf("summary = %+v", sum)
	}

	rows := store.Rows("award_availability")
	if len(rows) != 2 {
		t.Fatalf("stored rows = %d", len(rows))
	}
	// first-occurrence order preserved, last duplicate's payload kept
	if rows[0]["route_id"] != "LAX-NRT" || rows[0]["miles"] != int64(60000) {
		t.Fatalf("dedupe kept wrong row: %v", rows[0])
	}
}

func TestPaginationOffsetCursor(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	f := &scriptFetcher{
		errAt: -1,
		pages: []domain.Page{
			{Records: tabular.Batch{availRow("A-B", "2026-05-01", 1), availRow("C-D", "2026-05-01", 2)}, HasMore: true},
			{Records: tabular.Batch{availRow("E-F", "2026-05-01", 3)}, HasMore: false},
		},
	}
	sum := svc.RunSource(context.Background(), domain.SourceSpec{Name: "seats_aero", Fetch: f, Table: availTable()})
	if sum.Err != nil || sum.Pages != 2 || sum.Records != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(f.calls) != 2 {
		t.Fatalf("fetch calls = %d", len(f.calls))
	}
	if f.calls[0].Skip != 0 || f.calls[1].Skip != 2 {
		t.Fatalf("offset cursors = %+v", f.calls)
	}
	if sum.Cursor.Skip != 3 {
		t.Fatalf("final cursor = %+v", sum.Cursor)
	}
}

func TestPaginationTokenCursor(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	f := &scriptFetcher{
		errAt: -1,
		pages: []domain.Page{
			{Records: tabular.Batch{availRow("A-B", "2026-05-01", 1)}, HasMore: true, NextToken: "tok-2"},
			{Records: tabular.Batch{availRow("C-D", "2026-05-01", 2)}, HasMore: false},
		},
	}
	sum := svc.RunSource(context.Background(), domain.SourceSpec{Name: "seats_aero", Fetch: f, Table: availTable()})
	if sum.Err != nil || sum.Pages != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if f.calls[1].Token != "tok-2" {
		t.Fatalf("second call cursor = %+v", f.calls[1])
	}
}

func TestMaxPagesCap(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	f := &scriptFetcher{
		errAt: -1,
		pages: []domain.Page{
			{Records: tabular.Batch{availRow("A-B", "2026-05-01", 1)}, HasMore: true},
			{Records: tabular.Batch{availRow("C-D", "2026-05-01", 2)}, HasMore: true},
			{Records: tabular.Batch{availRow("E-F", "2026-05-01", 3)}, HasMore: true},
		},
	}
	sum := svc.RunSource(context.Background(), domain.SourceSpec{
		Name: "seats_aero", Fetch: f, Table: availTable(), MaxPages: 2,
	})
	if sum.Err != nil {
		t.Fatalf("run: %v", sum.Err)
	}
	if sum.Pages != 2 || len(f.calls) != 2 {
		t.Fatalf("cap not honored: pages=%d calls=%d", sum.Pages, len(f.calls))
	}
}

func TestEmptyFirstPageStops(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	f := &scriptFetcher{errAt: -1, pages: []domain.Page{{HasMore: true}}}
	sum := svc.RunSource(context.Background(), domain.SourceSpec{Name: "seats_aero", Fetch: f, Table: availTable()})
	if sum.Err != nil || sum.Pages != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if store.Creates != 0 {
		t.Fatalf("empty feed must not create the table")
	}
}

func TestFetchFailureKeepsPartialProgress(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	f := &scriptFetcher{
		errAt: 1,
		pages: []domain.Page{
			{Records: tabular.Batch{availRow("A-B", "2026-05-01", 1)}, HasMore: true},
		},
	}
	sum := svc.RunSource(context.Background(), domain.SourceSpec{Name: "seats_aero", Fetch: f, Table: availTable()})
	if sum.Err == nil {
		t.Fatalf("expected fetch failure to surface")
	}
	if sum.Pages != 1 || sum.Inserted != 1 {
		t.Fatalf("partial progress lost: %+v", sum)
	}
	if got := len(store.Rows("award_availability")); got != 1 {
		t.Fatalf("merged rows = %d", got)
	}
	if sum.Cursor.Skip != 1 {
		t.Fatalf("resume cursor = %+v", sum.Cursor)
	}
}

func TestMergeConflictRetriesLinearly(t *testing.T) {
	store := memstore.New()
	svc, slept := newTestService(store, nil)
	src := domain.SourceSpec{Name: "seats_aero", Table: availTable()}

	src.Fetch = onePage(availRow("LAX-NRT", "2026-05-01", 85000))
	if sum := svc.RunSource(context.Background(), src); sum.Err != nil {
		t.Fatalf("seed run: %v", sum.Err)
	}

	store.ConflictNextUpserts(2)
	src.Fetch = onePage(availRow("LAX-NRT", "2026-05-01", 70000))
	sum := svc.RunSource(context.Background(), src)
	if sum.Err != nil || sum.Updated != 1 {
		t.Fatalf("conflicted run = %+v", sum)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("backoff delays = %v, want %v", *slept, want)
	}
}

func TestMergeConflictExhaustion(t *testing.T) {
	store := memstore.New()
	svc, slept := newTestService(store, nil)
	svc.Cfg.MaxMergeRetries = 3
	src := domain.SourceSpec{Name: "seats_aero", Table: availTable()}

	src.Fetch = onePage(availRow("LAX-NRT", "2026-05-01", 85000))
	if sum := svc.RunSource(context.Background(), src); sum.Err != nil {
		t.Fatalf("seed run: %v", sum.Err)
	}

	store.ConflictNextUpserts(10)
	src.Fetch = onePage(availRow("LAX-NRT", "2026-05-01", 70000))
	sum := svc.RunSource(context.Background(), src)
	if sum.Err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if !perr.IsCode(sum.Err, perr.ErrorCodeConflict) {
		t.Fatalf("error code = %v", perr.CodeOf(sum.Err))
	}
	if len(*slept) != 2 {
		t.Fatalf("attempts slept = %d, want 2 before giving up at 3", len(*slept))
	}
}

func TestBootstrapRaceMergesIntoWinner(t *testing.T) {
	store := memstore.New()
	svc, slept := newTestService(store, nil)
	store.ConflictNextCreates(1)

	sum := svc.RunSource(context.Background(), domain.SourceSpec{
		Name:  "seats_aero",
		Fetch: onePage(availRow("LAX-NRT", "2026-05-01", 85000)),
		Table: availTable(),
	})
	if sum.Err != nil {
		t.Fatalf("run: %v", sum.Err)
	}
	if sum.TableCreated {
		t.Fatalf("losing the bootstrap race must not report table creation")
	}
	if sum.Inserted != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(*slept) != 1 {
		t.Fatalf("expected one backoff before reopening, got %v", *slept)
	}
}

func TestWidenAllNullColumns(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	r1 := availRow("LAX-NRT", "2026-05-01", 85000)
	r1["fare_class"] = nil
	r2 := availRow("SFO-HND", "2026-05-01", 90000)
	r2["fare_class"] = nil

	sum := svc.RunSource(context.Background(), domain.SourceSpec{
		Name: "seats_aero", Fetch: onePage(r1, r2), Table: availTable(),
	})
	if sum.Err != nil {
		t.Fatalf("run: %v", sum.Err)
	}

	for _, r := range store.Rows("award_availability") {
		v, ok := r["fare_class"]
		if !ok {
			t.Fatalf("widened column missing: %v", r)
		}
		p, isPtr := v.(*string)
		if !isPtr || p != nil {
			t.Fatalf("fare_class = %T(%v), want typed-nil *string", v, v)
		}
	}
}

func TestRunAllContinuesPastFailure(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	broken := &scriptFetcher{errAt: 0}
	ok := onePage(availRow("LAX-NRT", "2026-05-01", 85000))

	sums := svc.RunAll(context.Background(), []domain.SourceSpec{
		{Name: "seats_aero", Fetch: broken, Table: availTable()},
		{Name: "iprefer", Fetch: ok, Table: domain.TableSpec{Name: "hotels", MergeKeys: []string{"route_id", "date"}}},
	})
	if len(sums) != 2 {
		t.Fatalf("summaries = %d", len(sums))
	}
	if !sums[0].Failed() {
		t.Fatalf("first source should have failed")
	}
	if sums[1].Failed() || sums[1].Inserted != 1 {
		t.Fatalf("second source should have run: %+v", sums[1])
	}
}

func TestRunSourceCancelledContext(t *testing.T) {
	store := memstore.New()
	svc, _ := newTestService(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := svc.RunSource(ctx, domain.SourceSpec{
		Name: "seats_aero", Fetch: onePage(availRow("A-B", "2026-05-01", 1)), Table: availTable(),
	})
	if sum.Err == nil || sum.Pages != 0 {
		t.Fatalf("cancelled run = %+v", sum)
	}
}

// recordingRuns captures the bookkeeping calls made during a run
type recordingRuns struct {
	started     int
	checkpoints int
	finished    []domain.RunSummary
}

func (r *recordingRuns) StartRun(ctx context.Context, runID, source, table string, start domain.Cursor) error {
	r.started++
	return nil
}

func (r *recordingRuns) CheckpointPage(ctx context.Context, runID string, cur domain.Cursor, pageRecords, inserted, updated int) error {
	r.checkpoints++
	return nil
}

func (r *recordingRuns) FinishRun(ctx context.Context, runID string, s domain.RunSummary) error {
	r.finished = append(r.finished, s)
	return nil
}

func (r *recordingRuns) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return nil, nil
}

func TestRunBookkeeping(t *testing.T) {
	store := memstore.New()
	runs := &recordingRuns{}
	svc, _ := newTestService(store, runs)

	f := &scriptFetcher{
		errAt: -1,
		pages: []domain.Page{
			{Records: tabular.Batch{availRow("A-B", "2026-05-01", 1)}, HasMore: true},
			{Records: tabular.Batch{availRow("C-D", "2026-05-01", 2)}, HasMore: false},
		},
	}
	sum := svc.RunSource(context.Background(), domain.SourceSpec{Name: "seats_aero", Fetch: f, Table: availTable()})
	if sum.Err != nil {
		t.Fatalf("run: %v", sum.Err)
	}
	if runs.started != 1 || runs.checkpoints != 2 || len(runs.finished) != 1 {
		t.Fatalf("bookkeeping calls = %+v", runs)
	}
	if runs.finished[0].Records != 2 {
		t.Fatalf("finished summary = %+v", runs.finished[0])
	}
}
