package seatsaero

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"awardarchive/internal/core/stamp"
	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/services/ingest/domain"
)

// quiet makes a client deterministic for tests: no real sleeping
func quiet(c *Client) *Client {
	c.sleep = func(time.Duration) {}
	return c
}

func TestPaceMeasuresFromCallStart(t *testing.T) {
	c := NewClient(Options{APIKey: "k", RateInterval: 10 * time.Second})

	clock := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var slept []time.Duration
	c.now = func() time.Time { return clock }
	c.sleep = func(d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(d)
	}

	c.pace() // first call, no wait
	if len(slept) != 0 {
		t.Fatalf("first pace slept %v", slept)
	}

	// the previous call took 4s of server time
	clock = clock.Add(4 * time.Second)
	c.pace()
	if len(slept) != 1 || slept[0] != 6*time.Second {
		t.Fatalf("second pace slept %v, want 6s", slept)
	}

	// a slow call that already exceeded the interval waits nothing
	clock = clock.Add(15 * time.Second)
	c.pace()
	if len(slept) != 1 {
		t.Fatalf("third pace slept %v", slept)
	}
}

func TestBulkAvailabilityRequestShape(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Partner-Authorization")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"data":[{"ID":"a1","RouteID":"r1","Date":"2026-06-01","Source":"alaska",` +
			`"Route":{"OriginAirport":"LAX","DestinationAirport":"NRT","Distance":5451}}],` +
			`"count":1,"hasMore":true,"cursor":1}`))
	}))
	defer srv.Close()

	c := quiet(NewClient(Options{BaseURL: srv.URL, APIKey: "secret", RateInterval: time.Nanosecond}))
	env, err := c.BulkAvailability(context.Background(), "alaska",
		AvailabilityFilters{Cabin: "business", StartDate: "2026-06-01"}, 500, 250)
	if err != nil {
		t.Fatalf("BulkAvailability: %v", err)
	}
	if gotAuth != "secret" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	for _, want := range []string{"source=alaska", "cabin=business", "start_date=2026-06-01", "skip=500", "take=250"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
	if len(env.Data) != 1 || !env.HasMore {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestRetryOnRateLimitThenSuccess(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"data":[],"count":0,"hasMore":false}`))
	}))
	defer srv.Close()

	c := quiet(NewClient(Options{BaseURL: srv.URL, APIKey: "k", RateInterval: time.Nanosecond}))
	if _, err := c.BulkAvailability(context.Background(), "alaska", AvailabilityFilters{}, 0, 10); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := quiet(NewClient(Options{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2, RateInterval: time.Nanosecond}))
	_, err := c.BulkAvailability(context.Background(), "alaska", AvailabilityFilters{}, 0, 10)
	if !perr.IsCode(err, perr.ErrorCodeTooManyRequests) {
		t.Fatalf("error = %v", err)
	}
}

func TestClientErrorSurfacesImmediately(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := quiet(NewClient(Options{BaseURL: srv.URL, APIKey: "bad", RateInterval: time.Nanosecond}))
	_, err := c.BulkAvailability(context.Background(), "alaska", AvailabilityFilters{}, 0, 10)
	if err == nil || calls != 1 {
		t.Fatalf("4xx must not retry: err=%v calls=%d", err, calls)
	}
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("error code = %v", perr.CodeOf(err))
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	c := NewClient(Options{APIKey: "k", RetryBase: 500 * time.Millisecond})
	if c.backoff(0) != 500*time.Millisecond || c.backoff(2) != 2*time.Second {
		t.Fatalf("backoff = %v, %v", c.backoff(0), c.backoff(2))
	}
	if c.backoff(20) != 30*time.Second {
		t.Fatalf("backoff cap = %v", c.backoff(20))
	}
}

func TestFetcherFlattensRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"ID":"a1","RouteID":"r1","Date":"2026-06-01","YAvailable":true,` +
			`"Route":{"OriginAirport":"LAX","OriginRegion":"North America","DestinationAirport":"NRT",` +
			`"DestinationRegion":"Asia","Distance":5451,"NumDaysOut":30},` +
			`"AvailabilityTrips":[{"ID":"t1"}]}],"count":1,"hasMore":false}`))
	}))
	defer srv.Close()

	f := &Fetcher{
		Client: quiet(NewClient(Options{BaseURL: srv.URL, APIKey: "k", RateInterval: time.Nanosecond})),
		Source: "alaska",
	}
	page, err := f.FetchPage(context.Background(), domain.Cursor{}, 10)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Records) != 1 || page.HasMore {
		t.Fatalf("page = %+v", page)
	}
	rec := page.Records[0]
	if rec["OriginAirport"] != "LAX" || rec["DestinationRegion"] != "Asia" {
		t.Fatalf("route not flattened: %v", rec)
	}
	if _, ok := rec["Route"]; ok {
		t.Fatalf("nested route must be dropped")
	}
	if _, ok := rec["AvailabilityTrips"]; ok {
		t.Fatalf("embedded trips must be dropped")
	}
	if rec["YAvailable"] != true {
		t.Fatalf("scalar columns must pass through: %v", rec)
	}
}

func TestFlattenItemStableColumnSet(t *testing.T) {
	omitted := flattenItem(map[string]any{
		"ID": "a1", "RouteID": "r1",
	})
	explicit := flattenItem(map[string]any{
		"ID": "a1", "RouteID": "r1", "YMileageCost": nil, "Route": nil,
	})

	wantCols := len(itemColumns) + len(routeColumns)
	if len(omitted) != wantCols || len(explicit) != wantCols {
		t.Fatalf("columns = %d, %d, want fixed %d", len(omitted), len(explicit), wantCols)
	}
	if v, ok := omitted["YMileageCost"]; !ok || v != nil {
		t.Fatalf("absent payload field must land as a null cell, got %v (present %v)", v, ok)
	}

	// upstream omitting a field vs serializing it as null is the same row
	if stamp.Hash(omitted, nil) != stamp.Hash(explicit, nil) {
		t.Fatalf("hash drifted on serialization shape: %s vs %s",
			stamp.Hash(omitted, nil), stamp.Hash(explicit, nil))
	}
}
