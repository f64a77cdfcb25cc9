package iprefer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"awardarchive/internal/services/ingest/domain"
)

const directoryHTML = `<html><body>
<div class="directory-card">
  <div class="directory-card__button__container"><a href="/hotels/the-grand" title=" The Grand ">View</a></div>
</div>
<div class="directory-card">
  <div class="directory-card__button__container"><a href="/hotels/seaside" title="Seaside Resort">View</a></div>
</div>
<div class="directory-card">
  <div class="directory-card__button__container"><span>no link</span></div>
</div>
</body></html>`

func hotelHTML(nid int64, name, country string) string {
	return fmt.Sprintf(`<html><head>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{
"nodeContent":{"nid":%d,"fieldDisplayTitle":%q,"fieldItemCode":"GH1","fieldNumRooms":120,
"fieldCountryName":%q,"choicePointsValue":25000,"fieldAvgRateDisplay":"$450",
"fieldSynxisId":"sx-1","fieldIPreferBookWithPoints":true,"participatesInChoicePoints":false},
"metaTags":{"canonical_url":"https://example.com/h","title":"T","description":"D"}}}}</script>
</head><body></body></html>`, nid, name, country)
}

const calendarJSON = `{"currency_code":"USD","count":2,"results":{
"2026-06-02":{"lowestRate":null,"lowestPointsRate":40000,"available":true},
"2026-06-01":{"lowestRate":399.0,"lowestPointsRate":null,"available":false}}}`

// testSite wires a fake directory, hotel pages, and calendar endpoint
func testSite(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(directoryHTML))
	})
	mux.HandleFunc("/hotels/the-grand", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hotelHTML(101, "The Grand", "France")))
	})
	mux.HandleFunc("/hotels/seaside", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hotelHTML(202, "Seaside Resort", "Portugal")))
	})
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(calendarJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(Options{
		SiteURL:      srv.URL,
		CalendarURL:  srv.URL + "/calendar",
		RateInterval: time.Nanosecond,
	})
	c.sleep = func(time.Duration) {}
	return c, srv
}

func TestHotelDirectory(t *testing.T) {
	c, _ := testSite(t)
	links, err := c.HotelDirectory(context.Background())
	if err != nil {
		t.Fatalf("HotelDirectory: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("links = %+v", links)
	}
	if links[0].Path != "/hotels/the-grand" || links[0].Title != "The Grand" {
		t.Fatalf("first link = %+v", links[0])
	}
	if !strings.HasSuffix(links[1].URL(), "/hotels/seaside") {
		t.Fatalf("URL = %s", links[1].URL())
	}
}

func TestHotelDetails(t *testing.T) {
	c, srv := testSite(t)
	h, err := c.HotelDetails(context.Background(), srv.URL+"/hotels/the-grand")
	if err != nil {
		t.Fatalf("HotelDetails: %v", err)
	}
	if h.NID != 101 || h.Name != "The Grand" || h.Country != "France" {
		t.Fatalf("details = %+v", h)
	}
	if h.NumRooms != 120 || h.ChoicePoints != 25000 || !h.BookWithPoints || h.BookWithChoice {
		t.Fatalf("details = %+v", h)
	}
	if h.CanonicalURL != "https://example.com/h" {
		t.Fatalf("canonical = %s", h.CanonicalURL)
	}
}

func TestRateCalendar(t *testing.T) {
	c, _ := testSite(t)
	days, err := c.RateCalendar(context.Background(), 101, true)
	if err != nil {
		t.Fatalf("RateCalendar: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("days = %+v", days)
	}
	// dates come back sorted
	if days[0].Date != "2026-06-01" || days[1].Date != "2026-06-02" {
		t.Fatalf("order = %s, %s", days[0].Date, days[1].Date)
	}
	if days[0].LowestRate == nil || *days[0].LowestRate != 399.0 || days[0].LowestPointsRate != nil {
		t.Fatalf("cash day = %+v", days[0])
	}
	if !days[1].Available || days[1].LowestPointsRate == nil || *days[1].LowestPointsRate != 40000 {
		t.Fatalf("points day = %+v", days[1])
	}
	if !days[0].IsPoints {
		t.Fatalf("IsPoints must mirror the request")
	}
}

func TestHotelsFetcherPagination(t *testing.T) {
	c, _ := testSite(t)
	f := &HotelsFetcher{Client: c}

	p1, err := f.FetchPage(context.Background(), domain.Cursor{}, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(p1.Records) != 1 || !p1.HasMore {
		t.Fatalf("page 1 = %+v", p1)
	}
	if p1.Records[0]["nid"] != int64(101) || p1.Records[0]["country"] != "France" {
		t.Fatalf("record = %v", p1.Records[0])
	}

	p2, err := f.FetchPage(context.Background(), domain.Cursor{Skip: 1}, 1)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(p2.Records) != 1 || p2.HasMore {
		t.Fatalf("page 2 = %+v", p2)
	}

	p3, err := f.FetchPage(context.Background(), domain.Cursor{Skip: 2}, 1)
	if err != nil || len(p3.Records) != 0 {
		t.Fatalf("page past end = %+v, %v", p3, err)
	}
}

func TestHotelsFetcherMaxHotels(t *testing.T) {
	c, _ := testSite(t)
	f := &HotelsFetcher{Client: c, MaxHotels: 1}

	p, err := f.FetchPage(context.Background(), domain.Cursor{}, 10)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(p.Records) != 1 || p.HasMore {
		t.Fatalf("capped page = %+v", p)
	}
}

func TestAvailabilityFetcherTokenCursor(t *testing.T) {
	c, _ := testSite(t)
	f := &AvailabilityFetcher{
		Client:        c,
		NIDs:          []int64{101, 202},
		IncludePoints: true,
		IncludeCash:   true,
	}

	p1, err := f.FetchPage(context.Background(), domain.Cursor{}, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	// one hotel, points + cash calendars, two dates each
	if len(p1.Records) != 4 || !p1.HasMore || p1.NextToken != "1" {
		t.Fatalf("page 1 = records:%d hasMore:%v token:%q", len(p1.Records), p1.HasMore, p1.NextToken)
	}
	for _, r := range p1.Records {
		if r["nid"] != int64(101) {
			t.Fatalf("page 1 crossed hotels: %v", r)
		}
	}

	// the token, not the consumed row count, advances the hotel offset
	p2, err := f.FetchPage(context.Background(), domain.Cursor{Token: p1.NextToken}, 1)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(p2.Records) != 4 || p2.HasMore {
		t.Fatalf("page 2 = records:%d hasMore:%v", len(p2.Records), p2.HasMore)
	}
	if p2.Records[0]["nid"] != int64(202) {
		t.Fatalf("page 2 hotel = %v", p2.Records[0]["nid"])
	}
}

func TestAvailabilityFetcherResolvesNIDs(t *testing.T) {
	c, _ := testSite(t)
	f := &AvailabilityFetcher{Client: c, IncludePoints: true}

	p, err := f.FetchPage(context.Background(), domain.Cursor{}, 10)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(f.NIDs) != 2 || f.NIDs[0] != 101 || f.NIDs[1] != 202 {
		t.Fatalf("resolved nids = %v", f.NIDs)
	}
	// points only: two hotels, two dates each
	if len(p.Records) != 4 {
		t.Fatalf("records = %d", len(p.Records))
	}
	for _, r := range p.Records {
		if r["is_points"] != true {
			t.Fatalf("cash rows present: %v", r)
		}
	}
}
