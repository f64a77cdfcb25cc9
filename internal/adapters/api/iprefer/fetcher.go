package iprefer

import (
	"context"
	"strconv"

	"awardarchive/internal/core/tabular"
	"awardarchive/internal/services/ingest/domain"
)

// HotelsFetcher pages through the hotel directory, fetching full details
// for pageSize hotels at a time. The directory listing is loaded once on
// the first page and paged by offset after that
type HotelsFetcher struct {
	Client *Client

	// MaxHotels caps the directory, 0 means all
	MaxHotels int

	links []HotelLink
}

// FetchPage implements domain.PageFetcher
func (f *HotelsFetcher) FetchPage(ctx context.Context, cur domain.Cursor, pageSize int) (domain.Page, error) {
	if f.links == nil {
		links, err := f.Client.HotelDirectory(ctx)
		if err != nil {
			return domain.Page{}, err
		}
		if f.MaxHotels > 0 && len(links) > f.MaxHotels {
			links = links[:f.MaxHotels]
		}
		f.links = links
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	if cur.Skip >= len(f.links) {
		return domain.Page{}, nil
	}
	end := cur.Skip + pageSize
	if end > len(f.links) {
		end = len(f.links)
	}

	records := make(tabular.Batch, 0, end-cur.Skip)
	for _, link := range f.links[cur.Skip:end] {
		h, err := f.Client.HotelDetails(ctx, link.URL())
		if err != nil {
			return domain.Page{}, err
		}
		records = append(records, hotelRecord(h))
	}
	return domain.Page{Records: records, HasMore: end < len(f.links)}, nil
}

func hotelRecord(h HotelDetails) tabular.Record {
	return tabular.Record{
		"nid":              h.NID,
		"name":             h.Name,
		"url":              h.URL,
		"canonical_url":    h.CanonicalURL,
		"code":             h.Code,
		"num_rooms":        h.NumRooms,
		"country":          h.Country,
		"title":            h.Title,
		"description":      h.Description,
		"choice_points":    h.ChoicePoints,
		"average_rate":     h.AverageRate,
		"synxis_id":        h.SynxisID,
		"book_with_points": h.BookWithPoints,
		"book_with_choice": h.BookWithChoice,
	}
}

// AvailabilityFetcher pages rate calendars across a fixed set of hotels,
// pageSize hotels per page. NIDs left empty are resolved from the directory
// on the first page, which costs one details request per hotel
type AvailabilityFetcher struct {
	Client *Client

	NIDs          []int64
	IncludePoints bool
	IncludeCash   bool

	// MaxHotels caps directory resolution, 0 means all
	MaxHotels int
}

// FetchPage implements domain.PageFetcher
func (f *AvailabilityFetcher) FetchPage(ctx context.Context, cur domain.Cursor, pageSize int) (domain.Page, error) {
	if f.NIDs == nil {
		if err := f.resolveNIDs(ctx); err != nil {
			return domain.Page{}, err
		}
	}
	if pageSize <= 0 {
		pageSize = 5
	}

	skip := hotelOffset(cur)
	if skip >= len(f.NIDs) {
		return domain.Page{}, nil
	}
	end := skip + pageSize
	if end > len(f.NIDs) {
		end = len(f.NIDs)
	}

	var records tabular.Batch
	for _, nid := range f.NIDs[skip:end] {
		if f.IncludePoints {
			days, err := f.Client.RateCalendar(ctx, nid, true)
			if err != nil {
				return domain.Page{}, err
			}
			records = append(records, rateRecords(days)...)
		}
		if f.IncludeCash {
			days, err := f.Client.RateCalendar(ctx, nid, false)
			if err != nil {
				return domain.Page{}, err
			}
			records = append(records, rateRecords(days)...)
		}
	}

	// the cursor counts hotels, not rows: NextToken carries the hotel offset
	// forward so row-count advancement does not skip hotels
	return domain.Page{
		Records:   records,
		HasMore:   end < len(f.NIDs),
		NextToken: hotelToken(end),
	}, nil
}

func (f *AvailabilityFetcher) resolveNIDs(ctx context.Context) error {
	links, err := f.Client.HotelDirectory(ctx)
	if err != nil {
		return err
	}
	if f.MaxHotels > 0 && len(links) > f.MaxHotels {
		links = links[:f.MaxHotels]
	}
	nids := make([]int64, 0, len(links))
	for _, link := range links {
		h, err := f.Client.HotelDetails(ctx, link.URL())
		if err != nil {
			return err
		}
		nids = append(nids, h.NID)
	}
	f.NIDs = nids
	return nil
}

func hotelToken(n int) string { return strconv.Itoa(n) }

// hotelOffset recovers the hotel offset: each page emits a variable number
// of calendar rows, so the continuation token carries the offset instead of
// relying on consumed row counts
func hotelOffset(cur domain.Cursor) int {
	if cur.Token != "" {
		if n, err := strconv.Atoi(cur.Token); err == nil {
			return n
		}
	}
	return cur.Skip
}

func rateRecords(days []RateDay) tabular.Batch {
	out := make(tabular.Batch, 0, len(days))
	for _, d := range days {
		out = append(out, tabular.Record{
			"nid":                d.NID,
			"currency_code":      d.CurrencyCode,
			"date":               d.Date,
			"is_points":          d.IsPoints,
			"lowest_rate":        floatCell(d.LowestRate),
			"lowest_points_rate": floatCell(d.LowestPointsRate),
			"available":          d.Available,
		})
	}
	return out
}

func floatCell(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
