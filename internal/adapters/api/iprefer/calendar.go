package iprefer

import (
	"context"
	"net/url"
	"sort"
	"strconv"
)

// RateDay is one calendar date's availability for a hotel
type RateDay struct {
	NID              int64
	CurrencyCode     string
	Date             string
	IsPoints         bool
	LowestRate       *float64
	LowestPointsRate *float64
	Available        bool
}

type calendarResponse struct {
	CurrencyCode string `json:"currency_code"`
	Count        int    `json:"count"`
	Results      map[string]struct {
		LowestRate       *float64 `json:"lowestRate"`
		LowestPointsRate *float64 `json:"lowestPointsRate"`
		Available        bool     `json:"available"`
	} `json:"results"`
}

// RateCalendar fetches a hotel's availability calendar, one entry per date,
// for either the points rate plan or cash rates
func (c *Client) RateCalendar(ctx context.Context, nid int64, points bool) ([]RateDay, error) {
	q := url.Values{}
	q.Set("nid", strconv.FormatInt(nid, 10))
	q.Set("adults", "1")
	q.Set("children", "0")
	if points {
		q.Set("rateCode", "IPPOINTS")
	}

	var resp calendarResponse
	if err := c.getJSON(ctx, c.opts.CalendarURL, q, &resp); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(resp.Results))
	for d := range resp.Results {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]RateDay, 0, len(dates))
	for _, d := range dates {
		r := resp.Results[d]
		out = append(out, RateDay{
			NID:              nid,
			CurrencyCode:     resp.CurrencyCode,
			Date:             d,
			IsPoints:         points,
			LowestRate:       r.LowestRate,
			LowestPointsRate: r.LowestPointsRate,
			Available:        r.Available,
		})
	}
	if len(out) != resp.Count {
		c.log.Warn().
			Int64("nid", nid).
			Int("got", len(out)).
			Int("expected", resp.Count).
			Msg("calendar count mismatch")
	}
	return out, nil
}
