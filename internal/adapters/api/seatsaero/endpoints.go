package seatsaero

import (
	"context"
	"net/url"
	"strconv"
)

// Route is one published route for a mileage program
type Route struct {
	ID                 string `json:"ID"`
	OriginAirport      string `json:"OriginAirport"`
	OriginRegion       string `json:"OriginRegion"`
	DestinationAirport string `json:"DestinationAirport"`
	DestinationRegion  string `json:"DestinationRegion"`
	Source             string `json:"Source"`
	Distance           int64  `json:"Distance"`
	NumDaysOut         int64  `json:"NumDaysOut"`
}

// AvailabilityPage is the bulk availability page envelope.
// Items stay dynamic: the payload carries per-cabin column families that
// the pipeline flattens rather than modeling field by field
type AvailabilityPage struct {
	Data    []map[string]any `json:"data"`
	Count   int              `json:"count"`
	HasMore bool             `json:"hasMore"`
	Cursor  int64            `json:"cursor"`
}

// AvailabilityFilters narrow a bulk availability query
type AvailabilityFilters struct {
	Cabin     string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
}

// BulkAvailability fetches one page of availability for a mileage program.
// skip/take drive offset pagination
func (c *Client) BulkAvailability(ctx context.Context, source string, f AvailabilityFilters, skip, take int) (AvailabilityPage, error) {
	q := url.Values{}
	q.Set("source", source)
	if f.Cabin != "" {
		q.Set("cabin", f.Cabin)
	}
	if f.StartDate != "" {
		q.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("end_date", f.EndDate)
	}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if take > 0 {
		q.Set("take", strconv.Itoa(take))
	}

	var env AvailabilityPage
	if err := c.getJSON(ctx, "/availability", q, &env); err != nil {
		return AvailabilityPage{}, err
	}
	return env, nil
}

// Routes lists the routes a mileage program publishes
func (c *Client) Routes(ctx context.Context, source string) ([]Route, error) {
	q := url.Values{}
	q.Set("source", source)
	var routes []Route
	if err := c.getJSON(ctx, "/routes", q, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}
