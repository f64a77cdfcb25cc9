package seatsaero

import (
	"context"

	"awardarchive/internal/core/tabular"
	"awardarchive/internal/services/ingest/domain"
)

// routeColumns are hoisted from the nested Route object onto the flat record
var routeColumns = []string{
	"OriginAirport", "OriginRegion",
	"DestinationAirport", "DestinationRegion",
	"NumDaysOut", "Distance",
}

// itemColumns is the fixed top-level column set of an availability record.
// Every row carries exactly these columns (null when the payload omits one)
// so the content hash does not drift with upstream serialization
var itemColumns = buildItemColumns()

// cabin classes Y economy, W premium, J business, F first
var cabinClasses = []string{"Y", "W", "J", "F"}

// per-cabin column suffixes of the availability payload
var cabinSuffixes = []string{
	"Available", "AvailableRaw",
	"MileageCost", "MileageCostRaw",
	"DirectMileageCost", "DirectMileageCostRaw",
	"TotalTaxes", "TotalTaxesRaw",
	"DirectTotalTaxes", "DirectTotalTaxesRaw",
	"RemainingSeats", "RemainingSeatsRaw",
	"DirectRemainingSeats", "DirectRemainingSeatsRaw",
	"Airlines", "AirlinesRaw",
	"DirectAirlines", "DirectAirlinesRaw",
	"Direct", "DirectRaw",
}

func buildItemColumns() []string {
	cols := []string{
		"ID", "RouteID", "Date", "ParsedDate",
		"TaxesCurrency", "Source", "CreatedAt", "UpdatedAt",
	}
	for _, sfx := range cabinSuffixes {
		for _, cabin := range cabinClasses {
			cols = append(cols, cabin+sfx)
		}
	}
	return cols
}

// Fetcher adapts BulkAvailability to the pipeline's page contract for one
// mileage program
type Fetcher struct {
	Client  *Client
	Source  string
	Filters AvailabilityFilters
}

// FetchPage implements domain.PageFetcher using offset pagination
func (f *Fetcher) FetchPage(ctx context.Context, cur domain.Cursor, pageSize int) (domain.Page, error) {
	env, err := f.Client.BulkAvailability(ctx, f.Source, f.Filters, cur.Skip, pageSize)
	if err != nil {
		return domain.Page{}, err
	}

	records := make(tabular.Batch, 0, len(env.Data))
	for _, item := range env.Data {
		records = append(records, flattenItem(item))
	}
	return domain.Page{Records: records, HasMore: env.HasMore}, nil
}

// flattenItem projects the payload onto the fixed column set, lifting the
// nested route object into flat columns. Absent and explicit-null cells both
// land as null; non-scalar payload like embedded trips never makes it in
func flattenItem(item map[string]any) tabular.Record {
	rec := make(tabular.Record, len(itemColumns)+len(routeColumns))
	for _, k := range itemColumns {
		rec[k] = scalarOrNil(item[k])
	}
	route, _ := item["Route"].(map[string]any)
	for _, k := range routeColumns {
		rec[k] = scalarOrNil(route[k])
	}
	return rec
}

func scalarOrNil(v any) any {
	switch v.(type) {
	case string, bool, float64, int64, int:
		return v
	default:
		return nil
	}
}
