package module

import (
	"awardarchive/internal/adapters/api/iprefer"
	"awardarchive/internal/adapters/api/seatsaero"
	"awardarchive/internal/services/ingest/domain"
)

// Destination tables. Merge keys identify a logical row, partitions drive
// the hive layout of the parquet files.
var (
	availabilityTable = domain.TableSpec{
		Name:        "award_availability",
		MergeKeys:   []string{"RouteID", "UpdatedAt"},
		PartitionBy: []string{"Source", "Date"},
	}

	hotelsTable = domain.TableSpec{
		Name:        "iprefer_hotels",
		MergeKeys:   []string{"nid"},
		PartitionBy: []string{"country"},
	}

	hotelAvailabilityTable = domain.TableSpec{
		Name:        "iprefer_availability",
		MergeKeys:   []string{"nid", "date", "is_points"},
		PartitionBy: []string{"is_points"},
	}
)

// SeatsRequest selects which mileage programs to pull and over what window
type SeatsRequest struct {
	// Sources are mileage program codes; empty means every known program
	Sources []string

	StartDate string
	EndDate   string
	Cabin     string

	MaxPages int
	PageSize int

	// Skip resumes offset pagination mid run
	Skip int
}

// SeatsSources builds one pipeline source per requested mileage program
func (m *Module) SeatsSources(req SeatsRequest) []domain.SourceSpec {
	sources := req.Sources
	if len(sources) == 0 {
		sources = seatsaero.Sources
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = m.opts.PageSize
	}

	specs := make([]domain.SourceSpec, 0, len(sources))
	for _, src := range sources {
		specs = append(specs, domain.SourceSpec{
			Name: "seats_aero/" + src,
			Fetch: &seatsaero.Fetcher{
				Client: m.seats,
				Source: src,
				Filters: seatsaero.AvailabilityFilters{
					Cabin:     req.Cabin,
					StartDate: req.StartDate,
					EndDate:   req.EndDate,
				},
			},
			Table:    availabilityTable,
			PageSize: pageSize,
			MaxPages: req.MaxPages,
			Start:    domain.Cursor{Skip: req.Skip},
		})
	}
	return specs
}

// IPreferRequest selects the iPrefer pipelines to run
type IPreferRequest struct {
	HotelsOnly       bool
	AvailabilityOnly bool

	// MaxHotels caps directory resolution, 0 means all
	MaxHotels int

	// NIDs skips directory resolution for the availability pipeline
	NIDs []int64

	// Rate flavors; both default to true when neither is set
	IncludePoints bool
	IncludeCash   bool

	MaxPages int
}

// IPreferSources builds the hotel directory and rate calendar pipelines
func (m *Module) IPreferSources(req IPreferRequest) []domain.SourceSpec {
	if !req.IncludePoints && !req.IncludeCash {
		req.IncludePoints = true
		req.IncludeCash = true
	}

	var specs []domain.SourceSpec
	if !req.AvailabilityOnly {
		specs = append(specs, domain.SourceSpec{
			Name:     "iprefer/hotels",
			Fetch:    &iprefer.HotelsFetcher{Client: m.hotel, MaxHotels: req.MaxHotels},
			Table:    hotelsTable,
			PageSize: 10,
			MaxPages: req.MaxPages,
		})
	}
	if !req.HotelsOnly {
		specs = append(specs, domain.SourceSpec{
			Name: "iprefer/availability",
			Fetch: &iprefer.AvailabilityFetcher{
				Client:        m.hotel,
				NIDs:          req.NIDs,
				IncludePoints: req.IncludePoints,
				IncludeCash:   req.IncludeCash,
				MaxHotels:     req.MaxHotels,
			},
			Table:    hotelAvailabilityTable,
			PageSize: 5,
			MaxPages: req.MaxPages,
		})
	}
	return specs
}
