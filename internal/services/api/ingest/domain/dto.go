// Package domain holds DTOs for ingest http and service contracts
package domain

// SeatsRunInput triggers an award availability pull
type SeatsRunInput struct {
	// Sources are mileage program codes; empty pulls every known program
	Sources []string `json:"sources,omitempty" validate:"omitempty,dive,min=1,max=40" example:"aeroplan"`

	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02" example:"2026-06-01"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02" example:"2026-06-30"`
	Cabin     string `json:"cabin,omitempty" validate:"omitempty,oneof=economy premium business first" example:"business"`

	MaxPages int `json:"max_pages,omitempty" validate:"omitempty,min=1,max=10000" example:"10"`
	PageSize int `json:"page_size,omitempty" validate:"omitempty,min=1,max=10000" example:"5000"`

	// Skip resumes offset pagination mid run
	Skip int `json:"skip,omitempty" validate:"omitempty,min=0" example:"0"`
}

// IPreferRunInput triggers the hotel directory and rate calendar pulls
type IPreferRunInput struct {
	HotelsOnly       bool `json:"hotels_only,omitempty" example:"false"`
	AvailabilityOnly bool `json:"availability_only,omitempty" example:"false"`

	MaxHotels int     `json:"max_hotels,omitempty" validate:"omitempty,min=1" example:"50"`
	NIDs      []int64 `json:"nids,omitempty" validate:"omitempty,dive,min=1" example:"101"`

	IncludePoints bool `json:"include_points,omitempty" example:"true"`
	IncludeCash   bool `json:"include_cash,omitempty" example:"true"`

	MaxPages int `json:"max_pages,omitempty" validate:"omitempty,min=1,max=10000" example:"10"`
}

// RunResult is the per-source outcome of a triggered run
type RunResult struct {
	Source       string `json:"source" example:"seats_aero/aeroplan"`
	Table        string `json:"table" example:"award_availability"`
	Pages        int    `json:"pages" example:"3"`
	Records      int    `json:"records" example:"15000"`
	Inserted     int    `json:"inserted" example:"12000"`
	Updated      int    `json:"updated" example:"300"`
	TableCreated bool   `json:"table_created" example:"false"`
	StartedAt    string `json:"started_at" example:"2026-06-01T12:00:00Z"`
	FinishedAt   string `json:"finished_at" example:"2026-06-01T12:04:30Z"`
	Error        string `json:"error,omitempty"`
}

// RunInfo is one persisted run from the bookkeeping table
type RunInfo struct {
	ID         string `json:"id"`
	Source     string `json:"source" example:"seats_aero/aeroplan"`
	Table      string `json:"table" example:"award_availability"`
	Status     string `json:"status" example:"done"`
	Pages      int    `json:"pages" example:"3"`
	Records    int    `json:"records" example:"15000"`
	Inserted   int    `json:"inserted" example:"12000"`
	Updated    int    `json:"updated" example:"300"`
	Skip       int    `json:"skip,omitempty" example:"15000"`
	Token      string `json:"token,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at" example:"2026-06-01T12:00:00Z"`
	FinishedAt string `json:"finished_at,omitempty" example:"2026-06-01T12:04:30Z"`
}

// TableResponse describes the current snapshot of a table
type TableResponse struct {
	Name      string   `json:"name" example:"award_availability"`
	Version   int64    `json:"version" example:"12"`
	RowCount  int64    `json:"row_count" example:"250000"`
	FileCount int      `json:"file_count" example:"48"`
	Columns   []string `json:"columns"`
	Partition []string `json:"partition" example:"Source"`
	UpdatedAt string   `json:"updated_at" example:"2026-06-01T12:04:30Z"`
}
