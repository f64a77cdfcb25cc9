// Package domain holds the core types and ports for the ingestion pipeline
package domain

import (
	"time"

	"awardarchive/internal/core/tabular"
)

// Cursor marks a resumable position in a paginated feed.
// Token wins when the upstream hands back an opaque continuation token,
// otherwise Skip counts rows already consumed
type Cursor struct {
	Skip  int    `json:"skip"`
	Token string `json:"token,omitempty"`
}

// Page is one fetched page of upstream records, already normalized
type Page struct {
	Records tabular.Batch
	HasMore bool
	// NextToken is the upstream continuation token for the following page,
	// empty when the source paginates by offset
	NextToken string
}

// TableSpec describes the destination table for a source
type TableSpec struct {
	// Name is the table identifier within the store
	Name string

	// MergeKeys are the columns that identify a logical row
	MergeKeys []string

	// PartitionBy are the hive partition columns, outermost first
	PartitionBy []string

	// HashExclude lists columns that must not influence the content hash
	// (the stamp columns are always excluded)
	HashExclude []string
}

// SourceSpec binds a fetcher to a destination table with paging limits
type SourceSpec struct {
	Name  string
	Fetch PageFetcher
	Table TableSpec

	// PageSize is the requested rows per page; <=0 lets the fetcher decide
	PageSize int

	// MaxPages caps the pagination loop; 0 means no cap
	MaxPages int

	// Start is the resume position; zero value starts from the beginning
	Start Cursor
}

// UpsertOutcome reports what a single conditional upsert did
type UpsertOutcome struct {
	Inserted int
	Updated  int
}

// MergeStats reports the result of merging one batch
type MergeStats struct {
	Inserted     int
	Updated      int
	TableCreated bool
}

// RunSummary is the per-source result of a pipeline run.
// Err carries the failure while the counters retain partial progress
type RunSummary struct {
	Source       string
	Table        string
	Pages        int
	Records      int
	Inserted     int
	Updated      int
	TableCreated bool
	Cursor       Cursor
	StartedAt    time.Time
	FinishedAt   time.Time
	Err          error
}

// Failed reports whether the run ended in an error
func (s RunSummary) Failed() bool { return s.Err != nil }

// WriteMode selects how Write lands rows in the table
type WriteMode string

const (
	// WriteAppend adds rows to the current snapshot
	WriteAppend WriteMode = "append"

	// WriteOverwrite replaces the current snapshot
	WriteOverwrite WriteMode = "overwrite"
)

// TableInfo describes an open table snapshot.
// Files lists the data files of the pinned version only; superseded files
// linger in storage until vacuum and must not be read
type TableInfo struct {
	Name      string
	Version   int64
	RowCount  int64
	FileCount int
	Files     []string
	Columns   []string
	Partition []string
	UpdatedAt time.Time
}

// RunRecord is one persisted ingestion run (runs repo)
type RunRecord struct {
	ID         string
	Source     string
	TableName  string
	Status     string
	Pages      int
	Records    int
	Inserted   int
	Updated    int
	Cursor     Cursor
	ErrText    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Run statuses persisted by the runs repo
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)
