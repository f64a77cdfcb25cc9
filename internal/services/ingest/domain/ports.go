package domain

import (
	"context"

	"awardarchive/internal/core/tabular"
)

// RunnerPort is the public port exposed by the ingest module
type RunnerPort interface {
	RunSource(ctx context.Context, src SourceSpec) RunSummary
	RunAll(ctx context.Context, srcs []SourceSpec) []RunSummary
}

// PageFetcher pulls one page from an upstream source.
// Implementations own rate limiting and transport retries; an error returned
// here means the page is unrecoverable at this layer
type PageFetcher interface {
	FetchPage(ctx context.Context, cur Cursor, pageSize int) (Page, error)
}

// TableStore opens or creates versioned tables by name.
// Open returns a NotFound coded error when the table does not exist yet.
// Create returns a Conflict coded error when another writer won the
// bootstrap race
type TableStore interface {
	Open(ctx context.Context, name string) (TableHandle, error)
	Create(ctx context.Context, name string, rows tabular.Batch, partitionBy []string) (TableHandle, error)
}

// TableHandle is an open table at a specific version.
// ConditionalUpsert matches rows on mergeKeys, inserts unmatched rows,
// updates matched rows only when content_hash differs, and returns a
// Conflict coded error when the commit loses a version race. The handle is
// single-shot after a conflict: reopen before retrying
type TableHandle interface {
	ConditionalUpsert(ctx context.Context, rows tabular.Batch, mergeKeys []string) (UpsertOutcome, error)
	Write(ctx context.Context, rows tabular.Batch, mode WriteMode, partitionBy []string) error
	Info(ctx context.Context) (TableInfo, error)
	Optimize(ctx context.Context) error
}

// RunsRepo persists run bookkeeping and page checkpoints.
// The pipeline treats it as optional; a nil repo disables persistence
type RunsRepo interface {
	StartRun(ctx context.Context, runID, source, table string, start Cursor) error
	CheckpointPage(ctx context.Context, runID string, cur Cursor, pageRecords, inserted, updated int) error
	FinishRun(ctx context.Context, runID string, s RunSummary) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
