// Package service contains ingest trigger workflows
package service

import (
	"context"
	"time"

	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/services/api/ingest/domain"
	ingdomain "awardarchive/internal/services/ingest/domain"
	ingmod "awardarchive/internal/services/ingest/module"
	"awardarchive/internal/services/query"
)

// Service defines the ingest trigger contract
type Service interface {
	domain.TriggerPort
}

// SourceBuilder turns trigger requests into pipeline sources
// the ingest module satisfies it
type SourceBuilder interface {
	SeatsSources(req ingmod.SeatsRequest) []ingdomain.SourceSpec
	IPreferSources(req ingmod.IPreferRequest) []ingdomain.SourceSpec
}

// Svc implements the ingest trigger service
type Svc struct {
	sources SourceBuilder
	runner  ingdomain.RunnerPort
	runs    ingdomain.RunsRepo // nil when no database is configured
	query   *query.Service
}

// New constructs the ingest trigger service
func New(sources SourceBuilder, runner ingdomain.RunnerPort, runs ingdomain.RunsRepo, q *query.Service) *Svc {
	if sources == nil || runner == nil {
		panic("ingest trigger service requires sources and a runner")
	}
	if q == nil {
		panic("ingest trigger service requires a query service")
	}
	return &Svc{sources: sources, runner: runner, runs: runs, query: q}
}

// RunSeats pulls award availability for the requested mileage programs
func (s *Svc) RunSeats(ctx context.Context, in domain.SeatsRunInput) ([]domain.RunResult, error) {
	specs := s.sources.SeatsSources(ingmod.SeatsRequest{
		Sources:   in.Sources,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Cabin:     in.Cabin,
		MaxPages:  in.MaxPages,
		PageSize:  in.PageSize,
		Skip:      in.Skip,
	})
	return runResults(s.runner.RunAll(ctx, specs)), nil
}

// RunIPrefer pulls the hotel directory and rate calendars
func (s *Svc) RunIPrefer(ctx context.Context, in domain.IPreferRunInput) ([]domain.RunResult, error) {
	if in.HotelsOnly && in.AvailabilityOnly {
		return nil, perr.InvalidArgf("hotels_only and availability_only are mutually exclusive")
	}
	specs := s.sources.IPreferSources(ingmod.IPreferRequest{
		HotelsOnly:       in.HotelsOnly,
		AvailabilityOnly: in.AvailabilityOnly,
		MaxHotels:        in.MaxHotels,
		NIDs:             in.NIDs,
		IncludePoints:    in.IncludePoints,
		IncludeCash:      in.IncludeCash,
		MaxPages:         in.MaxPages,
	})
	return runResults(s.runner.RunAll(ctx, specs)), nil
}

// RecentRuns lists persisted run bookkeeping, newest first
func (s *Svc) RecentRuns(ctx context.Context, limit int) ([]domain.RunInfo, error) {
	if s.runs == nil {
		return nil, perr.Unavailablef("run bookkeeping requires a database")
	}
	recs, err := s.runs.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RunInfo, 0, len(recs))
	for _, r := range recs {
		info := domain.RunInfo{
			ID:        r.ID,
			Source:    r.Source,
			Table:     r.TableName,
			Status:    r.Status,
			Pages:     r.Pages,
			Records:   r.Records,
			Inserted:  r.Inserted,
			Updated:   r.Updated,
			Skip:      r.Cursor.Skip,
			Token:     r.Cursor.Token,
			Error:     r.ErrText,
			StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
		}
		if r.FinishedAt != nil {
			info.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, info)
	}
	return out, nil
}

// Table returns the current snapshot metadata of a table
func (s *Svc) Table(ctx context.Context, name string) (domain.TableResponse, error) {
	info, err := s.query.TableInfo(ctx, name)
	if err != nil {
		return domain.TableResponse{}, err
	}
	return domain.TableResponse{
		Name:      info.Name,
		Version:   info.Version,
		RowCount:  info.RowCount,
		FileCount: info.FileCount,
		Columns:   info.Columns,
		Partition: info.Partition,
		UpdatedAt: info.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// Preview returns up to limit rows of a table
func (s *Svc) Preview(ctx context.Context, name string, limit int) ([]map[string]any, error) {
	return s.query.Preview(ctx, name, limit)
}

// runResults flattens runner summaries into transport DTOs
func runResults(sums []ingdomain.RunSummary) []domain.RunResult {
	out := make([]domain.RunResult, 0, len(sums))
	for _, sum := range sums {
		res := domain.RunResult{
			Source:       sum.Source,
			Table:        sum.Table,
			Pages:        sum.Pages,
			Records:      sum.Records,
			Inserted:     sum.Inserted,
			Updated:      sum.Updated,
			TableCreated: sum.TableCreated,
			StartedAt:    sum.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt:   sum.FinishedAt.UTC().Format(time.RFC3339),
		}
		if sum.Err != nil {
			res.Error = sum.Err.Error()
		}
		out = append(out, res)
	}
	return out
}
