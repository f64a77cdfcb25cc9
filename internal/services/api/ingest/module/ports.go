package module

import (
	"context"

	"awardarchive/internal/services/api/ingest/domain"
	ingestsvc "awardarchive/internal/services/api/ingest/service"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

type adaptTriggerPort struct{ svc ingestsvc.Service }

// RunSeats pulls award availability for the requested mileage programs
func (a adaptTriggerPort) RunSeats(ctx context.Context, in domain.SeatsRunInput) ([]domain.RunResult, error) {
	return a.svc.RunSeats(ctx, in)
}

// RunIPrefer pulls the hotel directory and rate calendars
func (a adaptTriggerPort) RunIPrefer(ctx context.Context, in domain.IPreferRunInput) ([]domain.RunResult, error) {
	return a.svc.RunIPrefer(ctx, in)
}

// RecentRuns lists persisted run bookkeeping
func (a adaptTriggerPort) RecentRuns(ctx context.Context, limit int) ([]domain.RunInfo, error) {
	return a.svc.RecentRuns(ctx, limit)
}

// Table returns the current snapshot metadata of a table
func (a adaptTriggerPort) Table(ctx context.Context, name string) (domain.TableResponse, error) {
	return a.svc.Table(ctx, name)
}

// Preview returns up to limit rows of a table
func (a adaptTriggerPort) Preview(ctx context.Context, name string, limit int) ([]map[string]any, error) {
	return a.svc.Preview(ctx, name, limit)
}
