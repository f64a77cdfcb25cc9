package domain

import "context"

// TriggerPort is the service surface the http layer talks to
type TriggerPort interface {
	RunSeats(ctx context.Context, in SeatsRunInput) ([]RunResult, error)
	RunIPrefer(ctx context.Context, in IPreferRunInput) ([]RunResult, error)
	RecentRuns(ctx context.Context, limit int) ([]RunInfo, error)
	Table(ctx context.Context, name string) (TableResponse, error)
	Preview(ctx context.Context, name string, limit int) ([]map[string]any, error)
}
