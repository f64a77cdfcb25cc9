// Package module provides the ingest module implementation
package module

import (
	"fmt"

	"awardarchive/internal/modkit"
	"awardarchive/internal/modkit/httpkit"

	"awardarchive/internal/adapters/api/iprefer"
	"awardarchive/internal/adapters/api/seatsaero"
	"awardarchive/internal/adapters/tablestore/delta"
	"awardarchive/internal/services/ingest/domain"
	"awardarchive/internal/services/ingest/repo"
	"awardarchive/internal/services/ingest/service"
)

// Ports defines the ingest module ports
type Ports struct {
	Runner domain.RunnerPort
	Store  domain.TableStore

	// Runs is nil when no database is configured
	Runs domain.RunsRepo
}

// Module implements the ingest module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports

	seats *seatsaero.Client
	hotel *iprefer.Client
}

// New constructs the ingest module
// It wires the table store backend, the paced API clients and the service
// using config from deps.Cfg. It does not mount any routes.
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	obj := newObjectStore(opts)
	store := delta.New(obj, delta.WithRetention(opts.Retention))

	var runs domain.RunsRepo
	if deps.PG != nil {
		runs = repo.NewPG().Bind(deps.PG)
	}

	svc := service.New(store, runs, service.Config{
		MaxMergeRetries: opts.MaxMergeRetries,
		MergeRetryBase:  opts.MergeRetryBase,
		PageSize:        opts.PageSize,
	})

	m := &Module{
		deps: deps,
		opts: opts,
		seats: seatsaero.NewClient(seatsaero.Options{
			BaseURL:      opts.SeatsBaseURL,
			APIKey:       opts.SeatsAPIKey,
			Timeout:      opts.HTTPTimeout,
			MaxRetries:   opts.MaxRetries,
			RetryBase:    opts.RetryBase,
			RateInterval: opts.SeatsRateInterval,
		}),
		hotel: iprefer.NewClient(iprefer.Options{
			SiteURL:      opts.IPreferSiteURL,
			CalendarURL:  opts.IPreferCalendarURL,
			Timeout:      opts.HTTPTimeout,
			MaxRetries:   opts.MaxRetries,
			RetryBase:    opts.RetryBase,
			RateInterval: opts.IPreferRateInterval,
		}),
	}
	m.ports = Ports{Runner: svc, Store: store, Runs: runs}
	return m
}

// newObjectStore builds the configured commit log backend
func newObjectStore(opts Options) delta.ObjectStore {
	switch opts.StoreBackend {
	case "s3":
		obj, err := delta.NewS3(opts.S3)
		if err != nil {
			panic(fmt.Sprintf("ingest: s3 object store: %v", err))
		}
		return obj
	default:
		obj, err := delta.NewFS(opts.DataDir)
		if err != nil {
			panic(fmt.Sprintf("ingest: fs object store: %v", err))
		}
		return obj
	}
}

// Name returns the module name
func (m *Module) Name() string { return "ingest" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Prefix returns the module prefix (none)
func (m *Module) Prefix() string { return "" }

// MountRoutes is a no-op as ingest has no routes
func (m *Module) MountRoutes(_ httpkit.Router) {}

// DataDir reports the local parquet root when the fs backend is active,
// empty otherwise; previews need direct file access
func (m *Module) DataDir() string {
	if m.opts.StoreBackend == "s3" {
		return ""
	}
	return m.opts.DataDir
}
