// Package service implements the ingestion pipeline: paginate, stamp, merge
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"awardarchive/internal/core/stamp"
	"awardarchive/internal/platform/logger"
	"awardarchive/internal/services/ingest/domain"
)

// Config holds pipeline tuning
type Config struct {
	// MaxMergeRetries bounds attempts per batch when commits conflict; <=0 -> 5
	MaxMergeRetries int

	// MergeRetryBase is multiplied by the attempt number for the linear
	// backoff between conflicted merges; <=0 -> 2s
	MergeRetryBase time.Duration

	// PageSize is the default page size when a SourceSpec leaves it unset
	PageSize int
}

func (c Config) withDefaults() Config {
	if c.MaxMergeRetries <= 0 {
		c.MaxMergeRetries = 5
	}
	if c.MergeRetryBase <= 0 {
		c.MergeRetryBase = 2 * time.Second
	}
	return c
}

// Service runs source pipelines against a table store
type Service struct {
	Store domain.TableStore
	Runs  domain.RunsRepo // optional, nil disables run bookkeeping
	Cfg   Config

	// seams for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs the ingest service
func New(store domain.TableStore, runs domain.RunsRepo, cfg Config) *Service {
	if store == nil {
		panic("ingest.Service requires a non nil TableStore")
	}
	return &Service{
		Store: store,
		Runs:  runs,
		Cfg:   cfg.withDefaults(),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// RunAll runs each source pipeline serially.
// One source failing does not stop the remaining sources
func (s *Service) RunAll(ctx context.Context, srcs []domain.SourceSpec) []domain.RunSummary {
	out := make([]domain.RunSummary, 0, len(srcs))
	for _, src := range srcs {
		sum := s.RunSource(ctx, src)
		out = append(out, sum)
		if sum.Err != nil {
			logger.C(ctx).Error().Str("source", src.Name).Err(sum.Err).Msg("source run failed, continuing")
		}
		if ctx.Err() != nil {
			break
		}
	}
	return out
}

// RunSource drives one source through fetch, stamp, and merge until the
// feed is drained, a page cap is hit, or a fetch/merge fails. Partial
// progress stays merged and is reported in the summary either way
func (s *Service) RunSource(ctx context.Context, src domain.SourceSpec) domain.RunSummary {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID, src.Name)
	log := logger.C(ctx)

	sum := domain.RunSummary{
		Source:    src.Name,
		Table:     src.Table.Name,
		Cursor:    src.Start,
		StartedAt: s.now().UTC(),
	}

	pageSize := src.PageSize
	if pageSize <= 0 {
		pageSize = s.Cfg.PageSize
	}

	if s.Runs != nil {
		if err := s.Runs.StartRun(ctx, runID, src.Name, src.Table.Name, src.Start); err != nil {
			log.Warn().Err(err).Msg("run bookkeeping unavailable, continuing without it")
		}
	}

	cur := src.Start
	for {
		if err := ctx.Err(); err != nil {
			sum.Err = err
			break
		}

		page, err := src.Fetch.FetchPage(ctx, cur, pageSize)
		if err != nil {
			sum.Err = err
			break
		}
		if len(page.Records) == 0 {
			break // drained
		}

		// one clock reading stamps the whole page, so every row of a page
		// shares the same ingestion timestamp
		stamped := stamp.StampAll(page.Records, src.Table.HashExclude, s.now())
		stats, err := s.mergeBatch(ctx, src.Table, stamped)
		if err != nil {
			sum.Err = err
			break
		}

		sum.Pages++
		sum.Records += len(page.Records)
		sum.Inserted += stats.Inserted
		sum.Updated += stats.Updated
		sum.TableCreated = sum.TableCreated || stats.TableCreated

		cur = advance(cur, page, len(page.Records))
		sum.Cursor = cur

		if s.Runs != nil {
			if err := s.Runs.CheckpointPage(ctx, runID, cur, len(page.Records), stats.Inserted, stats.Updated); err != nil {
				log.Warn().Err(err).Msg("page checkpoint failed")
			}
		}

		log.Debug().
			Int("page", sum.Pages).
			Int("records", len(page.Records)).
			Int("inserted", stats.Inserted).
			Int("updated", stats.Updated).
			Msg("page merged")

		if !page.HasMore {
			break
		}
		if src.MaxPages > 0 && sum.Pages >= src.MaxPages {
			log.Info().Int("max_pages", src.MaxPages).Msg("page cap reached")
			break
		}
	}

	sum.FinishedAt = s.now().UTC()

	if s.Runs != nil {
		if err := s.Runs.FinishRun(ctx, runID, sum); err != nil {
			log.Warn().Err(err).Msg("run finish bookkeeping failed")
		}
	}

	evt := log.Info()
	if sum.Err != nil {
		evt = log.Error().Err(sum.Err)
	}
	evt.Str("table", src.Table.Name).
		Int("pages", sum.Pages).
		Int("records", sum.Records).
		Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Bool("table_created", sum.TableCreated).
		Msg("source run finished")

	return sum
}

// advance computes the next cursor: a continuation token when the source
// provides one, otherwise offset paging by consumed rows
func advance(cur domain.Cursor, page domain.Page, consumed int) domain.Cursor {
	if page.NextToken != "" {
		return domain.Cursor{Token: page.NextToken}
	}
	return domain.Cursor{Skip: cur.Skip + consumed}
}

// sleepCtx sleeps for d unless ctx ends first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
