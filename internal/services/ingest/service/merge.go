package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/platform/logger"
	"awardarchive/internal/services/ingest/domain"

	"awardarchive/internal/core/tabular"
)

// mergeBatch lands one stamped batch into the destination table.
// The batch is deduped on the merge keys, all-null columns are widened to a
// concrete nullable type, then the batch is conditionally upserted. Commit
// conflicts reopen the table and retry with a linear backoff; any other
// error surfaces immediately
func (s *Service) mergeBatch(ctx context.Context, table domain.TableSpec, rows tabular.Batch) (domain.MergeStats, error) {
	log := logger.C(ctx)

	rows = dedupeByKey(rows, table.MergeKeys)
	if widened := rows.WidenAllNull(); len(widened) > 0 {
		log.Debug().Strs("columns", widened).Msg("widened all-null columns")
	}

	var stats domain.MergeStats
	for attempt := 0; ; attempt++ {
		h, err := s.Store.Open(ctx, table.Name)
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			h, err = s.Store.Create(ctx, table.Name, rows, table.PartitionBy)
			if err == nil {
				return domain.MergeStats{Inserted: len(rows), TableCreated: true}, nil
			}
			if !perr.IsConflict(err) {
				return stats, perr.Wrapf(err, perr.CodeOf(err), "create table %s", table.Name)
			}
			// another writer bootstrapped the table first, merge into theirs
		} else if err != nil {
			return stats, perr.Wrapf(err, perr.CodeOf(err), "open table %s", table.Name)
		} else {
			out, err := h.ConditionalUpsert(ctx, rows, table.MergeKeys)
			if err == nil {
				stats.Inserted = out.Inserted
				stats.Updated = out.Updated
				return stats, nil
			}
			if !perr.IsConflict(err) {
				return stats, perr.Wrapf(err, perr.CodeOf(err), "merge into %s", table.Name)
			}
		}

		if attempt+1 >= s.Cfg.MaxMergeRetries {
			return stats, perr.Conflictf("merge into %s: gave up after %d conflicted attempts", table.Name, attempt+1)
		}

		delay := time.Duration(attempt+1) * s.Cfg.MergeRetryBase
		log.Warn().
			Str("table", table.Name).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("merge conflicted, retrying")
		if err := s.sleep(ctx, delay); err != nil {
			return stats, err
		}
	}
}

// dedupeByKey keeps one row per merge key, the last occurrence winning, while
// preserving the order keys first appeared in. Rows missing a key column
// dedupe against the null sentinel like everything else
func dedupeByKey(rows tabular.Batch, keys []string) tabular.Batch {
	if len(keys) == 0 || len(rows) < 2 {
		return rows
	}

	idx := make(map[string]int, len(rows))
	out := make(tabular.Batch, 0, len(rows))
	for _, r := range rows {
		k := keyOf(r, keys)
		if at, ok := idx[k]; ok {
			out[at] = r
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}

// keyOf builds the dedupe key from the merge key cells
func keyOf(r tabular.Record, keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		v, ok := r[k]
		if !ok || tabular.IsNull(v) {
			b.WriteString("\x00")
		} else {
			b.WriteString(cellKey(v))
		}
		b.WriteByte('\x1e')
	}
	return b.String()
}

func cellKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *string:
		if x == nil {
			return "\x00"
		}
		return *x
	default:
		return fmt.Sprintf("%v", x)
	}
}
