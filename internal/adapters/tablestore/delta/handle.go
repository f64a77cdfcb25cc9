package delta

import (
	"context"
	"fmt"
	"strings"

	"awardarchive/internal/core/stamp"
	"awardarchive/internal/core/tabular"
	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/services/ingest/domain"
)

// handle is an open table pinned to one commit.
// Mutations claim the next version slot; losing that claim returns Conflict
// and the handle must be reopened
type handle struct {
	store  *Store
	name   string
	commit commit
}

// snapshot reads every data file of the pinned commit, in file order
func (h *handle) snapshot(ctx context.Context) (tabular.Batch, error) {
	var out tabular.Batch
	for _, f := range h.commit.Files {
		data, err := h.store.obj.Get(ctx, f.Path)
		if err != nil {
			return nil, err
		}
		rows, err := readParquet(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ConditionalUpsert implements domain.TableHandle.
// Matched rows keep their stored version, stamps included, unless the
// incoming content hash differs. A no-op batch commits nothing
func (h *handle) ConditionalUpsert(ctx context.Context, rows tabular.Batch, mergeKeys []string) (domain.UpsertOutcome, error) {
	current, err := h.snapshot(ctx)
	if err != nil {
		return domain.UpsertOutcome{}, err
	}

	idx := make(map[string]int, len(current))
	for i, r := range current {
		idx[mergeKeyOf(r, mergeKeys)] = i
	}

	next := make(tabular.Batch, len(current))
	copy(next, current)

	var out domain.UpsertOutcome
	for _, r := range rows {
		k := mergeKeyOf(r, mergeKeys)
		at, found := idx[k]
		if !found {
			idx[k] = len(next)
			next = append(next, r)
			out.Inserted++
			continue
		}
		if next[at][stamp.HashColumn] != r[stamp.HashColumn] {
			next[at] = r
			out.Updated++
		}
	}

	if out.Inserted == 0 && out.Updated == 0 {
		return out, nil
	}
	if err := h.commitRows(ctx, next, opMerge, h.commit.PartitionBy); err != nil {
		return domain.UpsertOutcome{}, err
	}
	return out, nil
}

// Write implements domain.TableHandle
func (h *handle) Write(ctx context.Context, rows tabular.Batch, mode domain.WriteMode, partitionBy []string) error {
	if len(partitionBy) == 0 {
		partitionBy = h.commit.PartitionBy
	}
	switch mode {
	case domain.WriteOverwrite:
		return h.commitRows(ctx, rows, opOverwrite, partitionBy)
	case domain.WriteAppend:
		files, err := h.store.writeBatch(ctx, h.name, rows, partitionBy)
		if err != nil {
			return err
		}
		c := commit{
			Version:     h.commit.Version + 1,
			Operation:   opAppend,
			PartitionBy: partitionBy,
			Columns:     mergeColumns(h.commit.Columns, rows.Columns()),
			Files:       append(append([]commitFile(nil), h.commit.Files...), files...),
			CreatedAt:   h.store.now().UTC(),
		}
		if err := h.store.putCommit(ctx, h.name, c); err != nil {
			h.store.removeFiles(ctx, files)
			return err
		}
		h.commit = c
		return nil
	default:
		return perr.InvalidArgf("unknown write mode %q", mode)
	}
}

// commitRows replaces the snapshot with rows as version+1
func (h *handle) commitRows(ctx context.Context, rows tabular.Batch, op string, partitionBy []string) error {
	files, err := h.store.writeBatch(ctx, h.name, rows, partitionBy)
	if err != nil {
		return err
	}
	c := commit{
		Version:     h.commit.Version + 1,
		Operation:   op,
		PartitionBy: partitionBy,
		Columns:     rows.Columns(),
		Files:       files,
		CreatedAt:   h.store.now().UTC(),
	}
	if err := h.store.putCommit(ctx, h.name, c); err != nil {
		h.store.removeFiles(ctx, files)
		return err
	}
	h.commit = c
	return nil
}

// Info implements domain.TableHandle
func (h *handle) Info(ctx context.Context) (domain.TableInfo, error) {
	files := make([]string, 0, len(h.commit.Files))
	for _, f := range h.commit.Files {
		files = append(files, f.Path)
	}
	return domain.TableInfo{
		Name:      h.name,
		Version:   h.commit.Version,
		RowCount:  h.commit.rowCount(),
		FileCount: len(h.commit.Files),
		Files:     files,
		Columns:   append([]string(nil), h.commit.Columns...),
		Partition: append([]string(nil), h.commit.PartitionBy...),
		UpdatedAt: h.commit.CreatedAt,
	}, nil
}

// Optimize implements domain.TableHandle: rewrite partitions that have
// fragmented into multiple files, then vacuum files no commit inside the
// retention window references
func (h *handle) Optimize(ctx context.Context) error {
	byPart := map[string][]commitFile{}
	var order []string
	for _, f := range h.commit.Files {
		p := partitionOf(h.name, f.Path)
		if _, ok := byPart[p]; !ok {
			order = append(order, p)
		}
		byPart[p] = append(byPart[p], f)
	}

	fragmented := false
	for _, fs := range byPart {
		if len(fs) > 1 {
			fragmented = true
			break
		}
	}

	if fragmented {
		var rows tabular.Batch
		for _, p := range order {
			for _, f := range byPart[p] {
				data, err := h.store.obj.Get(ctx, f.Path)
				if err != nil {
					return err
				}
				part, err := readParquet(data)
				if err != nil {
					return err
				}
				rows = append(rows, part...)
			}
		}
		if err := h.commitRows(ctx, rows, opOptimize, h.commit.PartitionBy); err != nil {
			return err
		}
		h.store.log.Info().
			Str("table", h.name).
			Int("files", len(h.commit.Files)).
			Msg("table compacted")
	}

	return h.vacuum(ctx)
}

// vacuum deletes data files referenced only by commits older than the
// retention window, and prunes those stale commits from the log. The
// latest commit always survives
func (h *handle) vacuum(ctx context.Context) error {
	logKeys, err := h.store.obj.List(ctx, logPrefix(h.name))
	if err != nil {
		return err
	}
	logKeys = sortedLogKeys(logKeys)
	if len(logKeys) == 0 {
		return nil
	}
	latest := logKeys[len(logKeys)-1]
	cutoff := h.store.now().UTC().Add(-h.store.retention)

	referenced := map[string]bool{}
	var stale []string
	for _, key := range logKeys {
		data, err := h.store.obj.Get(ctx, key)
		if err != nil {
			return err
		}
		c, err := decodeCommit(data)
		if err != nil {
			return err
		}
		live := key == latest || c.CreatedAt.After(cutoff)
		if live {
			for _, f := range c.Files {
				referenced[f.Path] = true
			}
		} else {
			stale = append(stale, key)
		}
	}

	dataKeys, err := h.store.obj.List(ctx, dataPrefix(h.name))
	if err != nil {
		return err
	}
	removed := 0
	for _, key := range dataKeys {
		if referenced[key] {
			continue
		}
		// files land before the commit that references them, so an
		// unreferenced file may belong to an in-flight write. Spare anything
		// younger than the retention window; unparsable names are kept too
		if ts, ok := dataFileCreatedAt(key); !ok || ts.After(cutoff) {
			continue
		}
		if err := h.store.obj.Delete(ctx, key); err != nil {
			return err
		}
		removed++
	}
	for _, key := range stale {
		if err := h.store.obj.Delete(ctx, key); err != nil {
			return err
		}
	}
	if removed > 0 || len(stale) > 0 {
		h.store.log.Info().
			Str("table", h.name).
			Int("data_files", removed).
			Int("commits", len(stale)).
			Msg("vacuumed")
	}
	return nil
}

// partitionOf extracts the partition directory from a data file path
func partitionOf(table, path string) string {
	rel := strings.TrimPrefix(path, dataPrefix(table))
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[:i+1]
	}
	return ""
}

// mergeKeyOf builds the row identity from the merge key cells
func mergeKeyOf(r tabular.Record, keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		v, ok := r[k]
		if !ok || tabular.IsNull(v) {
			b.WriteString("\x00")
		} else {
			if p, isPtr := v.(*string); isPtr {
				v = *p
			}
			fmt.Fprintf(&b, "%v", v)
		}
		b.WriteByte('\x1e')
	}
	return b.String()
}

// mergeColumns unions two sorted column lists
func mergeColumns(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
