// Package memstore is an in-memory TableStore used by tests and local runs.
// It keeps the same versioning and conflict semantics as the durable store,
// plus knobs to inject version races deterministically
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"awardarchive/internal/core/stamp"
	"awardarchive/internal/core/tabular"
	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/services/ingest/domain"
)

// Store implements domain.TableStore in memory
type Store struct {
	mu     sync.Mutex
	tables map[string]*table

	// injected races, consumed one per call
	upsertConflicts int
	createConflicts int

	// call counters for assertions
	Opens   int
	Creates int
	Upserts int
}

type table struct {
	version   int64
	rows      tabular.Batch
	partition []string
	updatedAt time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{tables: map[string]*table{}}
}

// ConflictNextUpserts makes the next n conditional upserts lose a version
// race. The concurrent writer is simulated, so a later retry succeeds
func (s *Store) ConflictNextUpserts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertConflicts = n
}

// ConflictNextCreates makes the next n creates lose the bootstrap race.
// The racing writer's empty table is materialized so a reopen succeeds
func (s *Store) ConflictNextCreates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createConflicts = n
}

// Rows returns a copy of the table's rows in insertion order
func (s *Store) Rows(name string) tabular.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make(tabular.Batch, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

// Version returns the table's current version, 0 when absent
func (s *Store) Version(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t.version
	}
	return 0
}

// Open implements domain.TableStore
func (s *Store) Open(ctx context.Context, name string) (domain.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Opens++
	t, ok := s.tables[name]
	if !ok {
		return nil, perr.NotFoundf("table %s does not exist", name)
	}
	return &handle{store: s, name: name, version: t.version}, nil
}

// Create implements domain.TableStore
func (s *Store) Create(ctx context.Context, name string, rows tabular.Batch, partitionBy []string) (domain.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates++

	if s.createConflicts > 0 {
		s.createConflicts--
		if _, ok := s.tables[name]; !ok {
			s.tables[name] = &table{version: 1, partition: partitionBy, updatedAt: time.Now()}
		}
		return nil, perr.Conflictf("table %s created concurrently", name)
	}
	if _, ok := s.tables[name]; ok {
		return nil, perr.Conflictf("table %s already exists", name)
	}

	t := &table{version: 1, partition: partitionBy, updatedAt: time.Now()}
	t.rows = cloneBatch(rows)
	s.tables[name] = t
	return &handle{store: s, name: name, version: t.version}, nil
}

type handle struct {
	store   *Store
	name    string
	version int64
}

// ConditionalUpsert implements domain.TableHandle
func (h *handle) ConditionalUpsert(ctx context.Context, rows tabular.Batch, mergeKeys []string) (domain.UpsertOutcome, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.Upserts++

	t, ok := h.store.tables[h.name]
	if !ok {
		return domain.UpsertOutcome{}, perr.NotFoundf("table %s does not exist", h.name)
	}
	if h.store.upsertConflicts > 0 {
		h.store.upsertConflicts--
		t.version++ // the simulated concurrent writer committed
		return domain.UpsertOutcome{}, perr.Conflictf("version %d superseded by concurrent commit", h.version)
	}
	if t.version != h.version {
		return domain.UpsertOutcome{}, perr.Conflictf("version %d superseded by %d", h.version, t.version)
	}

	idx := make(map[string]int, len(t.rows))
	for i, r := range t.rows {
		idx[rowKey(r, mergeKeys)] = i
	}

	var out domain.UpsertOutcome
	for _, r := range rows {
		k := rowKey(r, mergeKeys)
		at, found := idx[k]
		if !found {
			idx[k] = len(t.rows)
			t.rows = append(t.rows, r.Clone())
			out.Inserted++
			continue
		}
		if t.rows[at][stamp.HashColumn] != r[stamp.HashColumn] {
			t.rows[at] = r.Clone()
			out.Updated++
		}
	}

	t.version++
	t.updatedAt = time.Now()
	h.version = t.version
	return out, nil
}

// Write implements domain.TableHandle
func (h *handle) Write(ctx context.Context, rows tabular.Batch, mode domain.WriteMode, partitionBy []string) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	t, ok := h.store.tables[h.name]
	if !ok {
		return perr.NotFoundf("table %s does not exist", h.name)
	}
	if t.version != h.version {
		return perr.Conflictf("version %d superseded by %d", h.version, t.version)
	}

	switch mode {
	case domain.WriteOverwrite:
		t.rows = cloneBatch(rows)
	case domain.WriteAppend:
		t.rows = append(t.rows, cloneBatch(rows)...)
	default:
		return perr.InvalidArgf("unknown write mode %q", mode)
	}
	if len(partitionBy) > 0 {
		t.partition = partitionBy
	}
	t.version++
	t.updatedAt = time.Now()
	h.version = t.version
	return nil
}

// Info implements domain.TableHandle
func (h *handle) Info(ctx context.Context) (domain.TableInfo, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	t, ok := h.store.tables[h.name]
	if !ok {
		return domain.TableInfo{}, perr.NotFoundf("table %s does not exist", h.name)
	}
	return domain.TableInfo{
		Name:      h.name,
		Version:   t.version,
		RowCount:  int64(len(t.rows)),
		FileCount: 1,
		Columns:   t.rows.Columns(),
		Partition: append([]string(nil), t.partition...),
		UpdatedAt: t.updatedAt,
	}, nil
}

// Optimize is a no-op for the in-memory store
func (h *handle) Optimize(ctx context.Context) error { return nil }

func cloneBatch(rows tabular.Batch) tabular.Batch {
	out := make(tabular.Batch, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func rowKey(r tabular.Record, keys []string) string {
	if len(keys) == 0 {
		keys = r.Columns()
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var b strings.Builder
	for _, k := range sorted {
		v, ok := r[k]
		if !ok || tabular.IsNull(v) {
			b.WriteString("\x00")
		} else {
			fmt.Fprintf(&b, "%v", deref(v))
		}
		b.WriteByte('\x1e')
	}
	return b.String()
}

func deref(v any) any {
	if p, ok := v.(*string); ok && p != nil {
		return *p
	}
	return v
}
