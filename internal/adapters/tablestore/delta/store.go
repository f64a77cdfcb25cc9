package delta

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"awardarchive/internal/core/tabular"
	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/platform/logger"
	"awardarchive/internal/services/ingest/domain"
)

// Store implements domain.TableStore over an ObjectStore
type Store struct {
	obj ObjectStore
	log zerolog.Logger
	now func() time.Time

	// retention guards vacuum: data files referenced only by commits older
	// than this stay deletable, newer ones survive for in-flight readers
	retention time.Duration
}

// Option customizes a Store
type Option func(*Store)

// WithLogger sets the adapter logger
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// WithRetention sets the vacuum retention window
func WithRetention(d time.Duration) Option { return func(s *Store) { s.retention = d } }

// New builds a table store over the given object store backend
func New(obj ObjectStore, opts ...Option) *Store {
	if obj == nil {
		panic("delta.New requires a non nil ObjectStore")
	}
	s := &Store{
		obj:       obj,
		log:       *logger.Named("delta"),
		now:       time.Now,
		retention: 7 * 24 * time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open implements domain.TableStore
func (s *Store) Open(ctx context.Context, name string) (domain.TableHandle, error) {
	c, err := s.latestCommit(ctx, name)
	if err != nil {
		return nil, err
	}
	return &handle{store: s, name: name, commit: c}, nil
}

// Create implements domain.TableStore: write the initial file set, then
// claim version 1 of the log. Losing the claim surfaces as Conflict and the
// orphaned files are removed
func (s *Store) Create(ctx context.Context, name string, rows tabular.Batch, partitionBy []string) (domain.TableHandle, error) {
	files, err := s.writeBatch(ctx, name, rows, partitionBy)
	if err != nil {
		return nil, err
	}

	c := commit{
		Version:     1,
		Operation:   opCreate,
		PartitionBy: partitionBy,
		Columns:     rows.Columns(),
		Files:       files,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.putCommit(ctx, name, c); err != nil {
		s.removeFiles(ctx, files)
		if perr.IsConflict(err) {
			return nil, perr.Conflictf("table %s created concurrently", name)
		}
		return nil, err
	}

	s.log.Info().Str("table", name).Int("rows", len(rows)).Msg("table created")
	return &handle{store: s, name: name, commit: c}, nil
}

// latestCommit loads the newest log entry, NotFound when the log is empty
func (s *Store) latestCommit(ctx context.Context, name string) (commit, error) {
	keys, err := s.obj.List(ctx, logPrefix(name))
	if err != nil {
		return commit{}, err
	}
	keys = sortedLogKeys(keys)
	if len(keys) == 0 {
		return commit{}, perr.NotFoundf("table %s does not exist", name)
	}
	data, err := s.obj.Get(ctx, keys[len(keys)-1])
	if err != nil {
		return commit{}, err
	}
	return decodeCommit(data)
}

// putCommit claims the commit's version slot; Conflict means another writer
// committed the same version first
func (s *Store) putCommit(ctx context.Context, name string, c commit) error {
	data, err := encodeCommit(c)
	if err != nil {
		return err
	}
	return s.obj.PutIfAbsent(ctx, commitKey(name, c.Version), data)
}

// writeBatch lands the rows as one parquet file per hive partition and
// returns the file listing for the commit
func (s *Store) writeBatch(ctx context.Context, name string, rows tabular.Batch, partitionBy []string) ([]commitFile, error) {
	schema, err := schemaFor(name, rows)
	if err != nil {
		return nil, err
	}

	groups, order := partitionRows(rows, partitionBy)
	files := make([]commitFile, 0, len(order))
	for _, part := range order {
		group := groups[part]
		data, err := writeParquet(group, schema)
		if err != nil {
			s.removeFiles(ctx, files)
			return nil, err
		}
		key := dataPrefix(name) + part + dataFileName(s.now())
		if err := s.obj.Put(ctx, key, data); err != nil {
			s.removeFiles(ctx, files)
			return nil, err
		}
		files = append(files, commitFile{Path: key, Rows: int64(len(group))})
	}
	return files, nil
}

// dataFileName embeds the creation time in the file name. Object-store
// mtimes are unreliable, so vacuum reads this timestamp to spare files a
// concurrent writer uploaded but has not committed yet
func dataFileName(t time.Time) string {
	return fmt.Sprintf("%d-%s.parquet", t.UTC().UnixNano(), uuid.NewString())
}

// dataFileCreatedAt parses the creation time back out of a data file key.
// Keys without the timestamp prefix report ok=false
func dataFileCreatedAt(key string) (time.Time, bool) {
	base := key
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	i := strings.IndexByte(base, '-')
	if i <= 0 {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(base[:i], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// removeFiles best-effort deletes data files from an abandoned commit
func (s *Store) removeFiles(ctx context.Context, files []commitFile) {
	for _, f := range files {
		if err := s.obj.Delete(ctx, f.Path); err != nil {
			s.log.Warn().Str("path", f.Path).Err(err).Msg("orphaned data file not removed")
		}
	}
}

// partitionRows groups the batch by its hive partition path, preserving the
// order partitions first appear in. No partition columns means one group
// with an empty path
func partitionRows(rows tabular.Batch, partitionBy []string) (map[string]tabular.Batch, []string) {
	if len(partitionBy) == 0 {
		return map[string]tabular.Batch{"": rows}, []string{""}
	}
	groups := map[string]tabular.Batch{}
	var order []string
	for _, r := range rows {
		p := partitionPath(r, partitionBy)
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], r)
	}
	return groups, order
}

// partitionPath renders the hive-style col=value/ segments for one row
func partitionPath(r tabular.Record, partitionBy []string) string {
	var b strings.Builder
	for _, col := range partitionBy {
		b.WriteString(col)
		b.WriteByte('=')
		b.WriteString(partitionValue(r[col]))
		b.WriteByte('/')
	}
	return b.String()
}

func partitionValue(v any) string {
	if tabular.IsNull(v) {
		return "__null__"
	}
	if p, ok := v.(*string); ok {
		v = *p
	}
	s := fmt.Sprintf("%v", v)
	return strings.NewReplacer("/", "_", "=", "_", " ", "_").Replace(s)
}
