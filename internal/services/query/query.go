// Package query is the read side: table metadata from the commit log and
// row previews via duckdb's read_parquet over the table's data files
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2" // load duckdb driver

	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/platform/logger"
	"awardarchive/internal/services/ingest/domain"
)

// Service answers table info and preview queries
type Service struct {
	store domain.TableStore

	// dataRoot is the local object-store root; empty disables previews
	// (duckdb reads the parquet files directly from disk)
	dataRoot string

	log  logger.Logger
	once sync.Once
	db   *sql.DB
	dbEr error
}

// New constructs the query service
func New(store domain.TableStore, dataRoot string) *Service {
	if store == nil {
		panic("query.New requires a non nil TableStore")
	}
	return &Service{store: store, dataRoot: dataRoot, log: *logger.Named("query")}
}

// TableInfo returns the table's current commit metadata
func (s *Service) TableInfo(ctx context.Context, name string) (domain.TableInfo, error) {
	h, err := s.store.Open(ctx, name)
	if err != nil {
		return domain.TableInfo{}, err
	}
	return h.Info(ctx)
}

// Preview returns up to limit rows of the table
func (s *Service) Preview(ctx context.Context, name string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	src, err := s.parquetSource(ctx, name)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(
		"SELECT * FROM read_parquet(%s, union_by_name=true, hive_partitioning=true) LIMIT %d",
		src, limit,
	)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "preview %s", name)
	}
	defer rows.Close()
	return scanMaps(rows)
}

// RowCount counts the table's rows
func (s *Service) RowCount(ctx context.Context, name string) (int64, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	src, err := s.parquetSource(ctx, name)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("SELECT count(*) FROM read_parquet(%s, union_by_name=true, hive_partitioning=true)", src)
	var n int64
	if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeDB, "count %s", name)
	}
	return n, nil
}

// open lazily initializes the in-process duckdb connection
func (s *Service) open() (*sql.DB, error) {
	s.once.Do(func() {
		if s.dataRoot == "" {
			s.dbEr = perr.Unavailablef("previews require a local data root")
			return
		}
		s.db, s.dbEr = sql.Open("duckdb", "")
	})
	if s.dbEr != nil {
		return nil, s.dbEr
	}
	return s.db, nil
}

// parquetSource is the read_parquet argument for the table's current
// version: the commit's explicit file list, not a glob. Superseded data
// files linger under data/ until vacuum and a glob would read those too
func (s *Service) parquetSource(ctx context.Context, name string) (string, error) {
	if !validTableName(name) {
		return "", perr.InvalidArgf("invalid table name %q", name)
	}
	info, err := s.TableInfo(ctx, name)
	if err != nil {
		return "", err
	}
	if len(info.Files) == 0 {
		return "", perr.NotFoundf("table %s has no data files", name)
	}
	return fileList(s.dataRoot, info.Files), nil
}

// fileList renders object-store keys as a duckdb list literal of quoted
// local paths under root
func fileList(root string, keys []string) string {
	quoted := make([]string, 0, len(keys))
	for _, key := range keys {
		p := filepath.ToSlash(filepath.Join(root, filepath.FromSlash(key)))
		quoted = append(quoted, "'"+strings.ReplaceAll(p, "'", "''")+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func validTableName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// scanMaps turns a generic result set into one map per row
func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "preview columns")
	}
	var out []map[string]any
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "preview scan")
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := cells[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = cells[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
