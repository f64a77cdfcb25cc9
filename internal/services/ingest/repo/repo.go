// Package repo provides postgres bookkeeping for ingestion runs
package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"awardarchive/internal/modkit/repokit"
	perr "awardarchive/internal/platform/errors"
	"awardarchive/internal/services/ingest/domain"
)

type (
	// PG is a Postgres binder for domain.RunsRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.RunsRepo
func NewPG() repokit.Binder[domain.RunsRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.RunsRepo { return &queries{q: q} }

// Schema is the runs table DDL, applied by EnsureSchema
const Schema = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id          text PRIMARY KEY,
	source      text NOT NULL,
	table_name  text NOT NULL,
	status      text NOT NULL,
	pages       int NOT NULL DEFAULT 0,
	records     int NOT NULL DEFAULT 0,
	inserted    int NOT NULL DEFAULT 0,
	updated     int NOT NULL DEFAULT 0,
	cursor      jsonb NOT NULL DEFAULT '{}'::jsonb,
	error       text,
	started_at  timestamptz NOT NULL,
	finished_at timestamptz
);
CREATE INDEX IF NOT EXISTS ingest_runs_started_idx ON ingest_runs (started_at DESC);
`

// EnsureSchema creates the runs table when missing
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	if _, err := q.Exec(ctx, Schema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "ensure ingest_runs schema")
	}
	return nil
}

// StartRun records a new running ingestion
func (r *queries) StartRun(ctx context.Context, runID, source, table string, start domain.Cursor) error {
	cur, err := json.Marshal(start)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode cursor")
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO ingest_runs (id, source, table_name, status, cursor, started_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, runID, source, table, domain.RunStatusRunning, cur)
	return err
}

// CheckpointPage advances the run's counters and resume cursor after one
// merged page
func (r *queries) CheckpointPage(ctx context.Context, runID string, cur domain.Cursor, pageRecords, inserted, updated int) error {
	cj, err := json.Marshal(cur)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode cursor")
	}
	_, err = r.q.Exec(ctx, `
		UPDATE ingest_runs SET
			pages    = pages + 1,
			records  = records + $2,
			inserted = inserted + $3,
			updated  = updated + $4,
			cursor   = $5
		WHERE id = $1
	`, runID, pageRecords, inserted, updated, cj)
	return err
}

// FinishRun closes out the run with its final status and totals
func (r *queries) FinishRun(ctx context.Context, runID string, s domain.RunSummary) error {
	status := domain.RunStatusDone
	errText := ""
	if s.Err != nil {
		status = domain.RunStatusFailed
		errText = s.Err.Error()
	}
	cj, err := json.Marshal(s.Cursor)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode cursor")
	}
	_, err = r.q.Exec(ctx, `
		UPDATE ingest_runs SET
			status      = $2,
			pages       = $3,
			records     = $4,
			inserted    = $5,
			updated     = $6,
			cursor      = $7,
			error       = NULLIF($8, ''),
			finished_at = now()
		WHERE id = $1
	`, runID, status, s.Pages, s.Records, s.Inserted, s.Updated, cj, errText)
	return err
}

// RecentRuns lists the newest runs first
func (r *queries) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, source, table_name, status, pages, records, inserted, updated,
		       cursor, COALESCE(error, ''), started_at, finished_at
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			rec      domain.RunRecord
			cur      []byte
			finished sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID, &rec.Source, &rec.TableName, &rec.Status,
			&rec.Pages, &rec.Records, &rec.Inserted, &rec.Updated,
			&cur, &rec.ErrText, &rec.StartedAt, &finished,
		); err != nil {
			return nil, err
		}
		if len(cur) > 0 {
			if err := json.Unmarshal(cur, &rec.Cursor); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode cursor")
			}
		}
		if finished.Valid {
			t := finished.Time
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
