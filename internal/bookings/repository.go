package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRuns is returned by LatestRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("bookings: no sync runs recorded")

type runLogDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists the sync-run log.
type Repository struct {
	db runLogDB
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db runLogDB) *Repository {
	return &Repository{db: db}
}

const insertRunSQL = `INSERT INTO sync_runs
(id, status, time_min, time_max, started_at, finished_at, appointments_parsed, available_slots_found, patients_updated, errors)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const latestRunSQL = `SELECT id, status, time_min, time_max, started_at, finished_at,
appointments_parsed, available_slots_found, patients_updated, errors
FROM sync_runs ORDER BY started_at DESC LIMIT 1`

// RecordRun inserts a finished run.
func (r *Repository) RecordRun(ctx context.Context, rep SyncReport) error {
	errs := rep.Errors
	if errs == nil {
		errs = []string{}
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("bookings: marshal run errors: %w", err)
	}
	_, err = r.db.Exec(ctx, insertRunSQL,
		rep.RunID.String(), rep.Status, rep.TimeMin, rep.TimeMax, rep.StartedAt, rep.FinishedAt,
		rep.AppointmentsParsed, rep.AvailableSlotsFound, rep.PatientsUpdated, payload,
	)
	if err != nil {
		return fmt.Errorf("bookings: insert sync run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run.
func (r *Repository) LatestRun(ctx context.Context) (*SyncReport, error) {
	var (
		rep     SyncReport
		id      string
		payload []byte
	)
	err := r.db.QueryRow(ctx, latestRunSQL).Scan(
		&id, &rep.Status, &rep.TimeMin, &rep.TimeMax, &rep.StartedAt, &rep.FinishedAt,
		&rep.AppointmentsParsed, &rep.AvailableSlotsFound, &rep.PatientsUpdated, &payload,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load latest run: %w", err)
	}
	if rep.RunID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bookings: parse run id: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rep.Errors); err != nil {
			return nil, fmt.Errorf("bookings: decode run errors: %w", err)
		}
	}
	rep.TimeMin, rep.TimeMax = rep.TimeMin.UTC(), rep.TimeMax.UTC()
	return &rep, nil
}
