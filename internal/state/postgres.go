package state

import (
	"context"
	"errors"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/example/visa-rescheduler/internal/db"
	"github.com/google/uuid"
)

// PostgresStore persists results and snapshots in Postgres. Selected when
// DATABASE_URL is configured; otherwise the bot falls back to FileStore.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(d *db.DB) *PostgresStore { return &PostgresStore{db: d} }

func (p *PostgresStore) SaveResult(ctx context.Context, r Result) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return p.db.Exec(ctx, `
INSERT INTO bookings(id, booked_on, facility_id, slot_time, dry_run, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.Date.String(), string(r.FacilityID), r.Time, r.DryRun, r.BookedAt)
}

func (p *PostgresStore) SaveSnapshot(ctx context.Context, s Snapshot) error {
	return p.db.Exec(ctx, `
INSERT INTO snapshots(singleton, current_booked_date, saved_at)
VALUES (TRUE, $1, $2)
ON CONFLICT (singleton) DO UPDATE SET current_booked_date=EXCLUDED.current_booked_date, saved_at=EXCLUDED.saved_at`,
		s.CurrentBookedDate.String(), s.SavedAt)
}

func (p *PostgresStore) LoadSnapshot(ctx context.Context) (Snapshot, bool, error) {
	var (
		dateStr string
		savedAt time.Time
	)
	err := p.db.QueryRow(ctx, `SELECT current_booked_date::text, saved_at FROM snapshots WHERE singleton`).
		Scan(&dateStr, &savedAt)
	if err != nil {
		if errors.Is(db.WrapNotFound(err), db.ErrNotFound) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, db.WrapNotFound(err)
	}
	d, err := appointment.ParseDate(dateStr)
	if err != nil {
		return Snapshot{}, false, err
	}
	return Snapshot{CurrentBookedDate: d, SavedAt: savedAt}, true, nil
}

// ListResults returns the most recent booking records, newest first. Used by
// the history command; not part of the Store contract.
func (p *PostgresStore) ListResults(ctx context.Context, limit int) ([]Result, error) {
	rows, err := p.db.Query(ctx, `
SELECT id, booked_on::text, facility_id, slot_time, dry_run, created_at
FROM bookings
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r       Result
			dateStr string
			fid     string
		)
		if err := rows.Scan(&r.ID, &dateStr, &fid, &r.Time, &r.DryRun, &r.BookedAt); err != nil {
			return nil, err
		}
		d, err := appointment.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		r.Date = d
		r.FacilityID = appointment.FacilityID(fid)
		out = append(out, r)
	}
	return out, rows.Err()
}
