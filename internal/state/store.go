// Package state persists the bot's durable outputs: booking result records
// consumed by downstream notification/workflow tooling, and the shutdown
// snapshot used to seed the next process start. Writes are best-effort from
// the caller's perspective; a failed write never changes booking decisions.
package state

import (
	"context"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
)

// Result is written once per successful booking (including dry runs, which
// carry the DRY_RUN sentinel time).
type Result struct {
	ID         string                 `json:"id"`
	Date       appointment.Date       `json:"date"`
	FacilityID appointment.FacilityID `json:"facilityId"`
	Time       string                 `json:"time"`
	DryRun     bool                   `json:"dryRun"`
	BookedAt   time.Time              `json:"bookedAt"`
}

// Snapshot is written once at graceful shutdown and read back at startup.
type Snapshot struct {
	CurrentBookedDate appointment.Date `json:"currentBookedDate"`
	SavedAt           time.Time        `json:"savedAt"`
}

type Store interface {
	SaveResult(ctx context.Context, r Result) error
	SaveSnapshot(ctx context.Context, s Snapshot) error
	// LoadSnapshot returns the last snapshot, reporting false when none has
	// been written yet.
	LoadSnapshot(ctx context.Context) (Snapshot, bool, error)
}
