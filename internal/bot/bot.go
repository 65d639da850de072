// Package bot contains the polling-and-booking orchestration engine: it
// repeatedly polls every configured facility for open dates, selects the best
// candidate earlier than the currently held appointment, resolves a concrete
// time slot with cross-facility fallback, books it, and persists resumable
// state across restarts and graceful shutdowns.
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/example/visa-rescheduler/internal/state"
)

// Bot drives the rebooking loop against one scheduling-service account.
// Exactly one polling cycle is in flight at any time; facility iteration
// within a cycle is sequential so candidate ranking stays deterministic.
type Bot struct {
	Client appointment.Client
	Store  state.Store
	Log    *slog.Logger

	ScheduleID string
	Facilities []appointment.FacilityID

	// Target, when set, stops the whole run once a booking lands at or
	// before it. Floor, when set, excludes dates after it from selection.
	Target *appointment.Date
	Floor  *appointment.Date

	DryRun       bool
	RefreshDelay time.Duration
	Cooldown     time.Duration
	// KeepPolling keeps the loop running after a successful booking instead
	// of returning SingleBookingCompleted.
	KeepPolling bool

	// sleepFn is replaced in tests to avoid real waits.
	sleepFn func(ctx context.Context, d time.Duration)

	mu      sync.Mutex
	current appointment.Date
	cycles  int64
}

// Status is a read-only view for the health endpoint.
type Status struct {
	CurrentBookedDate appointment.Date `json:"currentBookedDate"`
	Cycles            int64            `json:"cycles"`
	DryRun            bool             `json:"dryRun"`
}

func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{CurrentBookedDate: b.current, Cycles: b.cycles, DryRun: b.DryRun}
}

// Current returns the date the loop is currently trying to beat.
func (b *Bot) Current() appointment.Date {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Bot) setCurrent(d appointment.Date) {
	b.mu.Lock()
	b.current = d
	b.mu.Unlock()
}

func (b *Bot) bumpCycles() {
	b.mu.Lock()
	b.cycles++
	b.mu.Unlock()
}

// fetchDates polls every configured facility for open dates. A facility that
// errors is logged and treated as having no openings for this cycle; it never
// aborts the cycle. Results keep configured facility order.
func (b *Bot) fetchDates(ctx context.Context, session appointment.Session) []appointment.FacilityDates {
	out := make([]appointment.FacilityDates, 0, len(b.Facilities))
	for _, fid := range b.Facilities {
		dates, err := b.Client.AvailableDates(ctx, session, b.ScheduleID, fid)
		if err != nil {
			b.Log.Warn("facility date fetch failed", "facility", fid, "err", err)
			out = append(out, appointment.FacilityDates{FacilityID: fid})
			continue
		}
		b.Log.Debug("facility dates", "facility", fid, "count", len(dates))
		out = append(out, appointment.FacilityDates{FacilityID: fid, Dates: dates})
	}
	return out
}

// checkTime looks up a slot time for one facility/date, treating errors as
// "no time" after logging them.
func (b *Bot) checkTime(ctx context.Context, session appointment.Session, fid appointment.FacilityID, date appointment.Date) string {
	slot, err := b.Client.AvailableTime(ctx, session, b.ScheduleID, fid, date)
	if err != nil {
		b.Log.Warn("time check failed", "facility", fid, "date", date, "err", err)
		return ""
	}
	return slot
}

func (b *Bot) sleep(ctx context.Context, d time.Duration) {
	if b.sleepFn != nil {
		b.sleepFn(ctx, d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
