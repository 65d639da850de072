package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/example/visa-rescheduler/internal/state"
	"github.com/google/uuid"
)

// Outcome is the typed termination result the host interprets to decide
// process exit codes. The loop itself never gives up on a recoverable error;
// only an explicit shutdown or a configured stopping condition terminates it.
type Outcome int

const (
	// OutcomeFatalError means the run could not start or continue at all
	// (e.g. missing dependencies); it is accompanied by a non-nil error.
	OutcomeFatalError Outcome = iota
	// OutcomeTargetReached means a booking landed at or before the target date.
	OutcomeTargetReached
	// OutcomeShutdownCompleted means cancellation was observed, the snapshot
	// was written, and the loop stopped without starting new work.
	OutcomeShutdownCompleted
	// OutcomeSingleBookingCompleted means one booking succeeded and the
	// continuation policy says to stop.
	OutcomeSingleBookingCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTargetReached:
		return "target-reached"
	case OutcomeShutdownCompleted:
		return "shutdown-completed"
	case OutcomeSingleBookingCompleted:
		return "single-booking-completed"
	default:
		return "fatal-error"
	}
}

// Run executes the rebooking loop until a terminal outcome, starting from the
// given currently booked date. Cancel ctx to request a graceful shutdown: it
// is observed at the top of each iteration, after any in-flight call
// completes, and triggers a shutdown snapshot before the loop returns.
func (b *Bot) Run(ctx context.Context, start appointment.Date) (Outcome, error) {
	if b.Client == nil {
		return OutcomeFatalError, fmt.Errorf("client is nil")
	}
	if b.Store == nil {
		return OutcomeFatalError, fmt.Errorf("store is nil")
	}
	if len(b.Facilities) == 0 {
		return OutcomeFatalError, fmt.Errorf("no facilities configured")
	}
	if b.Log == nil {
		b.Log = slog.Default()
	}
	b.setCurrent(start)

	b.Log.Info("starting", "current", start, "facilities", len(b.Facilities), "dryRun", b.DryRun)
	if b.Target != nil {
		b.Log.Info("target date configured", "target", *b.Target)
	}
	if b.Floor != nil {
		b.Log.Info("floor date configured", "floor", *b.Floor)
	}

	for {
		if ctx.Err() != nil {
			return b.shutdown(), nil
		}

		session, err := b.Client.Login(ctx)
		if err != nil {
			b.coolOff(ctx, err)
			continue
		}
		b.Log.Info("session established")

		outcome, err := b.poll(ctx, session)
		if err != nil {
			b.coolOff(ctx, err)
			continue
		}
		return outcome, nil
	}
}

// poll runs polling cycles with one authenticated session until a terminal
// outcome or an error that requires a fresh session.
func (b *Bot) poll(ctx context.Context, session appointment.Session) (Outcome, error) {
	for {
		if ctx.Err() != nil {
			return b.shutdown(), nil
		}
		b.bumpCycles()

		avail := b.fetchDates(ctx, session)
		cand, ok := appointment.SelectCandidate(avail, b.Current(), b.Floor)
		if ok {
			b.Log.Info("candidate selected", "date", cand.Date, "facility", cand.FacilityID)
			outcome, done, err := b.attempt(ctx, session, cand)
			if err != nil {
				return OutcomeFatalError, err
			}
			if done {
				return outcome, nil
			}
		}

		b.sleep(ctx, b.RefreshDelay)
	}
}

// attempt resolves and books the candidate. done reports a terminal outcome;
// an unbooked candidate (no slot) is neither done nor an error.
func (b *Bot) attempt(ctx context.Context, session appointment.Session, cand appointment.Candidate) (Outcome, bool, error) {
	booked, err := b.resolve(ctx, session, cand)
	if err != nil {
		return 0, false, err
	}
	if !booked.Success {
		return 0, false, nil
	}

	// Persisting the result must never alter booking behavior.
	if err := b.Store.SaveResult(ctx, state.Result{
		ID:         uuid.NewString(),
		Date:       booked.Date,
		FacilityID: booked.FacilityID,
		Time:       booked.Time,
		DryRun:     b.DryRun,
		BookedAt:   time.Now().UTC(),
	}); err != nil {
		b.Log.Error("persisting booking result failed", "err", err)
	}

	b.setCurrent(booked.Date)

	if b.Target != nil && !booked.Date.After(*b.Target) {
		b.Log.Info("target date reached", "date", booked.Date, "target", *b.Target)
		return OutcomeTargetReached, true, nil
	}
	if !b.KeepPolling {
		return OutcomeSingleBookingCompleted, true, nil
	}
	return 0, false, nil
}

// shutdown persists the resumable snapshot and stops. A failed write is
// logged but never blocks shutdown. Uses a fresh context because the run
// context is already canceled.
func (b *Bot) shutdown() Outcome {
	snap := state.Snapshot{CurrentBookedDate: b.Current(), SavedAt: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.Store.SaveSnapshot(ctx, snap); err != nil {
		b.Log.Error("persisting shutdown snapshot failed", "err", err, "current", snap.CurrentBookedDate)
	} else {
		b.Log.Info("shutdown snapshot persisted", "current", snap.CurrentBookedDate)
	}
	return OutcomeShutdownCompleted
}

// coolOff applies the retry policy for an error that escaped the cycle:
// transient network failures wait out the cooldown before the session is
// re-established, everything else re-initializes immediately.
func (b *Bot) coolOff(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	class := Classify(err)
	if class == FailureTransientNetwork {
		b.Log.Warn("transient network failure, cooling down", "err", err, "cooldown", b.Cooldown)
		b.sleep(ctx, b.Cooldown)
		return
	}
	b.Log.Warn("session failure, re-initializing immediately", "err", err)
}
