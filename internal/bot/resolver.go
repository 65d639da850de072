package bot

import (
	"context"

	"github.com/example/visa-rescheduler/internal/appointment"
)

// resolve turns a selected candidate into a committed booking.
//
// The facility that reported the date is tried first; if it has no slot the
// remaining configured facilities are tried in order. No slot anywhere is a
// normal negative outcome, not an error. In dry-run mode the booking call is
// skipped entirely and the outcome carries the DRY_RUN sentinel time. At most
// one mutating Book call is made per invocation, and its error propagates to
// the cycle boundary untouched.
func (b *Bot) resolve(ctx context.Context, session appointment.Session, cand appointment.Candidate) (appointment.BookingOutcome, error) {
	facility := cand.FacilityID
	slot := b.checkTime(ctx, session, facility, cand.Date)

	if slot == "" {
		b.Log.Info("no slot at originating facility, trying others", "facility", facility, "date", cand.Date)
		for _, fid := range b.Facilities {
			if fid == cand.FacilityID {
				continue
			}
			if slot = b.checkTime(ctx, session, fid, cand.Date); slot != "" {
				facility = fid
				b.Log.Info("slot found at fallback facility", "facility", fid, "date", cand.Date, "time", slot)
				break
			}
		}
	}

	if slot == "" {
		b.Log.Info("no slot at any facility", "date", cand.Date)
		return appointment.BookingOutcome{}, nil
	}

	if b.DryRun {
		b.Log.Info("dry run: would book", "facility", facility, "date", cand.Date, "time", slot)
		return appointment.BookingOutcome{
			Success:    true,
			Date:       cand.Date,
			FacilityID: facility,
			Time:       appointment.DryRunTime,
		}, nil
	}

	if err := b.Client.Book(ctx, session, b.ScheduleID, facility, cand.Date, slot); err != nil {
		return appointment.BookingOutcome{}, err
	}
	b.Log.Info("booked", "facility", facility, "date", cand.Date, "time", slot)
	return appointment.BookingOutcome{
		Success:    true,
		Date:       cand.Date,
		FacilityID: facility,
		Time:       slot,
	}, nil
}
