package appointment

import "context"

// Session is the opaque authenticated context returned by Login and required
// by every subsequent call. Its concrete type belongs to the Client
// implementation; callers hold it for the lifetime of one authenticated
// session and replace it wholesale after a fatal error.
type Session interface{}

// Client is the scheduling-service contract consumed by the bot.
type Client interface {
	// Login authenticates and returns a fresh session handle.
	Login(ctx context.Context) (Session, error)

	// AvailableDates returns the open dates for a facility. An empty slice
	// means no openings; an error means a transport or auth failure.
	AvailableDates(ctx context.Context, s Session, scheduleID string, facility FacilityID) ([]Date, error)

	// AvailableTime returns a bookable time-of-day for the given date at the
	// given facility, or "" when the date has no slot there.
	AvailableTime(ctx context.Context, s Session, scheduleID string, facility FacilityID, date Date) (string, error)

	// Book commits the appointment. A nil error means the remote service
	// considers the booking committed.
	Book(ctx context.Context, s Session, scheduleID string, facility FacilityID, date Date, slot string) error
}
