package appointment

import (
	"encoding/json"
	"fmt"
	"time"
)

// dateLayout is the wire format used by the scheduling service for calendar days.
const dateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day component. The zero value is
// "no date".
type Date struct {
	t time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return Date{t: t}, nil
}

// MustDate is a convenience for tests and constants; it panics on bad input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) String() string     { return d.t.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FacilityID identifies a physical location at which an appointment can be
// scheduled.
type FacilityID string

// FacilityDates holds the open dates one facility reported for a polling
// cycle. Facilities that errored or reported nothing carry an empty Dates
// slice.
type FacilityDates struct {
	FacilityID FacilityID
	Dates      []Date
}

// Candidate is a date/facility pair eligible for booking consideration.
type Candidate struct {
	Date       Date
	FacilityID FacilityID
}

// DryRunTime is the sentinel slot time reported on simulated bookings.
const DryRunTime = "DRY_RUN"

// BookingOutcome reports the result of one booking resolution. When Success
// is false the remaining fields are zero.
type BookingOutcome struct {
	Success    bool
	Date       Date
	FacilityID FacilityID
	Time       string
}
