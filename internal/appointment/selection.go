package appointment

// SelectCandidate picks the single best candidate for one polling cycle.
//
// A date is eligible iff it is strictly earlier than current and, when a
// floor is set, at or before the floor. Among eligible dates the earliest
// wins; on a tie the facility listed first in avail wins. Callers pass avail
// in configured facility order, so the choice is deterministic.
//
// No state is retained between calls. Facilities with no dates are simply
// skipped; per-facility fetch errors must be handled by the caller before
// building avail.
func SelectCandidate(avail []FacilityDates, current Date, floor *Date) (Candidate, bool) {
	var best Candidate
	found := false
	for _, fa := range avail {
		for _, d := range fa.Dates {
			if !d.Before(current) {
				continue
			}
			if floor != nil && d.After(*floor) {
				continue
			}
			if !found || d.Before(best.Date) {
				best = Candidate{Date: d, FacilityID: fa.FacilityID}
				found = true
			}
		}
	}
	return best, found
}
