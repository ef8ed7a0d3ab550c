package coverage

import "time"

// DateRange is an inclusive date interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// MissingRanges computes the date ranges inside the requested window
// [reqStart, reqEnd] that are not covered by already-fetched data
// [haveStart, haveEnd]. A zero haveStart or haveEnd means nothing has
// been fetched yet, so the whole window is missing.
//
// Only the edges are examined: a gap to the left of the covered span
// and a gap to the right. Interior holes inside [haveStart, haveEnd]
// are assumed not to exist because fetches always extend coverage
// contiguously from the edges. For that reason the gaps are not
// clamped to the window: when the window lies entirely on one side of
// the covered span, the gap reaches all the way to the span's edge, so
// the new data stays contiguous with what is already fetched.
func MissingRanges(reqStart, reqEnd, haveStart, haveEnd time.Time) []DateRange {
	if reqStart.After(reqEnd) {
		return nil
	}
	if haveStart.IsZero() || haveEnd.IsZero() {
		return []DateRange{{Start: reqStart, End: reqEnd}}
	}

	var gaps []DateRange
	if reqStart.Before(haveStart) {
		gaps = append(gaps, DateRange{Start: reqStart, End: haveStart.AddDate(0, 0, -1)})
	}
	if reqEnd.After(haveEnd) {
		gaps = append(gaps, DateRange{Start: haveEnd.AddDate(0, 0, 1), End: reqEnd})
	}
	return gaps
}
