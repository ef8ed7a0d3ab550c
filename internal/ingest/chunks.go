package ingest

import (
	"time"

	"nseingest/internal/coverage"
	"nseingest/internal/dateutil"
)

// maxChunkDays bounds a single provider request; the historical endpoint
// rejects windows longer than a year.
const maxChunkDays = 365

// Chunks splits the inclusive range [start, end] into contiguous
// non-overlapping sub-ranges of at most maxDays days each.
func Chunks(start, end time.Time, maxDays int) []coverage.DateRange {
	if maxDays <= 0 || start.After(end) {
		return nil
	}

	var chunks []coverage.DateRange
	for cur := start; !cur.After(end); {
		chunkEnd := dateutil.Min(cur.AddDate(0, 0, maxDays-1), end)
		chunks = append(chunks, coverage.DateRange{Start: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}
