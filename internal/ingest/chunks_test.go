package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestChunks(t *testing.T) {
	t.Run("single day", func(t *testing.T) {
		chunks := Chunks(day("2020-01-01"), day("2020-01-01"), 365)
		require.Len(t, chunks, 1)
		assert.Equal(t, day("2020-01-01"), chunks[0].Start)
		assert.Equal(t, day("2020-01-01"), chunks[0].End)
	})

	t.Run("range within one chunk", func(t *testing.T) {
		chunks := Chunks(day("2020-01-01"), day("2020-12-30"), 365)
		require.Len(t, chunks, 1)
		assert.Equal(t, day("2020-12-30"), chunks[0].End)
	})

	t.Run("range spanning multiple chunks", func(t *testing.T) {
		start, end := day("2015-01-01"), day("2024-01-01")
		chunks := Chunks(start, end, 365)

		totalDays := int(end.Sub(start).Hours()/24) + 1
		wantChunks := (totalDays + 364) / 365
		require.Len(t, chunks, wantChunks)

		// contiguous, non-overlapping, covering the range exactly
		assert.Equal(t, start, chunks[0].Start)
		assert.Equal(t, end, chunks[len(chunks)-1].End)
		for i := 1; i < len(chunks); i++ {
			assert.Equal(t, chunks[i-1].End.AddDate(0, 0, 1), chunks[i].Start)
		}
		for _, c := range chunks {
			days := int(c.End.Sub(c.Start).Hours()/24) + 1
			assert.LessOrEqual(t, days, 365)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		assert.Empty(t, Chunks(day("2020-02-01"), day("2020-01-01"), 365))
	})

	t.Run("non-positive chunk size", func(t *testing.T) {
		assert.Empty(t, Chunks(day("2020-01-01"), day("2020-02-01"), 0))
	})
}
