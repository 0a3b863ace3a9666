package analysis

import (
	"sort"

	"github.com/tastyware/tastytrade/src/models"
)

// TickWindow is one aligned window of trade prints.
type TickWindow struct {
	Ticks     []models.MTick
	StartTime int64 // epoch millis, inclusive
	EndTime   int64 // epoch millis, exclusive
}

// -----------------------------------------------------------------------------

// AlignWindow returns the [start, end) boundaries of the window containing ts.
// Both arguments are epoch milliseconds.
func AlignWindow(ts, windowMillis int64) (int64, int64) {
	start := ts - (ts % windowMillis)
	return start, start + windowMillis
}

// -----------------------------------------------------------------------------

// ResampleTicks groups ticks into aligned windows. Empty windows are
// omitted. The input does not need to be sorted.
func ResampleTicks(ticks []models.MTick, windowMillis int64) []TickWindow {
	if len(ticks) == 0 || windowMillis <= 0 {
		return []TickWindow{}
	}

	sorted := make([]models.MTick, len(ticks))
	copy(sorted, ticks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	var results []TickWindow

	i := 0
	for i < len(sorted) {
		start, end := AlignWindow(sorted[i].Time, windowMillis)

		// Find the first tick past this window
		j := i + sort.Search(len(sorted)-i, func(k int) bool {
			return sorted[i+k].Time >= end
		})

		results = append(results, TickWindow{
			Ticks:     sorted[i:j],
			StartTime: start,
			EndTime:   end,
		})
		i = j
	}

	return results
}
