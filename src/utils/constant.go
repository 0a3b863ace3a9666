package utils

import (
	"math"

	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------

// Sizing defaults for the in-memory tick history. A liquid US equity prints
// a few trades per second during regular hours, so 4096 rows covers roughly
// the last 15-30 minutes per symbol. Buffers shrink under memory pressure.
const (
	DefaultRetentionDays = 7
	DefaultTickCapacity  = 4096
	MinTickCapacity      = 256
)

// Fraction of the process memory budget reserved for tick history. The rest
// goes to the last-value cache, decode buffers and the runtime itself.
const tickMemoryShare = 0.25

// -----------------------------------------------------------------------------

// CalculateTickCapacity sizes the per-symbol tick buffers from a memory
// budget. Each row is TickNumFeatures float64s.
func CalculateTickCapacity(maxMemoryMB, symbolCount int) int {
	if maxMemoryMB <= 0 || symbolCount <= 0 {
		return DefaultTickCapacity
	}

	budgetBytes := float64(maxMemoryMB) * 1024 * 1024 * tickMemoryShare
	rowBytes := float64(8 * models.TickNumFeatures)

	perSymbol := int(math.Floor(budgetBytes / rowBytes / float64(symbolCount)))

	if perSymbol < MinTickCapacity {
		return MinTickCapacity
	}
	if perSymbol > DefaultTickCapacity {
		return DefaultTickCapacity
	}
	return perSymbol
}
