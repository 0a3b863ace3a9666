package models

// Column indices for the compact tick matrix served by the history endpoint
// (see utils.TickBuffer.GetSnapshot).
const (
	TickIdxTime      = 0
	TickIdxPrice     = 1
	TickIdxSize      = 2
	TickIdxDayVolume = 3
	TickNumFeatures  = 4
)

// -----------------------------------------------------------------------------

// MTick is one trade print reduced to the columns the tick history keeps.
type MTick struct {
	Time      int64   `json:"time"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	DayVolume float64 `json:"dayVolume"`
}
