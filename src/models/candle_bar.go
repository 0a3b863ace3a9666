package models

import "time"

// MCandleBar represents an OHLCV bar built locally from trade ticks for a
// configured window, as opposed to MCandle which the feed computes upstream.
type MCandleBar struct {
	Symbol     string  `json:"symbol"`
	WindowName string  `json:"window_name"` // e.g. "1m", "5m"
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	VWAP       float64 `json:"vwap"`
	// Z-score of this bar's volume against recent completed bars of the same
	// window. 0 until enough history accumulates.
	VolumeZScore float64   `json:"volume_zscore"`
	StartTime    int64     `json:"start_time"`
	EndTime      int64     `json:"end_time"`
	Trades       int       `json:"trades"`
	CreatedAt    time.Time `json:"created_at"`
}
