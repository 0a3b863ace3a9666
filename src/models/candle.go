package models

// MCandle represents one OHLCV bar streamed by the feed for a candle symbol
// (ticker plus period attributes, e.g. "AAPL{=5m}").
// Field order matches the wire schema exactly.
type MCandle struct {
	EventSymbol   string  `json:"eventSymbol"`
	EventTime     int64   `json:"eventTime"`
	EventFlags    int     `json:"eventFlags"`
	Index         int64   `json:"index"`
	Time          int64   `json:"time"`
	Sequence      int64   `json:"sequence"`
	Count         int64   `json:"count"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	VWAP          float64 `json:"vwap"`
	BidVolume     float64 `json:"bidVolume"`
	AskVolume     float64 `json:"askVolume"`
	ImpVolatility float64 `json:"impVolatility"`
	OpenInterest  float64 `json:"openInterest"`
}

func (e MCandle) Kind() MEventType { return EventTypeCandle }
func (e MCandle) Symbol() string   { return e.EventSymbol }
