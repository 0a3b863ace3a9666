package models

// MSummary represents the daily OHLC summary and open interest for a symbol.
// Field order matches the wire schema exactly.
type MSummary struct {
	EventSymbol           string  `json:"eventSymbol"`
	EventTime             int64   `json:"eventTime"`
	DayID                 int64   `json:"dayId"`
	DayOpenPrice          float64 `json:"dayOpenPrice"`
	DayHighPrice          float64 `json:"dayHighPrice"`
	DayLowPrice           float64 `json:"dayLowPrice"`
	DayClosePrice         float64 `json:"dayClosePrice"`
	PrevDayID             int64   `json:"prevDayId"`
	PrevDayClosePrice     float64 `json:"prevDayClosePrice"`
	PrevDayVolume         float64 `json:"prevDayVolume"`
	OpenInterest          float64 `json:"openInterest"`
	DayClosePriceType     string  `json:"dayClosePriceType"`
	PrevDayClosePriceType string  `json:"prevDayClosePriceType"`
}

func (e MSummary) Kind() MEventType { return EventTypeSummary }
func (e MSummary) Symbol() string   { return e.EventSymbol }
