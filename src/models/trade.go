package models

// MTrade represents the last trade for a symbol along with daily totals.
// Field order matches the wire schema exactly.
type MTrade struct {
	EventSymbol          string  `json:"eventSymbol"`
	EventTime            int64   `json:"eventTime"`
	Time                 int64   `json:"time"`
	TimeNanoPart         int64   `json:"timeNanoPart"`
	Sequence             int64   `json:"sequence"`
	ExchangeCode         string  `json:"exchangeCode"`
	Price                float64 `json:"price"`
	Change               float64 `json:"change"`
	Size                 float64 `json:"size"`
	DayID                int64   `json:"dayId"`
	DayVolume            float64 `json:"dayVolume"`
	DayTurnover          float64 `json:"dayTurnover"`
	TickDirection        string  `json:"tickDirection"`
	ExtendedTradingHours bool    `json:"extendedTradingHours"`
}

func (e MTrade) Kind() MEventType { return EventTypeTrade }
func (e MTrade) Symbol() string   { return e.EventSymbol }
