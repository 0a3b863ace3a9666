package models

// MQuote represents the best bid and offer currently available for a symbol.
// Field order matches the wire schema exactly.
type MQuote struct {
	EventSymbol     string  `json:"eventSymbol"`
	EventTime       int64   `json:"eventTime"`
	Sequence        int64   `json:"sequence"`
	TimeNanoPart    int64   `json:"timeNanoPart"`
	BidTime         int64   `json:"bidTime"`
	BidExchangeCode string  `json:"bidExchangeCode"`
	BidPrice        float64 `json:"bidPrice"`
	AskPrice        float64 `json:"askPrice"`
	BidSize         float64 `json:"bidSize"`
	AskSize         float64 `json:"askSize"`
	AskTime         int64   `json:"askTime"`
	AskExchangeCode string  `json:"askExchangeCode"`
}

func (e MQuote) Kind() MEventType { return EventTypeQuote }
func (e MQuote) Symbol() string   { return e.EventSymbol }

// MidPrice returns the bid/ask midpoint.
func (e MQuote) MidPrice() float64 {
	return (e.BidPrice + e.AskPrice) / 2
}
