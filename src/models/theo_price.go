package models

// MTheoPrice represents the theoretical option price and its model inputs.
// Field order matches the wire schema exactly.
type MTheoPrice struct {
	EventSymbol     string  `json:"eventSymbol"`
	EventTime       int64   `json:"eventTime"`
	EventFlags      int     `json:"eventFlags"`
	Index           int64   `json:"index"`
	Time            int64   `json:"time"`
	Sequence        int64   `json:"sequence"`
	Price           float64 `json:"price"`
	UnderlyingPrice float64 `json:"underlyingPrice"`
	Delta           float64 `json:"delta"`
	Gamma           float64 `json:"gamma"`
	Dividend        float64 `json:"dividend"`
	Interest        float64 `json:"interest"`
}

func (e MTheoPrice) Kind() MEventType { return EventTypeTheoPrice }
func (e MTheoPrice) Symbol() string   { return e.EventSymbol }
