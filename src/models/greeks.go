package models

// MGreeks represents option greeks and implied volatility for an option symbol.
// Field order matches the wire schema exactly.
type MGreeks struct {
	EventSymbol string  `json:"eventSymbol"`
	EventTime   int64   `json:"eventTime"`
	EventFlags  int     `json:"eventFlags"`
	Index       int64   `json:"index"`
	Time        int64   `json:"time"`
	Sequence    int64   `json:"sequence"`
	Price       float64 `json:"price"`
	Volatility  float64 `json:"volatility"`
	Delta       float64 `json:"delta"`
	Gamma       float64 `json:"gamma"`
	Theta       float64 `json:"theta"`
	Rho         float64 `json:"rho"`
	Vega        float64 `json:"vega"`
}

func (e MGreeks) Kind() MEventType { return EventTypeGreeks }
func (e MGreeks) Symbol() string   { return e.EventSymbol }
