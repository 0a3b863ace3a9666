package models

// MUnderlying represents volatility and option volume statistics for the
// underlying of an option series.
// Field order matches the wire schema exactly.
type MUnderlying struct {
	EventSymbol     string  `json:"eventSymbol"`
	EventTime       int64   `json:"eventTime"`
	EventFlags      int     `json:"eventFlags"`
	Index           int64   `json:"index"`
	Time            int64   `json:"time"`
	Sequence        int64   `json:"sequence"`
	Volatility      float64 `json:"volatility"`
	FrontVolatility float64 `json:"frontVolatility"`
	BackVolatility  float64 `json:"backVolatility"`
	CallVolume      float64 `json:"callVolume"`
	PutVolume       float64 `json:"putVolume"`
	PutCallRatio    float64 `json:"putCallRatio"`
}

func (e MUnderlying) Kind() MEventType { return EventTypeUnderlying }
func (e MUnderlying) Symbol() string   { return e.EventSymbol }
