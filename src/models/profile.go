package models

// MProfile represents descriptive and trading-status information for a symbol.
// Field order matches the wire schema exactly.
type MProfile struct {
	EventSymbol          string  `json:"eventSymbol"`
	EventTime            int64   `json:"eventTime"`
	Description          string  `json:"description"`
	ShortSaleRestriction string  `json:"shortSaleRestriction"`
	TradingStatus        string  `json:"tradingStatus"`
	StatusReason         string  `json:"statusReason"`
	HaltStartTime        int64   `json:"haltStartTime"`
	HaltEndTime          int64   `json:"haltEndTime"`
	HighLimitPrice       float64 `json:"highLimitPrice"`
	LowLimitPrice        float64 `json:"lowLimitPrice"`
	High52WeekPrice      float64 `json:"high52WeekPrice"`
	Low52WeekPrice       float64 `json:"low52WeekPrice"`
}

func (e MProfile) Kind() MEventType { return EventTypeProfile }
func (e MProfile) Symbol() string   { return e.EventSymbol }
