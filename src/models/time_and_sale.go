package models

// MTimeAndSale represents one tick of the time and sales tape.
// Field order matches the wire schema exactly.
type MTimeAndSale struct {
	EventSymbol            string  `json:"eventSymbol"`
	EventTime              int64   `json:"eventTime"`
	EventFlags             int     `json:"eventFlags"`
	Index                  int64   `json:"index"`
	Time                   int64   `json:"time"`
	TimeNanoPart           int64   `json:"timeNanoPart"`
	Sequence               int64   `json:"sequence"`
	ExchangeCode           string  `json:"exchangeCode"`
	Price                  float64 `json:"price"`
	Size                   float64 `json:"size"`
	BidPrice               float64 `json:"bidPrice"`
	AskPrice               float64 `json:"askPrice"`
	ExchangeSaleConditions string  `json:"exchangeSaleConditions"`
	TradeThroughExempt     string  `json:"tradeThroughExempt"`
	AggressorSide          string  `json:"aggressorSide"`
	SpreadLeg              bool    `json:"spreadLeg"`
	ExtendedTradingHours   bool    `json:"extendedTradingHours"`
	ValidTick              bool    `json:"validTick"`
	Type                   string  `json:"type"`
	Buyer                  string  `json:"buyer"`
	Seller                 string  `json:"seller"`
}

func (e MTimeAndSale) Kind() MEventType { return EventTypeTimeAndSale }
func (e MTimeAndSale) Symbol() string   { return e.EventSymbol }
