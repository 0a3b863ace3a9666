package codec

import "github.com/tastyware/tastytrade/src/models"

// -----------------------------------------------------------------------------
// Static wire schemas. COMPACT frames carry values by position, so the order
// here is load-bearing: it is both the decode order and the field order
// requested from the server in FEED_SETUP.
// -----------------------------------------------------------------------------

// fieldType classifies the coercion applied to one positional value.
type fieldType int

const (
	fieldString fieldType = iota
	fieldFloat
	fieldInt
	fieldBool
)

// eventField is one column of a kind's wire schema.
type eventField struct {
	name string
	typ  fieldType
}

var schemaTable = map[models.MEventType][]eventField{
	models.EventTypeQuote: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"sequence", fieldInt},
		{"timeNanoPart", fieldInt},
		{"bidTime", fieldInt},
		{"bidExchangeCode", fieldString},
		{"bidPrice", fieldFloat},
		{"askPrice", fieldFloat},
		{"bidSize", fieldFloat},
		{"askSize", fieldFloat},
		{"askTime", fieldInt},
		{"askExchangeCode", fieldString},
	},
	models.EventTypeTrade: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"time", fieldInt},
		{"timeNanoPart", fieldInt},
		{"sequence", fieldInt},
		{"exchangeCode", fieldString},
		{"price", fieldFloat},
		{"change", fieldFloat},
		{"size", fieldFloat},
		{"dayId", fieldInt},
		{"dayVolume", fieldFloat},
		{"dayTurnover", fieldFloat},
		{"tickDirection", fieldString},
		{"extendedTradingHours", fieldBool},
	},
	models.EventTypeGreeks: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"eventFlags", fieldInt},
		{"index", fieldInt},
		{"time", fieldInt},
		{"sequence", fieldInt},
		{"price", fieldFloat},
		{"volatility", fieldFloat},
		{"delta", fieldFloat},
		{"gamma", fieldFloat},
		{"theta", fieldFloat},
		{"rho", fieldFloat},
		{"vega", fieldFloat},
	},
	models.EventTypeCandle: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"eventFlags", fieldInt},
		{"index", fieldInt},
		{"time", fieldInt},
		{"sequence", fieldInt},
		{"count", fieldInt},
		{"open", fieldFloat},
		{"high", fieldFloat},
		{"low", fieldFloat},
		{"close", fieldFloat},
		{"volume", fieldFloat},
		{"vwap", fieldFloat},
		{"bidVolume", fieldFloat},
		{"askVolume", fieldFloat},
		{"impVolatility", fieldFloat},
		{"openInterest", fieldFloat},
	},
	models.EventTypeProfile: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"description", fieldString},
		{"shortSaleRestriction", fieldString},
		{"tradingStatus", fieldString},
		{"statusReason", fieldString},
		{"haltStartTime", fieldInt},
		{"haltEndTime", fieldInt},
		{"highLimitPrice", fieldFloat},
		{"lowLimitPrice", fieldFloat},
		{"high52WeekPrice", fieldFloat},
		{"low52WeekPrice", fieldFloat},
	},
	models.EventTypeSummary: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"dayId", fieldInt},
		{"dayOpenPrice", fieldFloat},
		{"dayHighPrice", fieldFloat},
		{"dayLowPrice", fieldFloat},
		{"dayClosePrice", fieldFloat},
		{"prevDayId", fieldInt},
		{"prevDayClosePrice", fieldFloat},
		{"prevDayVolume", fieldFloat},
		{"openInterest", fieldFloat},
		{"dayClosePriceType", fieldString},
		{"prevDayClosePriceType", fieldString},
	},
	models.EventTypeTheoPrice: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"eventFlags", fieldInt},
		{"index", fieldInt},
		{"time", fieldInt},
		{"sequence", fieldInt},
		{"price", fieldFloat},
		{"underlyingPrice", fieldFloat},
		{"delta", fieldFloat},
		{"gamma", fieldFloat},
		{"dividend", fieldFloat},
		{"interest", fieldFloat},
	},
	models.EventTypeTimeAndSale: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"eventFlags", fieldInt},
		{"index", fieldInt},
		{"time", fieldInt},
		{"timeNanoPart", fieldInt},
		{"sequence", fieldInt},
		{"exchangeCode", fieldString},
		{"price", fieldFloat},
		{"size", fieldFloat},
		{"bidPrice", fieldFloat},
		{"askPrice", fieldFloat},
		{"exchangeSaleConditions", fieldString},
		{"tradeThroughExempt", fieldString},
		{"aggressorSide", fieldString},
		{"spreadLeg", fieldBool},
		{"extendedTradingHours", fieldBool},
		{"validTick", fieldBool},
		{"type", fieldString},
		{"buyer", fieldString},
		{"seller", fieldString},
	},
	models.EventTypeUnderlying: {
		{"eventSymbol", fieldString},
		{"eventTime", fieldInt},
		{"eventFlags", fieldInt},
		{"index", fieldInt},
		{"time", fieldInt},
		{"sequence", fieldInt},
		{"volatility", fieldFloat},
		{"frontVolatility", fieldFloat},
		{"backVolatility", fieldFloat},
		{"callVolume", fieldFloat},
		{"putVolume", fieldFloat},
		{"putCallRatio", fieldFloat},
	},
}

// -----------------------------------------------------------------------------

// Arity returns the field count of a kind's schema, or 0 for unknown kinds.
func Arity(kind models.MEventType) int {
	return len(schemaTable[kind])
}

// -----------------------------------------------------------------------------

// AcceptEventFields returns the ordered field names per kind, in the shape
// the FEED_SETUP frame expects.
func AcceptEventFields() map[string][]string {
	out := make(map[string][]string, len(schemaTable))
	for kind, fields := range schemaTable {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.name
		}
		out[string(kind)] = names
	}
	return out
}
