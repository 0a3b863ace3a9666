package models

// MEventType identifies a market event kind carried by the feed.
// Each kind has its own fixed field schema on the wire.
type MEventType string

const (
	EventTypeQuote       MEventType = "Quote"
	EventTypeTrade       MEventType = "Trade"
	EventTypeGreeks      MEventType = "Greeks"
	EventTypeCandle      MEventType = "Candle"
	EventTypeProfile     MEventType = "Profile"
	EventTypeSummary     MEventType = "Summary"
	EventTypeTheoPrice   MEventType = "TheoPrice"
	EventTypeTimeAndSale MEventType = "TimeAndSale"
	EventTypeUnderlying  MEventType = "Underlying"
)

// -----------------------------------------------------------------------------

// AllEventTypes returns every supported event kind.
func AllEventTypes() []MEventType {
	return []MEventType{
		EventTypeQuote,
		EventTypeTrade,
		EventTypeGreeks,
		EventTypeCandle,
		EventTypeProfile,
		EventTypeSummary,
		EventTypeTheoPrice,
		EventTypeTimeAndSale,
		EventTypeUnderlying,
	}
}

// -----------------------------------------------------------------------------

// IsValid reports whether t is one of the supported event kinds.
func (t MEventType) IsValid() bool {
	switch t {
	case EventTypeQuote, EventTypeTrade, EventTypeGreeks, EventTypeCandle,
		EventTypeProfile, EventTypeSummary, EventTypeTheoPrice,
		EventTypeTimeAndSale, EventTypeUnderlying:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// IsTimeSeries reports whether subscriptions of this kind accept a fromTime.
func (t MEventType) IsTimeSeries() bool {
	switch t {
	case EventTypeCandle, EventTypeGreeks, EventTypeTheoPrice,
		EventTypeTimeAndSale, EventTypeUnderlying:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// Flag bits carried in the eventFlags field of indexed events (Candle,
// Greeks, TheoPrice, TimeAndSale, Underlying). The feed uses them to frame
// snapshot transfers; they are passed through to the caller untouched.
const (
	EventFlagTxPending     = 0x01
	EventFlagRemoveEvent   = 0x02
	EventFlagSnapshotBegin = 0x04
	EventFlagSnapshotEnd   = 0x08
	EventFlagSnapshotSnip  = 0x10
	EventFlagSnapshotMode  = 0x40
)
