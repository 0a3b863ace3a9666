package models

// MSubscriptionEntry is one feed subscription item as it appears inside a
// FEED_SUBSCRIPTION frame. FromTime (epoch milliseconds) is only set for
// time-series subscriptions such as candles.
type MSubscriptionEntry struct {
	Type     MEventType `json:"type"`
	Symbol   string     `json:"symbol"`
	FromTime int64      `json:"fromTime,omitempty"`
}

// -----------------------------------------------------------------------------

// MSubscriptionDelta is the coalesced add/remove diff accumulated between two
// flushes. It is ephemeral; the registry itself is the durable state.
type MSubscriptionDelta struct {
	Add    []MSubscriptionEntry
	Remove []MSubscriptionEntry
}

// IsEmpty reports whether the delta carries no changes.
func (d MSubscriptionDelta) IsEmpty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}
