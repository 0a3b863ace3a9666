package interfaces

import "github.com/tastyware/tastytrade/src/models"

// -----------------------------------------------------------------------------
// IEvent is the common surface of every decoded feed event. The concrete
// types live in models (MQuote, MTrade, ...); consumers that need the full
// record type-switch on the value.
// -----------------------------------------------------------------------------

type IEvent interface {

	// Kind returns the event kind tag used for routing.
	Kind() models.MEventType

	// -----------------------------------------------------------------------------

	// Symbol returns the feed-native symbol this event belongs to.
	Symbol() string
}
