package interfaces

import "github.com/tastyware/tastytrade/src/models"

// -----------------------------------------------------------------------------
// IEventPublisher pushes decoded events to an external message bus.
// -----------------------------------------------------------------------------

type IEventPublisher interface {

	// PublishEvent sends one decoded feed event.
	PublishEvent(event IEvent) error

	// -----------------------------------------------------------------------------

	// PublishBar sends one locally aggregated candle bar.
	PublishBar(bar models.MCandleBar) error

	// -----------------------------------------------------------------------------

	// Close flushes and releases the connection. Safe to call more than
	// once.
	Close() error
}
