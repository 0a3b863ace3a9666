package interfaces

import "github.com/tastyware/tastytrade/src/models"

// -----------------------------------------------------------------------------
// IFeedController is the narrow surface the control endpoints use to steer
// the running feed manager. Kept separate from IFeedSource so the relay
// server never touches a source directly.
// -----------------------------------------------------------------------------

type IFeedController interface {

	// Statuses returns the runtime status of every registered source.
	Statuses() []models.MFeedSourceStatus

	// -----------------------------------------------------------------------------

	// Subscribe adds symbols for an event kind on the named source.
	Subscribe(source string, kind models.MEventType, symbols []string) error

	// -----------------------------------------------------------------------------

	// Unsubscribe removes symbols for an event kind on the named source.
	Unsubscribe(source string, kind models.MEventType, symbols []string) error

	// -----------------------------------------------------------------------------

	// RestartSource tears the named source down and starts it again with
	// its current subscription set.
	RestartSource(name string) error
}
