package interfaces

import (
	"context"
	"sync"

	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// IFeedSource is one upstream event stream feeding the relay pipeline.
// -----------------------------------------------------------------------------

type IFeedSource interface {

	// GetName returns the unique identifier of the source
	GetName() string

	// -----------------------------------------------------------------------------

	// Start opens the upstream connection and begins pushing event batches.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push decoded event batches to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- []IEvent, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source (manual stop; cancelling the Start context
	// is the preferred path).
	Stop() error

	// -----------------------------------------------------------------------------

	// Subscribe adds symbols for an event kind on the live connection.
	Subscribe(kind models.MEventType, symbols []string) error

	// -----------------------------------------------------------------------------

	// UnSubscribe removes symbols for an event kind.
	UnSubscribe(kind models.MEventType, symbols []string) error

	// -----------------------------------------------------------------------------

	// SubscribeEntries adds typed subscription entries, fromTime included.
	// Used to restore a persisted subscription set.
	SubscribeEntries(entries []models.MSubscriptionEntry) error

	// -----------------------------------------------------------------------------

	// Subscriptions returns the current subscription set.
	Subscriptions() []models.MSubscriptionEntry

	// -----------------------------------------------------------------------------

	// GetStatus returns the current runtime status of the source.
	GetStatus() *models.MFeedSourceStatus

	// -----------------------------------------------------------------------------

	// IsRealTime returns true if the source provides real-time data
	IsRealTime() bool
}
