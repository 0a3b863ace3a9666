package interfaces

import "github.com/tastyware/tastytrade/src/models"

// -----------------------------------------------------------------------------
// IEventStore defines the contract for recording decoded events.
// -----------------------------------------------------------------------------

type IEventStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveEventsBulk inserts a batch of decoded events. Kinds without a
	// backing table are skipped silently.
	SaveEventsBulk(events []IEvent) error

	// -----------------------------------------------------------------------------

	// SaveCandleBars inserts locally aggregated bars.
	SaveCandleBars(bars []models.MCandleBar) error

	// -----------------------------------------------------------------------------

	// SaveSubscriptions persists the last-known subscription set per source.
	SaveSubscriptions(sourceName string, entries []models.MSubscriptionEntry) error

	// -----------------------------------------------------------------------------

	// LoadSubscriptions returns the persisted subscription set for a source.
	LoadSubscriptions(sourceName string) ([]models.MSubscriptionEntry, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close flushes pending writes and closes the connection.
	Close() error
}
