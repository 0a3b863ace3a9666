package interfaces

import "github.com/tastyware/tastytrade/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defining the interface for sharing data with external
// systems (relay server, push sinks).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes an event batch to all connected listeners.
	Broadcast(payload models.MRelayPayload)

	// -----------------------------------------------------------------------------
	// UpdateStatus refreshes the status snapshot served by the status
	// endpoints without broadcasting.
	UpdateStatus(status []models.MFeedSourceStatus)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
