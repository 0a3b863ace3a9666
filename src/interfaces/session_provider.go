package interfaces

import (
	"context"

	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// ISessionProvider supplies short-lived credentials for the streaming
// endpoints. Token acquisition and refresh happen behind this interface; the
// streamer treats tokens as opaque and re-fetches them fresh on every
// (re)connect attempt, never caching them itself.
// -----------------------------------------------------------------------------

type ISessionProvider interface {

	// StreamerToken returns the market-data feed token and endpoint URL.
	StreamerToken(ctx context.Context) (models.MStreamerTokenData, error)

	// -----------------------------------------------------------------------------

	// SessionToken returns the account session token used by the
	// account-notification stream.
	SessionToken(ctx context.Context) (string, error)
}
