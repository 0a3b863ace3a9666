package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for authenticated REST calls against
// the brokerage API, with retry handling behind the interface.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// Get performs a GET request with query parameters and headers.
	// Returns the response body as bytes or an error.
	Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Post performs a POST request with a JSON body.
	Post(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error)

	// -----------------------------------------------------------------------------

	// Delete performs a DELETE request. Used to tear down API sessions.
	Delete(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}
