package models

// -----------------------------------------------------------------------------

// MFeedSourceStatus represents the runtime status of one upstream feed
// connection. It aggregates information from the streamer and its supervisor.
type MFeedSourceStatus struct {
	SourceName      string   `json:"source_name"`      // The name of the feed source
	Running         bool     `json:"running"`          // Whether Start has been called and Stop has not
	ConnectionState string   `json:"connection_state"` // Current engine state (Ready, Connecting, ...)
	Endpoint        string   `json:"endpoint"`         // e.g. "wss://tasty-openapi-ws.dxfeed.com/realtime"
	Kinds           []string `json:"kinds"`            // Event kinds with at least one subscription
	SymbolCount     int      `json:"symbol_count"`     // Total subscribed symbols across kinds
	Reconnects      int64    `json:"reconnects"`       // Successful reconnects since Start
	EventsForwarded int64    `json:"events_forwarded"` // Events pushed downstream since Start
	LastEventAt     int64    `json:"last_event_at"`    // Unix seconds of the last forwarded event
}
