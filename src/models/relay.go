package models

// -----------------------------------------------------------------------------
// Relay server payloads pushed to downstream websocket clients.
// -----------------------------------------------------------------------------

// MRelayEvent wraps one decoded event with its kind tag so clients can
// dispatch without inspecting the payload shape.
type MRelayEvent struct {
	Kind   MEventType `json:"kind"`
	Symbol string     `json:"symbol"`
	Event  any        `json:"event"`
}

// Payload types on the relay websocket.
const (
	RelayPayloadEvents = "EVENTS"
	RelayPayloadStatus = "STATUS"
)

// MRelayPayload is the envelope broadcast to relay clients.
// Type is RelayPayloadEvents for event batches and RelayPayloadStatus for
// periodic status pushes.
type MRelayPayload struct {
	Type      string              `json:"type"`
	Events    []MRelayEvent       `json:"events,omitempty"`
	Status    []MFeedSourceStatus `json:"status,omitempty"`
	Stats     MRelayStats         `json:"stats"`
	Timestamp int64               `json:"timestamp"`
}

// MRelayStats summarizes the relay's processing since startup.
type MRelayStats struct {
	EventsBroadcast int64 `json:"events_broadcast"`
	EventsDropped   int64 `json:"events_dropped"`
	ClientCount     int   `json:"client_count"`
}

// -----------------------------------------------------------------------------
// Client messages on the relay websocket
// -----------------------------------------------------------------------------

// MSubscribeCommand filters what a relay client receives. An empty Kinds or
// Symbols list means "all".
type MSubscribeCommand struct {
	Command string   `json:"command"` // "subscribe" or "unsubscribe"
	Kinds   []string `json:"kinds"`
	Symbols []string `json:"symbols"`
}
