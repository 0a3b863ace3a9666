package models

import "encoding/json"

// -----------------------------------------------------------------------------
// dxLink wire frames. Every frame is a JSON text message with a "type" and an
// integer "channel"; channel 0 carries the connection-level conversation and
// channel 1 carries the multiplexed feed.
// -----------------------------------------------------------------------------

// Frame type names as they appear on the wire.
const (
	FrameSetup            = "SETUP"
	FrameAuth             = "AUTH"
	FrameAuthState        = "AUTH_STATE"
	FrameChannelRequest   = "CHANNEL_REQUEST"
	FrameChannelOpened    = "CHANNEL_OPENED"
	FrameChannelCancel    = "CHANNEL_CANCEL"
	FrameChannelClosed    = "CHANNEL_CLOSED"
	FrameFeedSetup        = "FEED_SETUP"
	FrameFeedConfig       = "FEED_CONFIG"
	FrameFeedSubscription = "FEED_SUBSCRIPTION"
	FrameFeedData         = "FEED_DATA"
	FrameKeepalive        = "KEEPALIVE"
	FrameError            = "ERROR"
)

// Auth states announced by the server on channel 0.
const (
	AuthStateUnauthorized = "UNAUTHORIZED"
	AuthStateAuthorized   = "AUTHORIZED"
)

// -----------------------------------------------------------------------------

// MInboundFrame is the superset envelope for every server frame. Fields that
// do not apply to a given frame type stay at their zero value.
type MInboundFrame struct {
	Type       string          `json:"type"`
	Channel    int             `json:"channel"`
	Version    string          `json:"version,omitempty"`
	State      string          `json:"state,omitempty"`
	Service    string          `json:"service,omitempty"`
	DataFormat string          `json:"dataFormat,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// -----------------------------------------------------------------------------

// MSetupMessage negotiates the protocol version and keepalive windows.
type MSetupMessage struct {
	Type                   string `json:"type"`
	Channel                int    `json:"channel"`
	Version                string `json:"version"`
	KeepaliveTimeout       int    `json:"keepaliveTimeout"`
	AcceptKeepaliveTimeout int    `json:"acceptKeepaliveTimeout"`
}

// MAuthMessage carries the short-lived feed token.
type MAuthMessage struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
	Token   string `json:"token"`
}

// MChannelRequest opens the feed service channel.
type MChannelRequest struct {
	Type       string             `json:"type"`
	Channel    int                `json:"channel"`
	Service    string             `json:"service"`
	Parameters MChannelParameters `json:"parameters"`
}

type MChannelParameters struct {
	Contract string `json:"contract"`
}

// MFeedSetup declares the accepted data format and per-kind field order.
type MFeedSetup struct {
	Type                    string              `json:"type"`
	Channel                 int                 `json:"channel"`
	AcceptAggregationPeriod float64             `json:"acceptAggregationPeriod"`
	AcceptDataFormat        string              `json:"acceptDataFormat"`
	AcceptEventFields       map[string][]string `json:"acceptEventFields"`
}

// MFeedSubscription adds and removes feed subscriptions in one frame.
type MFeedSubscription struct {
	Type    string               `json:"type"`
	Channel int                  `json:"channel"`
	Add     []MSubscriptionEntry `json:"add,omitempty"`
	Remove  []MSubscriptionEntry `json:"remove,omitempty"`
}

// MKeepalive is the no-op liveness frame, sent in both directions.
type MKeepalive struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
}

// MChannelCancel closes the feed channel before disconnecting.
type MChannelCancel struct {
	Type    string `json:"type"`
	Channel int    `json:"channel"`
}
