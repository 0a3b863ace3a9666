package models

import (
	"encoding/json"
	"time"
)

// -----------------------------------------------------------------------------

// MStreamNoticeKind labels a connection lifecycle transition observable by
// the caller.
type MStreamNoticeKind string

const (
	NoticeFailed      MStreamNoticeKind = "FAILED"
	NoticeReconnected MStreamNoticeKind = "RECONNECTED"
	NoticeClosed      MStreamNoticeKind = "CLOSED"
)

// MStreamNotice is published on the streamer's notification channel whenever
// the connection fails, recovers, or is closed for good. Err is set for
// FAILED notices; Attempt counts consecutive failures since the last
// sustained healthy period.
type MStreamNotice struct {
	Kind    MStreamNoticeKind `json:"kind"`
	Err     error             `json:"-"`
	Attempt int               `json:"attempt"`
	Time    time.Time         `json:"time"`
}

// -----------------------------------------------------------------------------

// MAccountNotice is one decoded message from the account-notification
// stream (orders, balances, watchlists, quote alerts, user messages).
type MAccountNotice struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// MAccountRequest is the client-to-server message shape of the
// account-notification stream.
type MAccountRequest struct {
	AuthToken string `json:"auth-token"`
	Action    string `json:"action"`
	Value     any    `json:"value,omitempty"`
	RequestID int    `json:"request-id"`
}

// MAccountInbound is the superset envelope of server messages on the
// account-notification stream: data messages carry a type, action acks
// carry a status.
type MAccountInbound struct {
	Type               string          `json:"type"`
	Data               json.RawMessage `json:"data"`
	Timestamp          int64           `json:"timestamp"`
	Status             string          `json:"status"`
	Action             string          `json:"action"`
	Message            string          `json:"message"`
	RequestID          int             `json:"request-id"`
	WebSocketSessionID string          `json:"web-socket-session-id"`
}
