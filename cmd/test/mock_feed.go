package main

import (
	"encoding/json"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// MockFeedServer is an in-process dxLink endpoint: it walks the full
// SETUP/AUTH/CHANNEL_REQUEST/FEED_SETUP handshake and then emits synthetic
// COMPACT frames for whatever the client subscribes to. It exists so the
// harness can exercise the real streamer, transport included, without
// credentials or network access.
// -----------------------------------------------------------------------------

const (
	mockToken    = "mock-feed-token"
	emitInterval = 500 * time.Millisecond
)

type MockFeedServer struct {
	Logger *logger.Logger

	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// mockClientFrame is the superset of every client-to-server dxLink message
// the mock needs to understand.
type mockClientFrame struct {
	Type    string                      `json:"type"`
	Channel int                         `json:"channel"`
	Token   string                      `json:"token"`
	Add     []models.MSubscriptionEntry `json:"add"`
	Remove  []models.MSubscriptionEntry `json:"remove"`
}

// -----------------------------------------------------------------------------

func NewMockFeedServer(log *logger.Logger) (*MockFeedServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &MockFeedServer{
		Logger:   log,
		listener: listener,
		conns:    make(map[*websocket.Conn]struct{}),
	}
	s.http = &http.Server{Handler: http.HandlerFunc(s.handle)}

	go s.http.Serve(listener)
	log.Info("Mock feed listening on %s", s.URL())
	return s, nil
}

// -----------------------------------------------------------------------------

// URL returns the websocket endpoint clients should dial.
func (s *MockFeedServer) URL() string {
	return "ws://" + s.listener.Addr().String() + "/realtime"
}

// Token returns the only token the mock accepts.
func (s *MockFeedServer) Token() string {
	return mockToken
}

// -----------------------------------------------------------------------------

// DropClients force-closes every live connection, simulating a transport
// failure so the harness can watch the supervisor reconnect and replay.
func (s *MockFeedServer) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
	s.Logger.Info("Mock feed dropped %d client(s)", len(s.conns))
}

// -----------------------------------------------------------------------------

func (s *MockFeedServer) Close() error {
	s.DropClients()
	return s.http.Close()
}

// -----------------------------------------------------------------------------
// Per-connection protocol loop
// -----------------------------------------------------------------------------

func (s *MockFeedServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warning("Mock feed upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	var writeMu sync.Mutex
	send := func(frame any) {
		payload, err := json.Marshal(frame)
		if err != nil {
			return
		}
		writeMu.Lock()
		conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
	}

	// subscribed is only touched from this goroutine; the emitter works
	// from the snapshots pushed into subsCh.
	subscribed := make(map[models.MEventType]map[string]struct{})
	subsCh := make(chan map[models.MEventType][]string, 8)
	done := make(chan struct{})
	defer close(done)
	go s.emit(send, subsCh, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame mockClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.Logger.Warning("Mock feed got unparseable frame: %v", err)
			continue
		}

		switch frame.Type {
		case models.FrameSetup:
			send(map[string]any{"type": models.FrameSetup, "channel": 0, "version": "1.0-mock"})
			send(map[string]any{"type": models.FrameAuthState, "channel": 0, "state": models.AuthStateUnauthorized})

		case models.FrameAuth:
			if frame.Token != mockToken {
				send(map[string]any{"type": models.FrameError, "channel": 0,
					"error": "UNAUTHORIZED", "message": "bad token"})
				return
			}
			send(map[string]any{"type": models.FrameAuthState, "channel": 0, "state": models.AuthStateAuthorized})

		case models.FrameChannelRequest:
			send(map[string]any{"type": models.FrameChannelOpened, "channel": frame.Channel, "service": "FEED"})

		case models.FrameFeedSetup:
			send(map[string]any{"type": models.FrameFeedConfig, "channel": frame.Channel,
				"dataFormat": "COMPACT", "aggregationPeriod": 0.1})

		case models.FrameFeedSubscription:
			for _, entry := range frame.Add {
				if subscribed[entry.Type] == nil {
					subscribed[entry.Type] = make(map[string]struct{})
				}
				subscribed[entry.Type][entry.Symbol] = struct{}{}
			}
			for _, entry := range frame.Remove {
				delete(subscribed[entry.Type], entry.Symbol)
			}
			s.Logger.Info("Mock feed subscription now: %s", describe(subscribed))
			subsCh <- snapshot(subscribed)

		case models.FrameKeepalive:
			send(map[string]any{"type": models.FrameKeepalive, "channel": 0})

		case models.FrameChannelCancel:
			send(map[string]any{"type": models.FrameChannelClosed, "channel": frame.Channel})

		default:
			s.Logger.Warning("Mock feed ignoring frame %q", frame.Type)
		}
	}
}

// -----------------------------------------------------------------------------

// emit pushes one synthetic FEED_DATA frame per subscribed (kind, symbol)
// pair on every tick.
func (s *MockFeedServer) emit(send func(any), subsCh <-chan map[models.MEventType][]string, done <-chan struct{}) {
	tick := time.NewTicker(emitInterval)
	defer tick.Stop()

	var current map[models.MEventType][]string
	for {
		select {
		case <-done:
			return
		case current = <-subsCh:
		case <-tick.C:
			for kind, symbols := range current {
				for _, symbol := range symbols {
					values := syntheticValues(kind, symbol)
					if values == nil {
						continue
					}
					send(map[string]any{
						"type":    models.FrameFeedData,
						"channel": 1,
						"data":    []any{string(kind), values},
					})
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// syntheticValues builds one COMPACT record in the schema's declared field
// order. Kinds the harness does not exercise return nil and are skipped.
func syntheticValues(kind models.MEventType, symbol string) []any {
	now := time.Now().UnixMilli()
	price := 100 + rand.Float64()*10

	switch kind {
	case models.EventTypeQuote:
		return []any{
			symbol, now, 0, 0,
			now, "Q", price - 0.05, price + 0.05, 100.0, 200.0,
			now, "Q",
		}
	case models.EventTypeTrade:
		return []any{
			symbol, now, now, 0, 0,
			"N", price, 0.1, float64(1 + rand.Intn(500)),
			0, 1_000_000.0, 2_000_000.0, "UP", false,
		}
	case models.EventTypeGreeks:
		return []any{
			symbol, now, 0, 0, now, 0,
			price, 0.25, 0.5, 0.01, -0.02, 0.03, 0.15,
		}
	default:
		return nil
	}
}

// -----------------------------------------------------------------------------

func snapshot(subs map[models.MEventType]map[string]struct{}) map[models.MEventType][]string {
	out := make(map[models.MEventType][]string, len(subs))
	for kind, symbols := range subs {
		for symbol := range symbols {
			out[kind] = append(out[kind], symbol)
		}
	}
	return out
}

func describe(subs map[models.MEventType]map[string]struct{}) string {
	payload, _ := json.Marshal(snapshot(subs))
	return string(payload)
}
