package server

import (
	"testing"
	"time"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func newTestServer(t *testing.T, feed interfaces.IFeedController) *RelayServer {
	t.Helper()
	cfg := &models.MConfig{}
	cfg.Logging.Level = "ERROR"
	cfg.Server.Host = "127.0.0.1"

	cache := utils.NewEventCache(0, 64)
	s := NewRelayServer(cfg, logger.NewLogger(nil, "RelayServer"), feed, cache)
	return s
}

func startHub(t *testing.T, s *RelayServer) {
	t.Helper()
	go s.runHub()
	t.Cleanup(func() { close(s.done) })
}

// receivePayload reads from a client queue with a deadline so a broken hub
// fails the test instead of hanging it.
func receivePayload(t *testing.T, ch chan *models.MRelayPayload) *models.MRelayPayload {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "client queue closed unexpectedly")
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func testClient(s *RelayServer, queue int) *Client {
	return &Client{
		ID:      "test-client",
		hub:     s,
		send:    make(chan *models.MRelayPayload, queue),
		kinds:   make(map[string]struct{}),
		symbols: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------
// Hub loop
// -----------------------------------------------------------------------------

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	s := newTestServer(t, nil)
	startHub(t, s)

	client := testClient(s, 8)
	s.register <- client

	// Initial status payload arrives on connect
	initial := receivePayload(t, client.send)
	assert.Equal(t, models.RelayPayloadStatus, initial.Type)

	s.Broadcast(models.MRelayPayload{
		Type: models.RelayPayloadEvents,
		Events: []models.MRelayEvent{
			{Kind: models.EventTypeQuote, Symbol: "SPY", Event: models.MQuote{EventSymbol: "SPY"}},
		},
	})

	got := receivePayload(t, client.send)
	assert.Equal(t, models.RelayPayloadEvents, got.Type)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "SPY", got.Events[0].Symbol)
	assert.NotZero(t, got.Timestamp)
}

// -----------------------------------------------------------------------------

func TestHubFiltersPerClient(t *testing.T) {
	s := newTestServer(t, nil)
	startHub(t, s)

	spyOnly := testClient(s, 8)
	spyOnly.setFilter(nil, []string{"SPY"})
	all := testClient(s, 8)
	all.ID = "all-client"

	s.register <- spyOnly
	s.register <- all
	receivePayload(t, spyOnly.send)
	receivePayload(t, all.send)

	s.Broadcast(models.MRelayPayload{
		Type: models.RelayPayloadEvents,
		Events: []models.MRelayEvent{
			{Kind: models.EventTypeQuote, Symbol: "SPY"},
			{Kind: models.EventTypeQuote, Symbol: "QQQ"},
		},
	})

	filtered := receivePayload(t, spyOnly.send)
	require.Len(t, filtered.Events, 1)
	assert.Equal(t, "SPY", filtered.Events[0].Symbol)

	full := receivePayload(t, all.send)
	assert.Len(t, full.Events, 2)
}

// -----------------------------------------------------------------------------

func TestHubDropsSlowClient(t *testing.T) {
	s := newTestServer(t, nil)
	startHub(t, s)

	slow := testClient(s, 1)
	s.register <- slow
	// The initial status payload fills the queue of one.

	s.Broadcast(models.MRelayPayload{
		Type:   models.RelayPayloadEvents,
		Events: []models.MRelayEvent{{Kind: models.EventTypeTrade, Symbol: "SPY"}},
	})

	assert.Eventually(t, func() bool {
		return s.clientCount.Load() == 0
	}, 2*time.Second, 10*time.Millisecond, "slow client should be evicted")
	assert.Equal(t, int64(1), s.eventsDropped.Load())
}

// -----------------------------------------------------------------------------

func TestBroadcastNonBlockingWhenHubStopped(t *testing.T) {
	s := newTestServer(t, nil)
	// Hub not running: the queue absorbs hubQueue payloads, then drops.

	for i := 0; i < hubQueue+5; i++ {
		s.Broadcast(models.MRelayPayload{
			Type:   models.RelayPayloadEvents,
			Events: []models.MRelayEvent{{Kind: models.EventTypeQuote, Symbol: "SPY"}},
		})
	}
	assert.Equal(t, int64(5), s.eventsDropped.Load())
}

// -----------------------------------------------------------------------------
// Client filter semantics
// -----------------------------------------------------------------------------

func TestClientFilterPayload(t *testing.T) {
	s := newTestServer(t, nil)
	c := testClient(s, 1)

	payload := &models.MRelayPayload{
		Type: models.RelayPayloadEvents,
		Events: []models.MRelayEvent{
			{Kind: models.EventTypeQuote, Symbol: "SPY"},
			{Kind: models.EventTypeTrade, Symbol: "SPY"},
			{Kind: models.EventTypeQuote, Symbol: "QQQ"},
		},
	}

	// No filter: payload passes through untouched
	assert.Same(t, payload, c.filterPayload(payload))

	c.setFilter([]string{"Quote"}, []string{"QQQ"})
	got := c.filterPayload(payload)
	require.NotNil(t, got)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "QQQ", got.Events[0].Symbol)

	// Nothing matches: nil means skip this client
	c.setFilter([]string{"Greeks"}, nil)
	assert.Nil(t, c.filterPayload(payload))

	// Status payloads ignore filters
	status := &models.MRelayPayload{Type: models.RelayPayloadStatus}
	assert.Same(t, status, c.filterPayload(status))

	// Dropping the only filtered kind reverts to receive-all
	c.dropFilter([]string{"Greeks"}, nil)
	assert.Same(t, payload, c.filterPayload(payload))
}

// -----------------------------------------------------------------------------

func TestHandleClientMessageSubscribe(t *testing.T) {
	s := newTestServer(t, nil)
	s.Cache.Put(models.MQuote{EventSymbol: "SPY", BidPrice: 500})
	s.Cache.Put(models.MQuote{EventSymbol: "QQQ", BidPrice: 400})

	c := testClient(s, 4)
	s.HandleClientMessage(c, []byte(`{"command":"subscribe","symbols":["SPY"]}`))

	snapshot := receivePayload(t, c.send)
	assert.Equal(t, models.RelayPayloadEvents, snapshot.Type)
	require.Len(t, snapshot.Events, 1)
	assert.Equal(t, "SPY", snapshot.Events[0].Symbol)

	// Unknown commands are ignored without disconnecting
	s.HandleClientMessage(c, []byte(`{"command":"ping"}`))
	assert.Empty(t, c.send)
}
