package server

import (
	"sync"
	"time"

	"github.com/tastyware/tastytrade/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // client commands are small
	clientQueue    = 256
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	ID   string
	hub  *RelayServer
	conn *websocket.Conn
	send chan *models.MRelayPayload

	// Filter set by subscribe commands. Empty means "everything".
	// Written by readPump, read by the hub loop.
	mu      sync.Mutex
	kinds   map[string]struct{}
	symbols map[string]struct{}
}

// -----------------------------------------------------------------------------

func newClient(hub *RelayServer, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		// Buffered channel to prevent blocking the hub loop
		send:    make(chan *models.MRelayPayload, clientQueue),
		kinds:   make(map[string]struct{}),
		symbols: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------
// Filtering
// -----------------------------------------------------------------------------

// setFilter replaces the client's filter. Empty slices clear that dimension.
func (c *Client) setFilter(kinds, symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		c.kinds[k] = struct{}{}
	}
	c.symbols = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		c.symbols[s] = struct{}{}
	}
}

// -----------------------------------------------------------------------------

// dropFilter removes entries from the current filter. Removing from an empty
// (receive-all) filter is a no-op.
func (c *Client) dropFilter(kinds, symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range kinds {
		delete(c.kinds, k)
	}
	for _, s := range symbols {
		delete(c.symbols, s)
	}
}

// -----------------------------------------------------------------------------

// wants reports whether the client's filter admits this event.
func (c *Client) wants(ev models.MRelayEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wantsLocked(ev)
}

func (c *Client) wantsLocked(ev models.MRelayEvent) bool {
	if len(c.kinds) > 0 {
		if _, ok := c.kinds[string(ev.Kind)]; !ok {
			return false
		}
	}
	if len(c.symbols) > 0 {
		if _, ok := c.symbols[ev.Symbol]; !ok {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// filterPayload returns the payload trimmed to the client's filter. STATUS
// payloads always pass through. Returns nil when nothing is left to send.
func (c *Client) filterPayload(p *models.MRelayPayload) *models.MRelayPayload {
	if p.Type != models.RelayPayloadEvents {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.kinds) == 0 && len(c.symbols) == 0 {
		return p
	}

	filtered := make([]models.MRelayEvent, 0, len(p.Events))
	for _, ev := range p.Events {
		if c.wantsLocked(ev) {
			filtered = append(filtered, ev)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	out := *p
	out.Events = filtered
	return &out
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Acts as a watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.hub.Logger.Info("Client %s disconnected", c.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("Client %s websocket error: %v", c.ID, err)
			}
			break
		}
		// Handle the message (subscribe commands)
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Info("Client %s write error: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
