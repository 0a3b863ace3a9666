package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tastyware/tastytrade/src/metrics"
	"github.com/tastyware/tastytrade/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub owns the client set. Register, unregister, and broadcast all funnel
// through this loop so the map is never touched concurrently.
func (s *RelayServer) runHub() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Store(int64(len(s.clients)))
			metrics.RelayClients.Set(float64(len(s.clients)))

			// Send current source status on connect
			select {
			case client.send <- s.statusPayload():
			default:
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.clientCount.Store(int64(len(s.clients)))
				metrics.RelayClients.Set(float64(len(s.clients)))
			}

		case payload := <-s.broadcast:
			for client := range s.clients {
				msg := client.filterPayload(payload)
				if msg == nil {
					continue
				}
				select {
				case client.send <- msg:
					s.eventsBroadcast.Add(int64(len(msg.Events)))
				default:
					// Client too slow, disconnect to prevent the hub blocking
					s.eventsDropped.Add(int64(len(msg.Events)))
					delete(s.clients, client)
					close(client.send)
					s.clientCount.Store(int64(len(s.clients)))
					metrics.RelayClients.Set(float64(len(s.clients)))
					s.Logger.Warning("Client %s not keeping up, dropped", client.ID)
				}
			}

		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientCount.Store(0)
			metrics.RelayClients.Set(0)
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues an event batch for fan-out. Non-blocking: when the hub
// queue is full the batch is counted as dropped rather than stalling the
// feed pipeline.
func (s *RelayServer) Broadcast(payload models.MRelayPayload) {
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().UnixMilli()
	}
	payload.Stats = s.stats()

	select {
	case s.broadcast <- &payload:
	default:
		s.eventsDropped.Add(int64(len(payload.Events)))
	}
}

// -----------------------------------------------------------------------------

// UpdateStatus refreshes the status snapshot served by /api/v1/status and
// pushed to clients on connect.
func (s *RelayServer) UpdateStatus(status []models.MFeedSourceStatus) {
	s.statusMutex.Lock()
	s.status = status
	s.statusMutex.Unlock()
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

func (s *RelayServer) stats() models.MRelayStats {
	return models.MRelayStats{
		EventsBroadcast: s.eventsBroadcast.Load(),
		EventsDropped:   s.eventsDropped.Load(),
		ClientCount:     int(s.clientCount.Load()),
	}
}

// -----------------------------------------------------------------------------

func (s *RelayServer) statusPayload() *models.MRelayPayload {
	s.statusMutex.RLock()
	status := s.status
	s.statusMutex.RUnlock()

	return &models.MRelayPayload{
		Type:      models.RelayPayloadStatus,
		Status:    status,
		Stats:     s.stats(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// -----------------------------------------------------------------------------

// snapshotFor builds an initial event batch from the cache, trimmed to the
// client's filter, so a fresh subscriber gets last-known values immediately.
func (s *RelayServer) snapshotFor(client *Client) *models.MRelayPayload {
	payload := &models.MRelayPayload{
		Type:      models.RelayPayloadEvents,
		Stats:     s.stats(),
		Timestamp: time.Now().UnixMilli(),
	}
	if s.Cache == nil {
		return payload
	}

	for _, kind := range models.AllEventTypes() {
		for symbol, ev := range s.Cache.LatestByKind(kind) {
			re := models.MRelayEvent{Kind: kind, Symbol: symbol, Event: ev}
			if client.wants(re) {
				payload.Events = append(payload.Events, re)
			}
		}
	}
	return payload
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *RelayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn)
	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *RelayServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Client %s sent unparseable command: %v, disconnecting", client.ID, err)
		client.conn.Close()
		return
	}

	switch cmd.Command {
	case "subscribe":
		client.setFilter(cmd.Kinds, cmd.Symbols)

		// Reply with last-known values matching the new filter.
		// Non-blocking: a client that cannot drain its own subscribe
		// response is not worth stalling for.
		select {
		case client.send <- s.snapshotFor(client):
		default:
		}

	case "unsubscribe":
		client.dropFilter(cmd.Kinds, cmd.Symbols)

	default:
		s.Logger.Debug("Client %s sent unknown command %q", client.ID, cmd.Command)
	}
}
