package streamer

import (
	"context"
	"fmt"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/subscription"
	"github.com/tastyware/tastytrade/src/transport"
)

// -----------------------------------------------------------------------------
// DXLinkStreamer is the public face of the market-data stream: one
// multiplexed websocket, per-kind consumption queues, transparent reconnect
// with full subscription replay. Construction does not connect; Start does.
// -----------------------------------------------------------------------------

type DXLinkStreamer struct {
	Config *models.MConfig
	Logger *logger.Logger

	registry   *subscription.Registry
	dispatcher *Dispatcher
	supervisor *Supervisor
}

// NewDXLinkStreamer wires the streamer with the default websocket
// transport.
func NewDXLinkStreamer(config *models.MConfig, provider interfaces.ISessionProvider) *DXLinkStreamer {
	return NewDXLinkStreamerWithDialer(config, provider, transport.NewWSDialer())
}

// NewDXLinkStreamerWithDialer lets callers swap the transport, which the
// tests use to run against an in-memory feed.
func NewDXLinkStreamerWithDialer(config *models.MConfig, provider interfaces.ISessionProvider,
	dialer interfaces.ITransportDialer) *DXLinkStreamer {

	registry := subscription.NewRegistry()
	dispatcher := NewDispatcher(config)

	return &DXLinkStreamer{
		Config:     config,
		Logger:     logger.NewLogger(config, "DXLinkStreamer"),
		registry:   registry,
		dispatcher: dispatcher,
		supervisor: NewSupervisor(config, provider, dialer, registry, dispatcher),
	}
}

// -----------------------------------------------------------------------------

// Start opens the connection machinery in the background. Events begin to
// flow once the handshake reaches Ready; subscriptions made before that are
// replayed automatically.
func (s *DXLinkStreamer) Start() {
	s.supervisor.Start()
}

// -----------------------------------------------------------------------------

// Subscribe registers symbols for an event kind. The registry is updated
// immediately; the wire delta goes out asynchronously, and after any
// reconnect the full set is replayed, so the call succeeds even while
// disconnected.
func (s *DXLinkStreamer) Subscribe(ctx context.Context, kind models.MEventType, symbols []string) error {
	if err := s.check(ctx, kind); err != nil {
		return err
	}
	s.registry.Subscribe(kind, symbols)
	return nil
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbols for an event kind. Unknown symbols are
// ignored.
func (s *DXLinkStreamer) Unsubscribe(ctx context.Context, kind models.MEventType, symbols []string) error {
	if err := s.check(ctx, kind); err != nil {
		return err
	}
	s.registry.Unsubscribe(kind, symbols)
	return nil
}

// -----------------------------------------------------------------------------

// SubscribeCandle subscribes to candles for one symbol at the given
// interval, with history backfill from fromTime (epoch millis).
func (s *DXLinkStreamer) SubscribeCandle(ctx context.Context, symbol string, interval string,
	fromTime int64, extendedHours bool) error {

	if err := s.check(ctx, models.EventTypeCandle); err != nil {
		return err
	}
	s.registry.SubscribeEntries([]models.MSubscriptionEntry{{
		Type:     models.EventTypeCandle,
		Symbol:   CandleSymbol(symbol, interval, extendedHours),
		FromTime: fromTime,
	}})
	return nil
}

// -----------------------------------------------------------------------------

// UnsubscribeCandle removes a candle subscription made with the same
// symbol, interval and extended-hours flag.
func (s *DXLinkStreamer) UnsubscribeCandle(ctx context.Context, symbol string, interval string,
	extendedHours bool) error {

	if err := s.check(ctx, models.EventTypeCandle); err != nil {
		return err
	}
	s.registry.Unsubscribe(models.EventTypeCandle, []string{CandleSymbol(symbol, interval, extendedHours)})
	return nil
}

// -----------------------------------------------------------------------------

// SubscribeTimeSeries subscribes symbols of a time-series kind with history
// backfill from fromTime (epoch millis).
func (s *DXLinkStreamer) SubscribeTimeSeries(ctx context.Context, kind models.MEventType,
	symbols []string, fromTime int64) error {

	if err := s.check(ctx, kind); err != nil {
		return err
	}
	if !kind.IsTimeSeries() {
		return fmt.Errorf("event kind %s does not support time series subscriptions", kind)
	}

	entries := make([]models.MSubscriptionEntry, 0, len(symbols))
	for _, symbol := range symbols {
		entries = append(entries, models.MSubscriptionEntry{Type: kind, Symbol: symbol, FromTime: fromTime})
	}
	s.registry.SubscribeEntries(entries)
	return nil
}

// -----------------------------------------------------------------------------

// Listen returns the consumption queue for one event kind. The channel is
// closed when the streamer stops.
func (s *DXLinkStreamer) Listen(kind models.MEventType) <-chan interfaces.IEvent {
	return s.dispatcher.QueueFor(kind)
}

// GetEvent blocks for the next event of the kind.
func (s *DXLinkStreamer) GetEvent(ctx context.Context, kind models.MEventType) (interfaces.IEvent, error) {
	return s.dispatcher.NextOf(ctx, kind)
}

// GetEventNowait returns a buffered event of the kind, if any.
func (s *DXLinkStreamer) GetEventNowait(kind models.MEventType) (interfaces.IEvent, bool) {
	return s.dispatcher.TryNext(kind)
}

// -----------------------------------------------------------------------------

// Notifications exposes connection lifecycle transitions (failed,
// reconnected, closed).
func (s *DXLinkStreamer) Notifications() <-chan models.MStreamNotice {
	return s.supervisor.Notices()
}

// State returns the current connection state.
func (s *DXLinkStreamer) State() ConnectionState {
	return s.supervisor.State()
}

// Err returns the terminal error after the retry budget is exhausted.
func (s *DXLinkStreamer) Err() error {
	return s.supervisor.Err()
}

// Registry exposes the subscription registry for status reporting.
func (s *DXLinkStreamer) Registry() *subscription.Registry {
	return s.registry
}

// -----------------------------------------------------------------------------

// Close stops the connection machinery and unblocks every consumer.
// Idempotent.
func (s *DXLinkStreamer) Close() error {
	return s.supervisor.Close()
}

// -----------------------------------------------------------------------------

func (s *DXLinkStreamer) check(ctx context.Context, kind models.MEventType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kind.IsValid() {
		return fmt.Errorf("unknown event kind %q", kind)
	}
	if s.dispatcher.Err() != nil {
		return s.dispatcher.Err()
	}
	return nil
}

// -----------------------------------------------------------------------------

// CandleSymbol builds the feed symbol for a candle subscription:
// AAPL{=5m}, or AAPL{=5m,tho=true} for extended trading hours.
func CandleSymbol(symbol string, interval string, extendedHours bool) string {
	if extendedHours {
		return fmt.Sprintf("%s{=%s,tho=true}", symbol, interval)
	}
	return fmt.Sprintf("%s{=%s}", symbol, interval)
}
