package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/streamer"
	"github.com/tastyware/tastytrade/src/utils"
)

const (
	// Events are pushed downstream in batches to amortize channel traffic
	// during feed bursts.
	batchMax     = 64
	forwardQueue = 1024
)

// -----------------------------------------------------------------------------
// DXLinkSource adapts a DXLinkStreamer to the IFeedSource contract: it fans
// the per-kind queues into one batch stream and layers market-hours gating
// on top. Each Start builds a fresh streamer, so a restart recovers from a
// terminal connection failure.
// -----------------------------------------------------------------------------

type DXLinkSource struct {
	Config       *models.MConfig
	SourceConfig models.MFeedSourceConfig
	Provider     interfaces.ISessionProvider
	Logger       *logger.Logger
	Scheduler    *utils.MarketScheduler

	dialer interfaces.ITransportDialer // nil selects the default websocket dialer

	streamer   *streamer.DXLinkStreamer
	ctx        context.Context
	cancelFunc context.CancelFunc
	outputChan chan<- []interfaces.IEvent
	isRunning  atomic.Bool
	mu         sync.Mutex

	reconnects      atomic.Int64
	eventsForwarded atomic.Int64
	lastEventAt     atomic.Int64
}

// -----------------------------------------------------------------------------

func NewDXLinkSource(cfg *models.MConfig, sourceCfg models.MFeedSourceConfig,
	provider interfaces.ISessionProvider) *DXLinkSource {

	return &DXLinkSource{
		Config:       cfg,
		SourceConfig: sourceCfg,
		Provider:     provider,
		Logger:       logger.NewLogger(nil, "DXLinkSource-"+sourceCfg.Name),
		Scheduler: utils.NewMarketScheduler(cfg.Feed.Exchange, sourceCfg.Symbols,
			logger.NewLogger(nil, "MarketScheduler-"+sourceCfg.Name)),
	}
}

// NewDXLinkSourceWithDialer lets tests run the source against an in-memory
// transport.
func NewDXLinkSourceWithDialer(cfg *models.MConfig, sourceCfg models.MFeedSourceConfig,
	provider interfaces.ISessionProvider, dialer interfaces.ITransportDialer) *DXLinkSource {

	s := NewDXLinkSource(cfg, sourceCfg, provider)
	s.dialer = dialer
	return s
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) GetName() string {
	return s.SourceConfig.Name
}

// -----------------------------------------------------------------------------

// IsRealTime returns true: dxLink pushes events as they happen.
func (s *DXLinkSource) IsRealTime() bool {
	return true
}

// -----------------------------------------------------------------------------

// Start builds a streamer, applies the configured subscriptions and begins
// forwarding event batches to outputChan.
func (s *DXLinkSource) Start(parentCtx context.Context, outputChan chan<- []interfaces.IEvent,
	wg *sync.WaitGroup) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.GetName())
	}

	ctx, cancel := context.WithCancel(parentCtx)

	var st *streamer.DXLinkStreamer
	if s.dialer != nil {
		st = streamer.NewDXLinkStreamerWithDialer(s.Config, s.Provider, s.dialer)
	} else {
		st = streamer.NewDXLinkStreamer(s.Config, s.Provider)
	}
	st.Start()

	s.ctx = ctx
	s.cancelFunc = cancel
	s.outputChan = outputChan
	s.streamer = st
	s.isRunning.Store(true)

	if err := s.applyConfiguredSubscriptions(ctx, st); err != nil {
		s.Logger.Error("Failed to apply configured subscriptions: %v", err)
	}

	wg.Add(1)
	go s.runLoop(ctx, st, wg)

	if s.Config.Feed.MarketHoursOnly {
		wg.Add(1)
		go s.gateLoop(ctx, st, wg)
	}

	s.Logger.Info("Started DXLinkSource %s (%d kinds, %d symbols, %d candles)",
		s.GetName(), len(s.SourceConfig.Kinds), len(s.SourceConfig.Symbols), len(s.SourceConfig.Candles))
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the run loop and closes the streamer.
func (s *DXLinkSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.GetName())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	err := s.streamer.Close()
	s.isRunning.Store(false)
	s.Logger.Info("Stopped DXLinkSource %s", s.GetName())
	return err
}

// -----------------------------------------------------------------------------
// Subscription surface
// -----------------------------------------------------------------------------

func (s *DXLinkSource) Subscribe(kind models.MEventType, symbols []string) error {
	st, ctx, err := s.liveStreamer()
	if err != nil {
		return err
	}
	if err := st.Subscribe(ctx, kind, symbols); err != nil {
		return err
	}
	s.Scheduler.UpdateSymbols(s.allSymbols(st))
	return nil
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) UnSubscribe(kind models.MEventType, symbols []string) error {
	st, ctx, err := s.liveStreamer()
	if err != nil {
		return err
	}
	if err := st.Unsubscribe(ctx, kind, symbols); err != nil {
		return err
	}
	s.Scheduler.UpdateSymbols(s.allSymbols(st))
	return nil
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) SubscribeEntries(entries []models.MSubscriptionEntry) error {
	st, _, err := s.liveStreamer()
	if err != nil {
		return err
	}
	st.Registry().SubscribeEntries(entries)
	s.Scheduler.UpdateSymbols(s.allSymbols(st))
	return nil
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) Subscriptions() []models.MSubscriptionEntry {
	s.mu.Lock()
	st := s.streamer
	s.mu.Unlock()

	if st == nil {
		return nil
	}
	return st.Registry().Snapshot().Add
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) GetStatus() *models.MFeedSourceStatus {
	status := &models.MFeedSourceStatus{
		SourceName:      s.GetName(),
		Running:         s.isRunning.Load(),
		ConnectionState: streamer.StateDisconnected.String(),
		Reconnects:      s.reconnects.Load(),
		EventsForwarded: s.eventsForwarded.Load(),
		LastEventAt:     s.lastEventAt.Load(),
	}

	s.mu.Lock()
	st := s.streamer
	s.mu.Unlock()
	if st == nil {
		return status
	}

	status.ConnectionState = st.State().String()
	status.Endpoint = s.Config.Streamer.URLOverride

	for kind, symbols := range st.Registry().KindSymbols() {
		status.Kinds = append(status.Kinds, string(kind))
		status.SymbolCount += len(symbols)
	}
	sort.Strings(status.Kinds)
	return status
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (s *DXLinkSource) liveStreamer() (*streamer.DXLinkStreamer, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() || s.streamer == nil {
		return nil, nil, fmt.Errorf("source %s is not running", s.GetName())
	}
	return s.streamer, s.ctx, nil
}

// -----------------------------------------------------------------------------

// applyConfiguredSubscriptions turns the static source config into live
// subscriptions: plain kinds over the symbol list, candles with a lookback
// backfill window.
func (s *DXLinkSource) applyConfiguredSubscriptions(ctx context.Context, st *streamer.DXLinkStreamer) error {
	for _, name := range s.SourceConfig.Kinds {
		kind := models.MEventType(name)
		if !kind.IsValid() {
			s.Logger.Warning("Skipping unknown event kind %q in source %s", name, s.GetName())
			continue
		}
		if len(s.SourceConfig.Symbols) == 0 {
			continue
		}
		if err := st.Subscribe(ctx, kind, s.SourceConfig.Symbols); err != nil {
			return err
		}
	}

	for _, c := range s.SourceConfig.Candles {
		lookback := time.Duration(c.LookbackHours) * time.Hour
		fromTime := time.Now().Add(-lookback).UnixMilli()
		if c.LookbackHours <= 0 {
			fromTime = time.Now().UnixMilli()
		}
		if err := st.SubscribeCandle(ctx, c.Symbol, c.Interval, fromTime, c.ExtendedHours); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// runLoop fans the streamer's per-kind queues into one merged stream and
// pushes batches downstream. Exits when the streamer stops or the context is
// canceled.
func (s *DXLinkSource) runLoop(ctx context.Context, st *streamer.DXLinkStreamer, wg *sync.WaitGroup) {
	defer wg.Done()

	merged := make(chan interfaces.IEvent, forwardQueue)
	var pumps sync.WaitGroup
	for _, kind := range models.AllEventTypes() {
		pumps.Add(1)
		go func(queue <-chan interfaces.IEvent) {
			defer pumps.Done()
			for ev := range queue {
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(st.Listen(kind))
	}
	go func() {
		pumps.Wait()
		close(merged)
	}()

	notices := st.Notifications()

	for {
		select {
		case <-ctx.Done():
			return

		case notice, ok := <-notices:
			if !ok {
				// Supervisor stopped; the queues will close right after.
				notices = nil
				continue
			}
			s.handleNotice(notice)

		case ev, ok := <-merged:
			if !ok {
				if err := st.Err(); err != nil {
					s.Logger.Error("Source %s feed terminated: %v", s.GetName(), err)
				}
				return
			}
			s.push(ctx, s.collectBatch(ev, merged))
		}
	}
}

// -----------------------------------------------------------------------------

// collectBatch drains whatever is immediately available behind the first
// event, bounded by batchMax.
func (s *DXLinkSource) collectBatch(first interfaces.IEvent, merged <-chan interfaces.IEvent) []interfaces.IEvent {
	batch := make([]interfaces.IEvent, 1, batchMax)
	batch[0] = first
	for len(batch) < batchMax {
		select {
		case ev, ok := <-merged:
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) push(ctx context.Context, batch []interfaces.IEvent) {
	select {
	case s.outputChan <- batch:
		s.eventsForwarded.Add(int64(len(batch)))
		s.lastEventAt.Store(time.Now().Unix())
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) handleNotice(notice models.MStreamNotice) {
	switch notice.Kind {
	case models.NoticeReconnected:
		s.reconnects.Add(1)
		s.Logger.Info("Source %s reconnected", s.GetName())
	case models.NoticeFailed:
		s.Logger.Warning("Source %s connection failed (attempt %d): %v",
			s.GetName(), notice.Attempt, notice.Err)
	case models.NoticeClosed:
		s.Logger.Info("Source %s connection closed", s.GetName())
	}
}

// -----------------------------------------------------------------------------

// gateLoop suspends subscriptions while every mapped market is closed and
// restores them at the next open. The set restored is the one captured at
// close time, so control-plane changes made overnight survive.
func (s *DXLinkSource) gateLoop(ctx context.Context, st *streamer.DXLinkStreamer, wg *sync.WaitGroup) {
	defer wg.Done()

	var parked []models.MSubscriptionEntry
	open := s.Scheduler.AnyMarketOpen()

	// Started outside market hours: park the configured set right away.
	if !open {
		parked = s.parkAll(st)
	}

	for {
		next := s.Scheduler.NextTransition(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		nowOpen := s.Scheduler.AnyMarketOpen()
		if nowOpen == open {
			continue
		}
		open = nowOpen

		if !nowOpen {
			parked = s.parkAll(st)
			continue
		}

		if len(parked) > 0 {
			st.Registry().SubscribeEntries(parked)
			s.Logger.Info("Market open, restored %d subscriptions for %s", len(parked), s.GetName())
			parked = nil
		}
	}
}

// -----------------------------------------------------------------------------

func (s *DXLinkSource) parkAll(st *streamer.DXLinkStreamer) []models.MSubscriptionEntry {
	parked := st.Registry().Snapshot().Add
	for kind, symbols := range st.Registry().KindSymbols() {
		st.Registry().Unsubscribe(kind, symbols)
	}
	s.Logger.Info("Market closed, parked %d subscriptions for %s", len(parked), s.GetName())
	return parked
}

// -----------------------------------------------------------------------------

// allSymbols flattens the registry's symbol lists for the scheduler.
func (s *DXLinkSource) allSymbols(st *streamer.DXLinkStreamer) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, list := range st.Registry().KindSymbols() {
		for _, symbol := range list {
			if _, ok := seen[symbol]; ok {
				continue
			}
			seen[symbol] = struct{}{}
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
