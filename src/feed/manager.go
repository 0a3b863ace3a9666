package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tastyware/tastytrade/src/analysis"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/storage"
	"github.com/tastyware/tastytrade/src/utils"
)

const (
	eventQueue     = 256
	flushInterval  = time.Second
	statusInterval = 5 * time.Second
)

// -----------------------------------------------------------------------------
// Manager owns the feed sources and the downstream pipeline: every event
// batch flows through the cache, the candle builder, the recorder, the
// publisher and the relay. It is also the control surface the relay's REST
// endpoints steer.
// -----------------------------------------------------------------------------

type Manager struct {
	Config *models.MConfig
	Logger *logger.Logger

	// Optional collaborators; nil disables that leg of the pipeline.
	Cache     *utils.EventCache
	Builder   *analysis.CandleBuilder
	Recorder  *storage.Recorder
	Publisher interfaces.IEventPublisher
	Exchanger interfaces.IDataExchanger
	Store     interfaces.IEventStore

	sources map[string]interfaces.IFeedSource
	mu      sync.RWMutex

	events chan []interfaces.IEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

// NewManager builds the manager and one DXLinkSource per configured source.
// Collaborator fields (Cache, Builder, Recorder, ...) are assigned by the
// caller before Run.
func NewManager(cfg *models.MConfig, provider interfaces.ISessionProvider, log *logger.Logger) *Manager {
	m := &Manager{
		Config:  cfg,
		Logger:  log,
		sources: make(map[string]interfaces.IFeedSource),
		events:  make(chan []interfaces.IEvent, eventQueue),
	}

	for _, sc := range cfg.Feed.Sources {
		src := NewDXLinkSource(cfg, sc, provider)
		m.sources[src.GetName()] = src
	}
	return m
}

// -----------------------------------------------------------------------------

// AddSource registers a source and starts it if the manager is running.
func (m *Manager) AddSource(source interfaces.IFeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.GetName()
	if _, exists := m.sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.sources[name] = source
	m.Logger.Info("Added source: %s", name)

	if m.ctx != nil {
		if err := source.Start(m.ctx, m.events, &m.wg); err != nil {
			return fmt.Errorf("failed to start source %s: %w", name, err)
		}
		m.Logger.Info("Started source: %s", name)
	}
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and forgets a source.
func (m *Manager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if err := source.Stop(); err != nil {
		m.Logger.Error("Error stopping source %s: %v", name, err)
	}

	delete(m.sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// Run starts every source and consumes the pipeline until ctx is canceled.
func (m *Manager) Run(parentCtx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return fmt.Errorf("feed manager is already running")
	}
	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancel = cancel
	sources := m.sourceList()
	m.mu.Unlock()

	for _, src := range sources {
		if err := src.Start(ctx, m.events, &m.wg); err != nil {
			cancel()
			return fmt.Errorf("failed to start source %s: %w", src.GetName(), err)
		}
		m.restoreSubscriptions(src)
	}
	m.Logger.Info("Feed manager running with %d sources", len(sources))

	m.pipeline(ctx)
	m.wg.Wait()
	m.Logger.Info("Feed manager stopped")
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the run context. Run unwinds from there.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.ctx = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Pipeline
// -----------------------------------------------------------------------------

func (m *Manager) pipeline(ctx context.Context) {
	flush := time.NewTicker(flushInterval)
	defer flush.Stop()
	status := time.NewTicker(statusInterval)
	defer status.Stop()

	var bars <-chan models.MCandleBar
	if m.Builder != nil {
		bars = m.Builder.Completed()
	}

	for {
		select {
		case <-ctx.Done():
			m.drainOnShutdown()
			return

		case batch := <-m.events:
			m.handleBatch(batch)

		case bar := <-bars:
			m.handleBar(bar)

		case <-flush.C:
			if m.Builder != nil {
				m.Builder.FlushBefore(time.Now())
			}

		case <-status.C:
			m.pushStatus()
		}
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) handleBatch(batch []interfaces.IEvent) {
	relayEvents := make([]models.MRelayEvent, 0, len(batch))

	for _, ev := range batch {
		if m.Cache != nil {
			m.Cache.Put(ev)
		}
		if m.Builder != nil {
			if trade, ok := ev.(models.MTrade); ok {
				m.Builder.Observe(trade)
			}
		}
		if m.Recorder != nil {
			m.Recorder.Record(ev)
		}
		if m.Publisher != nil {
			if err := m.Publisher.PublishEvent(ev); err != nil {
				m.Logger.Debug("Publish failed for %s %s: %v", ev.Kind(), ev.Symbol(), err)
			}
		}
		relayEvents = append(relayEvents, models.MRelayEvent{
			Kind:   ev.Kind(),
			Symbol: ev.Symbol(),
			Event:  ev,
		})
	}

	if m.Exchanger != nil {
		m.Exchanger.Broadcast(models.MRelayPayload{
			Type:   models.RelayPayloadEvents,
			Events: relayEvents,
		})
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) handleBar(bar models.MCandleBar) {
	if m.Recorder != nil {
		m.Recorder.RecordBar(bar)
	}
	if m.Publisher != nil {
		if err := m.Publisher.PublishBar(bar); err != nil {
			m.Logger.Debug("Bar publish failed for %s/%s: %v", bar.Symbol, bar.WindowName, err)
		}
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) pushStatus() {
	if m.Exchanger == nil {
		return
	}
	statuses := m.Statuses()
	m.Exchanger.UpdateStatus(statuses)
	m.Exchanger.Broadcast(models.MRelayPayload{
		Type:   models.RelayPayloadStatus,
		Status: statuses,
	})
}

// -----------------------------------------------------------------------------

// drainOnShutdown finalizes open candle bars so a clean shutdown does not
// lose the trailing partials.
func (m *Manager) drainOnShutdown() {
	if m.Builder == nil {
		return
	}
	m.Builder.FlushAll()
	for {
		select {
		case bar := <-m.Builder.Completed():
			m.handleBar(bar)
		default:
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Control surface (IFeedController)
// -----------------------------------------------------------------------------

// Statuses returns per-source status sorted by name.
func (m *Manager) Statuses() []models.MFeedSourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]models.MFeedSourceStatus, 0, len(m.sources))
	for _, src := range m.sources {
		statuses = append(statuses, *src.GetStatus())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].SourceName < statuses[j].SourceName
	})
	return statuses
}

// -----------------------------------------------------------------------------

func (m *Manager) Subscribe(source string, kind models.MEventType, symbols []string) error {
	src, err := m.getSource(source)
	if err != nil {
		return err
	}
	if err := src.Subscribe(kind, symbols); err != nil {
		return err
	}
	m.persistSubscriptions(src)
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) Unsubscribe(source string, kind models.MEventType, symbols []string) error {
	src, err := m.getSource(source)
	if err != nil {
		return err
	}
	if err := src.UnSubscribe(kind, symbols); err != nil {
		return err
	}
	m.persistSubscriptions(src)
	return nil
}

// -----------------------------------------------------------------------------

// RestartSource stops and restarts a source, carrying the live subscription
// set across the restart.
func (m *Manager) RestartSource(name string) error {
	src, err := m.getSource(name)
	if err != nil {
		return err
	}

	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()
	if ctx == nil {
		return fmt.Errorf("feed manager is not running")
	}

	entries := src.Subscriptions()
	if err := src.Stop(); err != nil {
		m.Logger.Warning("Stopping %s for restart: %v", name, err)
	}
	if err := src.Start(ctx, m.events, &m.wg); err != nil {
		return fmt.Errorf("failed to restart source %s: %w", name, err)
	}
	if len(entries) > 0 {
		if err := src.SubscribeEntries(entries); err != nil {
			m.Logger.Warning("Could not restore subscriptions after restart of %s: %v", name, err)
		}
	}
	m.Logger.Info("Restarted source %s with %d subscriptions", name, len(entries))
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// getSource resolves a source by name; an empty name picks the only source
// when exactly one is registered.
func (m *Manager) getSource(name string) (interfaces.IFeedSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		if len(m.sources) == 1 {
			for _, src := range m.sources {
				return src, nil
			}
		}
		return nil, fmt.Errorf("source name required when %d sources are registered", len(m.sources))
	}

	src, exists := m.sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return src, nil
}

// -----------------------------------------------------------------------------

func (m *Manager) sourceList() []interfaces.IFeedSource {
	list := make([]interfaces.IFeedSource, 0, len(m.sources))
	for _, src := range m.sources {
		list = append(list, src)
	}
	return list
}

// -----------------------------------------------------------------------------

func (m *Manager) restoreSubscriptions(src interfaces.IFeedSource) {
	if m.Store == nil {
		return
	}
	entries, err := m.Store.LoadSubscriptions(src.GetName())
	if err != nil {
		m.Logger.Warning("Could not load persisted subscriptions for %s: %v", src.GetName(), err)
		return
	}
	if len(entries) == 0 {
		return
	}
	if err := src.SubscribeEntries(entries); err != nil {
		m.Logger.Warning("Could not restore persisted subscriptions for %s: %v", src.GetName(), err)
		return
	}
	m.Logger.Info("Restored %d persisted subscriptions for %s", len(entries), src.GetName())
}

// -----------------------------------------------------------------------------

func (m *Manager) persistSubscriptions(src interfaces.IFeedSource) {
	if m.Store == nil {
		return
	}
	if err := m.Store.SaveSubscriptions(src.GetName(), src.Subscriptions()); err != nil {
		m.Logger.Warning("Could not persist subscriptions for %s: %v", src.GetName(), err)
	}
}
