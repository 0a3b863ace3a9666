package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/metrics"
	"github.com/tastyware/tastytrade/src/models"
)

const (
	recorderEventBuffer  = 8192
	recorderBarBuffer    = 1024
	defaultFlushInterval = 5 * time.Second
	cleanupInterval      = 6 * time.Hour
	flushFailureLimit    = 5
)

// -----------------------------------------------------------------------------
// Recorder decouples the hot event path from database writes: events queue
// in memory and flush in bulk on a timer. The queue drops (with a warning)
// rather than block the feed when the database falls behind.
// -----------------------------------------------------------------------------

type Recorder struct {
	Store  interfaces.IEventStore
	Logger *logger.Logger

	errs          *helpers.ErrorHandler
	flushInterval time.Duration
	events        chan interfaces.IEvent
	bars          chan models.MCandleBar
	done          chan struct{}
	stopped       chan struct{}
	startOnce     sync.Once
	closeOnce     sync.Once
}

// -----------------------------------------------------------------------------

// NewEventStore builds the configured backend.
func NewEventStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IEventStore, error) {
	switch strings.ToLower(cfg.Storage.DBType) {
	case "", "sqlite":
		return NewSQLiteDB(cfg, log)
	case "postgres", "postgresql":
		return NewPostgresDB(cfg, log)
	default:
		return nil, fmt.Errorf("unknown db_type %q", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------

func NewRecorder(store interfaces.IEventStore, cfg *models.MConfig, log *logger.Logger) *Recorder {
	flushInterval := defaultFlushInterval
	if cfg.Storage.FlushInterval > 0 {
		flushInterval = time.Duration(cfg.Storage.FlushInterval) * time.Second
	}

	return &Recorder{
		Store:         store,
		Logger:        log,
		errs:          helpers.NewErrorHandler(log, flushFailureLimit),
		flushInterval: flushInterval,
		events:        make(chan interfaces.IEvent, recorderEventBuffer),
		bars:          make(chan models.MCandleBar, recorderBarBuffer),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// -----------------------------------------------------------------------------

// Record queues one event for the next flush. Never blocks.
func (r *Recorder) Record(event interfaces.IEvent) {
	select {
	case r.events <- event:
	default:
		r.Logger.Warning("Recorder queue full, dropping %s %s", event.Kind(), event.Symbol())
	}
}

// -----------------------------------------------------------------------------

// RecordBar queues one locally built bar for the next flush. Never blocks.
func (r *Recorder) RecordBar(bar models.MCandleBar) {
	select {
	case r.bars <- bar:
	default:
		r.Logger.Warning("Recorder bar queue full, dropping %s %s", bar.Symbol, bar.WindowName)
	}
}

// -----------------------------------------------------------------------------

// Close flushes pending writes and closes the store. Safe to call twice.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	<-r.stopped
	return r.Store.Close()
}

// -----------------------------------------------------------------------------

func (r *Recorder) run() {
	defer close(r.stopped)

	flushTick := time.NewTicker(r.flushInterval)
	defer flushTick.Stop()
	cleanupTick := time.NewTicker(cleanupInterval)
	defer cleanupTick.Stop()

	// Trim stale rows from previous runs before accumulating new ones
	if err := r.Store.CleanupOldData(); err != nil {
		r.Logger.Error("Startup cleanup failed: %v", err)
	}

	for {
		select {
		case <-r.done:
			r.flush()
			return
		case <-flushTick.C:
			r.flush()
		case <-cleanupTick.C:
			if err := r.Store.CleanupOldData(); err != nil {
				r.Logger.Error("Cleanup failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) flush() {
	events := drain(r.events)
	bars := drain(r.bars)

	if len(events) > 0 {
		metrics.RecorderFlushSize.Observe(float64(len(events)))
		r.errs.Handle(r.Store.SaveEventsBulk(events), fmt.Sprintf("event flush (%d events)", len(events)))
	}

	if len(bars) > 0 {
		r.errs.Handle(r.Store.SaveCandleBars(bars), fmt.Sprintf("bar flush (%d bars)", len(bars)))
	}

	// A streak of failed flushes usually means the connection died under us;
	// rebuild it rather than keep logging the same error.
	if r.errs.ShouldRestart() {
		r.Logger.Warning("Reinitializing event store after %d consecutive flush failures", r.errs.ErrorCount)
		if err := r.Store.Initialize(); err != nil {
			r.Logger.Error("Event store reinitialization failed: %v", err)
		}
		r.errs.ResetErrorCount()
	}
}

// drain empties a channel without blocking.
func drain[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
