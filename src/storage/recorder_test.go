package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

type captureStore struct {
	mu       sync.Mutex
	events   []interfaces.IEvent
	bars     []models.MCandleBar
	cleanups int
	closed   bool
}

func (s *captureStore) Initialize() error { return nil }

func (s *captureStore) SaveEventsBulk(events []interfaces.IEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *captureStore) SaveCandleBars(bars []models.MCandleBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = append(s.bars, bars...)
	return nil
}

func (s *captureStore) SaveSubscriptions(string, []models.MSubscriptionEntry) error { return nil }

func (s *captureStore) LoadSubscriptions(string) ([]models.MSubscriptionEntry, error) {
	return nil, nil
}

func (s *captureStore) CleanupOldData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups++
	return nil
}

func (s *captureStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureStore) snapshot() (int, int, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), len(s.bars), s.cleanups, s.closed
}

// -----------------------------------------------------------------------------

func TestRecorderFlushesOnTimer(t *testing.T) {
	store := &captureStore{}
	cfg := &models.MConfig{}
	cfg.Storage.FlushInterval = 1

	r := NewRecorder(store, cfg, logger.NewLogger(nil, "Recorder"))
	r.flushInterval = 20 * time.Millisecond
	r.Start()
	defer r.Close()

	r.Record(models.MQuote{EventSymbol: "AAPL"})
	r.Record(models.MTrade{EventSymbol: "AAPL", Time: 1, Sequence: 1})
	r.RecordBar(models.MCandleBar{Symbol: "AAPL", WindowName: "1m"})

	assert.Eventually(t, func() bool {
		events, bars, _, _ := store.snapshot()
		return events == 2 && bars == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRecorderFlushesOnClose(t *testing.T) {
	store := &captureStore{}
	cfg := &models.MConfig{}
	cfg.Storage.FlushInterval = 3600 // timer never fires during the test

	r := NewRecorder(store, cfg, logger.NewLogger(nil, "Recorder"))
	r.Start()

	r.Record(models.MQuote{EventSymbol: "AAPL"})
	r.Record(models.MQuote{EventSymbol: "MSFT"})

	require.NoError(t, r.Close())

	events, _, cleanups, closed := store.snapshot()
	assert.Equal(t, 2, events)
	assert.GreaterOrEqual(t, cleanups, 1) // startup cleanup ran
	assert.True(t, closed)
}

// failingStore rejects bulk saves until Initialize is called again.
type failingStore struct {
	captureStore
	failing     bool
	initializes int
}

func (s *failingStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initializes++
	s.failing = false
	return nil
}

func (s *failingStore) SaveEventsBulk(events []interfaces.IEvent) error {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return errors.New("connection is dead")
	}
	return s.captureStore.SaveEventsBulk(events)
}

func (s *failingStore) initCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializes
}

func TestRecorderReinitializesStoreAfterFlushFailures(t *testing.T) {
	store := &failingStore{failing: true}
	cfg := &models.MConfig{}
	cfg.Storage.FlushInterval = 3600

	r := NewRecorder(store, cfg, logger.NewLogger(nil, "Recorder"))

	// Each failed flush feeds the streak; the store comes back once the
	// recorder rebuilds it.
	for i := 0; i < flushFailureLimit; i++ {
		r.Record(models.MQuote{EventSymbol: "AAPL"})
		r.flush()
	}

	require.Equal(t, 1, store.initCount())

	r.Record(models.MQuote{EventSymbol: "AAPL"})
	r.flush()
	events, _, _, _ := store.snapshot()
	assert.Equal(t, 1, events, "flushes resume once the store is rebuilt")
	assert.Equal(t, 1, store.initCount(), "a healthy store is not rebuilt again")
}

func TestNewEventStoreSelectsBackend(t *testing.T) {
	log := logger.NewLogger(nil, "Storage")

	cfg := &models.MConfig{}
	cfg.Storage.DBType = "sqlite"
	store, err := NewEventStore(cfg, log)
	require.NoError(t, err)
	_, ok := store.(*SQLiteDB)
	assert.True(t, ok)

	cfg.Storage.DBType = "postgres"
	store, err = NewEventStore(cfg, log)
	require.NoError(t, err)
	_, ok = store.(*PostgresDB)
	assert.True(t, ok)

	cfg.Storage.DBType = "oracle"
	_, err = NewEventStore(cfg, log)
	assert.Error(t, err)
}
