package utils

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

// How many Puts between memory checks.
const memoryCheckEvery = 1024

// -----------------------------------------------------------------------------
// EventCache keeps the last decoded event per (kind, symbol) plus a ring of
// recent trade prints per symbol. It backs the relay's latest/history
// endpoints so reads never touch the feed connection.
// -----------------------------------------------------------------------------

type EventCache struct {
	MaxMemoryMB  int
	TickCapacity int
	Logger       *logger.Logger

	latest map[models.MEventType]map[string]interfaces.IEvent
	ticks  map[string]*TickBuffer
	puts   uint64
	mu     sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewEventCache(maxMemoryMB, tickCapacity int) *EventCache {
	if tickCapacity <= 0 {
		tickCapacity = DefaultTickCapacity
	}

	return &EventCache{
		MaxMemoryMB:  maxMemoryMB,
		TickCapacity: tickCapacity,
		Logger:       logger.NewLogger(nil, "EventCache"),
		latest:       make(map[models.MEventType]map[string]interfaces.IEvent),
		ticks:        make(map[string]*TickBuffer),
	}
}

// -----------------------------------------------------------------------------

// Put stores event as the latest of its kind for its symbol. Trades are also
// appended to the symbol's tick history.
func (ec *EventCache) Put(event interfaces.IEvent) {
	ec.mu.Lock()

	kind := event.Kind()
	symbol := event.Symbol()

	if _, ok := ec.latest[kind]; !ok {
		ec.latest[kind] = make(map[string]interfaces.IEvent)
	}
	ec.latest[kind][symbol] = event

	if trade, ok := event.(models.MTrade); ok {
		buf, ok := ec.ticks[symbol]
		if !ok {
			buf = NewTickBuffer(ec.TickCapacity)
			ec.ticks[symbol] = buf
		}
		buf.Append(trade)
	}

	ec.puts++
	check := ec.MaxMemoryMB > 0 && ec.puts%memoryCheckEvery == 0
	ec.mu.Unlock()

	if check {
		ec.CheckMemoryLimits()
	}
}

// -----------------------------------------------------------------------------

// Latest returns the most recent event of kind for symbol.
func (ec *EventCache) Latest(kind models.MEventType, symbol string) (interfaces.IEvent, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	bySymbol, ok := ec.latest[kind]
	if !ok {
		return nil, false
	}
	event, ok := bySymbol[symbol]
	return event, ok
}

// -----------------------------------------------------------------------------

// LatestByKind returns a copy of the latest events of one kind, keyed by
// symbol.
func (ec *EventCache) LatestByKind(kind models.MEventType) map[string]interfaces.IEvent {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	bySymbol, ok := ec.latest[kind]
	if !ok {
		return map[string]interfaces.IEvent{}
	}

	result := make(map[string]interfaces.IEvent, len(bySymbol))
	for sym, event := range bySymbol {
		result[sym] = event
	}
	return result
}

// -----------------------------------------------------------------------------

// LatestBySymbol returns the latest event of every kind seen for symbol.
func (ec *EventCache) LatestBySymbol(symbol string) map[models.MEventType]interfaces.IEvent {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	result := make(map[models.MEventType]interfaces.IEvent)
	for kind, bySymbol := range ec.latest {
		if event, ok := bySymbol[symbol]; ok {
			result[kind] = event
		}
	}
	return result
}

// -----------------------------------------------------------------------------

// TickHistory returns the n most recent trade prints for symbol, oldest
// first. n <= 0 returns the full history.
func (ec *EventCache) TickHistory(symbol string, n int) []models.MTick {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	buf, ok := ec.ticks[symbol]
	if !ok || buf.Size() == 0 {
		return []models.MTick{}
	}

	if n <= 0 {
		return buf.GetAll()
	}
	return buf.GetLatest(n)
}

// -----------------------------------------------------------------------------

// TickMatrix returns the compact tick rows for symbol (see models.TickIdx*).
func (ec *EventCache) TickMatrix(symbol string) [][models.TickNumFeatures]float64 {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	buf, ok := ec.ticks[symbol]
	if !ok || buf.Size() == 0 {
		return [][models.TickNumFeatures]float64{}
	}
	return buf.GetSnapshot()
}

// -----------------------------------------------------------------------------

// CheckMemoryLimits halves tick history capacity while the process is over
// its memory budget.
func (ec *EventCache) CheckMemoryLimits() {
	currentMemory := ec.GetProcessMemoryMB()
	if currentMemory <= float64(ec.MaxMemoryMB) {
		return
	}

	ec.Logger.Info("Memory usage %.1fMB exceeds limit %dMB. Shrinking tick history.",
		currentMemory, ec.MaxMemoryMB)

	ec.mu.Lock()
	for _, buf := range ec.ticks {
		if buf.Capacity() > MinTickCapacity {
			newCapacity := buf.Capacity() / 2
			if newCapacity < MinTickCapacity {
				newCapacity = MinTickCapacity
			}
			buf.Resize(newCapacity)
		}
	}
	ec.mu.Unlock()

	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current process memory usage in MB
func (ec *EventCache) GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Cleanup drops all cached state.
func (ec *EventCache) Cleanup() {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.latest = make(map[models.MEventType]map[string]interfaces.IEvent)
	ec.ticks = make(map[string]*TickBuffer)
	runtime.GC()
	debug.FreeOSMemory()
}

// -----------------------------------------------------------------------------

// HasSymbol checks if any tick history exists for symbol
func (ec *EventCache) HasSymbol(symbol string) bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	_, ok := ec.ticks[symbol]
	return ok
}

// -----------------------------------------------------------------------------

// SymbolCount returns number of symbols with tick history
func (ec *EventCache) SymbolCount() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	return len(ec.ticks)
}
