package utils

import (
	"sync"
	"time"

	"github.com/tastyware/tastytrade/src/logger"
)

// NextTransition scans at minute granularity; a long weekend plus a holiday
// never exceeds this horizon.
const maxTransitionScan = 8 * 24 * time.Hour

// -----------------------------------------------------------------------------
// MarketScheduler answers "is any tracked market open" for session gating.
// Symbols map to exchange calendars by suffix; bare US symbols use the
// configured default exchange.
// -----------------------------------------------------------------------------

type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Default   *TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(exchange string, symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Default:   GetCalendarForExchange(exchange),
		Logger:    l,
	}
	ms.MapSymbolsToCalendars(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// MapSymbolsToCalendars replaces the tracked symbol set.
func (ms *MarketScheduler) MapSymbolsToCalendars(symbols []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[string]*TradingCalendar)

	for _, symbol := range symbols {
		// Bare US symbols follow the configured default exchange
		cal := ms.Default
		if _, ok := micForSymbol(symbol); ok {
			cal = GetCalendar(symbol)
		}
		if cal != nil {
			ms.Calendars[symbol] = cal
		}
	}

	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	ms.Logger.Info("MarketScheduler: Mapped %d symbols to %d unique calendars.",
		len(symbols), len(uniqueCals))
}

// UpdateSymbols updates the scheduler with a new list of symbols
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.MapSymbolsToCalendars(symbols)
}

// -----------------------------------------------------------------------------

// IsMarketOpen reports whether any tracked market is open at t. With no
// tracked symbols the default exchange calendar decides.
func (ms *MarketScheduler) IsMarketOpen(t time.Time) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	uniqueCals := ms.uniqueCalendarsLocked()

	for cal := range uniqueCals {
		if cal.IsOpenOnMinute(t) {
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	return ms.IsMarketOpen(time.Now().UTC())
}

// -----------------------------------------------------------------------------

// NextTransition returns the next instant after t at which the open state
// flips (a close if open now, the next open otherwise). Minute granularity.
func (ms *MarketScheduler) NextTransition(t time.Time) time.Time {
	current := ms.IsMarketOpen(t)

	// Align to the next whole minute first
	probe := t.Truncate(time.Minute).Add(time.Minute)
	deadline := t.Add(maxTransitionScan)

	for probe.Before(deadline) {
		if ms.IsMarketOpen(probe) != current {
			return probe
		}
		probe = probe.Add(time.Minute)
	}

	// No calendar transitions within the horizon (e.g. empty symbol set)
	return deadline
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) uniqueCalendarsLocked() map[*TradingCalendar]bool {
	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	if len(uniqueCals) == 0 && ms.Default != nil {
		uniqueCals[ms.Default] = true
	}

	return uniqueCals
}
