package analysis

import (
	"sort"
	"sync"
	"time"

	"github.com/tastyware/tastytrade/src/analysis/core"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

const (
	completedBuffer = 256
	// Completed bar volumes kept per (symbol, window) for the z-score baseline.
	volumeHistoryLen = 50
)

// -----------------------------------------------------------------------------
// CandleBuilder turns the live Trade stream into OHLCV bars for the windows
// configured in windows_agg, without subscribing to upstream Candle events.
// Bars close when the first trade of the next window arrives or when
// FlushBefore passes the window end.
// -----------------------------------------------------------------------------

type CandleBuilder struct {
	Config           *models.MConfig
	WindowsMillisMap map[string]int64
	Logger           *logger.Logger

	mu         sync.Mutex
	open       map[windowKey]*openBar
	volHistory map[windowKey][]float64
	completed  chan models.MCandleBar
}

type windowKey struct {
	symbol string
	window string
}

type openBar struct {
	start int64 // epoch millis, inclusive
	end   int64 // epoch millis, exclusive
	ticks []models.MTick
}

// -----------------------------------------------------------------------------

func NewCandleBuilder(cfg *models.MConfig, log *logger.Logger) *CandleBuilder {
	windowsMap := make(map[string]int64)
	for _, window := range cfg.WindowsAgg {
		dur, err := time.ParseDuration(window)
		if err != nil || dur <= 0 {
			log.Warning("Ignoring invalid aggregation window %q", window)
			continue
		}
		windowsMap[window] = dur.Milliseconds()
	}

	return &CandleBuilder{
		Config:           cfg,
		WindowsMillisMap: windowsMap,
		Logger:           log,
		open:             make(map[windowKey]*openBar),
		volHistory:       make(map[windowKey][]float64),
		completed:        make(chan models.MCandleBar, completedBuffer),
	}
}

// -----------------------------------------------------------------------------

// Windows returns the configured window names, sorted.
func (b *CandleBuilder) Windows() []string {
	names := make([]string, 0, len(b.WindowsMillisMap))
	for name := range b.WindowsMillisMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------

// Completed delivers finished bars. The channel is buffered; bars are dropped
// with a warning if no consumer keeps up.
func (b *CandleBuilder) Completed() <-chan models.MCandleBar {
	return b.completed
}

// -----------------------------------------------------------------------------

// Observe feeds one trade print into every configured window.
func (b *CandleBuilder) Observe(trade models.MTrade) {
	ts := trade.Time
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	tick := models.MTick{
		Time:      ts,
		Price:     trade.Price,
		Size:      trade.Size,
		DayVolume: trade.DayVolume,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for name, windowMillis := range b.WindowsMillisMap {
		key := windowKey{symbol: trade.EventSymbol, window: name}
		start, end := AlignWindow(ts, windowMillis)

		bar := b.open[key]
		if bar == nil {
			b.open[key] = &openBar{start: start, end: end, ticks: []models.MTick{tick}}
			continue
		}

		if ts >= bar.end {
			// Window rolled over
			b.finishLocked(key, bar)
			b.open[key] = &openBar{start: start, end: end, ticks: []models.MTick{tick}}
			continue
		}

		if ts < bar.start {
			// Late print for an already closed window
			b.Logger.Debug("Dropping late trade for %s (%dms behind window)",
				trade.EventSymbol, bar.start-ts)
			continue
		}

		bar.ticks = append(bar.ticks, tick)
	}
}

// -----------------------------------------------------------------------------

// FlushBefore closes every open bar whose window ended at or before cutoff.
// Called on a timer so bars complete even when trading goes quiet.
func (b *CandleBuilder) FlushBefore(cutoff time.Time) {
	cutoffMillis := cutoff.UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, bar := range b.open {
		if bar.end <= cutoffMillis {
			b.finishLocked(key, bar)
			delete(b.open, key)
		}
	}
}

// -----------------------------------------------------------------------------

// FlushAll closes every open bar regardless of window end. Used on shutdown.
func (b *CandleBuilder) FlushAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, bar := range b.open {
		b.finishLocked(key, bar)
		delete(b.open, key)
	}
}

// -----------------------------------------------------------------------------

// BarsFromTicks builds bars for one symbol and window from a tick batch,
// e.g. to rebuild history from the tick cache. Stateless with respect to the
// live stream; z-scores are computed against earlier bars of the same batch.
func (b *CandleBuilder) BarsFromTicks(symbol, windowName string, ticks []models.MTick) []models.MCandleBar {
	windowMillis, ok := b.WindowsMillisMap[windowName]
	if !ok {
		b.Logger.Error("Invalid window name %s", windowName)
		return nil
	}

	windows := ResampleTicks(ticks, windowMillis)
	if len(windows) == 0 {
		return nil
	}

	bars := make([]models.MCandleBar, 0, len(windows))
	var volumes []float64

	for _, w := range windows {
		bar := buildBar(symbol, windowName, w.StartTime, w.EndTime, w.Ticks, volumes)
		bars = append(bars, bar)
		volumes = append(volumes, bar.Volume)
	}

	return bars
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (b *CandleBuilder) finishLocked(key windowKey, bar *openBar) {
	history := b.volHistory[key]
	out := buildBar(key.symbol, key.window, bar.start, bar.end, bar.ticks, history)

	history = append(history, out.Volume)
	if len(history) > volumeHistoryLen {
		history = history[len(history)-volumeHistoryLen:]
	}
	b.volHistory[key] = history

	select {
	case b.completed <- out:
	default:
		b.Logger.Warning("Candle channel full, dropping %s %s bar", key.symbol, key.window)
	}
}

// buildBar computes one bar from ticks, scoring its volume against the given
// history of completed bar volumes.
func buildBar(symbol, windowName string, start, end int64, ticks []models.MTick, volHistory []float64) models.MCandleBar {
	prices := make([]float64, len(ticks))
	sizes := make([]float64, len(ticks))
	for i, tk := range ticks {
		prices[i] = tk.Price
		sizes[i] = tk.Size
	}

	ohlcv := core.ComputeOHLCV(prices, sizes)
	vwap := core.ComputeVWAP(prices, sizes)

	zscore := 0.0
	if len(volHistory) >= 2 {
		mean, std := core.CalculateMeanStd(volHistory)
		zscore = core.CalculateZScore(ohlcv["volume"], mean, std)
	}

	return models.MCandleBar{
		Symbol:       symbol,
		WindowName:   windowName,
		Open:         ohlcv["open"],
		High:         ohlcv["high"],
		Low:          ohlcv["low"],
		Close:        ohlcv["close"],
		Volume:       ohlcv["volume"],
		VWAP:         vwap,
		VolumeZScore: zscore,
		StartTime:    start,
		EndTime:      end,
		Trades:       len(ticks),
		CreatedAt:    time.Now().UTC(),
	}
}
