package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

func newTestBuilder(t *testing.T, windows ...string) *CandleBuilder {
	t.Helper()
	cfg := &models.MConfig{WindowsAgg: windows}
	return NewCandleBuilder(cfg, logger.NewLogger(nil, "CandleBuilder"))
}

func trade(symbol string, ts int64, price, size float64) models.MTrade {
	return models.MTrade{EventSymbol: symbol, Time: ts, Price: price, Size: size}
}

func nextBar(t *testing.T, b *CandleBuilder) models.MCandleBar {
	t.Helper()
	select {
	case bar := <-b.Completed():
		return bar
	case <-time.After(time.Second):
		t.Fatal("no completed bar")
		return models.MCandleBar{}
	}
}

// -----------------------------------------------------------------------------

func TestBuilderParsesWindows(t *testing.T) {
	b := newTestBuilder(t, "1m", "5m", "bogus")
	assert.Equal(t, []string{"1m", "5m"}, b.Windows())
	assert.Equal(t, int64(60_000), b.WindowsMillisMap["1m"])
}

func TestBarCompletesOnWindowRoll(t *testing.T) {
	b := newTestBuilder(t, "1m")

	base := int64(1_700_000_040_000) // aligned to a minute boundary
	b.Observe(trade("AAPL", base+1_000, 100.0, 10))
	b.Observe(trade("AAPL", base+20_000, 102.0, 20))
	b.Observe(trade("AAPL", base+45_000, 99.0, 5))

	// First trade of the next minute closes the bar
	b.Observe(trade("AAPL", base+60_500, 101.0, 1))

	bar := nextBar(t, b)
	assert.Equal(t, "AAPL", bar.Symbol)
	assert.Equal(t, "1m", bar.WindowName)
	assert.Equal(t, base, bar.StartTime)
	assert.Equal(t, base+60_000, bar.EndTime)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 102.0, bar.High)
	assert.Equal(t, 99.0, bar.Low)
	assert.Equal(t, 99.0, bar.Close)
	assert.Equal(t, 35.0, bar.Volume)
	assert.Equal(t, 3, bar.Trades)

	// (100*10 + 102*20 + 99*5) / 35
	assert.InDelta(t, 101.0, bar.VWAP, 1e-9)
}

func TestFlushBeforeClosesQuietBars(t *testing.T) {
	b := newTestBuilder(t, "1m")

	base := int64(1_700_000_040_000)
	b.Observe(trade("AAPL", base+1_000, 100.0, 10))

	// Nothing flushed while the window is still open
	b.FlushBefore(time.UnixMilli(base + 59_000))
	select {
	case <-b.Completed():
		t.Fatal("bar completed too early")
	default:
	}

	b.FlushBefore(time.UnixMilli(base + 61_000))
	bar := nextBar(t, b)
	assert.Equal(t, base, bar.StartTime)
	assert.Equal(t, 1, bar.Trades)
}

func TestLateTradeIsDropped(t *testing.T) {
	b := newTestBuilder(t, "1m")

	base := int64(1_700_000_040_000)
	b.Observe(trade("AAPL", base+61_000, 100.0, 10))
	// A print from the previous, already-closed minute
	b.Observe(trade("AAPL", base+30_000, 50.0, 99))

	b.FlushAll()
	bar := nextBar(t, b)
	assert.Equal(t, 1, bar.Trades)
	assert.Equal(t, 100.0, bar.Low)
}

func TestSymbolsAndWindowsAreIndependent(t *testing.T) {
	b := newTestBuilder(t, "1m", "5m")

	base := int64(1_700_000_100_000) // aligned to 5m boundary
	b.Observe(trade("AAPL", base+1_000, 100.0, 1))
	b.Observe(trade("MSFT", base+1_000, 400.0, 1))

	b.FlushAll()

	bars := map[string]int{}
	for i := 0; i < 4; i++ {
		bar := nextBar(t, b)
		bars[bar.Symbol+"/"+bar.WindowName]++
	}
	assert.Equal(t, 1, bars["AAPL/1m"])
	assert.Equal(t, 1, bars["AAPL/5m"])
	assert.Equal(t, 1, bars["MSFT/1m"])
	assert.Equal(t, 1, bars["MSFT/5m"])
}

func TestVolumeZScoreUsesBarHistory(t *testing.T) {
	b := newTestBuilder(t, "1m")

	base := int64(1_700_000_040_000)
	// Three quiet minutes then one heavy one. Quiet volumes vary so the
	// baseline has nonzero spread.
	for i, size := range []float64{10, 12, 8} {
		b.Observe(trade("AAPL", base+int64(i)*60_000+1_000, 100.0, size))
	}
	b.Observe(trade("AAPL", base+3*60_000+1_000, 100.0, 1000))
	b.FlushAll()

	var last models.MCandleBar
	for i := 0; i < 4; i++ {
		last = nextBar(t, b)
	}
	assert.Equal(t, 1000.0, last.Volume)
	// First two bars have no baseline; the heavy bar scores far above it
	assert.Greater(t, last.VolumeZScore, 3.0)
}

// -----------------------------------------------------------------------------

func TestBarsFromTicks(t *testing.T) {
	b := newTestBuilder(t, "1m")

	base := int64(1_700_000_040_000)
	ticks := []models.MTick{
		{Time: base + 1_000, Price: 10, Size: 1},
		{Time: base + 59_000, Price: 12, Size: 2},
		{Time: base + 61_000, Price: 11, Size: 4},
	}

	bars := b.BarsFromTicks("AAPL", "1m", ticks)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.0, bars[0].Open)
	assert.Equal(t, 12.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[0].Volume)
	assert.Equal(t, 11.0, bars[1].Open)
	assert.Equal(t, base+60_000, bars[1].StartTime)

	assert.Nil(t, b.BarsFromTicks("AAPL", "17m", ticks))
	assert.Nil(t, b.BarsFromTicks("AAPL", "1m", nil))
}

func TestResampleTicksSortsAndSkipsEmptyWindows(t *testing.T) {
	windows := ResampleTicks([]models.MTick{
		{Time: 130_000, Price: 3},
		{Time: 10_000, Price: 1},
		{Time: 50_000, Price: 2},
	}, 60_000)

	require.Len(t, windows, 2)
	assert.Equal(t, int64(0), windows[0].StartTime)
	require.Len(t, windows[0].Ticks, 2)
	assert.Equal(t, 1.0, windows[0].Ticks[0].Price)
	// The 60-120s window had no prints and is omitted
	assert.Equal(t, int64(120_000), windows[1].StartTime)
}
