package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/models"
)

func TestEventCacheLatestPerKindAndSymbol(t *testing.T) {
	ec := NewEventCache(0, 16)

	ec.Put(models.MQuote{EventSymbol: "AAPL", BidPrice: 189.5})
	ec.Put(models.MQuote{EventSymbol: "MSFT", BidPrice: 410.0})
	ec.Put(models.MQuote{EventSymbol: "AAPL", BidPrice: 190.0})
	ec.Put(models.MTrade{EventSymbol: "AAPL", Price: 190.1, Time: 5})

	event, ok := ec.Latest(models.EventTypeQuote, "AAPL")
	require.True(t, ok)
	quote, ok := event.(models.MQuote)
	require.True(t, ok)
	assert.Equal(t, 190.0, quote.BidPrice)

	_, ok = ec.Latest(models.EventTypeGreeks, "AAPL")
	assert.False(t, ok)

	byKind := ec.LatestByKind(models.EventTypeQuote)
	assert.Len(t, byKind, 2)

	bySymbol := ec.LatestBySymbol("AAPL")
	require.Len(t, bySymbol, 2)
	assert.Contains(t, bySymbol, models.EventTypeQuote)
	assert.Contains(t, bySymbol, models.EventTypeTrade)
}

func TestEventCacheTradeFeedsTickHistory(t *testing.T) {
	ec := NewEventCache(0, 16)

	ec.Put(models.MTrade{EventSymbol: "AAPL", Time: 1, Price: 100, Size: 5, DayVolume: 50})
	ec.Put(models.MTrade{EventSymbol: "AAPL", Time: 2, Price: 101, Size: 7, DayVolume: 57})
	ec.Put(models.MQuote{EventSymbol: "AAPL", BidPrice: 100.5})

	history := ec.TickHistory("AAPL", 0)
	require.Len(t, history, 2)
	assert.Equal(t, 100.0, history[0].Price)
	assert.Equal(t, 101.0, history[1].Price)

	latest := ec.TickHistory("AAPL", 1)
	require.Len(t, latest, 1)
	assert.Equal(t, int64(2), latest[0].Time)

	matrix := ec.TickMatrix("AAPL")
	require.Len(t, matrix, 2)
	assert.Equal(t, 7.0, matrix[1][models.TickIdxSize])

	assert.Empty(t, ec.TickHistory("MSFT", 0))
	assert.True(t, ec.HasSymbol("AAPL"))
	assert.False(t, ec.HasSymbol("MSFT"))
	assert.Equal(t, 1, ec.SymbolCount())
}

func TestCalculateTickCapacity(t *testing.T) {
	// No budget or no symbols: default
	assert.Equal(t, DefaultTickCapacity, CalculateTickCapacity(0, 10))
	assert.Equal(t, DefaultTickCapacity, CalculateTickCapacity(512, 0))

	// Generous budget clamps at the default cap
	assert.Equal(t, DefaultTickCapacity, CalculateTickCapacity(4096, 10))

	// Tiny budget clamps at the floor
	assert.Equal(t, MinTickCapacity, CalculateTickCapacity(1, 1000))
}

func TestEventCacheCleanup(t *testing.T) {
	ec := NewEventCache(0, 16)
	ec.Put(models.MTrade{EventSymbol: "AAPL", Time: 1, Price: 100})

	ec.Cleanup()

	_, ok := ec.Latest(models.EventTypeTrade, "AAPL")
	assert.False(t, ok)
	assert.Equal(t, 0, ec.SymbolCount())
}
