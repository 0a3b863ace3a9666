package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeOHLCV(t *testing.T) {
	prices := []float64{10.0, 12.0, 9.0, 11.0}
	sizes := []float64{100, 200, 50, 150}

	ohlcv := ComputeOHLCV(prices, sizes)

	assert.Equal(t, 10.0, ohlcv["open"])
	assert.Equal(t, 12.0, ohlcv["high"])
	assert.Equal(t, 9.0, ohlcv["low"])
	assert.Equal(t, 11.0, ohlcv["close"])
	assert.Equal(t, 500.0, ohlcv["volume"])
	assert.InDelta(t, 10.5, ohlcv["avg_price"], 1e-9)
}

func TestComputeOHLCVEmpty(t *testing.T) {
	ohlcv := ComputeOHLCV(nil, nil)
	assert.Equal(t, 0.0, ohlcv["open"])
	assert.Equal(t, 0.0, ohlcv["volume"])
}

func TestComputeVWAP(t *testing.T) {
	prices := []float64{10.0, 20.0}
	sizes := []float64{300, 100}

	// (10*300 + 20*100) / 400 = 12.5
	assert.InDelta(t, 12.5, ComputeVWAP(prices, sizes), 1e-9)
}

func TestComputeVWAPZeroSizeFallsBackToMean(t *testing.T) {
	prices := []float64{10.0, 20.0}
	sizes := []float64{0, 0}

	assert.InDelta(t, 15.0, ComputeVWAP(prices, sizes), 1e-9)
	assert.Equal(t, 0.0, ComputeVWAP(nil, nil))
}

func TestCalculateMeanStd(t *testing.T) {
	mean, std := CalculateMeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, std, 1e-9)

	mean, std = CalculateMeanStd([]float64{42})
	assert.Equal(t, 42.0, mean)
	assert.Equal(t, 0.0, std)

	mean, std = CalculateMeanStd(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestCalculateZScore(t *testing.T) {
	assert.InDelta(t, 1.5, CalculateZScore(8, 5, 2), 1e-9)
	assert.Equal(t, 0.0, CalculateZScore(8, 5, 0))
}
