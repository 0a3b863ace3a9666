package core

import "math"

// -----------------------------------------------------------------------------

// ComputeOHLCV calculates OHLCV and AvgPrice from price/size arrays.
func ComputeOHLCV(prices []float64, sizes []float64) map[string]float64 {
	if len(prices) == 0 {
		return map[string]float64{
			"open": 0, "high": 0, "low": 0, "close": 0, "volume": 0, "avg_price": 0,
		}
	}

	open := prices[0]
	closePrice := prices[len(prices)-1]
	high := -1.0
	low := math.MaxFloat64
	totalVol := 0.0
	sumPrice := 0.0

	for i, p := range prices {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
		totalVol += sizes[i]
		sumPrice += p
	}

	return map[string]float64{
		"open":      open,
		"high":      high,
		"low":       low,
		"close":     closePrice,
		"volume":    totalVol,
		"avg_price": sumPrice / float64(len(prices)),
	}
}

// -----------------------------------------------------------------------------

// ComputeVWAP calculates the size-weighted average price. Falls back to the
// plain mean when the sizes sum to zero.
func ComputeVWAP(prices []float64, sizes []float64) float64 {
	if len(prices) == 0 {
		return 0
	}

	sumPV := 0.0
	sumV := 0.0
	for i, p := range prices {
		sumPV += p * sizes[i]
		sumV += sizes[i]
	}

	if sumV == 0 {
		sum := 0.0
		for _, p := range prices {
			sum += p
		}
		return sum / float64(len(prices))
	}

	return sumPV / sumV
}
