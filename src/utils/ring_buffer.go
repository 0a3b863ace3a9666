package utils

import (
	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// TickBuffer is a fixed-size circular buffer of trade prints stored as flat
// float64 rows. Writes never allocate once the buffer is built.
// -----------------------------------------------------------------------------

type TickBuffer struct {
	// Data storage as 2D slice (rows x features)
	data     [][models.TickNumFeatures]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewTickBuffer creates a new buffer with fixed capacity
func NewTickBuffer(capacity int) *TickBuffer {
	if capacity <= 0 {
		capacity = DefaultTickCapacity
	}

	return &TickBuffer{
		data:     make([][models.TickNumFeatures]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append records one trade print. Overwrites the oldest row when full.
func (tb *TickBuffer) Append(trade models.MTrade) {
	tb.data[tb.index] = [models.TickNumFeatures]float64{
		float64(trade.Time),
		trade.Price,
		trade.Size,
		trade.DayVolume,
	}

	tb.index = (tb.index + 1) % tb.capacity

	// Update size (never exceeds capacity)
	if tb.size < tb.capacity {
		tb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n most recent ticks, oldest first.
func (tb *TickBuffer) GetLatest(n int) []models.MTick {
	if tb.size == 0 || n <= 0 {
		return []models.MTick{}
	}

	count := n
	if n > tb.size {
		count = tb.size
	}

	result := make([]models.MTick, count)

	// Latest data sits just before the write index
	startIdx := (tb.index - count + tb.capacity) % tb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % tb.capacity
		result[i] = tb.rowToTick(tb.data[idx])
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all ticks in insertion order (oldest to newest)
func (tb *TickBuffer) GetAll() []models.MTick {
	if tb.size == 0 {
		return []models.MTick{}
	}

	result := make([]models.MTick, tb.size)

	startIdx := tb.startIndex()
	for i := 0; i < tb.size; i++ {
		idx := (startIdx + i) % tb.capacity
		result[i] = tb.rowToTick(tb.data[idx])
	}

	return result
}

// -----------------------------------------------------------------------------

// GetSnapshot returns the raw rows in insertion order. This is the compact
// matrix the history endpoint serves without further conversion.
func (tb *TickBuffer) GetSnapshot() [][models.TickNumFeatures]float64 {
	if tb.size == 0 {
		return [][models.TickNumFeatures]float64{}
	}

	result := make([][models.TickNumFeatures]float64, tb.size)

	startIdx := tb.startIndex()
	for i := 0; i < tb.size; i++ {
		idx := (startIdx + i) % tb.capacity
		result[i] = tb.data[idx]
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (tb *TickBuffer) Size() int {
	return tb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed until Resize)
func (tb *TickBuffer) Capacity() int {
	return tb.capacity
}

// -----------------------------------------------------------------------------

// Resize changes the capacity of the buffer.
// If newCapacity < size, oldest data is dropped.
func (tb *TickBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 || newCapacity == tb.capacity {
		return
	}

	newData := make([][models.TickNumFeatures]float64, newCapacity)

	count := tb.size
	if count > newCapacity {
		count = newCapacity
	}

	// Keep the newest count rows
	startIdx := (tb.index - count + tb.capacity) % tb.capacity
	for i := 0; i < count; i++ {
		idx := (startIdx + i) % tb.capacity
		newData[i] = tb.data[idx]
	}

	tb.data = newData
	tb.capacity = newCapacity
	tb.size = count
	tb.index = count % newCapacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (tb *TickBuffer) IsFull() bool {
	return tb.size == tb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (tb *TickBuffer) Clear() {
	tb.index = 0
	tb.size = 0
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (tb *TickBuffer) startIndex() int {
	if tb.size == tb.capacity {
		// Buffer is full, oldest is at the write index (wrap-around)
		return tb.index
	}
	return 0
}

func (tb *TickBuffer) rowToTick(row [models.TickNumFeatures]float64) models.MTick {
	return models.MTick{
		Time:      int64(row[models.TickIdxTime]),
		Price:     row[models.TickIdxPrice],
		Size:      row[models.TickIdxSize],
		DayVolume: row[models.TickIdxDayVolume],
	}
}
