package helpers

// GetRecommendedCacheLimitMB calculates a safe memory ceiling for the event
// cache: a quarter of total RAM, clamped to [256MB, 4GB]. The cache is one
// tenant of the process, not the whole of it, hence the conservative share.
// Fallback when the OS probe fails: 256MB.
func GetRecommendedCacheLimitMB() int {
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		return 256
	}

	limit := totalMB / 4
	if limit < 256 {
		if totalMB < 256 {
			return totalMB // Very low memory system
		}
		return 256
	}
	if limit > 4096 {
		return 4096
	}
	return limit
}
