package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// queryInt parses an optional integer query parameter, returning fallback on
// absence or garbage.
func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// -----------------------------------------------------------------------------

func validLogLevel(name string) bool {
	switch strings.ToLower(name) {
	case "debug", "info", "warning", "warn", "error":
		return true
	}
	return false
}
