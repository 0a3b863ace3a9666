package server

import (
	"net/http"
	"time"

	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Request bodies
// -----------------------------------------------------------------------------

type subscriptionRequest struct {
	Source  string   `json:"source"`
	Kind    string   `json:"kind" binding:"required"`
	Symbols []string `json:"symbols" binding:"required"`
}

type restartRequest struct {
	Source string `json:"source" binding:"required"`
}

type logLevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// -----------------------------------------------------------------------------
// Status and health
// -----------------------------------------------------------------------------

func (s *RelayServer) getStatus(c *gin.Context) {
	s.statusMutex.RLock()
	status := s.status
	s.statusMutex.RUnlock()

	// Fall back to a live pull before the first push lands
	if status == nil && s.Feed != nil {
		status = s.Feed.Statuses()
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": status,
		"stats":   s.stats(),
	})
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.clientCount.Load(),
		"symbols":     s.cachedSymbols(),
		"timestamp":   time.Now().UnixMilli(),
	})
}

func (s *RelayServer) cachedSymbols() int {
	if s.Cache == nil {
		return 0
	}
	return s.Cache.SymbolCount()
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

// getConfig exposes the non-secret parts of the running configuration.
// Session credentials and connection strings stay out of the response.
func (s *RelayServer) getConfig(c *gin.Context) {
	cfg := s.Config
	c.JSON(http.StatusOK, gin.H{
		"name":                cfg.Name,
		"log_level":           cfg.Logging.Level,
		"windows_aggregation": cfg.WindowsAgg,
		"feed":                cfg.Feed,
		"storage": gin.H{
			"enabled":        cfg.Storage.Enabled,
			"db_type":        cfg.Storage.DBType,
			"retention_days": cfg.Storage.RetentionDays,
		},
		"publish": gin.H{
			"enabled":        cfg.Publish.Enabled,
			"subject_prefix": cfg.Publish.SubjectPrefix,
		},
	})
}

// -----------------------------------------------------------------------------
// Data endpoints
// -----------------------------------------------------------------------------

// getLatest serves last-known events from the cache.
// ?symbol=&kind= narrows the result; at least one is required.
func (s *RelayServer) getLatest(c *gin.Context) {
	if s.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event cache not enabled"})
		return
	}

	symbol := c.Query("symbol")
	kindParam := c.Query("kind")

	switch {
	case symbol != "" && kindParam != "":
		kind, ok := parseKind(kindParam)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind " + kindParam})
			return
		}
		ev, found := s.Cache.Latest(kind, symbol)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no event cached for " + symbol})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": kind, "symbol": symbol, "event": ev})

	case symbol != "":
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "events": s.Cache.LatestBySymbol(symbol)})

	case kindParam != "":
		kind, ok := parseKind(kindParam)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind " + kindParam})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": kind, "events": s.Cache.LatestByKind(kind)})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol or kind query parameter required"})
	}
}

// -----------------------------------------------------------------------------

// getHistory serves the recent trade ticks buffered for one symbol.
// ?limit= caps the count, newest ticks win.
func (s *RelayServer) getHistory(c *gin.Context) {
	if s.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event cache not enabled"})
		return
	}

	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query parameter required"})
		return
	}

	limit := queryInt(c, "limit", 0)
	ticks := s.Cache.TickHistory(symbol, limit)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "count": len(ticks), "ticks": ticks})
}

// -----------------------------------------------------------------------------
// Subscription control
// -----------------------------------------------------------------------------

func (s *RelayServer) postSubscriptions(c *gin.Context) {
	s.mutateSubscriptions(c, true)
}

func (s *RelayServer) deleteSubscriptions(c *gin.Context) {
	s.mutateSubscriptions(c, false)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) mutateSubscriptions(c *gin.Context, add bool) {
	if s.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed manager not running"})
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, ok := parseKind(req.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind " + req.Kind})
		return
	}
	if len(req.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols list cannot be empty"})
		return
	}

	var err error
	if add {
		err = s.Feed.Subscribe(req.Source, kind, req.Symbols)
	} else {
		err = s.Feed.Unsubscribe(req.Source, kind, req.Symbols)
	}
	if err != nil {
		s.Logger.Error("Subscription change failed for %s/%s: %v", req.Source, req.Kind, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.Logger.Info("Subscription change applied: source=%s kind=%s symbols=%d add=%t",
		req.Source, req.Kind, len(req.Symbols), add)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"kind":    kind,
		"symbols": len(req.Symbols),
	})
}

// -----------------------------------------------------------------------------
// Source restart
// -----------------------------------------------------------------------------

func (s *RelayServer) postRestart(c *gin.Context) {
	if s.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed manager not running"})
		return
	}

	var req restartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.Feed.RestartSource(req.Source); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.Logger.Info("Source %s restarted via control endpoint", req.Source)
	c.JSON(http.StatusOK, gin.H{"success": true, "source": req.Source})
}

// -----------------------------------------------------------------------------
// Log level
// -----------------------------------------------------------------------------

func (s *RelayServer) putLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validLogLevel(req.Level) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level " + req.Level})
		return
	}

	logger.SetLevel(req.Level)
	s.Config.Logging.Level = req.Level
	s.Logger.Info("Log level changed to %s", req.Level)
	c.JSON(http.StatusOK, gin.H{"success": true, "level": req.Level})
}

// -----------------------------------------------------------------------------

func parseKind(name string) (models.MEventType, bool) {
	kind := models.MEventType(name)
	return kind, kind.IsValid()
}
