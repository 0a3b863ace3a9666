package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/utils"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// RelayServer
// -----------------------------------------------------------------------------

const (
	shutdownTimeout = 5 * time.Second
	hubQueue        = 256
)

type RelayServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Feed   interfaces.IFeedController
	Cache  *utils.EventCache

	engine *gin.Engine
	http   *http.Server

	// WebSocket clients, owned by the hub loop
	clients    map[*Client]struct{}
	broadcast  chan *models.MRelayPayload
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Status snapshot pushed by the feed manager
	status      []models.MFeedSourceStatus
	statusMutex sync.RWMutex

	clientCount     atomic.Int64
	eventsBroadcast atomic.Int64
	eventsDropped   atomic.Int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewRelayServer(cfg *models.MConfig, log *logger.Logger,
	feed interfaces.IFeedController, cache *utils.EventCache) *RelayServer {

	// Set Gin mode
	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &RelayServer{
		Config:  cfg,
		Logger:  log,
		Feed:    feed,
		Cache:   cache,
		engine:  gin.New(),
		clients: make(map[*Client]struct{}),
		// Buffered queue so bursts of updates never block the feed side
		broadcast:  make(chan *models.MRelayPayload, hubQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(ginzap.Ginzap(log.Zap(), time.RFC3339, true))
	s.engine.Use(ginzap.RecoveryWithZap(log.Zap(), true))
	s.engine.Use(corsMiddleware())

	s.setupRoutes()

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.engine,
	}
	return s
}

// -----------------------------------------------------------------------------

// corsMiddleware allows local dashboards to call the REST endpoints.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *RelayServer) setupRoutes() {
	api := s.engine.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/data/latest", s.getLatest)
	api.GET("/data/history", s.getHistory)
	api.POST("/subscriptions", s.postSubscriptions)
	api.DELETE("/subscriptions", s.deleteSubscriptions)
	api.POST("/restart", s.postRestart)
	api.PUT("/log-level", s.putLogLevel)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)

	if s.Config.Metrics.Enabled {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub loop and serves HTTP. Blocks until Stop is called or
// the listener fails.
func (s *RelayServer) Start() error {
	s.Logger.Info("Starting relay server on %s", s.http.Addr)

	go s.runHub()

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// -----------------------------------------------------------------------------

func (s *RelayServer) Stop() error {
	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
