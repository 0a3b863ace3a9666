package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tastyware/tastytrade/src/analysis"
	"github.com/tastyware/tastytrade/src/config"
	"github.com/tastyware/tastytrade/src/feed"
	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/publish"
	"github.com/tastyware/tastytrade/src/server"
	"github.com/tastyware/tastytrade/src/session"
	"github.com/tastyware/tastytrade/src/storage"
	"github.com/tastyware/tastytrade/src/streamer"
	"github.com/tastyware/tastytrade/src/transport"
	"github.com/tastyware/tastytrade/src/utils"
)

const destroyTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	// Setup Session (token provider for both streamers)
	sess := session.NewSession(conf.MConfig)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), destroyTimeout)
		defer cancel()
		if err := sess.Destroy(ctx); err != nil {
			appLogger.Warning("Session teardown: %v", err)
		}
	}()

	// Setup Storage (optional)
	var store interfaces.IEventStore
	var recorder *storage.Recorder
	if conf.Storage.Enabled {
		store, err = storage.NewEventStore(conf.MConfig, logger.NewLogger(conf.MConfig, "Storage"))
		if err != nil {
			appLogger.Critical("Failed to init event store: %v", err)
		}
		if err := store.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate event store: %v", err)
		}
		recorder = storage.NewRecorder(store, conf.MConfig, logger.NewLogger(conf.MConfig, "Recorder"))
		recorder.Start()
		defer store.Close()
		defer recorder.Close()
	}

	// Setup Event Cache sized against physical memory
	cacheLimit := helpers.GetRecommendedCacheLimitMB()
	appLogger.Info("Event cache memory ceiling: %d MB", cacheLimit)
	cache := utils.NewEventCache(cacheLimit, 0)

	// Setup local candle aggregation (optional)
	var builder *analysis.CandleBuilder
	if len(conf.WindowsAgg) > 0 {
		builder = analysis.NewCandleBuilder(conf.MConfig, logger.NewLogger(conf.MConfig, "CandleBuilder"))
	}

	// Setup NATS publisher (optional)
	var publisher interfaces.IEventPublisher
	if conf.Publish.Enabled {
		publisher, err = publish.NewNatsPublisher(conf.MConfig, logger.NewLogger(conf.MConfig, "Publish"))
		if err != nil {
			appLogger.Critical("Failed to connect publisher: %v", err)
		}
		defer publisher.Close()
	}

	// Setup Feed Manager and wire the pipeline legs
	manager := feed.NewManager(conf.MConfig, sess, logger.NewLogger(conf.MConfig, "FeedManager"))
	manager.Cache = cache
	manager.Builder = builder
	manager.Recorder = recorder
	manager.Publisher = publisher
	manager.Store = store

	// Setup Relay Server (optional)
	var relay *server.RelayServer
	if conf.Server.Enabled {
		relay = server.NewRelayServer(conf.MConfig, logger.NewLogger(conf.MConfig, "RelayServer"), manager, cache)
		manager.Exchanger = relay
	}

	// Lifecycle: everything runs under one errgroup, unwound by SIGINT/SIGTERM
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(rootCtx)

	group.Go(func() error {
		return manager.Run(ctx)
	})
	group.Go(func() error {
		<-ctx.Done()
		return manager.Stop()
	})

	if relay != nil {
		group.Go(func() error {
			return relay.Start()
		})
		group.Go(func() error {
			<-ctx.Done()
			return relay.Stop()
		})
	}

	// Account streamer (optional): watch-only notification drain
	if conf.AccountStreamer.Enabled {
		acct := streamer.NewAccountStreamer(conf.MConfig, sess, transport.NewWSDialer())
		acct.Start()
		group.Go(func() error {
			<-ctx.Done()
			return acct.Close()
		})
		group.Go(func() error {
			for notice := range acct.Notices() {
				appLogger.Info("Account notice [%s]: %s", notice.Type, notice.Data)
			}
			return nil
		})
	}

	appLogger.Info("%s running", conf.Name)
	if err := group.Wait(); err != nil && !isShutdown(err) {
		appLogger.Error("Daemon exited with error: %v", err)
		os.Exit(1)
	}
	appLogger.Info("Shutdown complete.")
}

// -----------------------------------------------------------------------------

// isShutdown filters the context cancellation the signal handler injects so
// an orderly Ctrl-C exits with status 0.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
