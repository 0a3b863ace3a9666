package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/streamer"
)

// -----------------------------------------------------------------------------
// Manual harness: drives a real DXLinkStreamer against the in-process mock
// feed, forces two disconnects mid-run, and prints what arrives. Run it to
// eyeball the protocol without credentials:
//
//	go run ./cmd/test -duration 30s
// -----------------------------------------------------------------------------

func main() {
	duration := flag.Duration("duration", 30*time.Second, "how long to stream")
	drops := flag.Int("drops", 2, "forced disconnects during the run")
	flag.Parse()

	// 1. Mock feed endpoint
	bootLogger := logger.NewLogger(nil, "Harness")
	mock, err := NewMockFeedServer(logger.NewLogger(nil, "MockFeed"))
	if err != nil {
		fmt.Printf("Error starting mock feed: %v\n", err)
		os.Exit(1)
	}
	defer mock.Close()

	// 2. Streamer against the mock
	conf := harnessConfig(mock.URL())
	provider := &mockSessionProvider{url: mock.URL(), token: mock.Token()}
	stream := streamer.NewDXLinkStreamer(conf, provider)
	stream.Start()
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// 3. Lifecycle notices
	go func() {
		for notice := range stream.Notifications() {
			bootLogger.Info("Notice: %s (attempt %d, err %v)", notice.Kind, notice.Attempt, notice.Err)
		}
	}()

	// 4. Subscriptions
	if err := stream.Subscribe(ctx, models.EventTypeQuote, []string{"SPY", "AAPL"}); err != nil {
		bootLogger.Critical("Subscribe quotes: %v", err)
	}
	if err := stream.Subscribe(ctx, models.EventTypeTrade, []string{"SPY"}); err != nil {
		bootLogger.Critical("Subscribe trades: %v", err)
	}
	if err := stream.Subscribe(ctx, models.EventTypeGreeks, []string{".SPY260918C650"}); err != nil {
		bootLogger.Critical("Subscribe greeks: %v", err)
	}

	// 5. Consumers: one channel drain per kind plus a single-shot GetEvent
	var quotes, trades, greeks atomic.Int64
	go drain(stream.Listen(models.EventTypeQuote), &quotes, bootLogger)
	go drain(stream.Listen(models.EventTypeTrade), &trades, bootLogger)
	go drain(stream.Listen(models.EventTypeGreeks), &greeks, bootLogger)

	first, err := stream.GetEvent(ctx, models.EventTypeQuote)
	if err != nil {
		bootLogger.Critical("GetEvent never produced a quote: %v", err)
	}
	bootLogger.Info("First quote: %+v", first)

	// 6. Forced disconnects spread across the run; the supervisor must
	// replay the full subscription set each time.
	go func() {
		for i := 0; i < *drops; i++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(*duration / time.Duration(*drops+1)):
				bootLogger.Info("Forcing disconnect %d/%d", i+1, *drops)
				mock.DropClients()
			}
		}
	}()

	<-ctx.Done()

	// 7. Unsubscribe one leg, then close everything down.
	if err := stream.Unsubscribe(context.Background(), models.EventTypeQuote, []string{"AAPL"}); err != nil {
		bootLogger.Warning("Unsubscribe: %v", err)
	}

	bootLogger.Info("Received %d quotes, %d trades, %d greeks; final state %s",
		quotes.Load(), trades.Load(), greeks.Load(), stream.State())
}

// -----------------------------------------------------------------------------

func drain(events <-chan interfaces.IEvent, count *atomic.Int64, log *logger.Logger) {
	for event := range events {
		n := count.Add(1)
		// Log a sample, not the firehose.
		if n%10 == 1 {
			log.Debug("%s %s (#%d): %+v", event.Kind(), event.Symbol(), n, event)
		}
	}
}
