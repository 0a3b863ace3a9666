package streamer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/models"
)

func newTestStreamer(t *testing.T) (*DXLinkStreamer, *fakeDialer, *fakeProvider) {
	t.Helper()
	dialer := newFakeDialer()
	provider := &fakeProvider{}
	s := NewDXLinkStreamerWithDialer(testStreamerConfig(), provider, dialer)
	t.Cleanup(func() { s.Close() })
	return s, dialer, provider
}

func awaitNotice(t *testing.T, ch <-chan models.MStreamNotice, kind models.MStreamNoticeKind) models.MStreamNotice {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case notice, ok := <-ch:
			require.True(t, ok, "notification channel closed while waiting for %s", kind)
			if notice.Kind == kind {
				return notice
			}
		case <-deadline:
			t.Fatalf("no %s notice", kind)
		}
	}
}

// -----------------------------------------------------------------------------

func TestSubscribeThenQuoteDelivery(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeQuote, []string{"AAA"}))
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	// The pre-start subscription is replayed as the snapshot delta.
	sub := ft.nextWrite(t)
	require.Equal(t, models.FrameFeedSubscription, sub["type"])
	add := sub["add"].([]any)
	require.Len(t, add, 1)
	entry := add[0].(map[string]any)
	assert.Equal(t, "Quote", entry["type"])
	assert.Equal(t, "AAA", entry["symbol"])

	pushFeedData(t, ft, `["Quote",
		["AAA", 0, 0, 0, 1700000000100, "Q", 189.5, 189.52, 200, 300, 1700000000200, "P"]]`)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	event, err := s.GetEvent(ctx, models.EventTypeQuote)
	require.NoError(t, err)

	quote, ok := event.(models.MQuote)
	require.True(t, ok)
	assert.Equal(t, "AAA", quote.EventSymbol)
	assert.Equal(t, 189.5, quote.BidPrice)
	assert.Equal(t, 189.52, quote.AskPrice)
	assert.Equal(t, 200.0, quote.BidSize)
	assert.Equal(t, "P", quote.AskExchangeCode)
	assert.Equal(t, StateReady, s.State())
}

// -----------------------------------------------------------------------------

func TestReplayAfterForcedDisconnects(t *testing.T) {
	s, dialer, provider := newTestStreamer(t)
	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeGreeks, []string{"XYZ"}))
	s.Start()

	ft1 := dialer.nextDial(t)
	token1 := completeHandshake(t, ft1)
	assert.Equal(t, "dx-token-1", token1)
	sub := ft1.nextWrite(t)
	require.Equal(t, models.FrameFeedSubscription, sub["type"])

	// Deliver one event and consume it before the drop.
	pushFeedData(t, ft1, `["Greeks",
		["XYZ", 0, 0, 1, 1700000000000, 1, 5.25, 0.31, 0.55, 0.04, -0.08, 0.02, 0.12]]`)
	ctx := context.Background()
	first, err := s.GetEvent(ctx, models.EventTypeGreeks)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", first.Symbol())

	notices := s.Notifications()

	assertGreeksReplay := func(ft *fakeTransport) {
		t.Helper()
		replay := ft.nextWrite(t)
		require.Equal(t, models.FrameFeedSubscription, replay["type"])
		add := replay["add"].([]any)
		require.Len(t, add, 1)
		entry := add[0].(map[string]any)
		assert.Equal(t, "Greeks", entry["type"])
		assert.Equal(t, "XYZ", entry["symbol"])
		assert.Nil(t, replay["remove"])
	}

	// First forced disconnect: one replay delta with the full set.
	ft1.Close()
	awaitNotice(t, notices, models.NoticeFailed)
	ft2 := dialer.nextDial(t)
	assert.Equal(t, "dx-token-2", completeHandshake(t, ft2))
	assertGreeksReplay(ft2)
	awaitNotice(t, notices, models.NoticeReconnected)

	// Second forced disconnect: same again, still exactly one delta.
	ft2.Close()
	awaitNotice(t, notices, models.NoticeFailed)
	ft3 := dialer.nextDial(t)
	assert.Equal(t, "dx-token-3", completeHandshake(t, ft3))
	assertGreeksReplay(ft3)
	awaitNotice(t, notices, models.NoticeReconnected)

	// Three connections, three fresh tokens.
	assert.Equal(t, int32(3), provider.streamerTokens.Load())

	// Pre-disconnect frames were delivered once; nothing is duplicated.
	_, ok := s.GetEventNowait(models.EventTypeGreeks)
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestMalformedFrameDoesNotKillStream(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeQuote, []string{"AAA"}))
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)
	ft.nextWrite(t) // snapshot replay

	// Wrong arity: dropped, stream stays up.
	pushFeedData(t, ft, `["Quote", ["AAA", 1, 2]]`)
	pushFeedData(t, ft, `["Quote",
		["AAA", 0, 0, 0, 0, "Q", 10.0, 10.1, 1, 1, 0, "P"]]`)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	event, err := s.GetEvent(ctx, models.EventTypeQuote)
	require.NoError(t, err)
	assert.Equal(t, 10.0, event.(models.MQuote).BidPrice)
	assert.Equal(t, int32(1), dialer.dialed.Load())
}

// -----------------------------------------------------------------------------

func TestLiveSubscribeAndUnsubscribe(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeTrade, []string{"SPY"}))
	sub := ft.nextWrite(t)
	require.Equal(t, models.FrameFeedSubscription, sub["type"])
	add := sub["add"].([]any)
	require.Len(t, add, 1)
	assert.Equal(t, "SPY", add[0].(map[string]any)["symbol"])

	require.NoError(t, s.Unsubscribe(context.Background(), models.EventTypeTrade, []string{"SPY"}))
	unsub := ft.nextWrite(t)
	require.Equal(t, models.FrameFeedSubscription, unsub["type"])
	remove := unsub["remove"].([]any)
	require.Len(t, remove, 1)
	assert.Equal(t, "SPY", remove[0].(map[string]any)["symbol"])
	assert.Nil(t, unsub["add"])
}

// -----------------------------------------------------------------------------

func TestKindIsolation(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeQuote, []string{"AAA"}))
	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeTrade, []string{"AAA"}))
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)
	ft.nextWrite(t) // snapshot replay

	pushFeedData(t, ft, `["Quote",
		["AAA", 0, 0, 0, 0, "Q", 1.0, 1.1, 1, 1, 0, "P"]]`)
	pushFeedData(t, ft, `["Trade",
		["AAA", 0, 1700000000000, 0, 1, "Q", 2.5, 0.1, 50, 20000, 1000, 2500, "UP", false]]`)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	event, err := s.GetEvent(ctx, models.EventTypeTrade)
	require.NoError(t, err)
	trade, ok := event.(models.MTrade)
	require.True(t, ok)
	assert.Equal(t, 2.5, trade.Price)

	event, err = s.GetEvent(ctx, models.EventTypeQuote)
	require.NoError(t, err)
	_, ok = event.(models.MQuote)
	require.True(t, ok)
}

// -----------------------------------------------------------------------------

func TestGetEventHonorsContextDeadline(t *testing.T) {
	s, _, _ := newTestStreamer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.GetEvent(ctx, models.EventTypeQuote)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// -----------------------------------------------------------------------------

func TestCloseUnblocksConsumers(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	got := make(chan error, 1)
	go func() {
		_, err := s.GetEvent(context.Background(), models.EventTypeQuote)
		got <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-got:
		assert.ErrorIs(t, err, ErrStreamerClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("GetEvent still blocked after Close")
	}

	// Subsequent calls fail fast and Close stays idempotent.
	assert.Error(t, s.Subscribe(context.Background(), models.EventTypeQuote, []string{"AAA"}))
	assert.NoError(t, s.Close())
	assert.Equal(t, StateDisconnected, s.State())
}

// -----------------------------------------------------------------------------

func TestRetryBudgetExhaustion(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failWith = errFakeClosed
	provider := &fakeProvider{}
	cfg := testStreamerConfig()
	cfg.Backoff.MaxRetries = 2

	s := NewDXLinkStreamerWithDialer(cfg, provider, dialer)
	t.Cleanup(func() { s.Close() })
	s.Start()

	_, err := s.GetEvent(context.Background(), models.EventTypeQuote)
	require.Error(t, err)
	assert.True(t, helpers.IsConnectionLost(err))

	assert.Eventually(t, func() bool { return s.Err() != nil }, 3*time.Second, 10*time.Millisecond)
	assert.True(t, helpers.IsConnectionLost(s.Err()))
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, int32(3), dialer.dialed.Load())
}

// -----------------------------------------------------------------------------

func TestFailureCountResetsAfterSustainedReady(t *testing.T) {
	dialer := newFakeDialer()
	provider := &fakeProvider{}
	cfg := testStreamerConfig()
	cfg.Backoff.ResetAfter = 0.2 // 200ms of Ready counts as a healthy run

	s := NewDXLinkStreamerWithDialer(cfg, provider, dialer)
	t.Cleanup(func() { s.Close() })
	notices := s.Notifications()
	s.Start()

	// Connection 1 dies right after the handshake: streak at 1.
	ft1 := dialer.nextDial(t)
	completeHandshake(t, ft1)
	ft1.Close()
	assert.Equal(t, 1, awaitNotice(t, notices, models.NoticeFailed).Attempt)

	// Connection 2 stays Ready past the reset window before dying. A stable
	// run wipes the streak, so its failure counts from 1 again instead of 2
	// and the next delay starts back at base.
	ft2 := dialer.nextDial(t)
	completeHandshake(t, ft2)
	awaitNotice(t, notices, models.NoticeReconnected)
	time.Sleep(400 * time.Millisecond)
	ft2.Close()
	assert.Equal(t, 1, awaitNotice(t, notices, models.NoticeFailed).Attempt)

	ft3 := dialer.nextDial(t)
	completeHandshake(t, ft3)
	awaitNotice(t, notices, models.NoticeReconnected)
}

// -----------------------------------------------------------------------------

func TestProtocolErrorTriggersReconnect(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	s.Start()

	ft1 := dialer.nextDial(t)
	completeHandshake(t, ft1)

	ft1.push(t, models.MInboundFrame{Type: models.FrameError, Channel: 0, Error: "UNKNOWN", Message: "bad channel"})

	notice := awaitNotice(t, s.Notifications(), models.NoticeFailed)
	assert.True(t, helpers.IsProtocolViolation(notice.Err))

	ft2 := dialer.nextDial(t)
	completeHandshake(t, ft2)
	awaitNotice(t, s.Notifications(), models.NoticeReconnected)
	assert.Equal(t, int32(2), dialer.dialed.Load())
}

// -----------------------------------------------------------------------------

func TestSubscribeRejectsUnknownKind(t *testing.T) {
	s, _, _ := newTestStreamer(t)
	err := s.Subscribe(context.Background(), "Imbalance", []string{"AAA"})
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestSubscribeTimeSeriesRejectsPlainKind(t *testing.T) {
	s, _, _ := newTestStreamer(t)
	err := s.SubscribeTimeSeries(context.Background(), models.EventTypeQuote, []string{"AAA"}, 1700000000000)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestCandleSubscriptionCarriesSymbologyAndFromTime(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	require.NoError(t, s.SubscribeCandle(context.Background(), "AAPL", "5m", 1700000000000, false))
	sub := ft.nextWrite(t)
	add := sub["add"].([]any)
	require.Len(t, add, 1)
	entry := add[0].(map[string]any)
	assert.Equal(t, "Candle", entry["type"])
	assert.Equal(t, "AAPL{=5m}", entry["symbol"])
	assert.Equal(t, float64(1700000000000), entry["fromTime"])

	require.NoError(t, s.UnsubscribeCandle(context.Background(), "AAPL", "5m", false))
	unsub := ft.nextWrite(t)
	remove := unsub["remove"].([]any)
	require.Len(t, remove, 1)
	assert.Equal(t, "AAPL{=5m}", remove[0].(map[string]any)["symbol"])
}

// -----------------------------------------------------------------------------

func TestCandleSymbol(t *testing.T) {
	assert.Equal(t, "AAPL{=5m}", CandleSymbol("AAPL", "5m", false))
	assert.Equal(t, "AAPL{=5m,tho=true}", CandleSymbol("AAPL", "5m", true))
	assert.Equal(t, "SPX{=1d}", CandleSymbol("SPX", "1d", false))
}
