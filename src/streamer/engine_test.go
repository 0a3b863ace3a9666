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

func TestKeepaliveOnIdleConnection(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testStreamerConfig()
	cfg.Streamer.KeepaliveInterval = 1

	s := NewDXLinkStreamerWithDialer(cfg, &fakeProvider{}, dialer)
	t.Cleanup(func() { s.Close() })
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	// Nothing else to send, so the next frame on an idle connection is the
	// keepalive.
	frame := ft.nextWrite(t)
	assert.Equal(t, models.FrameKeepalive, frame["type"])
	assert.Equal(t, float64(SetupChannel), frame["channel"])
}

// -----------------------------------------------------------------------------

func TestLivenessTimeoutTriggersReconnect(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testStreamerConfig()
	cfg.Streamer.KeepaliveTimeout = 1

	s := NewDXLinkStreamerWithDialer(cfg, &fakeProvider{}, dialer)
	t.Cleanup(func() { s.Close() })
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	// The server goes silent; the engine must treat it as a transport
	// failure and reconnect.
	notice := awaitNotice(t, s.Notifications(), models.NoticeFailed)
	assert.True(t, helpers.IsTransportError(notice.Err))

	ft2 := dialer.nextDial(t)
	completeHandshake(t, ft2)
	awaitNotice(t, s.Notifications(), models.NoticeReconnected)
}

// -----------------------------------------------------------------------------

func TestServerKeepalivesKeepConnectionAlive(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testStreamerConfig()
	cfg.Streamer.KeepaliveTimeout = 1

	s := NewDXLinkStreamerWithDialer(cfg, &fakeProvider{}, dialer)
	t.Cleanup(func() { s.Close() })
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	// Feed server keepalives for 1.5 liveness windows; the connection must
	// survive.
	for i := 0; i < 6; i++ {
		ft.push(t, models.MInboundFrame{Type: models.FrameKeepalive, Channel: SetupChannel})
		time.Sleep(250 * time.Millisecond)
	}
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, int32(1), dialer.dialed.Load())
}

// -----------------------------------------------------------------------------

func TestAuthDenialIsProtocolViolation(t *testing.T) {
	dialer := newFakeDialer()
	s := NewDXLinkStreamerWithDialer(testStreamerConfig(), &fakeProvider{}, dialer)
	t.Cleanup(func() { s.Close() })
	s.Start()

	ft := dialer.nextDial(t)

	frame := ft.nextWrite(t)
	require.Equal(t, models.FrameSetup, frame["type"])
	ft.push(t, models.MInboundFrame{Type: models.FrameSetup, Channel: SetupChannel})
	ft.push(t, models.MInboundFrame{Type: models.FrameAuthState, Channel: SetupChannel, State: models.AuthStateUnauthorized})

	frame = ft.nextWrite(t)
	require.Equal(t, models.FrameAuth, frame["type"])

	// Reject the token by announcing UNAUTHORIZED again.
	ft.push(t, models.MInboundFrame{Type: models.FrameAuthState, Channel: SetupChannel, State: models.AuthStateUnauthorized})

	notice := awaitNotice(t, s.Notifications(), models.NoticeFailed)
	assert.True(t, helpers.IsProtocolViolation(notice.Err))
}

// -----------------------------------------------------------------------------

func TestBatchedFeedDataRoutesAllRecords(t *testing.T) {
	s, dialer, _ := newTestStreamer(t)
	require.NoError(t, s.Subscribe(context.Background(), models.EventTypeQuote, []string{"AAA", "BBB"}))
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)
	ft.nextWrite(t) // snapshot replay

	pushFeedData(t, ft, `["Quote",
		["AAA", 0, 0, 0, 0, "Q", 1.0, 1.1, 1, 1, 0, "P",
		 "BBB", 0, 0, 0, 0, "Q", 2.0, 2.1, 1, 1, 0, "P"]]`)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	first, err := s.GetEvent(ctx, models.EventTypeQuote)
	require.NoError(t, err)
	second, err := s.GetEvent(ctx, models.EventTypeQuote)
	require.NoError(t, err)
	assert.Equal(t, "AAA", first.Symbol())
	assert.Equal(t, "BBB", second.Symbol())
}

// -----------------------------------------------------------------------------

func TestConnectionStateProgression(t *testing.T) {
	dialer := newFakeDialer()
	s := NewDXLinkStreamerWithDialer(testStreamerConfig(), &fakeProvider{}, dialer)
	t.Cleanup(func() { s.Close() })

	assert.Equal(t, StateDisconnected, s.State())
	s.Start()

	ft := dialer.nextDial(t)
	completeHandshake(t, ft)

	assert.Eventually(t, func() bool { return s.State() == StateReady },
		3*time.Second, 10*time.Millisecond)
}

// -----------------------------------------------------------------------------

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "Disconnected", StateDisconnected.String())
	assert.Equal(t, "AuthenticatingChannel", StateAuthenticatingChannel.String())
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Failed", StateFailed.String())
}
