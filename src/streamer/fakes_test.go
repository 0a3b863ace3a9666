package streamer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/models"
)

var errFakeClosed = errors.New("fake transport closed")

// -----------------------------------------------------------------------------
// fakeTransport is an in-memory feed socket: the test plays the server by
// reading client frames from out and pushing server frames into in.
// -----------------------------------------------------------------------------

type fakeTransport struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, errFakeClosed
	}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	select {
	case f.out <- data:
		return nil
	case <-f.closed:
		return errFakeClosed
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// push injects a server frame.
func (f *fakeTransport) push(t *testing.T, frame any) {
	t.Helper()
	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	select {
	case f.in <- payload:
	case <-time.After(3 * time.Second):
		t.Fatal("engine stopped reading")
	}
}

// nextWrite returns the next client frame as a generic map.
func (f *fakeTransport) nextWrite(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-f.out:
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("expected a client frame, got none")
		return nil
	}
}

// -----------------------------------------------------------------------------

type fakeDialer struct {
	dials    chan *fakeTransport
	dialed   atomic.Int32
	failWith error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dials: make(chan *fakeTransport, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (interfaces.ITransport, error) {
	d.dialed.Add(1)
	if d.failWith != nil {
		return nil, d.failWith
	}
	ft := newFakeTransport()
	d.dials <- ft
	return ft, nil
}

// nextDial waits for the supervisor's next connection attempt.
func (d *fakeDialer) nextDial(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case ft := <-d.dials:
		return ft
	case <-time.After(3 * time.Second):
		t.Fatal("expected a dial, got none")
		return nil
	}
}

// -----------------------------------------------------------------------------

type fakeProvider struct {
	streamerTokens atomic.Int32
	sessionTokens  atomic.Int32
}

func (p *fakeProvider) StreamerToken(ctx context.Context) (models.MStreamerTokenData, error) {
	n := p.streamerTokens.Add(1)
	return models.MStreamerTokenData{
		Token:     fmt.Sprintf("dx-token-%d", n),
		DXLinkURL: "wss://feed.invalid/realtime",
		Level:     "api",
	}, nil
}

func (p *fakeProvider) SessionToken(ctx context.Context) (string, error) {
	p.sessionTokens.Add(1)
	return "session-token", nil
}

// -----------------------------------------------------------------------------

func testStreamerConfig() *models.MConfig {
	return &models.MConfig{
		Logging: models.MLoggingConfig{Level: "error"},
		Backoff: models.MBackoffConfig{
			BaseDelay:      0.01,
			MaxDelay:       0.05,
			JitterFraction: 0,
		},
		Dispatcher: models.MDispatcherConfig{QueueSize: 64},
	}
}

// completeHandshake plays the server side of the dxLink handshake and
// returns the token the client authenticated with.
func completeHandshake(t *testing.T, ft *fakeTransport) string {
	t.Helper()

	frame := ft.nextWrite(t)
	require.Equal(t, models.FrameSetup, frame["type"])
	require.Equal(t, DXLinkVersion, frame["version"])
	ft.push(t, models.MInboundFrame{Type: models.FrameSetup, Channel: SetupChannel})
	ft.push(t, models.MInboundFrame{Type: models.FrameAuthState, Channel: SetupChannel, State: models.AuthStateUnauthorized})

	frame = ft.nextWrite(t)
	require.Equal(t, models.FrameAuth, frame["type"])
	token, _ := frame["token"].(string)
	ft.push(t, models.MInboundFrame{Type: models.FrameAuthState, Channel: SetupChannel, State: models.AuthStateAuthorized})

	frame = ft.nextWrite(t)
	require.Equal(t, models.FrameChannelRequest, frame["type"])
	require.Equal(t, float64(FeedChannel), frame["channel"])
	ft.push(t, models.MInboundFrame{Type: models.FrameChannelOpened, Channel: FeedChannel})

	frame = ft.nextWrite(t)
	require.Equal(t, models.FrameFeedSetup, frame["type"])
	require.Equal(t, DataFormatCompact, frame["acceptDataFormat"])
	ft.push(t, models.MInboundFrame{Type: models.FrameFeedConfig, Channel: FeedChannel})

	return token
}

// pushFeedData injects one FEED_DATA frame with a raw compact payload.
func pushFeedData(t *testing.T, ft *fakeTransport, compact string) {
	t.Helper()
	ft.push(t, models.MInboundFrame{
		Type:    models.FrameFeedData,
		Channel: FeedChannel,
		Data:    json.RawMessage(compact),
	})
}
