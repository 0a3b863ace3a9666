package streamer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tastyware/tastytrade/src/codec"
	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/metrics"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/subscription"
)

const (
	// DXLinkVersion is the protocol version announced in SETUP.
	DXLinkVersion = "0.1-DXF-JS/0.3.0"

	// SetupChannel carries the connection-level conversation, FeedChannel
	// carries every event kind multiplexed by the kind inside FEED_DATA.
	SetupChannel = 0
	FeedChannel  = 1

	ServiceFeed       = "FEED"
	ContractAuto      = "AUTO"
	DataFormatCompact = "COMPACT"

	defaultKeepaliveInterval = 30 * time.Second
	defaultLivenessTimeout   = 60 * time.Second
	handshakeTimeout         = 30 * time.Second
)

// -----------------------------------------------------------------------------
// Engine owns one transport connection: it runs the setup/auth/channel-open
// handshake, then a single select loop that reads frames, flushes registry
// deltas, sends keepalives and watches liveness. All writes happen on the
// goroutine running Open/Run, so the socket has one writer. Failed is
// terminal; the supervisor builds a new engine to reconnect.
// -----------------------------------------------------------------------------

type Engine struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Registry   *subscription.Registry
	Dispatcher *Dispatcher

	dialer interfaces.ITransportDialer
	url    string
	token  string
	state  *StateVar

	keepaliveInterval time.Duration
	livenessTimeout   time.Duration

	transport interfaces.ITransport
	readCh    chan []byte
	readErrCh chan error
	done      chan struct{}
	doneOnce  sync.Once

	lastReceived time.Time
	lastSent     time.Time
	failure      error
}

func NewEngine(config *models.MConfig, state *StateVar, registry *subscription.Registry,
	dispatcher *Dispatcher, dialer interfaces.ITransportDialer, url string, token string) *Engine {

	keepalive := defaultKeepaliveInterval
	if config.Streamer.KeepaliveInterval > 0 {
		keepalive = time.Duration(config.Streamer.KeepaliveInterval) * time.Second
	}
	liveness := defaultLivenessTimeout
	if config.Streamer.KeepaliveTimeout > 0 {
		liveness = time.Duration(config.Streamer.KeepaliveTimeout) * time.Second
	}

	return &Engine{
		Config:            config,
		Logger:            logger.NewLogger(config, "Engine"),
		Registry:          registry,
		Dispatcher:        dispatcher,
		dialer:            dialer,
		url:               url,
		token:             token,
		state:             state,
		keepaliveInterval: keepalive,
		livenessTimeout:   liveness,
		readCh:            make(chan []byte, 256),
		readErrCh:         make(chan error, 1),
		done:              make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Open dials the transport and walks the handshake to Ready: SETUP, AUTH on
// the server's UNAUTHORIZED announcement, CHANNEL_REQUEST for the feed
// service, FEED_SETUP for the compact format. Returns once the server
// confirmed the feed config.
func (e *Engine) Open(ctx context.Context) error {
	e.state.Store(StateConnecting)
	e.Logger.Info("Connecting to %s", e.url)

	conn, err := e.dialer.Dial(ctx, e.url)
	if err != nil {
		e.fail(err)
		return err
	}
	e.transport = conn
	e.lastReceived = time.Now()
	e.lastSent = time.Now()
	go e.readLoop()

	e.state.Store(StateAuthenticatingChannel)
	if err := e.handshake(ctx); err != nil {
		e.fail(err)
		return err
	}

	e.state.Store(StateReady)
	e.Logger.Info("Feed channel open")
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) handshake(ctx context.Context) error {
	timeoutSeconds := int(e.livenessTimeout / time.Second)
	if err := e.send(models.MSetupMessage{
		Type:                   models.FrameSetup,
		Channel:                SetupChannel,
		Version:                DXLinkVersion,
		KeepaliveTimeout:       timeoutSeconds,
		AcceptKeepaliveTimeout: timeoutSeconds,
	}); err != nil {
		return err
	}

	authSent := false
	authorized := false
	channelOpened := false
	deadline := time.Now().Add(handshakeTimeout)

	for {
		frame, err := e.nextFrame(ctx, deadline)
		if err != nil {
			return err
		}

		switch frame.Type {
		case models.FrameSetup, models.FrameKeepalive:
			// Acks, nothing to do.
		case models.FrameAuthState:
			switch frame.State {
			case models.AuthStateUnauthorized:
				if authSent {
					return helpers.NewProtocolViolationError("handshake",
						fmt.Errorf("token rejected"))
				}
				if err := e.send(models.MAuthMessage{
					Type:    models.FrameAuth,
					Channel: SetupChannel,
					Token:   e.token,
				}); err != nil {
					return err
				}
				authSent = true
			case models.AuthStateAuthorized:
				authorized = true
				if err := e.send(models.MChannelRequest{
					Type:       models.FrameChannelRequest,
					Channel:    FeedChannel,
					Service:    ServiceFeed,
					Parameters: models.MChannelParameters{Contract: ContractAuto},
				}); err != nil {
					return err
				}
			default:
				return helpers.NewProtocolViolationError("handshake",
					fmt.Errorf("unknown auth state %q", frame.State))
			}
		case models.FrameChannelOpened:
			if !authorized || frame.Channel != FeedChannel {
				return helpers.NewProtocolViolationError("handshake",
					fmt.Errorf("unexpected CHANNEL_OPENED on channel %d", frame.Channel))
			}
			channelOpened = true
			if err := e.send(models.MFeedSetup{
				Type:                    models.FrameFeedSetup,
				Channel:                 FeedChannel,
				AcceptAggregationPeriod: e.aggregationPeriod(),
				AcceptDataFormat:        DataFormatCompact,
				AcceptEventFields:       codec.AcceptEventFields(),
			}); err != nil {
				return err
			}
		case models.FrameFeedConfig:
			if !channelOpened {
				return helpers.NewProtocolViolationError("handshake",
					fmt.Errorf("FEED_CONFIG before channel opened"))
			}
			return nil
		case models.FrameError:
			return helpers.NewProtocolViolationError("handshake",
				fmt.Errorf("server error %s: %s", frame.Error, frame.Message))
		default:
			return helpers.NewProtocolViolationError("handshake",
				fmt.Errorf("unexpected frame %q", frame.Type))
		}
	}
}

// -----------------------------------------------------------------------------

func (e *Engine) nextFrame(ctx context.Context, deadline time.Time) (models.MInboundFrame, error) {
	var frame models.MInboundFrame

	wait := time.Until(deadline)
	if wait <= 0 {
		return frame, helpers.NewTransportError("handshake", fmt.Errorf("handshake timed out"))
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case data := <-e.readCh:
		metrics.FramesReceived.Inc()
		e.lastReceived = time.Now()
		if err := json.Unmarshal(data, &frame); err != nil {
			return frame, helpers.NewProtocolViolationError("handshake", err)
		}
		return frame, nil
	case err := <-e.readErrCh:
		return frame, err
	case <-timer.C:
		return frame, helpers.NewTransportError("handshake", fmt.Errorf("handshake timed out"))
	case <-ctx.Done():
		return frame, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// SendDelta writes one subscription frame. Used by the supervisor to replay
// the registry snapshot right after the handshake; empty deltas send
// nothing.
func (e *Engine) SendDelta(delta models.MSubscriptionDelta) error {
	payload := codec.EncodeSubscriptionDelta(FeedChannel, delta)
	if payload == nil {
		return nil
	}
	if err := e.sendRaw(payload); err != nil {
		e.fail(err)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Run drives the connection until the context is canceled (clean close,
// returns nil) or the connection fails (returns the failure). Single
// goroutine: frame handling, delta flushes, keepalives and liveness all run
// here.
func (e *Engine) Run(ctx context.Context) error {
	keepTick := time.NewTicker(halfWithFloor(e.keepaliveInterval))
	defer keepTick.Stop()
	liveTick := time.NewTicker(quarterWithFloor(e.livenessTimeout))
	defer liveTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case data := <-e.readCh:
			if err := e.handleFrame(data); err != nil {
				e.fail(err)
				return err
			}
		case err := <-e.readErrCh:
			e.fail(err)
			return err
		case <-e.Registry.Changes():
			if err := e.flush(); err != nil {
				e.fail(err)
				return err
			}
		case <-keepTick.C:
			if err := e.maybeKeepalive(); err != nil {
				e.fail(err)
				return err
			}
		case <-liveTick.C:
			if err := e.checkLiveness(); err != nil {
				e.fail(err)
				return err
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (e *Engine) handleFrame(data []byte) error {
	metrics.FramesReceived.Inc()
	e.lastReceived = time.Now()

	var frame models.MInboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.MalformedFrames.Inc()
		e.Logger.Warning("Dropping unparseable frame: %v", err)
		return nil
	}

	switch frame.Type {
	case models.FrameFeedData:
		e.handleFeedData(frame.Data)
		return nil
	case models.FrameKeepalive, models.FrameSetup, models.FrameFeedConfig, models.FrameChannelOpened:
		return nil
	case models.FrameAuthState:
		if frame.State != models.AuthStateAuthorized {
			return helpers.NewProtocolViolationError("run",
				fmt.Errorf("auth state changed to %q", frame.State))
		}
		return nil
	case models.FrameChannelClosed:
		return helpers.NewProtocolViolationError("run",
			fmt.Errorf("server closed channel %d", frame.Channel))
	case models.FrameError:
		return helpers.NewProtocolViolationError("run",
			fmt.Errorf("server error %s: %s", frame.Error, frame.Message))
	default:
		return helpers.NewProtocolViolationError("run",
			fmt.Errorf("unexpected frame %q", frame.Type))
	}
}

// -----------------------------------------------------------------------------

// handleFeedData decodes one FEED_DATA frame and routes the events. Decode
// failures drop the frame and keep the stream alive.
func (e *Engine) handleFeedData(raw json.RawMessage) {
	kind, values, err := codec.ParseFeedData(raw)
	if err != nil {
		metrics.MalformedFrames.Inc()
		e.Logger.Warning("Dropping malformed feed frame: %v", err)
		return
	}

	events, err := codec.Decode(kind, values)
	if err != nil {
		metrics.MalformedFrames.Inc()
		e.Logger.Warning("Dropping malformed %s frame: %v", kind, err)
		return
	}

	for _, event := range events {
		e.Dispatcher.Route(event)
	}
	metrics.EventsDecoded.WithLabelValues(string(kind)).Add(float64(len(events)))
}

// -----------------------------------------------------------------------------

func (e *Engine) flush() error {
	delta := e.Registry.DrainDelta()
	payload := codec.EncodeSubscriptionDelta(FeedChannel, delta)
	if payload == nil {
		return nil
	}
	e.Logger.Debug("Flushing subscription delta: %d add, %d remove", len(delta.Add), len(delta.Remove))
	return e.sendRaw(payload)
}

// -----------------------------------------------------------------------------

func (e *Engine) maybeKeepalive() error {
	if time.Since(e.lastSent) < e.keepaliveInterval {
		return nil
	}
	if err := e.send(models.MKeepalive{Type: models.FrameKeepalive, Channel: SetupChannel}); err != nil {
		return err
	}
	metrics.KeepalivesSent.Inc()
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) checkLiveness() error {
	silent := time.Since(e.lastReceived)
	if silent <= e.livenessTimeout {
		return nil
	}
	return helpers.NewTransportError("liveness",
		fmt.Errorf("nothing received for %s", silent.Round(time.Millisecond)))
}

// -----------------------------------------------------------------------------

func (e *Engine) send(frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return e.sendRaw(payload)
}

func (e *Engine) sendRaw(payload []byte) error {
	if err := e.transport.WriteMessage(payload); err != nil {
		return err
	}
	e.lastSent = time.Now()
	metrics.FramesSent.Inc()
	return nil
}

// -----------------------------------------------------------------------------

// shutdown is the clean close path: cancel the feed channel best effort,
// then drop the transport.
func (e *Engine) shutdown() error {
	e.state.Store(StateClosing)
	e.send(models.MChannelCancel{Type: models.FrameChannelCancel, Channel: FeedChannel})
	e.doneOnce.Do(func() { close(e.done) })
	e.transport.Close()
	e.state.Store(StateDisconnected)
	e.Logger.Info("Feed connection closed")
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) fail(err error) {
	if e.failure == nil {
		e.failure = err
	}
	e.state.Store(StateFailed)
	e.doneOnce.Do(func() { close(e.done) })
	if e.transport != nil {
		e.transport.Close()
	}
}

// -----------------------------------------------------------------------------

func (e *Engine) readLoop() {
	for {
		data, err := e.transport.ReadMessage()
		if err != nil {
			select {
			case e.readErrCh <- err:
			case <-e.done:
			}
			return
		}
		select {
		case e.readCh <- data:
		case <-e.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (e *Engine) aggregationPeriod() float64 {
	if e.Config.Streamer.AcceptAggregationPeriod > 0 {
		return e.Config.Streamer.AcceptAggregationPeriod
	}
	return 10
}

func halfWithFloor(d time.Duration) time.Duration {
	half := d / 2
	if half < 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return half
}

func quarterWithFloor(d time.Duration) time.Duration {
	quarter := d / 4
	if quarter < 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return quarter
}
