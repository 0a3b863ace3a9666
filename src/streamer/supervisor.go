package streamer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/metrics"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/subscription"
)

const (
	prodFeedURL = "wss://tasty-openapi-ws.dxfeed.com/realtime"
	certFeedURL = "wss://tasty-openapi-ws.cert.dxfeed.com/realtime"

	defaultBaseDelay  = time.Second
	defaultMaxDelay   = time.Minute
	defaultResetAfter = time.Minute
	noticeBuffer      = 16
)

// -----------------------------------------------------------------------------
// Supervisor owns the engine lifecycle: fetch a fresh token, build an
// engine, open it, replay the full registry snapshot, run until failure,
// back off and repeat. Subscribe/unsubscribe keep mutating the registry
// while disconnected; the next engine replays the complete desired set, so
// nothing is lost across reconnects. Exhausting a bounded retry budget
// surfaces ConnectionLost to every blocked consumer and stops the loop.
// -----------------------------------------------------------------------------

type Supervisor struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Provider   interfaces.ISessionProvider
	Dialer     interfaces.ITransportDialer
	Registry   *subscription.Registry
	Dispatcher *Dispatcher

	baseDelay  time.Duration
	maxDelay   time.Duration
	jitter     float64
	maxRetries int
	resetAfter time.Duration

	state    *StateVar
	notices  chan models.MStreamNotice
	fatalErr atomic.Value

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	failures int
}

func NewSupervisor(config *models.MConfig, provider interfaces.ISessionProvider,
	dialer interfaces.ITransportDialer, registry *subscription.Registry, dispatcher *Dispatcher) *Supervisor {

	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{
		Config:     config,
		Logger:     logger.NewLogger(config, "Supervisor"),
		Provider:   provider,
		Dialer:     dialer,
		Registry:   registry,
		Dispatcher: dispatcher,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		jitter:     config.Backoff.JitterFraction,
		maxRetries: config.Backoff.MaxRetries,
		resetAfter: defaultResetAfter,
		state:      &StateVar{},
		notices:    make(chan models.MStreamNotice, noticeBuffer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	if config.Backoff.BaseDelay > 0 {
		s.baseDelay = time.Duration(config.Backoff.BaseDelay * float64(time.Second))
	}
	if config.Backoff.MaxDelay > 0 {
		s.maxDelay = time.Duration(config.Backoff.MaxDelay * float64(time.Second))
	}
	if config.Backoff.ResetAfter > 0 {
		s.resetAfter = time.Duration(config.Backoff.ResetAfter * float64(time.Second))
	}

	return s
}

// -----------------------------------------------------------------------------

// Start launches the supervision loop. Safe to call once.
func (s *Supervisor) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// -----------------------------------------------------------------------------

func (s *Supervisor) run() {
	defer close(s.done)
	defer close(s.notices)

	for {
		if s.ctx.Err() != nil {
			s.finishClosed()
			return
		}

		err := s.runOnce()
		if s.ctx.Err() != nil {
			s.finishClosed()
			return
		}

		s.failures++
		s.state.Store(StateFailed)
		s.notify(models.NoticeFailed, err, s.failures)
		s.Logger.Warning("Feed connection failed (attempt %d): %v", s.failures, err)

		if s.maxRetries > 0 && s.failures > s.maxRetries {
			fatal := helpers.NewConnectionLostError("reconnect", err)
			s.fatalErr.Store(fatal)
			s.Dispatcher.Close(fatal)
			s.notify(models.NoticeFailed, fatal, s.failures)
			s.Logger.Error("Retry budget exhausted after %d attempts, giving up", s.failures)
			return
		}

		delay := helpers.BackoffDelay(s.failures-1, s.baseDelay, s.maxDelay, s.jitter)
		s.Logger.Info("Reconnecting in %s", delay.Round(time.Millisecond))
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
		}
	}
}

// -----------------------------------------------------------------------------

// runOnce performs one full connection cycle. Returns nil only when the
// supervisor context was canceled mid-run (clean shutdown).
func (s *Supervisor) runOnce() error {
	tokenData, err := s.Provider.StreamerToken(s.ctx)
	if err != nil {
		return err
	}

	engine := NewEngine(s.Config, s.state, s.Registry, s.Dispatcher, s.Dialer,
		s.feedURL(tokenData), tokenData.Token)

	if err := engine.Open(s.ctx); err != nil {
		return err
	}

	snapshot := s.Registry.Snapshot()
	if err := engine.SendDelta(snapshot); err != nil {
		return err
	}

	if s.failures > 0 {
		metrics.Reconnects.Inc()
		s.notify(models.NoticeReconnected, nil, 0)
		s.Logger.Info("Reconnected, replayed %d subscriptions", len(snapshot.Add))
	}

	readyAt := time.Now()
	runErr := engine.Run(s.ctx)
	if runErr != nil && time.Since(readyAt) >= s.resetAfter {
		s.failures = 0
	}
	return runErr
}

// -----------------------------------------------------------------------------

func (s *Supervisor) finishClosed() {
	s.state.Store(StateDisconnected)
	s.Dispatcher.Close(nil)
	s.notify(models.NoticeClosed, nil, 0)
}

// -----------------------------------------------------------------------------

func (s *Supervisor) feedURL(tokenData models.MStreamerTokenData) string {
	if s.Config.Streamer.URLOverride != "" {
		return s.Config.Streamer.URLOverride
	}
	if tokenData.DXLinkURL != "" {
		return tokenData.DXLinkURL
	}
	if s.Config.Streamer.Environment == "cert" {
		return certFeedURL
	}
	return prodFeedURL
}

// -----------------------------------------------------------------------------

func (s *Supervisor) notify(kind models.MStreamNoticeKind, err error, attempt int) {
	notice := models.MStreamNotice{Kind: kind, Err: err, Attempt: attempt, Time: time.Now()}
	select {
	case s.notices <- notice:
	default:
		s.Logger.Debug("Notification channel full, dropping %s notice", kind)
	}
}

// -----------------------------------------------------------------------------

// Notices exposes lifecycle transitions. Closed when the supervisor stops.
func (s *Supervisor) Notices() <-chan models.MStreamNotice {
	return s.notices
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	return s.state.Load()
}

// Err returns the terminal ConnectionLost error once the retry budget is
// exhausted, nil otherwise.
func (s *Supervisor) Err() error {
	if err, ok := s.fatalErr.Load().(error); ok {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close cancels the loop, waits for it to finish and leaves every consumer
// unblocked. Idempotent.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.startOnce.Do(func() {
			// Never started: release waiters directly.
			s.finishClosed()
			close(s.notices)
			close(s.done)
		})
		<-s.done
	})
	return nil
}
