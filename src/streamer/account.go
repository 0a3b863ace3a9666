package streamer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

const (
	prodAccountURL = "wss://streamer.tastyworks.com"
	certAccountURL = "wss://streamer.cert.tastyworks.com"

	actionConnect             = "connect"
	actionHeartbeat           = "heartbeat"
	actionWatchlistsSubscribe = "public-watchlists-subscribe"
	actionQuoteAlerts         = "quote-alerts-subscribe"
	actionUserMessage         = "user-message-subscribe"

	defaultHeartbeatInterval = 15 * time.Second
	accountNoticeBuffer      = 256
)

// -----------------------------------------------------------------------------
// AccountStreamer follows the brokerage's account-notification websocket:
// orders, balances, watchlists, quote alerts and user messages. It shares
// the backoff settings with the feed supervisor and resubscribes the
// configured accounts and channels after every reconnect.
// -----------------------------------------------------------------------------

type AccountStreamer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Provider interfaces.ISessionProvider
	Dialer   interfaces.ITransportDialer

	SessionID string

	heartbeatInterval time.Duration
	notices           chan models.MAccountNotice

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	requestID int
}

func NewAccountStreamer(config *models.MConfig, provider interfaces.ISessionProvider,
	dialer interfaces.ITransportDialer) *AccountStreamer {

	heartbeat := defaultHeartbeatInterval
	if config.AccountStreamer.HeartbeatInterval > 0 {
		heartbeat = time.Duration(config.AccountStreamer.HeartbeatInterval) * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AccountStreamer{
		Config:            config,
		Logger:            logger.NewLogger(config, "AccountStreamer"),
		Provider:          provider,
		Dialer:            dialer,
		SessionID:         uuid.NewString(),
		heartbeatInterval: heartbeat,
		notices:           make(chan models.MAccountNotice, accountNoticeBuffer),
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start launches the connection loop in the background.
func (a *AccountStreamer) Start() {
	a.startOnce.Do(func() {
		a.Logger.Info("Starting account streamer, session %s", a.SessionID)
		go a.run()
	})
}

// -----------------------------------------------------------------------------

// Notices yields decoded account notifications. Closed when the streamer
// stops.
func (a *AccountStreamer) Notices() <-chan models.MAccountNotice {
	return a.notices
}

// -----------------------------------------------------------------------------

// Close stops the streamer and waits for the loop to exit. Idempotent.
func (a *AccountStreamer) Close() error {
	a.closeOnce.Do(func() {
		a.cancel()
		a.startOnce.Do(func() {
			close(a.notices)
			close(a.done)
		})
		<-a.done
	})
	return nil
}

// -----------------------------------------------------------------------------

func (a *AccountStreamer) run() {
	defer close(a.done)
	defer close(a.notices)

	failures := 0
	for {
		if a.ctx.Err() != nil {
			return
		}

		err := a.runOnce()
		if a.ctx.Err() != nil {
			return
		}

		failures++
		a.Logger.Warning("Account stream failed (attempt %d): %v", failures, err)

		delay := helpers.BackoffDelay(failures-1,
			time.Duration(a.Config.Backoff.BaseDelay*float64(time.Second)),
			time.Duration(a.Config.Backoff.MaxDelay*float64(time.Second)),
			a.Config.Backoff.JitterFraction)
		select {
		case <-time.After(delay):
		case <-a.ctx.Done():
		}
	}
}

// -----------------------------------------------------------------------------

func (a *AccountStreamer) runOnce() error {
	token, err := a.Provider.SessionToken(a.ctx)
	if err != nil {
		return err
	}

	conn, err := a.Dialer.Dial(a.ctx, a.url())
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := a.subscribeAll(conn, token); err != nil {
		return err
	}
	a.Logger.Info("Account stream connected")

	msgCh := make(chan []byte, 64)
	errCh := make(chan error, 1)
	readerDone := make(chan struct{})
	defer close(readerDone)

	go func() {
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				select {
				case errCh <- err:
				case <-readerDone:
				}
				return
			}
			select {
			case msgCh <- data:
			case <-readerDone:
				return
			}
		}
	}()

	heartbeat := time.NewTicker(a.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case data := <-msgCh:
			a.handleMessage(data)
		case <-heartbeat.C:
			if err := a.sendRequest(conn, token, actionHeartbeat, nil); err != nil {
				return err
			}
		}
	}
}

// -----------------------------------------------------------------------------

// subscribeAll sends the connect message plus every configured channel
// subscription. Runs on every (re)connect so state survives drops.
func (a *AccountStreamer) subscribeAll(conn interfaces.ITransport, token string) error {
	var accounts any
	if len(a.Config.AccountStreamer.Accounts) > 0 {
		accounts = a.Config.AccountStreamer.Accounts
	}
	if err := a.sendRequest(conn, token, actionConnect, accounts); err != nil {
		return err
	}

	if a.Config.AccountStreamer.Watchlists {
		if err := a.sendRequest(conn, token, actionWatchlistsSubscribe, nil); err != nil {
			return err
		}
	}
	if a.Config.AccountStreamer.QuoteAlerts {
		if err := a.sendRequest(conn, token, actionQuoteAlerts, nil); err != nil {
			return err
		}
	}
	if a.Config.AccountStreamer.UserMessages {
		if err := a.sendRequest(conn, token, actionUserMessage, nil); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (a *AccountStreamer) sendRequest(conn interfaces.ITransport, token string, action string, value any) error {
	a.requestID++
	payload, err := json.Marshal(models.MAccountRequest{
		AuthToken: token,
		Action:    action,
		Value:     value,
		RequestID: a.requestID,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(payload)
}

// -----------------------------------------------------------------------------

func (a *AccountStreamer) handleMessage(data []byte) {
	var inbound models.MAccountInbound
	if err := json.Unmarshal(data, &inbound); err != nil {
		a.Logger.Warning("Dropping unparseable account message: %v", err)
		return
	}

	if inbound.Type == "" {
		if inbound.Status != "" && inbound.Status != "ok" {
			a.Logger.Warning("Account action %s failed: %s", inbound.Action, inbound.Message)
		} else if inbound.WebSocketSessionID != "" {
			a.Logger.Debug("Account stream session %s acknowledged", inbound.WebSocketSessionID)
		}
		return
	}

	notice := models.MAccountNotice{
		Type:      inbound.Type,
		Data:      inbound.Data,
		Timestamp: inbound.Timestamp,
	}
	select {
	case a.notices <- notice:
	default:
		a.Logger.Warning("Account notice queue full, dropping %s", inbound.Type)
	}
}

// -----------------------------------------------------------------------------

func (a *AccountStreamer) url() string {
	if a.Config.AccountStreamer.URLOverride != "" {
		return a.Config.AccountStreamer.URLOverride
	}
	if a.Config.Streamer.Environment == "cert" {
		return certAccountURL
	}
	return prodAccountURL
}
