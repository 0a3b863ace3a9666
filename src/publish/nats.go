package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/metrics"
	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// NatsPublisher re-publishes decoded feed events and locally built candle
// bars on a NATS bus. Subjects are {prefix}.{kind}.{symbol} for events and
// {prefix}.bars.{symbol}.{window} for bars, so downstream consumers can
// subscribe with wildcards (md.Quote.*, md.bars.SPY.*). Reconnection is the
// NATS client's job; publishes during an outage land in its pending buffer.
// -----------------------------------------------------------------------------

const (
	defaultSubjectPrefix = "md"
	reconnectWait        = 2 * time.Second
)

type NatsPublisher struct {
	Config *models.MConfig
	Logger *logger.Logger

	conn   *nats.Conn
	prefix string

	closeOnce sync.Once
	closeErr  error
}

// -----------------------------------------------------------------------------

// NewNatsPublisher connects to the configured NATS server. The connection
// retries forever in the background once established, so a broker restart
// does not take the relay down with it.
func NewNatsPublisher(cfg *models.MConfig, log *logger.Logger) (*NatsPublisher, error) {
	prefix := cfg.Publish.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	// The client only reconnects on its own once the first connect succeeds,
	// so the initial dial gets its own retry loop.
	var conn *nats.Conn
	err := helpers.RetryWithBackoff(context.Background(), log, "nats connect", 3, reconnectWait, func() error {
		c, err := nats.Connect(cfg.Publish.NatsURL,
			nats.Name(cfg.Name),
			nats.ReconnectWait(reconnectWait),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warning("NATS disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info("NATS reconnected to %s", c.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Publish.NatsURL, err)
	}

	log.Info("Publishing to NATS at %s under subject prefix %q", cfg.Publish.NatsURL, prefix)
	return &NatsPublisher{
		Config: cfg,
		Logger: log,
		conn:   conn,
		prefix: prefix,
	}, nil
}

// -----------------------------------------------------------------------------

// PublishEvent sends one decoded feed event as JSON.
func (p *NatsPublisher) PublishEvent(event interfaces.IEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Kind(), err)
	}

	subject := p.subject(string(event.Kind()), event.Symbol())
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	metrics.PublishedEvents.WithLabelValues(string(event.Kind())).Inc()
	return nil
}

// -----------------------------------------------------------------------------

// PublishBar sends one locally aggregated candle bar as JSON.
func (p *NatsPublisher) PublishBar(bar models.MCandleBar) error {
	payload, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("failed to marshal candle bar: %w", err)
	}

	subject := p.subject("bars", bar.Symbol, bar.WindowName)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close flushes pending publishes and drains the connection. Safe to call
// more than once.
func (p *NatsPublisher) Close() error {
	p.closeOnce.Do(func() {
		if err := p.conn.Flush(); err != nil {
			p.closeErr = err
		}
		p.conn.Close()
	})
	return p.closeErr
}

// -----------------------------------------------------------------------------

// subject joins the prefix and tokens, replacing the characters NATS
// reserves for subject structure. Feed symbols can contain dots (BRK.B) and
// candle symbology uses braces; both must not split the subject.
func (p *NatsPublisher) subject(tokens ...string) string {
	parts := make([]string, 0, len(tokens)+1)
	parts = append(parts, p.prefix)
	for _, tok := range tokens {
		tok = strings.ReplaceAll(tok, ".", "_")
		tok = strings.ReplaceAll(tok, " ", "_")
		tok = strings.ReplaceAll(tok, "*", "_")
		tok = strings.ReplaceAll(tok, ">", "_")
		if tok == "" {
			tok = "_"
		}
		parts = append(parts, tok)
	}
	return strings.Join(parts, ".")
}
