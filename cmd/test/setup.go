package main

import (
	"context"

	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------

// harnessConfig builds the in-code configuration the harness runs with. The
// keepalive windows are short so the liveness machinery is visible within a
// one-minute run.
func harnessConfig(feedURL string) *models.MConfig {
	return &models.MConfig{
		Name: "stream-harness",
		Logging: models.MLoggingConfig{
			Level: "debug",
		},
		Streamer: models.MStreamerConfig{
			Environment:       "cert",
			URLOverride:       feedURL,
			KeepaliveInterval: 2,
			KeepaliveTimeout:  6,
		},
		Backoff: models.MBackoffConfig{
			BaseDelay:      0.2,
			MaxDelay:       2,
			JitterFraction: 0.25,
			ResetAfter:     5,
		},
		Dispatcher: models.MDispatcherConfig{
			QueueSize: 128,
		},
	}
}

// -----------------------------------------------------------------------------

// mockSessionProvider hands the streamer the mock feed's static credentials,
// standing in for the REST session.
type mockSessionProvider struct {
	url   string
	token string
}

func (p *mockSessionProvider) StreamerToken(_ context.Context) (models.MStreamerTokenData, error) {
	return models.MStreamerTokenData{
		Token:     p.token,
		DXLinkURL: p.url,
		Level:     "api",
	}, nil
}

func (p *mockSessionProvider) SessionToken(_ context.Context) (string, error) {
	return p.token, nil
}
