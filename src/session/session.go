package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
	"github.com/tastyware/tastytrade/src/network"
)

const (
	prodAPIURL = "https://api.tastyworks.com"
	certAPIURL = "https://api.cert.tastyworks.com"
)

// -----------------------------------------------------------------------------
// Session authenticates against the brokerage REST API and hands out the
// tokens the streamers need. The session token is cached and refreshed
// transparently when the API answers 401; the streamer token is always
// fetched fresh because it expires quickly server-side.
// -----------------------------------------------------------------------------

type Session struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	mu            sync.Mutex
	sessionToken  string
	rememberToken string
}

func NewSession(config *models.MConfig) *Session {
	log := logger.NewLogger(config, "Session")
	return &Session{
		Config:        config,
		Network:       network.NewAsyncNetworkManager(config, log),
		Logger:        log,
		rememberToken: config.Session.RememberToken,
	}
}

// -----------------------------------------------------------------------------

func (s *Session) baseURL() string {
	if s.Config.Session.URLOverride != "" {
		return s.Config.Session.URLOverride
	}
	if s.Config.Streamer.Environment == "cert" {
		return certAPIURL
	}
	return prodAPIURL
}

// -----------------------------------------------------------------------------

// Login creates a new API session. A stored remember token takes precedence
// over the password; remember tokens are single use, so the replacement
// returned by the API is kept for the next login.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	request := models.MLoginRequest{
		Login:      s.Config.Session.Login,
		RememberMe: s.Config.Session.RememberMe,
	}
	if s.rememberToken != "" {
		request.RememberToken = s.rememberToken
	} else {
		request.Password = s.Config.Session.Password
	}
	s.mu.Unlock()

	if request.Login == "" {
		return fmt.Errorf("session: no login configured")
	}
	if request.Password == "" && request.RememberToken == "" {
		return fmt.Errorf("session: no password or remember token configured")
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	body, err := s.Network.Post(ctx, s.baseURL()+"/sessions", payload, nil)
	if err != nil {
		return fmt.Errorf("session: login failed: %w", err)
	}

	var resp models.MSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("session: bad login response: %w", err)
	}
	if resp.Data.SessionToken == "" {
		return fmt.Errorf("session: login response carried no token")
	}

	s.mu.Lock()
	s.sessionToken = resp.Data.SessionToken
	if resp.Data.RememberToken != "" {
		s.rememberToken = resp.Data.RememberToken
	}
	s.mu.Unlock()

	s.Logger.Info("Logged in as %s", request.Login)
	return nil
}

// -----------------------------------------------------------------------------

// SessionToken returns the cached API session token, logging in first if
// needed.
func (s *Session) SessionToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.sessionToken
	s.mu.Unlock()

	if token != "" {
		return token, nil
	}
	if err := s.Login(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	token = s.sessionToken
	s.mu.Unlock()
	return token, nil
}

// -----------------------------------------------------------------------------

// StreamerToken fetches fresh dxLink credentials. An expired session token
// triggers one transparent re-login.
func (s *Session) StreamerToken(ctx context.Context) (models.MStreamerTokenData, error) {
	data, err := s.fetchStreamerToken(ctx)
	if err == nil {
		return data, nil
	}

	var statusErr *network.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 401 {
		s.Logger.Info("Session token expired, logging in again")
		s.mu.Lock()
		s.sessionToken = ""
		s.mu.Unlock()
		return s.fetchStreamerToken(ctx)
	}
	return models.MStreamerTokenData{}, err
}

func (s *Session) fetchStreamerToken(ctx context.Context) (models.MStreamerTokenData, error) {
	token, err := s.SessionToken(ctx)
	if err != nil {
		return models.MStreamerTokenData{}, err
	}

	body, err := s.Network.Get(ctx, s.baseURL()+"/api-quote-tokens", nil, map[string]string{"Authorization": token})
	if err != nil {
		return models.MStreamerTokenData{}, err
	}

	var resp models.MStreamerTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MStreamerTokenData{}, fmt.Errorf("session: bad quote token response: %w", err)
	}
	if resp.Data.Token == "" {
		return models.MStreamerTokenData{}, fmt.Errorf("session: quote token response carried no token")
	}
	return resp.Data, nil
}

// -----------------------------------------------------------------------------

// Destroy tears down the API session server-side.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	token := s.sessionToken
	s.sessionToken = ""
	s.mu.Unlock()

	if token == "" {
		return nil
	}

	_, err := s.Network.Delete(ctx, s.baseURL()+"/sessions", map[string]string{"Authorization": token})
	if err != nil {
		return fmt.Errorf("session: destroy failed: %w", err)
	}
	s.Logger.Info("Session destroyed")
	return nil
}
