package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/logger"
	"github.com/tastyware/tastytrade/src/models"
)

const userAgent = "tastytrade-go/1.0"

// StatusError is returned for responses the manager will not retry.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type AsyncNetworkManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	timeout := time.Duration(cfg.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &AsyncNetworkManager{
		Config: cfg,
		Client: &http.Client{Timeout: timeout},
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string, headers map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	return nm.do(ctx, http.MethodGet, reqUrl.String(), nil, headers)
}

// -----------------------------------------------------------------------------

// Post performs a POST request with a JSON body and retries.
func (nm *AsyncNetworkManager) Post(ctx context.Context, urlStr string, body []byte, headers map[string]string) ([]byte, error) {
	return nm.do(ctx, http.MethodPost, urlStr, body, headers)
}

// -----------------------------------------------------------------------------

// Delete performs a DELETE request. Used to tear down API sessions.
func (nm *AsyncNetworkManager) Delete(ctx context.Context, urlStr string, headers map[string]string) ([]byte, error) {
	return nm.do(ctx, http.MethodDelete, urlStr, nil, headers)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, method string, finalUrl string, body []byte, headers map[string]string) ([]byte, error) {
	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			delay := helpers.BackoffDelay(i, time.Second, 30*time.Second, 0)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, finalUrl, reader)
		if err != nil {
			return nil, err
		}

		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := nm.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		// Client errors are final, the server will answer the same way again.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			return nil, &StatusError{Method: method, URL: finalUrl, StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("bad status: %d", resp.StatusCode)
			nm.Logger.Info("Bad status %d on %s, retrying", resp.StatusCode, finalUrl)
			continue
		}

		if readErr != nil {
			lastErr = readErr
			continue
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %v", lastErr)
}
