package configsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// fetchAttempts is how many times one pull cycle tries the request
// back to back before giving up and leaving a delayed retry to the engine.
const fetchAttempts = 3

// TokenSource supplies the bearer token for service requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource wrapping a fixed apikey.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Fetcher performs one pull of the configuration document.
type Fetcher struct {
	url    string
	tokens TokenSource
	client *http.Client
	log    zerolog.Logger
}

// NewFetcher returns a fetcher for the given config endpoint.
func NewFetcher(url string, tokens TokenSource, client *http.Client, log zerolog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{url: url, tokens: tokens, client: client, log: log}
}

// Fetch pulls the configuration document once, retrying a non-2xx or
// transport failure immediately up to fetchAttempts times in total.
// The returned bytes are the raw response body.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		data, err := f.fetchOnce(ctx)
		if err != nil {
			f.log.Warn().Err(err).Int("attempt", attempt).Msg("configuration pull failed")
		}
		return data, err
	}, backoff.WithBackOff(&backoff.ZeroBackOff{}), backoff.WithMaxTries(fetchAttempts))
	if err != nil {
		return nil, fmt.Errorf("pull configuration: %w", err)
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	token, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("resolve token: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, msg)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
