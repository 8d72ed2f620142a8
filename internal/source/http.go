package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mumuon/drivefinder/kml-service/internal/config"
)

// HTTPBackend downloads documents over HTTP(S).
type HTTPBackend struct {
	client   *http.Client
	username string
	password string
}

// NewHTTPBackend creates an HTTP backend.
func NewHTTPBackend(cfg config.HTTPConfig) *HTTPBackend {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &HTTPBackend{
		client:   &http.Client{Timeout: cfg.Timeout},
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Read implements Backend.
func (b *HTTPBackend) Read(ctx context.Context, loc *url.URL, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
	if err != nil {
		return nil, err
	}

	if b.username != "" && b.password != "" {
		req.SetBasicAuth(b.username, b.password)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if resp.ContentLength > limit {
		return nil, ErrTooLarge
	}

	return readLimited(resp.Body, limit)
}
