package wbapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/config"
	"github.com/spec-kit/marketplace-support/internal/domain"
)

// ErrMutationsDisabled is returned for outbound platform writes outside the
// production environment, so development runs never answer real customers.
var ErrMutationsDisabled = errors.New("wbapi: outbound mutations disabled in this environment")

// StatusError reports a non-success upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wbapi: unexpected status %d", e.Code)
}

// Client talks to the Wildberries seller-communication API. Credentials are
// passed explicitly per call; one client instance is safe for concurrent use.
type Client struct {
	http             *http.Client
	chatBaseURL      string
	feedbacksBaseURL string
	allowMutations   bool
	logger           *zap.Logger
	pages            *pageCache
}

// NewClient builds the API client from configuration.
func NewClient(cfg config.WildberriesConfig, allowMutations bool, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:             &http.Client{Timeout: timeout},
		chatBaseURL:      cfg.ChatBaseURL,
		feedbacksBaseURL: cfg.FeedbacksBaseURL,
		allowMutations:   allowMutations,
		logger:           logger,
		pages:            newPageCache(time.Second),
	}
}

// getJSON performs an authorized GET and decodes the response body. Identical
// calls within the cache window share one upstream request.
func (c *Client) getJSON(ctx context.Context, cred domain.Credential, base, path string, query url.Values, out any) error {
	cacheKey := cred.ID + "|" + base + path + "?" + query.Encode()
	if body, ok := c.pages.get(cacheKey); ok {
		return json.Unmarshal(body, out)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Authorization", cred.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	c.pages.put(cacheKey, body)
	return json.Unmarshal(body, out)
}

// sendJSON performs an authorized mutation with a JSON body and checks the
// expected status code.
func (c *Client) sendJSON(ctx context.Context, cred domain.Credential, method, base, path string, payload any, wantStatus int) error {
	if !c.allowMutations {
		return ErrMutationsDisabled
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", cred.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// pageCache is a short-lived response cache keyed by credential and cursor. It
// collapses duplicate concurrent page fetches; it is not a persistence layer.
type pageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]pageEntry
}

type pageEntry struct {
	body      []byte
	expiresAt time.Time
}

func newPageCache(ttl time.Duration) *pageCache {
	return &pageCache{ttl: ttl, entries: make(map[string]pageEntry)}
}

func (p *pageCache) get(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(p.entries, key)
		return nil, false
	}
	return entry.body, true
}

func (p *pageCache) put(key string, body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// opportunistic cleanup keeps the map from growing across cursor values
	now := time.Now()
	for k, entry := range p.entries {
		if now.After(entry.expiresAt) {
			delete(p.entries, k)
		}
	}
	p.entries[key] = pageEntry{body: body, expiresAt: now.Add(p.ttl)}
}
