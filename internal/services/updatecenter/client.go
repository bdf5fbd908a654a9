// Package updatecenter answers plugin facts from the Jenkins update center.
package updatecenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/storage/cache"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout; the document is several megabytes
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second)
	DefaultRateLimit = 2

	// DefaultMaxAge is how long a cached snapshot is reused
	DefaultMaxAge = time.Hour
)

// Client downloads the update center once per MaxAge and serves lookups from memory
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	store      *cache.Store
	maxAge     time.Duration
	now        func() time.Time
	logger     arbor.ILogger

	mu       sync.Mutex
	snapshot *Snapshot
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithCache persists snapshots so consecutive runs skip the download
func WithCache(store *cache.Store, maxAge time.Duration) ClientOption {
	return func(c *Client) {
		c.store = store
		c.maxAge = maxAge
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new update center client
func NewClient(url string, logger arbor.ILogger, opts ...ClientOption) *Client {
	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxAge:  DefaultMaxAge,
		now:     time.Now,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IsDeprecated reports whether the update center lists a deprecation for the plugin
func (c *Client) IsDeprecated(ctx context.Context, plugin string) (bool, error) {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	_, ok := s.Deprecations[plugin]
	return ok, nil
}

// IsAPIPlugin reports whether the plugin carries the api-plugin label
func (c *Client) IsAPIPlugin(ctx context.Context, plugin string) (bool, error) {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	entry, ok := s.Plugins[plugin]
	return ok && entry.HasLabel(APIPluginLabel), nil
}

// LatestVersion returns the latest released version, empty when the plugin is unknown
func (c *Client) LatestVersion(ctx context.Context, plugin string) (string, error) {
	s, err := c.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return s.Plugins[plugin].Version, nil
}

// Snapshot returns the in-memory snapshot, loading it from the cache or the network first
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && c.fresh(c.snapshot) {
		return c.snapshot, nil
	}

	if c.store != nil {
		cached, err := cache.Load[Snapshot](c.store, "", SnapshotKey)
		switch {
		case err == nil && cached.Source == c.url && c.fresh(cached):
			c.logger.Debug().Str("fetched_at", cached.FetchedAt.Format(time.RFC3339)).Msg("Using cached update center")
			c.snapshot = cached
			return cached, nil
		case err != nil && !errors.Is(err, cache.ErrNotFound):
			c.logger.Warn().Err(err).Msg("Failed to read cached update center")
		}
	}

	s, err := c.download(ctx)
	if err != nil {
		return nil, err
	}
	c.snapshot = s

	if c.store != nil {
		if err := c.store.Put("", SnapshotKey, s); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache update center")
		}
	}
	return s, nil
}

func (c *Client) fresh(s *Snapshot) bool {
	return c.now().Sub(s.FetchedAt) < c.maxAge
}

func (c *Client) download(ctx context.Context) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", common.UserAgent())

	c.logger.Debug().Str("url", c.url).Msg("Downloading update center")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download update center: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("update center returned status %d: %s", resp.StatusCode, string(body))
	}

	var s Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode update center: %w", err)
	}
	if s.Plugins == nil {
		s.Plugins = map[string]PluginEntry{}
	}
	if s.Deprecations == nil {
		s.Deprecations = map[string]Deprecation{}
	}
	s.FetchedAt = c.now()
	s.Source = c.url

	c.logger.Info().
		Int("plugins", len(s.Plugins)).
		Int("deprecations", len(s.Deprecations)).
		Msg("Update center downloaded")
	return &s, nil
}
