package gfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/metrics"
	"github.com/i474232898/weather-events/internal/weather/providers"
)

const (
	// Name labels the grid source in logs and metrics.
	Name = "GFS"

	defaultFetchTimeout = 30 * time.Second
	maxPayloadBytes     = 32 << 20
)

// errNotGrib is returned when NOMADS answers with an error page.
var errNotGrib = errors.New("gfs: response is not grib data")

// Config configures the grid client.
type Config struct {
	HTTP    providers.HTTPClientConfig
	BaseURL string
	// Cache is optional; without it every call downloads.
	Cache *Cache
	Now   func() time.Time
}

// Client fetches supplemental grid values for a point.
type Client struct {
	baseURL string
	httpCfg providers.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	cache   *Cache
	now     func() time.Time
	log     *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.HTTP.Client == nil {
		cfg.HTTP.Client = http.DefaultClient
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = defaultFetchTimeout
	}
	if cfg.HTTP.Backoff == (providers.BackoffConfig{}) {
		// The previous-cycle fallback is the retry.
		cfg.HTTP.Backoff = providers.BackoffConfig{MaxRetries: 0, InitialInterval: time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpCfg: cfg.HTTP,
		circuit: providers.NewBreaker("gfs"),
		cache:   cfg.Cache,
		now:     cfg.Now,
		log:     log.Named("gfs"),
	}
}

// FetchSupplemental returns gfs_* diagnostics for the point. It serves from
// the cache when the current cycle's entry is fresh, otherwise downloads the
// current cycle and falls back once to the previous one.
func (c *Client) FetchSupplemental(ctx context.Context, lat, lon float64) (map[string]float64, error) {
	now := c.now().UTC()
	cycle := ResolveCycle(now)
	key := CacheKey(cycle, lat, lon)

	if vals, ok := c.fromCache(ctx, key, now); ok {
		return vals, nil
	}

	data, err := c.download(ctx, lat, lon, cycle)
	if err != nil {
		prev := cycle.Previous()
		c.log.Infow("current cycle unavailable, trying previous", "cycle", cycle.String(), "fallback", prev.String(), "error", err)
		data, err = c.download(ctx, lat, lon, prev)
	}
	metrics.ObserveProvider(Name, err)
	if err != nil {
		return nil, fmt.Errorf("gfs fetch: %w", err)
	}

	raw, err := Decode(bytes.NewReader(data), lat, lon)
	if err != nil {
		return nil, err
	}
	vals := Convert(raw)

	if c.cache != nil {
		entry := CacheEntry{
			Key:       key,
			CycleDate: cycle.Date(),
			CycleHour: cycle.Hour(),
			LatBucket: bucket(lat),
			LonBucket: bucket(lon),
			FetchedAt: now,
		}
		if err := c.cache.Put(ctx, entry, vals); err != nil {
			c.log.Warnw("cache write failed", "key", key, "error", err)
		}
	}
	c.log.Debugw("grid values parsed", "key", key, "bytes", len(data), "variables", len(vals))
	return vals, nil
}

func (c *Client) fromCache(ctx context.Context, key string, now time.Time) (map[string]float64, bool) {
	if c.cache == nil {
		return nil, false
	}
	vals, err := c.cache.Get(ctx, key, now)
	switch {
	case err == nil:
		metrics.GridCacheLookups.WithLabelValues("hit").Inc()
		return vals, true
	case errors.Is(err, ErrCacheStale):
		metrics.GridCacheLookups.WithLabelValues("stale").Inc()
	case errors.Is(err, ErrCacheMiss):
		metrics.GridCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.GridCacheLookups.WithLabelValues("error").Inc()
		c.log.Warnw("cache read failed", "key", key, "error", err)
	}
	return nil, false
}

func (c *Client) download(ctx context.Context, lat, lon float64, cycle Cycle) ([]byte, error) {
	url := BuildQuery(c.baseURL, lat, lon, cycle)
	resp, err := providers.DoRequest(ctx, c.httpCfg, c.circuit, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("gfs: read body: %w", err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "octet-stream") && !strings.Contains(ct, "grib") {
		text := strings.ToUpper(string(data))
		if strings.Contains(text, "ERROR") || strings.Contains(text, "NOT FOUND") {
			return nil, errNotGrib
		}
	}
	if len(data) == 0 {
		return nil, errNotGrib
	}
	return data, nil
}

func bucket(v float64) float64 {
	return math.Round(v*10) / 10
}
