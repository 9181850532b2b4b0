// Package tracker collects window and AFK events from a local
// ActivityWatch-compatible tracker.
//
// The collector fetches raw events per timeframe, subtracts AFK
// periods (clipping events that straddle a boundary), and merges
// consecutive same-app events into a clean, ordered timeline. Nothing
// is cached across calls: every collection is fresh.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/attune-sh/attune/internal/config"
	"github.com/attune-sh/attune/internal/resource"
)

// ErrUnavailable reports that the tracker service is unreachable or
// non-responsive. Callers must not treat this as zero activity.
var ErrUnavailable = errors.New("activity tracker unavailable")

// Metadata cache keys for discovered bucket identifiers.
const (
	metaWindowBucket = "tracker.bucket.window"
	metaAFKBucket    = "tracker.bucket.afk"
)

// Bucket prefixes used for discovery.
const (
	windowBucketPrefix = "aw-watcher-window_"
	afkBucketPrefix    = "aw-watcher-afk_"
)

// rawEvent is the tracker's wire representation of one event.
type rawEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Duration  float64                `json:"duration"` // seconds
	Data      map[string]interface{} `json:"data"`
}

func (e rawEvent) duration() time.Duration {
	return time.Duration(e.Duration * float64(time.Second))
}

// Client talks to the tracker's HTTP API.
type Client struct {
	baseURL string
	cfg     config.TrackerConfig
	res     *resource.Manager
	http    *http.Client
	retry   resource.RetryPolicy
}

// NewClient creates a tracker client whose HTTP client and metadata
// cache are owned by the resource manager.
func NewClient(cfg config.TrackerConfig, baseURL string, res *resource.Manager) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		res:     res,
		http:    res.ClientFor(baseURL, cfg.Timeout),
		retry: resource.RetryPolicy{
			Attempts: cfg.RetryAttempts,
			Backoff:  cfg.RetryBackoff,
		},
	}
}

// Ping checks that the tracker answers on its info endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/0/info", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Buckets lists the bucket identifiers exposed by the tracker.
func (c *Client) Buckets(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/0/buckets/", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.res.Do(c.http, req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: buckets returned %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var buckets map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&buckets); err != nil {
		return nil, fmt.Errorf("failed to parse buckets: %w", err)
	}

	ids := make([]string, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	return ids, nil
}

// Events fetches raw events from one bucket in [start, end).
func (c *Client) Events(ctx context.Context, bucket string, start, end time.Time) ([]rawEvent, error) {
	// The tracker chokes on sub-second precision; round to seconds.
	url := fmt.Sprintf("%s/api/0/buckets/%s/events?start=%s&end=%s",
		c.baseURL, bucket,
		start.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"),
		end.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.res.Do(c.http, req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: events returned %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var events []rawEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return events, nil
}

// windowBucket resolves the window-watcher bucket ID, via config
// override or discovery through the metadata cache.
func (c *Client) windowBucket(ctx context.Context) (string, error) {
	if c.cfg.WindowBucketID != "" {
		return c.cfg.WindowBucketID, nil
	}
	return c.res.Metadata(ctx, metaWindowBucket, func(ctx context.Context) (string, error) {
		return c.discoverBucket(ctx, windowBucketPrefix)
	})
}

// afkBucket resolves the AFK-watcher bucket ID.
func (c *Client) afkBucket(ctx context.Context) (string, error) {
	if c.cfg.AFKBucketID != "" {
		return c.cfg.AFKBucketID, nil
	}
	return c.res.Metadata(ctx, metaAFKBucket, func(ctx context.Context) (string, error) {
		return c.discoverBucket(ctx, afkBucketPrefix)
	})
}

func (c *Client) discoverBucket(ctx context.Context, prefix string) (string, error) {
	ids, err := c.Buckets(ctx)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			return id, nil
		}
	}
	return "", fmt.Errorf("no bucket with prefix %q", prefix)
}

// InvalidateBuckets drops cached bucket IDs, forcing rediscovery on the
// next collection. Useful when the watcher restarts under a new ID.
func (c *Client) InvalidateBuckets() {
	c.res.Invalidate(metaWindowBucket)
	c.res.Invalidate(metaAFKBucket)
}
