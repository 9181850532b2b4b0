// Package resource manages the HTTP clients and cached service metadata
// shared by the collector and the summarizer.
//
// Two jobs:
//   - hand out one pooled *http.Client per endpoint, created once and
//     reused, so every component talking to the same local service
//     shares a connection pool
//   - cache discovered service metadata (bucket identifiers and the
//     like) behind a TTL, refreshed only on expiry or explicit
//     invalidation, never on every call
//
// The manager never substitutes defaults on failure: a discovery error
// is returned typed to the caller, which applies its own fallback
// policy.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DiscoveryError reports a failed metadata discovery call.
type DiscoveryError struct {
	Key string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed for %q: %v", e.Key, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// IsDiscoveryError reports whether err wraps a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// DiscoverFunc fetches a metadata value from the backing service.
type DiscoverFunc func(ctx context.Context) (string, error)

type metaEntry struct {
	value   string
	expires time.Time
}

// Manager owns pooled HTTP clients and the metadata cache.
type Manager struct {
	ttl time.Duration

	mu      sync.Mutex
	clients map[string]*http.Client
	meta    map[string]metaEntry

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a Manager whose metadata entries live for ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:     ttl,
		clients: make(map[string]*http.Client),
		meta:    make(map[string]metaEntry),
		now:     time.Now,
	}
}

// ClientFor returns the pooled client for an endpoint, creating it on
// first use. The same endpoint always maps to the same client.
func (m *Manager) ClientFor(endpoint string, timeout time.Duration) *http.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[endpoint]; ok {
		return c
	}

	c := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 2,
			// Both services are local; a proxy would only break things.
			Proxy: nil,
		},
	}
	m.clients[endpoint] = c
	return c
}

// Metadata returns the cached value for key, running discover at most
// once when the entry is missing or expired. Discovery failures do not
// poison the cache.
func (m *Manager) Metadata(ctx context.Context, key string, discover DiscoverFunc) (string, error) {
	m.mu.Lock()
	if e, ok := m.meta[key]; ok && m.now().Before(e.expires) {
		m.mu.Unlock()
		return e.value, nil
	}
	m.mu.Unlock()

	// Discovery runs outside the lock: it is network I/O and must not
	// block concurrent ClientFor or Metadata calls for other keys.
	value, err := discover(ctx)
	if err != nil {
		return "", &DiscoveryError{Key: key, Err: err}
	}

	m.mu.Lock()
	m.meta[key] = metaEntry{value: value, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return value, nil
}

// Invalidate drops a cached metadata entry so the next Metadata call
// rediscovers it.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	delete(m.meta, key)
	m.mu.Unlock()
}

// RetryPolicy bounds transport-level retries for transient errors.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Do sends req through client, retrying transient transport errors a
// bounded number of times with doubling backoff. HTTP error statuses
// are not retried here; only the failure to get a response at all is
// considered transient. Retries are reserved for this layer: callers
// treat their own service calls as best-effort.
func (m *Manager) Do(client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoff := policy.Backoff
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// GET requests against a local service are safe to replay;
		// anything with a consumed body is not.
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				break
			}
			req.Body = body
		}
	}

	return nil, fmt.Errorf("request failed after retries: %w", lastErr)
}
