package resource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientForReturnsSameClientPerEndpoint(t *testing.T) {
	m := NewManager(time.Minute)

	a := m.ClientFor("http://localhost:5600", 10*time.Second)
	b := m.ClientFor("http://localhost:5600", 10*time.Second)
	c := m.ClientFor("http://localhost:11434", 10*time.Second)

	require.Same(t, a, b)
	require.NotSame(t, a, c)
}

func TestMetadataCachesUntilTTL(t *testing.T) {
	m := NewManager(15 * time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	calls := 0
	discover := func(ctx context.Context) (string, error) {
		calls++
		return "aw-watcher-window_host", nil
	}

	for i := 0; i < 3; i++ {
		v, err := m.Metadata(context.Background(), "bucket", discover)
		require.NoError(t, err)
		require.Equal(t, "aw-watcher-window_host", v)
	}
	require.Equal(t, 1, calls)

	// Past the TTL the next call rediscovers.
	now = now.Add(16 * time.Minute)
	_, err := m.Metadata(context.Background(), "bucket", discover)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestMetadataFailureDoesNotPoisonCache(t *testing.T) {
	m := NewManager(time.Minute)

	fail := errors.New("connection refused")
	_, err := m.Metadata(context.Background(), "bucket", func(ctx context.Context) (string, error) {
		return "", fail
	})

	require.Error(t, err)
	require.True(t, IsDiscoveryError(err))
	require.ErrorIs(t, err, fail)

	// A later successful discovery is not shadowed by the failure.
	v, err := m.Metadata(context.Background(), "bucket", func(ctx context.Context) (string, error) {
		return "found", nil
	})
	require.NoError(t, err)
	require.Equal(t, "found", v)
}

func TestInvalidateForcesRediscovery(t *testing.T) {
	m := NewManager(time.Hour)

	calls := 0
	discover := func(ctx context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, err := m.Metadata(context.Background(), "k", discover)
	require.NoError(t, err)
	m.Invalidate("k")
	_, err = m.Metadata(context.Background(), "k", discover)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

// failingTransport fails the first n attempts, then delegates.
type failingTransport struct {
	remaining int
	attempts  int
	inner     http.RoundTripper
}

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.attempts++
	if f.remaining > 0 {
		f.remaining--
		return nil, errors.New("transient transport failure")
	}
	return f.inner.RoundTrip(req)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ft := &failingTransport{remaining: 2, inner: http.DefaultTransport}
	client := &http.Client{Transport: ft}
	m := NewManager(time.Minute)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := m.Do(client, req, RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, ft.attempts)
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	ft := &failingTransport{remaining: 10, inner: http.DefaultTransport}
	client := &http.Client{Transport: ft}
	m := NewManager(time.Minute)

	req, err := http.NewRequest(http.MethodGet, "http://localhost:1/never", nil)
	require.NoError(t, err)

	_, err = m.Do(client, req, RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	require.Error(t, err)
	require.Equal(t, 3, ft.attempts)
}

func TestDoDoesNotRetryHTTPErrorStatuses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewManager(time.Minute)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := m.Do(m.ClientFor(srv.URL, time.Second), req, RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, 1, hits)
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	ft := &failingTransport{remaining: 10, inner: http.DefaultTransport}
	client := &http.Client{Transport: ft}
	m := NewManager(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:1/never", nil)
	require.NoError(t, err)
	cancel()

	_, err = m.Do(client, req, RetryPolicy{Attempts: 5, Backoff: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}
