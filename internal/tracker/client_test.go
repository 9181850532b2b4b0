package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attune-sh/attune/internal/config"
	"github.com/attune-sh/attune/internal/resource"
)

// fakeTracker serves the minimal slice of the tracker API the client
// uses: bucket listing and per-bucket events.
type fakeTracker struct {
	buckets     map[string][]rawEvent
	bucketCalls int64
}

func (f *fakeTracker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/0/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"0.12"}`))
	})
	mux.HandleFunc("/api/0/buckets/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/0/buckets/")
		if rest == "" {
			atomic.AddInt64(&f.bucketCalls, 1)
			out := make(map[string]struct{}, len(f.buckets))
			for id := range f.buckets {
				out[id] = struct{}{}
			}
			json.NewEncoder(w).Encode(out)
			return
		}
		id := strings.TrimSuffix(rest, "/events")
		events, ok := f.buckets[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if events == nil {
			events = []rawEvent{}
		}
		json.NewEncoder(w).Encode(events)
	})
	return mux
}

func testClientConfig() config.TrackerConfig {
	return config.TrackerConfig{
		Timeout:       2 * time.Second,
		MergeGap:      5 * time.Second,
		MetadataTTL:   15 * time.Minute,
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	}
}

func TestCollectFiltersAndMerges(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	windowStart := now.Add(-time.Hour)

	ft := &fakeTracker{buckets: map[string][]rawEvent{
		"aw-watcher-window_host": {
			{Timestamp: windowStart, Duration: 1800, Data: map[string]interface{}{"app": "code", "title": "a.go"}},
			{Timestamp: windowStart.Add(30 * time.Minute), Duration: 1800, Data: map[string]interface{}{"app": "firefox", "title": "docs"}},
		},
		"aw-watcher-afk_host": {
			// Active only for the first 40 minutes of the hour.
			{Timestamp: windowStart, Duration: 2400, Data: map[string]interface{}{"status": "not-afk"}},
			{Timestamp: windowStart.Add(40 * time.Minute), Duration: 1200, Data: map[string]interface{}{"status": "afk"}},
		},
	}}
	srv := httptest.NewServer(ft.handler())
	defer srv.Close()

	res := resource.NewManager(15 * time.Minute)
	client := NewClient(testClientConfig(), srv.URL, res)
	col := NewCollector(client, 5*time.Second)
	col.now = func() time.Time { return now }

	events, err := col.Collect(context.Background(), TimeframeHourly)
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Equal(t, "code", events[0].App)
	require.Equal(t, 30*time.Minute, events[0].Duration())
	// The firefox event straddles the AFK boundary and gets clipped
	// from 30 minutes down to 10.
	require.Equal(t, "firefox", events[1].App)
	require.Equal(t, 10*time.Minute, events[1].Duration())
}

func TestCollectMultiSlicesTimeframes(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	ft := &fakeTracker{buckets: map[string][]rawEvent{
		"aw-watcher-window_host": {
			// Two hours ago, 30 minutes of editing.
			{Timestamp: now.Add(-2 * time.Hour), Duration: 1800, Data: map[string]interface{}{"app": "code"}},
			// Last 4 minutes: browsing.
			{Timestamp: now.Add(-4 * time.Minute), Duration: 240, Data: map[string]interface{}{"app": "firefox"}},
		},
		"aw-watcher-afk_host": {
			{Timestamp: now.Add(-24 * time.Hour), Duration: 24 * 3600, Data: map[string]interface{}{"status": "not-afk"}},
		},
	}}
	srv := httptest.NewServer(ft.handler())
	defer srv.Close()

	res := resource.NewManager(15 * time.Minute)
	client := NewClient(testClientConfig(), srv.URL, res)
	col := NewCollector(client, 5*time.Second)
	col.now = func() time.Time { return now }

	got, err := col.CollectMulti(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 4)

	// The 5-minute window sees only the recent browsing.
	require.Len(t, got[Timeframe5Min].Events, 1)
	require.Equal(t, "firefox", got[Timeframe5Min].Events[0].App)
	require.InDelta(t, 4, got[Timeframe5Min].Stats.ActiveMinutes, 0.01)

	// The daily window sees both.
	require.Len(t, got[TimeframeDaily].Events, 2)
	require.InDelta(t, 34, got[TimeframeDaily].Stats.ActiveMinutes, 0.01)
	require.Equal(t, 2, got[TimeframeDaily].Stats.UniqueApps)

	// One discovery per bucket covers all timeframes.
	require.Equal(t, int64(2), atomic.LoadInt64(&ft.bucketCalls))
}

func TestCollectUnavailableTracker(t *testing.T) {
	res := resource.NewManager(time.Minute)
	// Nothing listens here.
	client := NewClient(testClientConfig(), "http://127.0.0.1:1", res)
	col := NewCollector(client, 5*time.Second)

	_, err := col.Collect(context.Background(), TimeframeHourly)
	require.ErrorIs(t, err, ErrUnavailable)
	// The failure happened during bucket discovery; the typed error
	// survives the collector's wrapping.
	require.True(t, resource.IsDiscoveryError(err))
}

func TestConfiguredBucketsSkipDiscovery(t *testing.T) {
	ft := &fakeTracker{buckets: map[string][]rawEvent{
		"custom-window": {},
		"custom-afk":    {},
	}}
	srv := httptest.NewServer(ft.handler())
	defer srv.Close()

	cfg := testClientConfig()
	cfg.WindowBucketID = "custom-window"
	cfg.AFKBucketID = "custom-afk"

	res := resource.NewManager(time.Minute)
	client := NewClient(cfg, srv.URL, res)
	col := NewCollector(client, 5*time.Second)

	events, err := col.Collect(context.Background(), TimeframeHourly)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, int64(0), atomic.LoadInt64(&ft.bucketCalls))
}

func TestInvalidateBucketsForcesRediscovery(t *testing.T) {
	ft := &fakeTracker{buckets: map[string][]rawEvent{
		"aw-watcher-window_host": {},
		"aw-watcher-afk_host":    {},
	}}
	srv := httptest.NewServer(ft.handler())
	defer srv.Close()

	res := resource.NewManager(time.Hour)
	client := NewClient(testClientConfig(), srv.URL, res)
	col := NewCollector(client, 5*time.Second)

	_, err := col.Collect(context.Background(), TimeframeHourly)
	require.NoError(t, err)
	calls := atomic.LoadInt64(&ft.bucketCalls)

	// Cached: another collection does not rediscover.
	_, err = col.Collect(context.Background(), TimeframeHourly)
	require.NoError(t, err)
	require.Equal(t, calls, atomic.LoadInt64(&ft.bucketCalls))

	client.InvalidateBuckets()
	_, err = col.Collect(context.Background(), TimeframeHourly)
	require.NoError(t, err)
	require.Greater(t, atomic.LoadInt64(&ft.bucketCalls), calls)
}

func TestPing(t *testing.T) {
	ft := &fakeTracker{}
	srv := httptest.NewServer(ft.handler())
	defer srv.Close()

	res := resource.NewManager(time.Minute)
	require.NoError(t, NewClient(testClientConfig(), srv.URL, res).Ping(context.Background()))

	down := NewClient(testClientConfig(), "http://127.0.0.1:1", resource.NewManager(time.Minute))
	require.ErrorIs(t, down.Ping(context.Background()), ErrUnavailable)
}
