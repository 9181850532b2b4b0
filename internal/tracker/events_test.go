package tracker

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func raw(offset time.Duration, dur time.Duration, data map[string]interface{}) rawEvent {
	return rawEvent{
		Timestamp: base.Add(offset),
		Duration:  dur.Seconds(),
		Data:      data,
	}
}

func window(offset, dur time.Duration, app, title string) rawEvent {
	return raw(offset, dur, map[string]interface{}{"app": app, "title": title})
}

func afk(offset, dur time.Duration, status string) rawEvent {
	return raw(offset, dur, map[string]interface{}{"status": status})
}

func TestActivePeriodsMergesAndFilters(t *testing.T) {
	events := []rawEvent{
		afk(0, 5*time.Minute, "not-afk"),
		afk(5*time.Minute, 10*time.Minute, "afk"),     // dropped
		afk(4*time.Minute, 3*time.Minute, "not-afk"),  // overlaps first
		afk(20*time.Minute, 2*time.Minute, "not-afk"), // separate
	}

	got := activePeriods(events)

	want := []AfkPeriod{
		{Start: base, End: base.Add(7 * time.Minute)},
		{Start: base.Add(20 * time.Minute), End: base.Add(22 * time.Minute)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("activePeriods mismatch (-want +got):\n%s", diff)
	}
}

func TestClipToActiveClipsStraddlingEvents(t *testing.T) {
	active := []AfkPeriod{
		{Start: base.Add(2 * time.Minute), End: base.Add(8 * time.Minute)},
	}
	// Event spans 0..10m, only 2m..8m is active.
	events := []rawEvent{window(0, 10*time.Minute, "code", "main.go")}

	got := clipToActive(events, active, "test-bucket")

	require.Len(t, got, 1)
	require.Equal(t, base.Add(2*time.Minute), got[0].Start)
	require.Equal(t, base.Add(8*time.Minute), got[0].End)
	require.Equal(t, "code", got[0].App)
	require.Equal(t, "test-bucket", got[0].Source)
}

func TestClipToActiveDropsFullyIdleEvents(t *testing.T) {
	active := []AfkPeriod{
		{Start: base.Add(30 * time.Minute), End: base.Add(40 * time.Minute)},
	}
	events := []rawEvent{window(0, 10*time.Minute, "code", "")}

	require.Empty(t, clipToActive(events, active, "b"))
}

func TestClipToActiveEverythingIdle(t *testing.T) {
	// No active periods at all: the whole window was AFK.
	events := []rawEvent{
		window(0, 10*time.Minute, "code", ""),
		window(10*time.Minute, 10*time.Minute, "firefox", ""),
	}

	got := clipToActive(events, nil, "b")
	require.Empty(t, got)
	require.Zero(t, ActiveDuration(got))
}

func TestClippedTimeNeverExceedsActiveTime(t *testing.T) {
	active := []AfkPeriod{
		{Start: base, End: base.Add(5 * time.Minute)},
		{Start: base.Add(10 * time.Minute), End: base.Add(12 * time.Minute)},
	}
	events := []rawEvent{
		window(-5*time.Minute, 30*time.Minute, "code", ""),
		window(11*time.Minute, 20*time.Minute, "firefox", ""),
	}

	got := clipToActive(events, active, "b")

	var activeTotal time.Duration
	for _, p := range active {
		activeTotal += p.End.Sub(p.Start)
	}
	require.LessOrEqual(t, ActiveDuration(got), activeTotal)
}

func TestMergeEventsFoldsSameAppWithinGap(t *testing.T) {
	gap := 5 * time.Second
	events := []Event{
		{App: "code", Title: "a.go", Start: base, End: base.Add(time.Minute)},
		// 3s gap, same app: merged, newer title wins.
		{App: "code", Title: "b.go", Start: base.Add(time.Minute + 3*time.Second), End: base.Add(2 * time.Minute)},
		// 10s gap, same app: not merged.
		{App: "code", Title: "c.go", Start: base.Add(2*time.Minute + 10*time.Second), End: base.Add(3 * time.Minute)},
	}

	got := mergeEvents(events, gap)

	require.Len(t, got, 2)
	require.Equal(t, "b.go", got[0].Title)
	require.Equal(t, base, got[0].Start)
	require.Equal(t, base.Add(2*time.Minute), got[0].End)
	require.Equal(t, "c.go", got[1].Title)
}

func TestMergeEventsDifferentAppsNeverMerge(t *testing.T) {
	events := []Event{
		{App: "code", Start: base, End: base.Add(time.Minute)},
		{App: "firefox", Start: base.Add(time.Minute), End: base.Add(2 * time.Minute)},
	}

	got := mergeEvents(events, time.Minute)
	require.Len(t, got, 2)
}

func TestMergeEventsEmpty(t *testing.T) {
	require.Nil(t, mergeEvents(nil, time.Second))
}

func TestContextSwitches(t *testing.T) {
	events := []Event{
		{App: "code"}, {App: "firefox"}, {App: "firefox"}, {App: "code"},
	}
	require.Equal(t, 2, ContextSwitches(events))
	require.Equal(t, 0, ContextSwitches(nil))
	require.Equal(t, 2, UniqueApps(events))
}

func TestSliceFromClipsStraddler(t *testing.T) {
	cutoff := base.Add(5 * time.Minute)
	events := []Event{
		{App: "old", Start: base, End: base.Add(2 * time.Minute)},
		{App: "straddle", Start: base.Add(4 * time.Minute), End: base.Add(6 * time.Minute)},
		{App: "new", Start: base.Add(7 * time.Minute), End: base.Add(8 * time.Minute)},
	}

	got := sliceFrom(events, cutoff)

	require.Len(t, got, 2)
	require.Equal(t, "straddle", got[0].App)
	require.Equal(t, cutoff, got[0].Start)
	require.Equal(t, "new", got[1].App)
}

func TestTimeframeDurations(t *testing.T) {
	require.Equal(t, 5*time.Minute, Timeframe5Min.Duration())
	require.Equal(t, 24*time.Hour, TimeframeDaily.Duration())
	// Unknown timeframes get the hourly span.
	require.Equal(t, time.Hour, Timeframe("bogus").Duration())
}
