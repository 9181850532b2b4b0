package tracker

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes one collected timeframe.
type Stats struct {
	ActiveMinutes   float64 `json:"active_minutes"`
	UniqueApps      int     `json:"unique_apps"`
	ContextSwitches int     `json:"context_switches"`
}

// TimeframeData is the collected, filtered timeline for one timeframe.
type TimeframeData struct {
	Timeframe Timeframe `json:"timeframe"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Events    []Event   `json:"events"`
	Stats     Stats     `json:"stats"`
}

// Collector turns raw tracker data into clean per-timeframe timelines.
type Collector struct {
	client   *Client
	mergeGap time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewCollector creates a Collector over the given client.
func NewCollector(client *Client, mergeGap time.Duration) *Collector {
	return &Collector{
		client:   client,
		mergeGap: mergeGap,
		now:      time.Now,
	}
}

// Collect returns the ordered, AFK-filtered, merged event list for one
// timeframe ending now. A tracker failure surfaces as ErrUnavailable so
// callers can distinguish "no activity" from "collector offline".
func (c *Collector) Collect(ctx context.Context, tf Timeframe) ([]Event, error) {
	end := c.now()
	start := end.Add(-tf.Duration())

	windowEvents, afkEvents, windowBucket, err := c.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}

	active := activePeriods(afkEvents)
	clipped := clipToActive(windowEvents, active, windowBucket)
	return mergeEvents(clipped, c.mergeGap), nil
}

// CollectMulti collects every standard timeframe with a single pair of
// upstream queries over the longest span, slicing locally. The result
// feeds the summarizer's multi-timeframe prompt context.
func (c *Collector) CollectMulti(ctx context.Context) (map[Timeframe]TimeframeData, error) {
	timeframes := []Timeframe{Timeframe5Min, Timeframe30Min, TimeframeHourly, TimeframeDaily}

	end := c.now()
	start := end.Add(-TimeframeDaily.Duration())

	windowEvents, afkEvents, windowBucket, err := c.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}

	active := activePeriods(afkEvents)
	all := mergeEvents(clipToActive(windowEvents, active, windowBucket), c.mergeGap)

	out := make(map[Timeframe]TimeframeData, len(timeframes))
	for _, tf := range timeframes {
		tfStart := end.Add(-tf.Duration())
		events := sliceFrom(all, tfStart)
		out[tf] = TimeframeData{
			Timeframe: tf,
			Start:     tfStart,
			End:       end,
			Events:    events,
			Stats: Stats{
				ActiveMinutes:   ActiveDuration(events).Minutes(),
				UniqueApps:      UniqueApps(events),
				ContextSwitches: ContextSwitches(events),
			},
		}
	}
	return out, nil
}

// fetch resolves both buckets and pulls their events for [start, end).
func (c *Collector) fetch(ctx context.Context, start, end time.Time) (window, afk []rawEvent, windowBucket string, err error) {
	// Both branches keep err in the chain so the typed discovery error
	// survives for callers that probe with resource.IsDiscoveryError.
	windowBucket, err = c.client.windowBucket(ctx)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	afkBucket, err := c.client.afkBucket(ctx)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	window, err = c.client.Events(ctx, windowBucket, start, end)
	if err != nil {
		return nil, nil, "", err
	}
	afk, err = c.client.Events(ctx, afkBucket, start, end)
	if err != nil {
		return nil, nil, "", err
	}
	return window, afk, windowBucket, nil
}

// sliceFrom returns the events at or after cutoff, clipping the one
// event that straddles it.
func sliceFrom(events []Event, cutoff time.Time) []Event {
	var out []Event
	for _, ev := range events {
		if !ev.End.After(cutoff) {
			continue
		}
		if ev.Start.Before(cutoff) {
			ev.Start = cutoff
		}
		out = append(out, ev)
	}
	return out
}
