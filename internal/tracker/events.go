package tracker

import (
	"sort"
	"time"
)

// Timeframe is a collection window relative to now.
type Timeframe string

// The timeframes the collector understands.
const (
	Timeframe5Min   Timeframe = "5m"
	Timeframe30Min  Timeframe = "30m"
	TimeframeHourly Timeframe = "hourly"
	TimeframeDaily  Timeframe = "daily"
	TimeframeWeekly Timeframe = "weekly"
)

// Duration returns the span of the timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe30Min:
		return 30 * time.Minute
	case TimeframeHourly:
		return time.Hour
	case TimeframeDaily:
		return 24 * time.Hour
	case TimeframeWeekly:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// Event is one merged slice of window activity. End is always >= Start,
// and events within one collected timeframe are sorted by Start and
// non-overlapping after the merge pass.
type Event struct {
	Source string    `json:"source"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	App    string    `json:"app"`
	Title  string    `json:"title"`
}

// Duration returns the active length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// AfkPeriod is an idle interval reported by the tracker. Transient:
// used only to subtract idle time from events, never stored.
type AfkPeriod struct {
	Start time.Time
	End   time.Time
}

// activePeriods converts AFK-watcher events into merged non-AFK
// intervals. Only events with status "not-afk" contribute.
func activePeriods(afkEvents []rawEvent) []AfkPeriod {
	var periods []AfkPeriod
	for _, ev := range afkEvents {
		status, _ := ev.Data["status"].(string)
		if status != "not-afk" {
			continue
		}
		periods = append(periods, AfkPeriod{
			Start: ev.Timestamp,
			End:   ev.Timestamp.Add(ev.duration()),
		})
	}

	sort.Slice(periods, func(i, j int) bool { return periods[i].Start.Before(periods[j].Start) })

	// Merge overlapping or touching periods.
	var merged []AfkPeriod
	for _, p := range periods {
		if n := len(merged); n > 0 && !p.Start.After(merged[n-1].End) {
			if p.End.After(merged[n-1].End) {
				merged[n-1].End = p.End
			}
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// clipToActive retains only the portions of window events that
// intersect the active periods. An event straddling an AFK boundary is
// clipped, not dropped. The result is sorted by start time.
func clipToActive(windowEvents []rawEvent, active []AfkPeriod, source string) []Event {
	var out []Event
	for _, ev := range windowEvents {
		evStart := ev.Timestamp
		evEnd := ev.Timestamp.Add(ev.duration())
		app, _ := ev.Data["app"].(string)
		title, _ := ev.Data["title"].(string)

		for _, p := range active {
			if !evStart.Before(p.End) || !evEnd.After(p.Start) {
				continue
			}
			start := evStart
			if p.Start.After(start) {
				start = p.Start
			}
			end := evEnd
			if p.End.Before(end) {
				end = p.End
			}
			if end.After(start) {
				out = append(out, Event{
					Source: source,
					Start:  start,
					End:    end,
					App:    app,
					Title:  title,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// mergeEvents folds consecutive events for the same app whose gap is at
// most gap into one event with the summed span. Input must be sorted by
// start time.
func mergeEvents(events []Event, gap time.Duration) []Event {
	if len(events) == 0 {
		return nil
	}

	merged := make([]Event, 0, len(events))
	cur := events[0]
	for _, ev := range events[1:] {
		if ev.App == cur.App && ev.Start.Sub(cur.End) <= gap {
			if ev.End.After(cur.End) {
				cur.End = ev.End
			}
			// Most recent title wins, matching how the tracker itself
			// reports long-lived windows.
			if ev.Title != "" {
				cur.Title = ev.Title
			}
			continue
		}
		merged = append(merged, cur)
		cur = ev
	}
	merged = append(merged, cur)
	return merged
}

// ActiveDuration sums the durations of events.
func ActiveDuration(events []Event) time.Duration {
	var total time.Duration
	for _, ev := range events {
		total += ev.Duration()
	}
	return total
}

// ContextSwitches counts transitions between different apps.
func ContextSwitches(events []Event) int {
	switches := 0
	for i := 1; i < len(events); i++ {
		if events[i].App != events[i-1].App {
			switches++
		}
	}
	return switches
}

// UniqueApps counts distinct app identities.
func UniqueApps(events []Event) int {
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		seen[ev.App] = struct{}{}
	}
	return len(seen)
}
