package summarize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/attune-sh/attune/internal/tracker"
)

// systemPrompt keeps the model on a strict JSON contract so the strict
// parse stage usually succeeds.
const systemPrompt = `You are a supportive productivity assistant analyzing a user's computer activity.
You MUST respond with ONLY valid JSON, no other text or commentary:
{
  "summary": "2-3 encouraging sentences describing what the user did and how focused they were",
  "focus_score": 0-100,
  "state": "productive|moderate|chilling|unproductive|afk"
}
Address the user as "you". Base everything on the provided data only.`

// RapidSwitch is one burst of app switching dense enough to report.
type RapidSwitch struct {
	Start    time.Time
	End      time.Time
	Switches int
}

// detectRapidSwitches finds windows containing at least count app
// switches within the sliding window span.
func detectRapidSwitches(events []tracker.Event, count int, window time.Duration) []RapidSwitch {
	if count <= 0 || len(events) < 2 {
		return nil
	}

	// Switch instants: the start of each event whose app differs from
	// its predecessor's.
	var instants []time.Time
	for i := 1; i < len(events); i++ {
		if events[i].App != events[i-1].App {
			instants = append(instants, events[i].Start)
		}
	}

	var bursts []RapidSwitch
	lo := 0
	for hi := range instants {
		for instants[hi].Sub(instants[lo]) > window {
			lo++
		}
		if n := hi - lo + 1; n >= count {
			if len(bursts) > 0 && !instants[lo].After(bursts[len(bursts)-1].End) {
				bursts[len(bursts)-1].End = instants[hi]
				bursts[len(bursts)-1].Switches = n
				continue
			}
			bursts = append(bursts, RapidSwitch{Start: instants[lo], End: instants[hi], Switches: n})
		}
	}
	return bursts
}

// buildPrompt assembles the structured user prompt: multi-timeframe
// status line, annotated timeline, rapid-switch report, the local
// classification, and the mode's free-text user context.
func (s *Summarizer) buildPrompt(in Input) string {
	var b strings.Builder

	c := in.Classification
	fmt.Fprintf(&b, "LOCAL CLASSIFICATION: state=%s focus_score=%d work=%.1fm communication=%.1fm distraction=%.1fm active=%.1fm switches=%d\n\n",
		c.State, c.FocusScore, c.WorkMinutes, c.CommunicationMinutes, c.DistractionMinutes, c.ActiveMinutes, c.ContextSwitches)

	if len(in.Timeframes) > 0 {
		b.WriteString("STATUS:")
		for _, tf := range []tracker.Timeframe{tracker.Timeframe5Min, tracker.Timeframe30Min, tracker.TimeframeHourly, tracker.TimeframeDaily} {
			data, ok := in.Timeframes[tf]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, " | %s: %.0fm active, %d switches, %d apps",
				tf, data.Stats.ActiveMinutes, data.Stats.ContextSwitches, data.Stats.UniqueApps)
		}
		b.WriteString("\n\n")
	}

	focusEvents := in.Timeframes[in.Focus].Events
	b.WriteString("TIMELINE (most recent window):\n")
	b.WriteString(s.formatTimeline(focusEvents, in))
	b.WriteString("\n")

	bursts := detectRapidSwitches(focusEvents, s.opts.RapidSwitchCount, s.opts.RapidSwitchWindow)
	if len(bursts) == 0 {
		b.WriteString("RAPID CONTEXT SWITCHES: none detected\n")
	} else {
		b.WriteString("RAPID CONTEXT SWITCHES:\n")
		for _, burst := range bursts {
			fmt.Fprintf(&b, "- %s to %s: %d switches\n",
				burst.Start.Format("15:04"), burst.End.Format("15:04"), burst.Switches)
		}
	}

	if in.UserContext != "" {
		fmt.Fprintf(&b, "\nUSER CONTEXT (%s mode): %s\n", in.Mode, in.UserContext)
	} else {
		fmt.Fprintf(&b, "\nACTIVE MODE: %s\n", in.Mode)
	}

	return b.String()
}

// formatTimeline renders merged events with their category annotation,
// newest last, capped so the prompt stays inside the model's window.
func (s *Summarizer) formatTimeline(events []tracker.Event, in Input) string {
	const maxLines = 25

	if len(events) == 0 {
		return "(no activity)\n"
	}
	start := 0
	if len(events) > maxLines {
		start = len(events) - maxLines
	}

	var b strings.Builder
	for _, ev := range events[start:] {
		cat := in.Lookup(ev.App)
		title := ev.Title
		if len(title) > 50 {
			title = title[:50]
		}
		fmt.Fprintf(&b, "%s %s [%s/%d] %s (%.0fs)\n",
			ev.Start.Format("15:04"), ev.App, cat.Category, cat.ProductivityScore,
			title, ev.Duration().Seconds())
	}
	return b.String()
}

// topApps returns the n apps with the most time, for the fallback text.
func topApps(events []tracker.Event, n int) []string {
	totals := make(map[string]time.Duration)
	for _, ev := range events {
		totals[ev.App] += ev.Duration()
	}

	apps := make([]string, 0, len(totals))
	for app := range totals {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if totals[apps[i]] != totals[apps[j]] {
			return totals[apps[i]] > totals[apps[j]]
		}
		return apps[i] < apps[j]
	})

	if len(apps) > n {
		apps = apps[:n]
	}
	return apps
}
