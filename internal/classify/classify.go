// Package classify converts a filtered activity timeline into a
// three-bucket time split, a five-way state label, and a 0-100 focus
// score. Pure computation: no I/O, no suspension points.
package classify

import (
	"math"
	"time"

	"github.com/attune-sh/attune/internal/category"
	"github.com/attune-sh/attune/internal/tracker"
)

// State is the derived productivity state for a timeframe.
type State string

// The five states, ordered most to least favorable (afk aside).
const (
	StateProductive   State = "productive"
	StateModerate     State = "moderate"
	StateChilling     State = "chilling"
	StateUnproductive State = "unproductive"
	StateAFK          State = "afk"
)

// Settings holds the classification thresholds. Thresholds are closed
// on the upper bound: a focus score exactly at a boundary resolves to
// the more favorable state.
type Settings struct {
	HighThreshold  int           // focus score >= this -> productive
	MidThreshold   int           // focus score >= this -> moderate
	LowThreshold   int           // focus score >= this -> chilling
	WorkScore      int           // productivity score >= this reclassifies into the work bucket
	MinActiveFloor time.Duration // active time below this -> afk
}

// Result is the classification of one timeframe. Derived and
// recomputed each cycle, never mutated in place.
type Result struct {
	WorkMinutes          float64 `json:"work_minutes"`
	CommunicationMinutes float64 `json:"communication_minutes"`
	DistractionMinutes   float64 `json:"distraction_minutes"`
	ActiveMinutes        float64 `json:"active_minutes"`
	State                State   `json:"state"`
	FocusScore           int     `json:"focus_score"`
	ContextSwitches      int     `json:"context_switches"`
}

// Categories that map straight to the work and communication buckets.
// Everything else lands in distraction unless its productivity score
// clears Settings.WorkScore.
var workCategories = map[string]bool{
	"work":         true,
	"development":  true,
	"productivity": true,
}

// Classify derives the Result for one event list. An empty or nil list
// yields state afk with focus score 0, so a collector outage still
// produces a valid classification.
func Classify(events []tracker.Event, lookup category.Lookup, s Settings) Result {
	var r Result

	var weighted float64 // sum of score * minutes
	for _, ev := range events {
		minutes := ev.Duration().Minutes()
		if minutes <= 0 {
			continue
		}
		cat := lookup(ev.App)

		r.ActiveMinutes += minutes
		weighted += float64(cat.ProductivityScore) * minutes

		switch {
		case workCategories[cat.Category]:
			r.WorkMinutes += minutes
		case cat.Category == "communication":
			r.CommunicationMinutes += minutes
		case cat.ProductivityScore >= s.WorkScore:
			r.WorkMinutes += minutes
		default:
			r.DistractionMinutes += minutes
		}
	}

	r.ContextSwitches = tracker.ContextSwitches(events)

	if r.ActiveMinutes > 0 {
		r.FocusScore = clampScore(int(math.Round(weighted / r.ActiveMinutes)))
	}

	r.State = deriveState(r, s)
	if r.State == StateAFK && r.ActiveMinutes == 0 {
		r.FocusScore = 0
	}
	return r
}

// deriveState applies the ordered state rules; first match wins.
func deriveState(r Result, s Settings) State {
	activeFloor := s.MinActiveFloor.Minutes()
	switch {
	case r.ActiveMinutes < activeFloor:
		return StateAFK
	case r.FocusScore >= s.HighThreshold:
		return StateProductive
	case r.FocusScore >= s.MidThreshold:
		return StateModerate
	case r.FocusScore >= s.LowThreshold && !distractionDominant(r):
		return StateChilling
	default:
		return StateUnproductive
	}
}

// distractionDominant reports whether the distraction bucket outweighs
// work and communication combined.
func distractionDominant(r Result) bool {
	return r.DistractionMinutes > r.WorkMinutes+r.CommunicationMinutes
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
