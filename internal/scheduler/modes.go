package scheduler

import (
	"fmt"
	"time"

	"github.com/attune-sh/attune/internal/config"
	"github.com/attune-sh/attune/internal/summarize"
	"github.com/attune-sh/attune/internal/tracker"
)

// Mode is a named behavior profile selecting analysis cadence and
// intervention aggressiveness.
type Mode string

// The four modes.
const (
	ModeGhost Mode = "ghost" // invisible observer: summaries only, never nudges
	ModeChill Mode = "chill" // hourly rhythm, gentle nudges when drifting
	ModeStudy Mode = "study" // tight 5-minute loop around a study focus
	ModeCoach Mode = "coach" // 15-minute check-ins against a stated task
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGhost, ModeChill, ModeStudy, ModeCoach:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ModeParams is one row of the mode table. All mode-specific behavior
// is parameterized here; the cycle-execution path itself is generic.
type ModeParams struct {
	Interval  time.Duration     // minimum gap between scheduled cycles
	Cooldown  time.Duration     // same-mode cycle cooldown
	Timeframe tracker.Timeframe // window the classification covers
	Kind      summarize.Kind    // timeout budget for the model call
	Immediate bool              // switching to this mode forces a cycle now
	Nudges    bool              // proactive nudges enabled
	NudgeIdle bool              // nudge on chilling too, not just unproductive
	CheckIn   bool              // send a check-in notification each cycle
}

// modeTable builds the Mode -> parameters table from configuration.
func modeTable(cfg *config.Config) map[Mode]ModeParams {
	return map[Mode]ModeParams{
		ModeGhost: {
			Interval:  cfg.Modes.Ghost.Interval,
			Cooldown:  cfg.Modes.Ghost.Cooldown,
			Timeframe: tracker.TimeframeHourly,
			Kind:      summarize.KindFull,
		},
		ModeChill: {
			Interval:  cfg.Modes.Chill.Interval,
			Cooldown:  cfg.Modes.Chill.Cooldown,
			Timeframe: tracker.TimeframeHourly,
			Kind:      summarize.KindFull,
			Nudges:    true,
		},
		ModeStudy: {
			Interval:  cfg.Modes.Study.Interval,
			Cooldown:  cfg.Modes.Study.Cooldown,
			Timeframe: tracker.Timeframe5Min,
			Kind:      summarize.KindNudge,
			Immediate: true,
			Nudges:    true,
			NudgeIdle: true,
		},
		ModeCoach: {
			Interval:  cfg.Modes.Coach.Interval,
			Cooldown:  cfg.Modes.Coach.Cooldown,
			Timeframe: tracker.Timeframe30Min,
			Kind:      summarize.KindFull,
			Immediate: true,
			Nudges:    true,
			NudgeIdle: true,
			CheckIn:   true,
		},
	}
}
