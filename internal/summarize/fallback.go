package summarize

import (
	"fmt"
	"math"
	"strings"

	"github.com/attune-sh/attune/internal/classify"
	"github.com/attune-sh/attune/internal/tracker"
)

// fallbackText builds the deterministic templated summary from the
// classification alone. This path must never fail: it does no I/O and
// tolerates empty inputs.
func fallbackText(c classify.Result, timeframes map[tracker.Timeframe]tracker.TimeframeData, focus tracker.Timeframe) string {
	if c.State == classify.StateAFK {
		return "No meaningful activity detected this period. You were away from the keyboard or the activity tracker was offline."
	}

	workPct := percent(c.WorkMinutes, c.ActiveMinutes)
	commPct := percent(c.CommunicationMinutes, c.ActiveMinutes)
	distPct := percent(c.DistractionMinutes, c.ActiveMinutes)

	var b strings.Builder
	fmt.Fprintf(&b, "You spent %d%% of the period on productive work, %d%% communicating, and %d%% on other apps (%.0f active minutes, focus score %d).",
		workPct, commPct, distPct, c.ActiveMinutes, c.FocusScore)

	if apps := topApps(timeframes[focus].Events, 3); len(apps) > 0 {
		fmt.Fprintf(&b, " Most time went to %s.", strings.Join(apps, ", "))
	}

	switch c.State {
	case classify.StateProductive:
		b.WriteString(" Strong focus - keep the streak going.")
	case classify.StateModerate:
		b.WriteString(" Solid progress with room to tighten up.")
	case classify.StateChilling:
		b.WriteString(" A relaxed stretch; ease back in when ready.")
	case classify.StateUnproductive:
		fmt.Fprintf(&b, " Distractions dominated with %d context switches - a short reset might help.", c.ContextSwitches)
	}

	return b.String()
}

func percent(part, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(part / total * 100))
}
