// Package summarize turns a classified timeframe into a user-facing
// summary, preferring the local language model and falling back to a
// deterministic template when the model path fails in any way.
package summarize

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/attune-sh/attune/internal/category"
	"github.com/attune-sh/attune/internal/classify"
	"github.com/attune-sh/attune/internal/tracker"
)

// Summary sources.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Summary is the engine's only externally visible product. It is
// replaced atomically by the scheduler, never partially updated.
type Summary struct {
	Text        string         `json:"text"`
	FocusScore  int            `json:"focus_score"`
	GeneratedAt time.Time      `json:"generated_at"`
	PeriodLabel string         `json:"period_label"`
	Source      string         `json:"source"`
	State       classify.State `json:"state"`
	Mode        string         `json:"mode"`
}

// Kind selects the timeout budget for a summarization call.
type Kind int

// Reactive nudges get a short budget; full analyses a longer one.
const (
	KindNudge Kind = iota
	KindFull
)

// Input carries everything one summarization needs.
type Input struct {
	Classification classify.Result
	Timeframes     map[tracker.Timeframe]tracker.TimeframeData
	Focus          tracker.Timeframe // the timeframe the classification covers
	Lookup         category.Lookup
	Mode           string
	UserContext    string
	Kind           Kind
	PeriodLabel    string

	// Degraded marks a cycle whose activity source failed. The model has
	// no real timeline to describe, so the model path is skipped and the
	// deterministic fallback reports the outage.
	Degraded bool
}

// Generator is the language-model call the summarizer depends on.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Options holds the summarizer's tuning knobs.
type Options struct {
	NudgeTimeout      time.Duration
	AnalysisTimeout   time.Duration
	RapidSwitchCount  int
	RapidSwitchWindow time.Duration
}

// Summarizer builds prompts, calls the model, and guarantees a Summary
// comes back no matter what the model does.
type Summarizer struct {
	gen  Generator
	opts Options

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Summarizer.
func New(gen Generator, opts Options) *Summarizer {
	return &Summarizer{gen: gen, opts: opts, now: time.Now}
}

// Summarize produces a Summary. The model path is best-effort with one
// outbound call and no retries; any failure (timeout, transport,
// validation) lands on the fallback path, which cannot fail.
func (s *Summarizer) Summarize(ctx context.Context, in Input) Summary {
	base := Summary{
		FocusScore:  in.Classification.FocusScore,
		GeneratedAt: s.now(),
		PeriodLabel: in.PeriodLabel,
		State:       in.Classification.State,
		Mode:        in.Mode,
	}

	timeout := s.opts.AnalysisTimeout
	if in.Kind == KindNudge {
		timeout = s.opts.NudgeTimeout
	}

	if s.gen != nil && !in.Degraded {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		raw, err := s.gen.Generate(callCtx, systemPrompt, s.buildPrompt(in))
		if err == nil {
			if analysis, perr := parseResponse(raw); perr == nil {
				base.Text = analysis.Summary
				base.Source = SourceLLM
				// The model may refine the focus score; the local
				// classification stays authoritative for state.
				if analysis.FocusScore != nil && *analysis.FocusScore >= 0 && *analysis.FocusScore <= 100 {
					base.FocusScore = *analysis.FocusScore
				}
				return base
			} else {
				log.Printf("[summarize] unusable model response: %v", perr)
			}
		} else {
			log.Printf("[summarize] model call failed: %v", err)
		}
	}

	base.Text = fallbackText(in.Classification, in.Timeframes, in.Focus)
	base.Source = SourceFallback
	return base
}

// PeriodLabel formats the span a classification covers, e.g. "14:05-15:05".
func PeriodLabel(end time.Time, span time.Duration) string {
	return fmt.Sprintf("%s-%s", end.Add(-span).Format("15:04"), end.Format("15:04"))
}
