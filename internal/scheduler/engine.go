// Package scheduler drives the analysis loop.
//
// One background task ticks at a fixed resolution. Each tick decides,
// per the active mode's table entry, whether to run a cycle:
// collect -> classify -> summarize, strictly serialized by an in-flight
// guard so two cycles never overlap. Mode switches and manual cycle
// requests funnel through the same guard. The only state shared with
// readers is the schedule state and the published summary cache, each
// behind its own mutex, so reads never block on network I/O.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/attune-sh/attune/internal/category"
	"github.com/attune-sh/attune/internal/classify"
	"github.com/attune-sh/attune/internal/config"
	"github.com/attune-sh/attune/internal/notify"
	"github.com/attune-sh/attune/internal/statefile"
	"github.com/attune-sh/attune/internal/storage"
	"github.com/attune-sh/attune/internal/summarize"
	"github.com/attune-sh/attune/internal/tracker"
)

// tickResolution is how often the background loop wakes up. Per-mode
// intervals are multiples of this, enforced against last_run_at.
const tickResolution = time.Minute

// Collector is the activity source the engine pulls from each cycle.
type Collector interface {
	CollectMulti(ctx context.Context) (map[tracker.Timeframe]tracker.TimeframeData, error)
}

// Summarizer produces the cycle's Summary; it never fails.
type Summarizer interface {
	Summarize(ctx context.Context, in summarize.Input) summarize.Summary
}

// Engine owns all mutable scheduling state. Components receive it by
// handle; there is no ambient global.
type Engine struct {
	cfg        *config.Config
	table      map[Mode]ModeParams
	collector  Collector
	summarizer Summarizer
	categories *category.Store
	history    *storage.Store // optional summary history
	notifier   notify.Notifier
	state      *statefile.File // optional persistence

	// Schedule state: everything below mu is owned by the
	// tick/mode-switch protocol and mutated nowhere else.
	mu        sync.Mutex
	mode      Mode
	lastRun   map[Mode]time.Time
	inFlight  bool
	waiters   []chan summarize.Summary
	lastNudge time.Time
	lastDaily time.Time

	cache snapshotCache

	// now is swappable for tests.
	now func() time.Time
}

// New assembles an Engine, restoring persisted mode and summaries when
// a state file is present.
func New(cfg *config.Config, collector Collector, summarizer Summarizer,
	categories *category.Store, history *storage.Store,
	notifier notify.Notifier, state *statefile.File) *Engine {

	e := &Engine{
		cfg:        cfg,
		table:      modeTable(cfg),
		collector:  collector,
		summarizer: summarizer,
		categories: categories,
		history:    history,
		notifier:   notifier,
		state:      state,
		mode:       ModeChill,
		lastRun:    make(map[Mode]time.Time),
		now:        time.Now,
	}
	if e.notifier == nil {
		e.notifier = notify.LogNotifier{}
	}

	if state != nil {
		if st, err := state.Load(); err != nil {
			log.Printf("[scheduler] failed to load state file: %v", err)
		} else if st != nil {
			if m, err := ParseMode(st.Mode); err == nil {
				e.mode = m
			}
			e.cache.restore(st.Hourly, st.Daily)
			if st.Daily != nil {
				e.lastDaily = st.Daily.GeneratedAt
			}
		}
	}
	if e.lastDaily.IsZero() {
		e.lastDaily = e.now()
	}
	return e
}

// Run drives the tick loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[scheduler] started: mode=%s resolution=%s", e.CurrentMode(), tickResolution)
	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs at the fixed resolution. If a cycle is in flight it is a
// no-op; otherwise it starts a cycle when the mode's interval has
// elapsed, or the daily roll-up when its day has.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return
	}

	mode := e.mode
	params := e.table[mode]
	now := e.now()
	last := e.lastRun[mode]

	switch {
	case last.IsZero() || now.Sub(last) >= params.Interval:
		e.inFlight = true
		e.mu.Unlock()
		e.runCycle(ctx, mode, params)
	case now.Sub(e.lastDaily) >= tracker.TimeframeDaily.Duration():
		e.inFlight = true
		e.mu.Unlock()
		e.runDaily(ctx, mode)
	default:
		e.mu.Unlock()
	}
}

// SetMode switches the active mode. A cycle already in flight is never
// aborted: it completes under the mode it started with and the next
// tick picks up the new mode. Immediate modes force a cycle right away
// when the guard is free.
func (e *Engine) SetMode(mode Mode) error {
	params, ok := e.table[mode]
	if !ok {
		return errors.New("unknown mode " + string(mode))
	}

	e.mu.Lock()
	prev := e.mode
	e.mode = mode
	now := e.now()
	last := e.lastRun[mode]
	if !params.Immediate {
		// Non-immediate modes wait a full interval from the switch.
		e.lastRun[mode] = now
	}
	e.mu.Unlock()

	log.Printf("[scheduler] mode switch: %s -> %s", prev, mode)
	e.persistState()

	// An immediate mode forces a cycle now, unless the same mode ran
	// within its cooldown (flapping between modes must not burn a
	// model call per flap).
	force := params.Immediate && mode != prev &&
		(last.IsZero() || now.Sub(last) >= params.Cooldown)
	if force && e.tryBegin() {
		go e.runCycle(context.Background(), mode, params)
	}
	return nil
}

// RequestCycleNow runs one cycle for the given mode (empty = current)
// and blocks until a Summary exists. If a cycle is already in flight
// the call waits for that cycle and returns its result instead of
// starting a second one.
func (e *Engine) RequestCycleNow(ctx context.Context, mode Mode) (summarize.Summary, error) {
	if mode == "" {
		mode = e.CurrentMode()
	}
	params, ok := e.table[mode]
	if !ok {
		return summarize.Summary{}, errors.New("unknown mode " + string(mode))
	}

	if e.tryBegin() {
		return e.runCycle(ctx, mode, params), nil
	}

	ch := make(chan summarize.Summary, 1)
	e.mu.Lock()
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return summarize.Summary{}, ctx.Err()
	case s := <-ch:
		return s, nil
	}
}

// GetCurrentState returns the latest hourly-equivalent summary without
// blocking, or nil when no cycle has completed yet.
func (e *Engine) GetCurrentState() *summarize.Summary {
	return e.cache.latest()
}

// GetDailyState returns the latest daily roll-up summary, or nil.
func (e *Engine) GetDailyState() *summarize.Summary {
	return e.cache.latestDaily()
}

// CurrentMode returns the active mode.
func (e *Engine) CurrentMode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// tryBegin claims the in-flight guard. Cycles start only through here,
// which is what makes a concurrent second cycle impossible rather than
// merely detected.
func (e *Engine) tryBegin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return false
	}
	e.inFlight = true
	return true
}

// finish releases the guard, stamps last_run_at (a fallback summary
// still counts as a completed cycle), and hands the result to any
// blocked manual requests.
func (e *Engine) finish(mode Mode, sum summarize.Summary) {
	e.mu.Lock()
	e.inFlight = false
	e.lastRun[mode] = e.now()
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	for _, ch := range waiters {
		ch <- sum
	}
}

// runCycle executes one collect -> classify -> summarize pass. The
// caller must hold the in-flight guard.
func (e *Engine) runCycle(ctx context.Context, mode Mode, params ModeParams) summarize.Summary {
	log.Printf("[scheduler] cycle start: mode=%s timeframe=%s", mode, params.Timeframe)
	sum := e.analyze(ctx, mode, params.Timeframe, params.Kind)

	e.publish(sum, false)
	e.maybeIntervene(params, sum)
	e.finish(mode, sum)
	log.Printf("[scheduler] cycle done: mode=%s state=%s focus=%d source=%s",
		mode, sum.State, sum.FocusScore, sum.Source)
	return sum
}

// runDaily executes the daily roll-up under the same guard.
func (e *Engine) runDaily(ctx context.Context, mode Mode) {
	log.Printf("[scheduler] daily roll-up start")
	sum := e.analyze(ctx, mode, tracker.TimeframeDaily, summarize.KindFull)

	e.publish(sum, true)

	e.mu.Lock()
	e.inFlight = false
	e.lastDaily = e.now()
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()
	for _, ch := range waiters {
		ch <- sum
	}
}

// analyze is the generic pipeline body shared by every cycle kind.
func (e *Engine) analyze(ctx context.Context, mode Mode, tf tracker.Timeframe, kind summarize.Kind) summarize.Summary {
	lookup := e.categories.Snapshot()

	timeframes, err := e.collector.CollectMulti(ctx)
	degraded := err != nil
	if degraded {
		// Collector outage is recovered locally: classify zero active
		// time instead of aborting the cycle. The model path is skipped;
		// there is no timeline for it to describe.
		log.Printf("[scheduler] collector unavailable, classifying zero activity: %v", err)
		timeframes = nil
	}

	result := classify.Classify(timeframes[tf].Events, lookup, e.settings())

	return e.summarizer.Summarize(ctx, summarize.Input{
		Classification: result,
		Timeframes:     timeframes,
		Focus:          tf,
		Lookup:         lookup,
		Mode:           string(mode),
		UserContext:    e.cfg.ContextFor(string(mode)),
		Kind:           kind,
		PeriodLabel:    summarize.PeriodLabel(e.now(), tf.Duration()),
		Degraded:       degraded,
	})
}

// publish replaces the cached summary for the cadence, appends it to
// history, and persists the state file.
func (e *Engine) publish(sum summarize.Summary, daily bool) {
	e.cache.publish(sum, daily)

	if e.history != nil {
		rec := &storage.SummaryRecord{
			Text:        sum.Text,
			FocusScore:  sum.FocusScore,
			GeneratedAt: sum.GeneratedAt,
			PeriodLabel: sum.PeriodLabel,
			Source:      sum.Source,
			Mode:        sum.Mode,
			State:       string(sum.State),
		}
		if err := e.history.SaveSummary(rec); err != nil {
			log.Printf("[scheduler] failed to save summary history: %v", err)
		}
	}
	e.persistState()
}

// maybeIntervene applies the state-triggered nudge policy. The
// observed state picks the cooldown that must have elapsed since the
// last nudge; afk never nudges. Coach check-ins ride the scheduled
// cycle instead and are not cooldown-gated.
func (e *Engine) maybeIntervene(params ModeParams, sum summarize.Summary) {
	if params.CheckIn && sum.State != classify.StateAFK {
		if err := e.notifier.Send("Check-in", sum.Text, notify.UrgencyLow); err != nil {
			log.Printf("[scheduler] check-in notification failed: %v", err)
		}
	}

	if !params.Nudges {
		return
	}
	warranted := sum.State == classify.StateUnproductive ||
		(params.NudgeIdle && sum.State == classify.StateChilling)
	if !warranted {
		return
	}

	cooldown, ok := e.nudgeCooldown(sum.State)
	if !ok {
		return
	}

	now := e.now()
	e.mu.Lock()
	if !e.lastNudge.IsZero() && now.Sub(e.lastNudge) < cooldown {
		e.mu.Unlock()
		return
	}
	e.lastNudge = now
	e.mu.Unlock()

	if err := e.notifier.Send("Time for a change?", sum.Text, notify.UrgencyNormal); err != nil {
		log.Printf("[scheduler] nudge failed: %v", err)
	}
}

// nudgeCooldown maps a state to its nudge cooldown. The second return
// is false for states that never nudge.
func (e *Engine) nudgeCooldown(state classify.State) (time.Duration, bool) {
	switch state {
	case classify.StateProductive:
		return e.cfg.Nudges.Productive, true
	case classify.StateModerate:
		return e.cfg.Nudges.Moderate, true
	case classify.StateChilling:
		return e.cfg.Nudges.Chilling, true
	case classify.StateUnproductive:
		return e.cfg.Nudges.Unproductive, true
	default:
		return 0, false
	}
}

func (e *Engine) settings() classify.Settings {
	return classify.Settings{
		HighThreshold:  e.cfg.Classify.HighThreshold,
		MidThreshold:   e.cfg.Classify.MidThreshold,
		LowThreshold:   e.cfg.Classify.LowThreshold,
		WorkScore:      e.cfg.Classify.WorkScore,
		MinActiveFloor: e.cfg.Classify.MinActiveFloor,
	}
}

func (e *Engine) persistState() {
	if e.state == nil {
		return
	}
	st := &statefile.State{
		Mode:   string(e.CurrentMode()),
		Hourly: e.cache.latest(),
		Daily:  e.cache.latestDaily(),
	}
	if err := e.state.Save(st); err != nil {
		log.Printf("[scheduler] failed to persist state: %v", err)
	}
}
