package events

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/metrics"
	"github.com/i474232898/weather-events/internal/weather"
)

const (
	// DefaultHistoryLimit caps the expired-event ring.
	DefaultHistoryLimit = 20

	MinFrequencyMultiplier = 1.0
	MaxFrequencyMultiplier = 3.0

	minAlertDuration = time.Hour
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom replaces the [0,1) source used by probabilistic events.
func WithRandom(random func() float64) Option {
	return func(e *Engine) { e.random = random }
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log.Named("events")
		}
	}
}

// WithHistoryLimit overrides DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// Engine detects weather events and tracks their lifecycle. It is safe for
// concurrent use; Update is expected to be called from a single ticker.
type Engine struct {
	now          func() time.Time
	random       func() float64
	log          *logger.Logger
	historyLimit int

	mu       sync.RWMutex
	mult     float64
	active   []Event
	history  []Event
	lastRain time.Time
	heat     dwell
	cold     dwell

	total       int
	extremeSeen bool
	auroraSeen  bool
	tracked     time.Duration
}

// NewEngine creates an engine with the given frequency multiplier, clamped
// to [MinFrequencyMultiplier, MaxFrequencyMultiplier].
func NewEngine(multiplier float64, opts ...Option) *Engine {
	e := &Engine{
		now:          time.Now,
		random:       rand.Float64,
		log:          logger.Nop(),
		historyLimit: DefaultHistoryLimit,
		mult:         clampMultiplier(multiplier),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.lastRain = e.now()
	return e
}

func clampMultiplier(m float64) float64 {
	return max(MinFrequencyMultiplier, min(MaxFrequencyMultiplier, m))
}

// SetFrequencyMultiplier changes the multiplier, clamped to the valid range.
func (e *Engine) SetFrequencyMultiplier(m float64) {
	e.mu.Lock()
	e.mult = clampMultiplier(m)
	e.mu.Unlock()
}

// Update expires finished events, then runs alert-driven and
// threshold-driven detection against snap. It returns the events started by
// this call. dt is the simulation time covered by the tick.
func (e *Engine) Update(snap weather.Snapshot, alerts []weather.Alert, dt time.Duration) []Event {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if dt > 0 {
		e.tracked += dt
	}
	e.expire(now)

	c := readConditions(snap)
	if c.precip > 0 {
		e.lastRain = now
	}
	c.now = now
	c.mult = e.mult
	c.adj = 1 / e.mult
	c.sinceRain = now.Sub(e.lastRain)

	var started []Event
	for _, a := range alerts {
		typ, sev, ok := classifyAlert(a.Event)
		if !ok || e.isActive(typ) {
			continue
		}
		ev := e.newEvent(typ, sev, now)
		ev.Description = fmt.Sprintf("NOAA Alert: %s", a.Event)
		ev.WarningIssued = true
		ev.Duration = max(ev.Duration, minAlertDuration)
		started = append(started, e.start(ev))
	}

	for _, th := range thresholds {
		if e.isActive(th.typ) {
			continue
		}
		if sev, ok := th.detect(e, c); ok {
			started = append(started, e.start(e.newEvent(th.typ, sev, now)))
		}
	}

	metrics.ActiveEvents.Set(float64(len(e.active)))
	return started
}

// expire moves finished events into history, dropping the oldest past the cap.
func (e *Engine) expire(now time.Time) {
	kept := e.active[:0]
	for _, ev := range e.active {
		if ev.Expired(now) {
			e.history = append(e.history, ev)
			e.log.Debugw("weather event ended", "type", ev.Type, "severity", ev.Severity, "id", ev.ID)
			continue
		}
		kept = append(kept, ev)
	}
	clear(e.active[len(kept):])
	e.active = kept

	if over := len(e.history) - e.historyLimit; over > 0 {
		e.history = append([]Event(nil), e.history[over:]...)
	}
}

func (e *Engine) newEvent(typ Type, sev Severity, now time.Time) Event {
	p := profiles[typ]
	t := p.tier(sev)
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		Severity:    sev,
		StartTime:   now,
		Duration:    t.duration,
		Description: p.description,
		Modifiers:   t.mods,
	}
}

func (e *Engine) start(ev Event) Event {
	e.active = append(e.active, ev)
	e.total++
	if ev.Severity == Extreme {
		e.extremeSeen = true
	}
	if ev.Type == Aurora {
		e.auroraSeen = true
	}
	metrics.EventsStarted.WithLabelValues(string(ev.Type), string(ev.Severity)).Inc()
	e.log.Infow("weather event started",
		"type", ev.Type,
		"severity", ev.Severity,
		"duration", ev.Duration,
		"warning", ev.WarningIssued,
		"id", ev.ID,
	)
	return ev
}

func (e *Engine) isActive(typ Type) bool {
	for _, ev := range e.active {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

// ActiveModifiers returns the per-channel product over all active events.
func (e *Engine) ActiveModifiers() Modifiers {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := Neutral
	for _, ev := range e.active {
		out = out.Mul(ev.Modifiers)
	}
	return out
}

// Active returns a copy of the active events in start order.
func (e *Engine) Active() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Event{}, e.active...)
}

// History returns a copy of the expired events, oldest first.
func (e *Engine) History() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Event{}, e.history...)
}

// ActiveByType returns the active event of typ, if any.
func (e *Engine) ActiveByType(typ Type) (Event, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ev := range e.active {
		if ev.Type == typ {
			return ev, true
		}
	}
	return Event{}, false
}

// Stats reports counters for achievement logic.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		ActiveCount:         len(e.active),
		TotalExperienced:    e.total,
		FrequencyMultiplier: e.mult,
		ExtremeExperienced:  e.extremeSeen,
		AuroraSeen:          e.auroraSeen,
		TrackedSeconds:      e.tracked.Seconds(),
	}
}

// Now exposes the engine clock so callers can compute remaining time
// consistently with expiry.
func (e *Engine) Now() time.Time {
	return e.now()
}
