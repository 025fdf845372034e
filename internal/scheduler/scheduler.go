package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-events/internal/events"
	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/weather"
)

const (
	pollTag  = "poll"
	tickTag  = "tick"
	pruneTag = "prune"

	defaultPollInterval = 10 * time.Minute
	defaultTickInterval = 10 * time.Second
	defaultPollTimeout  = time.Minute
	defaultPruneAge     = 24 * time.Hour
	pruneAt             = "03:30"
)

// Poller is the part of the weather service the scheduler drives.
type Poller interface {
	Poll(ctx context.Context, loc weather.Location) (weather.StoredSnapshot, error)
	GetAlerts(ctx context.Context, lat, lon float64) ([]weather.Alert, error)
	GetLatest(loc weather.Location) (weather.StoredSnapshot, error)
}

// EventUpdater consumes snapshots once per tick.
type EventUpdater interface {
	Update(snap weather.Snapshot, alerts []weather.Alert, dt time.Duration) []events.Event
}

// Pruner removes cache entries older than a given age.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration, now time.Time) (int, error)
}

// Config controls job intervals. Zero values take the defaults.
type Config struct {
	PollInterval time.Duration
	TickInterval time.Duration
	PollTimeout  time.Duration
	PruneAge     time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.PruneAge <= 0 {
		c.PruneAge = defaultPruneAge
	}
	return c
}

// Scheduler polls the tracked location on a fixed interval and feeds the
// event engine on a faster tick. It also owns the tracked location and the
// last known alerts.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	poller    Poller
	engine    EventUpdater
	pruner    Pruner
	log       *logger.Logger

	// serializes polls started by the job and by Trigger
	pollMu sync.Mutex

	mu       sync.RWMutex
	location weather.Location
	alerts   []weather.Alert
}

// New creates a new Scheduler. pruner may be nil.
func New(cfg Config, loc weather.Location, poller Poller, engine EventUpdater, pruner Pruner, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg.withDefaults(),
		poller:    poller,
		engine:    engine,
		pruner:    pruner,
		log:       log.Named("scheduler"),
		location:  loc,
	}
}

// Start schedules the jobs and starts the underlying scheduler. Poll and
// tick run immediately.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.cfg.PollInterval).Tag(pollTag).SingletonMode().Do(s.poll); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(s.cfg.TickInterval).Tag(tickTag).SingletonMode().Do(s.tick); err != nil {
		return err
	}
	if s.pruner != nil {
		if _, err := s.scheduler.Every(1).Day().At(pruneAt).Tag(pruneTag).Do(s.prune); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	s.log.Infow("scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"tick_interval", s.cfg.TickInterval,
		"location", s.Location().Key(),
	)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Trigger runs a poll now, outside the regular interval.
func (s *Scheduler) Trigger() {
	if s.scheduler.IsRunning() {
		if err := s.scheduler.RunByTag(pollTag); err == nil {
			return
		}
	}
	go s.poll()
}

// Location returns the tracked location.
func (s *Scheduler) Location() weather.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// SetLocation changes the tracked location and triggers a poll.
func (s *Scheduler) SetLocation(loc weather.Location) {
	s.mu.Lock()
	s.location = loc
	s.alerts = nil
	s.mu.Unlock()

	s.log.Infow("tracked location changed", "location", loc.Key(), "city", loc.City)
	s.Trigger()
}

// Alerts returns the alerts fetched by the most recent successful poll.
func (s *Scheduler) Alerts() []weather.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]weather.Alert{}, s.alerts...)
}

func (s *Scheduler) poll() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	loc := s.Location()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollTimeout)
	defer cancel()

	snap, err := s.poller.Poll(ctx, loc)
	if err != nil {
		s.log.Warnw("poll failed", "location", loc.Key(), "error", err)
		return
	}

	alerts, err := s.poller.GetAlerts(ctx, loc.Lat, loc.Lon)
	if err != nil {
		s.log.Warnw("alerts unavailable, keeping previous", "location", loc.Key(), "error", err)
	} else {
		s.mu.Lock()
		if s.location == loc {
			s.alerts = alerts
		}
		s.mu.Unlock()
	}
	s.log.Infow("poll complete", "location", loc.Key(), "source", snap.Source, "alerts", len(alerts))
}

func (s *Scheduler) tick() {
	loc := s.Location()
	latest, err := s.poller.GetLatest(loc)
	if err != nil {
		// nothing polled yet for this location
		return
	}
	for _, ev := range s.engine.Update(latest.Values, s.Alerts(), s.cfg.TickInterval) {
		s.log.Infow("event detected", "type", ev.Type, "severity", ev.Severity, "warning", ev.WarningIssued)
	}
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollTimeout)
	defer cancel()

	n, err := s.pruner.Prune(ctx, s.cfg.PruneAge, time.Now())
	if err != nil {
		s.log.Warnw("cache prune failed", "error", err)
		return
	}
	s.log.Infow("cache pruned", "removed", n)
}
