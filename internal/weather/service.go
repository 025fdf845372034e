package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/metrics"
)

// ErrNoData is returned when every candidate provider failed.
var ErrNoData = errors.New("no weather data available from any provider")

// Providers wires the sources the service aggregates. Domestic and
// International are required; Fallback and Grid are optional.
type Providers struct {
	// Domestic is the primary for points inside domestic coverage and the
	// alert source.
	Domestic Provider
	// International is the primary elsewhere, the enrichment source for
	// domestic points, and the forecast source.
	International Provider
	// Fallback is tried last for every point.
	Fallback Provider
	// Grid supplies gfs_* diagnostics for domestic points.
	Grid SupplementalSource
}

// enabler is implemented by providers that can be switched off by configuration.
type enabler interface {
	Enabled() bool
}

// Service orchestrates provider fallback, merging and snapshot storage.
type Service struct {
	store     Store
	providers Providers
	log       *logger.Logger
	now       func() time.Time

	mu         sync.RWMutex
	lastSource string
}

// NewService creates a new Service.
func NewService(store Store, providers Providers, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:      store,
		providers:  providers,
		log:        log.Named("weather"),
		now:        time.Now,
		lastSource: "none",
	}
}

func isEnabled(p Provider) bool {
	if p == nil {
		return false
	}
	if e, ok := p.(enabler); ok {
		return e.Enabled()
	}
	return true
}

// candidates returns the ordered provider list for a point.
func (s *Service) candidates(src PrimarySource) []Provider {
	var list []Provider
	if src == SourceDomestic {
		list = append(list, s.providers.Domestic)
	}
	list = append(list, s.providers.International, s.providers.Fallback)

	out := list[:0]
	for _, p := range list {
		if isEnabled(p) {
			out = append(out, p)
		}
	}
	return out
}

// GetWeather returns the merged snapshot for a point. The first candidate to
// succeed is the primary; a domestic primary is enriched with the
// international subset and supplemental grid values.
func (s *Service) GetWeather(ctx context.Context, lat, lon float64) (Snapshot, error) {
	src := Classify(lat, lon)

	var (
		primary ProviderResult
		won     Provider
	)
	for _, p := range s.candidates(src) {
		res, err := p.FetchCurrent(ctx, lat, lon)
		if err != nil {
			s.log.Warnw("provider failed", "provider", p.Name(), "lat", lat, "lon", lon, "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		primary, won = res, p
		break
	}
	if won == nil {
		return nil, ErrNoData
	}

	snap := primary.Values.Clone().Fill()
	if won == s.providers.Domestic {
		enrichment, grid := s.enrich(ctx, lat, lon)
		if enrichment != nil {
			snap = SmartMerge(snap, EnrichmentSubset(enrichment))
		}
		if grid != nil {
			snap = MergeGrid(snap, grid)
		}
	}

	snap.Set(FieldLatitude, lat)
	snap.Set(FieldLongitude, lon)
	snap.Set(FieldSource, won.Name())

	s.mu.Lock()
	s.lastSource = won.Name()
	s.mu.Unlock()

	s.log.Debugw("weather resolved", "source", won.Name(), "routing", string(src), "lat", lat, "lon", lon)
	return snap, nil
}

// enrich fetches the international snapshot and the grid values
// concurrently. Either may be nil; neither failure is fatal.
func (s *Service) enrich(ctx context.Context, lat, lon float64) (Snapshot, map[string]float64) {
	var (
		enrichment Snapshot
		grid       map[string]float64
	)

	var g errgroup.Group
	if isEnabled(s.providers.International) {
		g.Go(func() error {
			res, err := s.providers.International.FetchCurrent(ctx, lat, lon)
			if err != nil {
				s.log.Warnw("enrichment unavailable", "provider", s.providers.International.Name(), "error", err)
				return nil
			}
			enrichment = res.Values
			return nil
		})
	}
	if s.providers.Grid != nil {
		g.Go(func() error {
			vals, err := s.providers.Grid.FetchSupplemental(ctx, lat, lon)
			if err != nil {
				s.log.Warnw("grid data unavailable", "error", err)
				return nil
			}
			grid = vals
			return nil
		})
	}
	_ = g.Wait()
	return enrichment, grid
}

// GetAlerts returns official alerts for domestic points and nothing elsewhere.
func (s *Service) GetAlerts(ctx context.Context, lat, lon float64) ([]Alert, error) {
	if Classify(lat, lon) != SourceDomestic {
		return []Alert{}, nil
	}
	ap, ok := s.providers.Domestic.(AlertProvider)
	if !ok {
		return []Alert{}, nil
	}
	alerts, err := ap.FetchAlerts(ctx, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	return alerts, nil
}

// GetForecast returns the daily forecast for a point.
func (s *Service) GetForecast(ctx context.Context, lat, lon float64, days int) ([]DailyForecast, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be greater than zero")
	}
	fp, ok := s.providers.International.(ForecastProvider)
	if !ok {
		return nil, fmt.Errorf("no forecast provider configured")
	}
	return fp.FetchForecast(ctx, lat, lon, days)
}

// Poll fetches the merged snapshot for loc and stores it. On failure the
// previously stored snapshot is left in place.
func (s *Service) Poll(ctx context.Context, loc Location) (StoredSnapshot, error) {
	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	snap, err := s.GetWeather(ctx, loc.Lat, loc.Lon)
	if err != nil {
		s.log.Warnw("poll failed, keeping last snapshot", "location", loc.Key(), "error", err)
		return StoredSnapshot{}, err
	}

	stored := StoredSnapshot{
		Location:  loc,
		Timestamp: s.now().UTC(),
		Source:    snap.String(FieldSource),
		Values:    snap,
	}
	s.store.SaveSnapshot(loc, stored)
	return stored, nil
}

// LastSource reports which provider produced the most recent snapshot.
func (s *Service) LastSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSource
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(loc Location) (StoredSnapshot, error) {
	return s.store.GetLatest(loc)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(loc Location, from, to time.Time) ([]StoredSnapshot, error) {
	return s.store.GetRange(loc, from, to)
}
