package weather

import (
	"context"
	"time"
)

// ProviderResult is one provider's normalized output for a single call.
type ProviderResult struct {
	Provider  string
	FetchedAt time.Time
	Values    Snapshot
}

// Provider abstracts a current-conditions source (NWS, Open-Meteo, OpenWeather).
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, lat, lon float64) (ProviderResult, error)
}

// AlertProvider is implemented by providers that expose an official alerts feed.
type AlertProvider interface {
	FetchAlerts(ctx context.Context, lat, lon float64) ([]Alert, error)
}

// ForecastProvider is implemented by providers that expose a daily forecast.
type ForecastProvider interface {
	FetchForecast(ctx context.Context, lat, lon float64, days int) ([]DailyForecast, error)
}

// SupplementalSource returns gridded model values keyed by gfs_* field names.
type SupplementalSource interface {
	FetchSupplemental(ctx context.Context, lat, lon float64) (map[string]float64, error)
}

// Store is the contract the in-memory store must satisfy.
type Store interface {
	SaveSnapshot(loc Location, snapshot StoredSnapshot)
	GetLatest(loc Location) (StoredSnapshot, error)
	GetRange(loc Location, from, to time.Time) ([]StoredSnapshot, error)
}
