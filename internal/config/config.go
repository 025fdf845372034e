package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/weather-events/internal/weather"
)

// Default tracked location when neither coordinates nor a resolvable city
// are configured.
const (
	DefaultLat = 40.7128
	DefaultLon = -74.0060
)

type AppConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10m" validate:"gt=0s"`
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"10s" validate:"gt=0s"`

	// Tracked location. Coordinates win over city/country.
	LocationLat     *float64 `envconfig:"LOCATION_LAT" validate:"omitempty,gte=-90,lte=90"`
	LocationLon     *float64 `envconfig:"LOCATION_LON" validate:"omitempty,gte=-180,lte=180"`
	LocationCity    string   `envconfig:"LOCATION_CITY"`
	LocationCountry string   `envconfig:"LOCATION_COUNTRY"`

	GeocoderAPIKey    string `envconfig:"GEOCODER_API_KEY"`
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`
	NWSUserAgent      string `envconfig:"NWS_USER_AGENT" default:"(weather-events, ops@weather-events.local)" validate:"required"`

	GFSEnabled  bool   `envconfig:"GFS_ENABLED" default:"true"`
	GFSCacheDir string `envconfig:"GFS_CACHE_DIR" default:".cache/gfs" validate:"required_if=GFSEnabled true"`

	EventFrequencyMultiplier float64 `envconfig:"EVENT_FREQUENCY_MULTIPLIER" default:"1.0" validate:"gte=1,lte=3"`

	// In-memory store retention.
	StoreMaxHistory int           `envconfig:"STORE_MAX_HISTORY" default:"144" validate:"gte=0"` // 24h at 10-minute polls
	StoreMaxAge     time.Duration `envconfig:"STORE_MAX_AGE" default:"24h" validate:"gte=0s"`

	// Location is resolved by Load from the fields above.
	Location weather.Location `ignored:"true"`
}

// Load reads configuration from the environment and an optional .env file,
// validates it and resolves the tracked location.
func Load() (*AppConfig, error) {
	return load(NewGeocoder)
}

func load(newGeocoder func(apiKey string) Geocoder) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	if (cfg.LocationLat == nil) != (cfg.LocationLon == nil) {
		return nil, errors.New("config: LOCATION_LAT and LOCATION_LON must be set together")
	}

	loc, err := cfg.resolveLocation(newGeocoder(cfg.GeocoderAPIKey))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc
	return &cfg, nil
}

func (c *AppConfig) resolveLocation(geo Geocoder) (weather.Location, error) {
	loc := weather.Location{City: c.LocationCity, Country: c.LocationCountry}

	switch {
	case c.LocationLat != nil:
		loc.Lat, loc.Lon = *c.LocationLat, *c.LocationLon
	case c.LocationCity != "" && geo != nil:
		resolved, err := geo.Geocode(c.LocationCity, c.LocationCountry)
		if err != nil {
			return weather.Location{}, fmt.Errorf("config: resolve %q: %w", c.LocationCity, err)
		}
		loc.Lat, loc.Lon = resolved.Lat, resolved.Lon
	default:
		if c.LocationCity != "" {
			log.Printf("WARN: LOCATION_CITY set without a geocoder key; using default coordinates")
		}
		loc.Lat, loc.Lon = DefaultLat, DefaultLon
	}
	return loc, nil
}
