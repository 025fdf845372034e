package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-events/internal/weather"
)

type fakeGeocoder struct {
	loc   weather.Location
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(city, country string) (weather.Location, error) {
	f.calls++
	return f.loc, f.err
}

func noGeocoder(string) Geocoder { return nil }

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(noGeocoder)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, 1.0, cfg.EventFrequencyMultiplier)
	assert.True(t, cfg.GFSEnabled)
	assert.Equal(t, DefaultLat, cfg.Location.Lat)
	assert.Equal(t, DefaultLon, cfg.Location.Lon)
}

func TestLoadCoordinates(t *testing.T) {
	t.Setenv("LOCATION_LAT", "44.89")
	t.Setenv("LOCATION_LON", "-93.02")
	t.Setenv("LOCATION_CITY", "Saint Paul")

	geo := &fakeGeocoder{}
	cfg, err := load(func(string) Geocoder { return geo })
	require.NoError(t, err)

	assert.Equal(t, 44.89, cfg.Location.Lat)
	assert.Equal(t, -93.02, cfg.Location.Lon)
	assert.Equal(t, "Saint Paul", cfg.Location.City)
	assert.Zero(t, geo.calls, "explicit coordinates skip geocoding")
}

func TestLoadResolvesCity(t *testing.T) {
	t.Setenv("LOCATION_CITY", "Berlin")
	t.Setenv("LOCATION_COUNTRY", "DE")
	t.Setenv("GEOCODER_API_KEY", "k")

	var gotKey string
	geo := &fakeGeocoder{loc: weather.Location{Lat: 52.52, Lon: 13.41}}
	cfg, err := load(func(key string) Geocoder {
		gotKey = key
		return geo
	})
	require.NoError(t, err)

	assert.Equal(t, "k", gotKey)
	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, weather.Location{Lat: 52.52, Lon: 13.41, City: "Berlin", Country: "DE"}, cfg.Location)
}

func TestLoadGeocodeFailure(t *testing.T) {
	t.Setenv("LOCATION_CITY", "Atlantis")
	_, err := load(func(string) Geocoder { return &fakeGeocoder{err: errors.New("ZERO_RESULTS")} })
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"multiplier too high": {"EVENT_FREQUENCY_MULTIPLIER": "3.5"},
		"multiplier too low":  {"EVENT_FREQUENCY_MULTIPLIER": "0.5"},
		"latitude range":      {"LOCATION_LAT": "91", "LOCATION_LON": "0"},
		"lat without lon":     {"LOCATION_LAT": "10"},
		"bad log level":       {"LOG_LEVEL": "verbose"},
		"zero poll interval":  {"POLL_INTERVAL": "0s"},
		"unparsable duration": {"TICK_INTERVAL": "soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := load(noGeocoder)
			assert.Error(t, err)
		})
	}
}

func TestNewGeocoderWithoutKey(t *testing.T) {
	assert.Nil(t, NewGeocoder(""))
	assert.NotNil(t, NewGeocoder("key"))
}
