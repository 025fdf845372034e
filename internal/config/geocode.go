package config

import (
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-events/internal/weather"
)

// Geocoder resolves a city to coordinates.
type Geocoder interface {
	Geocode(city, country string) (weather.Location, error)
}

// GoogleGeocoder resolves cities through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

// geocoder keeps its key in a package variable.
var geocoderMu sync.Mutex

// NewGeocoder returns a Google-backed geocoder, or nil when apiKey is empty.
func NewGeocoder(apiKey string) Geocoder {
	if apiKey == "" {
		return nil
	}
	return &GoogleGeocoder{apiKey: apiKey}
}

func (g *GoogleGeocoder) Geocode(city, country string) (weather.Location, error) {
	geocoderMu.Lock()
	defer geocoderMu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return weather.Location{}, err
	}
	return weather.Location{Lat: loc.Latitude, Lon: loc.Longitude, City: city, Country: country}, nil
}
