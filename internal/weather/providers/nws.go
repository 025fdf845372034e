package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/metrics"
	"github.com/i474232898/weather-events/internal/weather"
)

const (
	NWSName = "NWS"

	defaultNWSBaseURL   = "https://api.weather.gov"
	defaultNWSUserAgent = "weather-events/1.0 (github.com/i474232898/weather-events)"
	maxNWSStations      = 5
)

var (
	// ErrNotCovered means the point lies outside the service's grid.
	ErrNotCovered = errors.New("nws: location not covered")
	// ErrNoStations means the grid point lists no observation stations.
	ErrNoStations = errors.New("nws: no observation stations")
	// ErrNoObservation means no station returned a usable observation.
	ErrNoObservation = errors.New("nws: no valid observation from any station")
)

// NWSConfig configures the NWS client.
type NWSConfig struct {
	HTTP      HTTPClientConfig
	BaseURL   string
	UserAgent string
	// Now drives the day/night approximation. Defaults to time.Now.
	Now func() time.Time
}

// nwsPoint is the cached grid metadata for one rounded coordinate.
type nwsPoint struct {
	GridID      string
	GridX       int
	GridY       int
	City        string
	State       string
	TimeZone    string
	StationsURL string
	Stations    []string
}

// NWSProvider is the domestic primary and the only alert source.
type NWSProvider struct {
	baseURL   string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
	now       func() time.Time
	log       *logger.Logger

	mu     sync.RWMutex
	points map[string]nwsPoint
}

func NewNWSProvider(cfg NWSConfig, log *logger.Logger) *NWSProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNWSBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultNWSUserAgent
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HTTP.Client == nil {
		cfg.HTTP.Client = http.DefaultClient
	}
	if cfg.HTTP.Backoff == (BackoffConfig{}) {
		cfg.HTTP.Backoff = DefaultBackoff
	}

	return &NWSProvider{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpCfg:   cfg.HTTP,
		circuit:   newBreaker("nws"),
		now:       cfg.Now,
		log:       orNop(log).Named("nws"),
		points:    make(map[string]nwsPoint),
	}
}

func (p *NWSProvider) Name() string {
	return NWSName
}

func (p *NWSProvider) headers() map[string]string {
	return map[string]string{
		"User-Agent": p.userAgent,
		"Accept":     "application/geo+json",
	}
}

func pointKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

func coordPath(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

func (p *NWSProvider) cachedPoint(key string) (nwsPoint, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pt, ok := p.points[key]
	return pt, ok
}

func (p *NWSProvider) storePoint(key string, pt nwsPoint) {
	p.mu.Lock()
	p.points[key] = pt
	p.mu.Unlock()
}

func (p *NWSProvider) gridPoint(ctx context.Context, lat, lon float64) (nwsPoint, error) {
	key := pointKey(lat, lon)
	if pt, ok := p.cachedPoint(key); ok {
		return pt, nil
	}

	var payload struct {
		Properties struct {
			GridID              string `json:"gridId"`
			GridX               int    `json:"gridX"`
			GridY               int    `json:"gridY"`
			ObservationStations string `json:"observationStations"`
			TimeZone            string `json:"timeZone"`
			RelativeLocation    struct {
				Properties struct {
					City  string `json:"city"`
					State string `json:"state"`
				} `json:"properties"`
			} `json:"relativeLocation"`
		} `json:"properties"`
	}

	err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/points/"+coordPath(lat, lon), p.headers(), &payload)
	if IsStatus(err, http.StatusNotFound) {
		return nwsPoint{}, ErrNotCovered
	}
	if err != nil {
		return nwsPoint{}, fmt.Errorf("nws points: %w", err)
	}

	props := payload.Properties
	if props.ObservationStations == "" {
		return nwsPoint{}, ErrNoStations
	}
	return nwsPoint{
		GridID:      props.GridID,
		GridX:       props.GridX,
		GridY:       props.GridY,
		City:        props.RelativeLocation.Properties.City,
		State:       props.RelativeLocation.Properties.State,
		TimeZone:    props.TimeZone,
		StationsURL: props.ObservationStations,
	}, nil
}

func (p *NWSProvider) stations(ctx context.Context, stationsURL string) ([]string, error) {
	var payload struct {
		Features []struct {
			Properties struct {
				StationIdentifier string `json:"stationIdentifier"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, stationsURL, p.headers(), &payload); err != nil {
		return nil, fmt.Errorf("nws stations: %w", err)
	}

	ids := make([]string, 0, maxNWSStations)
	for _, f := range payload.Features {
		if len(ids) == maxNWSStations {
			break
		}
		if id := f.Properties.StationIdentifier; id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoStations
	}
	return ids, nil
}

// resolve returns grid metadata with its station list, using the cache when
// possible. Only complete lookups are cached.
func (p *NWSProvider) resolve(ctx context.Context, lat, lon float64) (nwsPoint, error) {
	key := pointKey(lat, lon)
	if pt, ok := p.cachedPoint(key); ok && len(pt.Stations) > 0 {
		return pt, nil
	}

	pt, err := p.gridPoint(ctx, lat, lon)
	if err != nil {
		return nwsPoint{}, err
	}
	ids, err := p.stations(ctx, pt.StationsURL)
	if err != nil {
		return nwsPoint{}, err
	}
	pt.Stations = ids
	p.storePoint(key, pt)
	return pt, nil
}

// nwsValue is the {value, unitCode} wrapper every observation quantity uses.
type nwsValue struct {
	Value *float64 `json:"value"`
}

func (v nwsValue) or(def float64) float64 {
	if v.Value == nil {
		return def
	}
	return *v.Value
}

type nwsObservation struct {
	Properties struct {
		StationID             string   `json:"stationId"`
		Timestamp             string   `json:"timestamp"`
		TextDescription       string   `json:"textDescription"`
		Temperature           nwsValue `json:"temperature"`
		Dewpoint              nwsValue `json:"dewpoint"`
		WindDirection         nwsValue `json:"windDirection"`
		WindSpeed             nwsValue `json:"windSpeed"`
		WindGust              nwsValue `json:"windGust"`
		BarometricPressure    nwsValue `json:"barometricPressure"`
		Visibility            nwsValue `json:"visibility"`
		PrecipitationLastHour nwsValue `json:"precipitationLastHour"`
		RelativeHumidity      nwsValue `json:"relativeHumidity"`
		WindChill             nwsValue `json:"windChill"`
		HeatIndex             nwsValue `json:"heatIndex"`
		CloudLayers           []struct {
			Amount string `json:"amount"`
		} `json:"cloudLayers"`
	} `json:"properties"`
}

func (p *NWSProvider) latestObservation(ctx context.Context, station string) (nwsObservation, error) {
	var obs nwsObservation
	u := p.baseURL + "/stations/" + url.PathEscape(station) + "/observations/latest"
	err := getJSON(ctx, p.httpCfg, p.circuit, u, p.headers(), &obs)
	return obs, err
}

// FetchCurrent returns the first valid observation among the nearest
// stations. Stations are tried in distance order; a station without a
// temperature is skipped.
func (p *NWSProvider) FetchCurrent(ctx context.Context, lat, lon float64) (weather.ProviderResult, error) {
	res, err := p.fetchCurrent(ctx, lat, lon)
	metrics.ObserveProvider(NWSName, err)
	return res, err
}

func (p *NWSProvider) fetchCurrent(ctx context.Context, lat, lon float64) (weather.ProviderResult, error) {
	pt, err := p.resolve(ctx, lat, lon)
	if err != nil {
		return weather.ProviderResult{}, err
	}

	for _, id := range pt.Stations {
		obs, err := p.latestObservation(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return weather.ProviderResult{}, ctx.Err()
			}
			p.log.Debugw("observation unavailable", "station", id, "error", err)
			continue
		}
		if obs.Properties.Temperature.Value == nil {
			p.log.Debugw("observation has no temperature", "station", id)
			continue
		}
		if obs.Properties.StationID == "" {
			obs.Properties.StationID = id
		}
		p.log.Debugw("using station", "station", id, "city", pt.City, "state", pt.State)
		return weather.ProviderResult{
			Provider:  NWSName,
			FetchedAt: time.Now().UTC(),
			Values:    parseObservation(obs, p.now()),
		}, nil
	}
	return weather.ProviderResult{}, ErrNoObservation
}

func parseObservation(obs nwsObservation, now time.Time) weather.Snapshot {
	props := obs.Properties
	s := weather.NewSnapshot()

	temp := props.Temperature.or(0)
	windMS := props.WindSpeed.or(0) / 3.6
	gustMS := props.WindGust.or(0) / 3.6
	pressure := props.BarometricPressure.or(0) / 100
	humidity := props.RelativeHumidity.or(0)
	precip := props.PrecipitationLastHour.or(0)
	windDir := props.WindDirection.or(0)

	cloud := 0.0
	for _, layer := range props.CloudLayers {
		if v := cloudAmounts[layer.Amount]; v > cloud {
			cloud = v
		}
	}

	s.Set(weather.FieldTemp, temp)
	s.Set("temp_2m", temp)
	s.Set("apparent_temp", ApparentTemperature(temp, props.WindChill.Value, props.HeatIndex.Value, windMS, humidity))
	s.Set("dewpoint", props.Dewpoint.or(0))
	s.Set(weather.FieldHumidity, humidity)

	s.Set(weather.FieldWindSpeed, windMS)
	s.Set("wind_speed_10m", windMS)
	s.Set("wind_speed_80m", windMS)
	s.Set("wind_speed_120m", windMS)
	s.Set("wind_dir", windDir)
	s.Set("wind_dir_10m", windDir)
	s.Set("wind_gusts", gustMS)

	s.Set(weather.FieldPrecipitation, precip)
	s.Set("rain", precip)

	s.Set("pressure", pressure)
	s.Set("surface_pressure", pressure)
	s.Set("cloud_cover", cloud)
	s.Set("cloud_cover_low", cloud)
	s.Set(weather.FieldVisibility, props.Visibility.or(0))

	s.Set(weather.FieldWeatherCode, TextToWeatherCode(props.TextDescription))
	hour := now.Hour()
	s.Set(weather.FieldIsDay, hour >= 6 && hour < 20)

	s.Set("_nws_timestamp", props.Timestamp)
	s.Set("_nws_station", props.StationID)
	s.Set("_nws_text", props.TextDescription)
	return s
}

// FetchAlerts returns active alerts covering the point.
func (p *NWSProvider) FetchAlerts(ctx context.Context, lat, lon float64) ([]weather.Alert, error) {
	var payload struct {
		Features []struct {
			Properties struct {
				Event       string `json:"event"`
				Severity    string `json:"severity"`
				Description string `json:"description"`
				Headline    string `json:"headline"`
				Instruction string `json:"instruction"`
			} `json:"properties"`
		} `json:"features"`
	}

	u := p.baseURL + "/alerts/active?point=" + coordPath(lat, lon)
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, p.headers(), &payload); err != nil {
		return nil, fmt.Errorf("nws alerts: %w", err)
	}

	alerts := make([]weather.Alert, 0, len(payload.Features))
	for _, f := range payload.Features {
		a := weather.Alert{
			Event:       f.Properties.Event,
			Severity:    f.Properties.Severity,
			Description: f.Properties.Description,
			Headline:    f.Properties.Headline,
			Instruction: f.Properties.Instruction,
		}
		if a.Event == "" {
			a.Event = "Unknown Alert"
		}
		if a.Severity == "" {
			a.Severity = "Unknown"
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
