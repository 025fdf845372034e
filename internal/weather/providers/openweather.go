package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/metrics"
	"github.com/i474232898/weather-events/internal/weather"
)

const (
	OpenWeatherName = "OpenWeather"

	defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"
)

// ErrNoAPIKey is returned when the provider is called without a key.
var ErrNoAPIKey = errors.New("openweather api key is not configured")

// OpenWeatherProvider is the last-resort fallback for any point.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     *logger.Logger
}

func NewOpenWeatherProvider(cfg HTTPClientConfig, apiKey, baseURL string, log *logger.Logger) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = defaultOpenWeatherURL
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}

	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreaker("openweather"),
		log:     orNop(log).Named("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return OpenWeatherName
}

// Enabled reports whether a key is configured.
func (p *OpenWeatherProvider) Enabled() bool {
	return p.apiKey != ""
}

type openWeatherResp struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
		GrndLevel float64 `json:"grnd_level"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneH float64 `json:"1h"`
	} `json:"rain"`
	Snow struct {
		OneH float64 `json:"1h"`
	} `json:"snow"`
	Weather []struct {
		ID   int    `json:"id"`
		Icon string `json:"icon"`
	} `json:"weather"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, lat, lon float64) (weather.ProviderResult, error) {
	if p.apiKey == "" {
		return weather.ProviderResult{}, ErrNoAPIKey
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("units", "metric")
	values.Set("appid", p.apiKey)

	var payload openWeatherResp
	err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), nil, &payload)
	metrics.ObserveProvider(OpenWeatherName, err)
	if err != nil {
		return weather.ProviderResult{}, fmt.Errorf("openweather: %w", err)
	}

	fetched := time.Unix(payload.Dt, 0).UTC()
	if payload.Dt == 0 {
		fetched = time.Now().UTC()
	}

	return weather.ProviderResult{
		Provider:  OpenWeatherName,
		FetchedAt: fetched,
		Values:    parseOpenWeather(payload, fetched),
	}, nil
}

func parseOpenWeather(r openWeatherResp, at time.Time) weather.Snapshot {
	s := weather.NewSnapshot()

	s.Set(weather.FieldTemp, r.Main.Temp)
	s.Set("temp_2m", r.Main.Temp)
	s.Set("apparent_temp", r.Main.FeelsLike)
	s.Set(weather.FieldHumidity, r.Main.Humidity)
	s.Set("pressure", r.Main.Pressure)
	s.Set("surface_pressure", r.Main.GrndLevel)
	s.Set(weather.FieldVisibility, r.Visibility)
	s.Set(weather.FieldWindSpeed, r.Wind.Speed)
	s.Set("wind_speed_10m", r.Wind.Speed)
	s.Set("wind_dir", r.Wind.Deg)
	s.Set("wind_dir_10m", r.Wind.Deg)
	s.Set("wind_gusts", r.Wind.Gust)
	s.Set("cloud_cover", r.Clouds.All)
	s.Set("rain", r.Rain.OneH)
	s.Set("snowfall", r.Snow.OneH)
	s.Set(weather.FieldPrecipitation, r.Rain.OneH+r.Snow.OneH)

	code := CodePartlyCloudy
	isDay := true
	if len(r.Weather) > 0 {
		code = OpenWeatherIDToWeatherCode(r.Weather[0].ID)
		// Icon suffix is "d" or "n".
		if icon := r.Weather[0].Icon; icon != "" {
			isDay = icon[len(icon)-1] != 'n'
		}
	} else if r.Sys.Sunrise != 0 && r.Sys.Sunset != 0 {
		isDay = at.Unix() >= r.Sys.Sunrise && at.Unix() < r.Sys.Sunset
	}
	s.Set(weather.FieldWeatherCode, code)
	s.Set(weather.FieldIsDay, isDay)

	if r.Sys.Sunrise != 0 {
		s.Set("sunrise", time.Unix(r.Sys.Sunrise, 0).UTC().Format("2006-01-02T15:04"))
	}
	if r.Sys.Sunset != 0 {
		s.Set("sunset", time.Unix(r.Sys.Sunset, 0).UTC().Format("2006-01-02T15:04"))
	}
	return s
}
