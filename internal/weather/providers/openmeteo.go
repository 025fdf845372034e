package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-events/internal/logger"
	"github.com/i474232898/weather-events/internal/metrics"
	"github.com/i474232898/weather-events/internal/weather"
)

const (
	OpenMeteoName = "Open-Meteo"

	defaultOpenMeteoForecastURL   = "https://api.open-meteo.com/v1/forecast"
	defaultOpenMeteoAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

// hourlyParam binds a canonical snapshot field to an Open-Meteo hourly variable.
type hourlyParam struct {
	field string
	param string
}

var openMeteoHourly = []hourlyParam{
	{"temp_2m", "temperature_2m"},
	{"apparent_temp", "apparent_temperature"},
	{"dewpoint", "dewpoint_2m"},
	{weather.FieldHumidity, "relativehumidity_2m"},
	{"precip_probability", "precipitation_probability"},
	{weather.FieldPrecipitation, "precipitation"},
	{"rain", "rain"},
	{"showers", "showers"},
	{"snowfall", "snowfall"},
	{"snow_depth", "snow_depth"},
	{"pressure", "pressure_msl"},
	{"surface_pressure", "surface_pressure"},
	{"cloud_cover", "cloudcover"},
	{"cloud_cover_low", "cloudcover_low"},
	{"cloud_cover_mid", "cloudcover_mid"},
	{"cloud_cover_high", "cloudcover_high"},
	{weather.FieldVisibility, "visibility"},
	{"vapor_pressure_deficit", "vapor_pressure_deficit"},
	{"wind_speed_10m", "windspeed_10m"},
	{"wind_speed_80m", "windspeed_80m"},
	{"wind_speed_120m", "windspeed_120m"},
	{"wind_dir_10m", "winddirection_10m"},
	{"wind_gusts", "windgusts_10m"},
	{"shortwave_radiation", "shortwave_radiation"},
	{"direct_radiation", "direct_radiation"},
	{"diffuse_radiation", "diffuse_radiation"},
	{"direct_normal_irradiance", "direct_normal_irradiance"},
	{"global_tilted_irradiance", "global_tilted_irradiance"},
	{"terrestrial_radiation", "terrestrial_radiation"},
	{"soil_temp_0cm", "soil_temperature_0cm"},
	{"soil_temp_6cm", "soil_temperature_6cm"},
	{"soil_temp_18cm", "soil_temperature_18cm"},
	{"soil_temp_54cm", "soil_temperature_54cm"},
	{"soil_moisture_0_1cm", "soil_moisture_0_1cm"},
	{"soil_moisture_1_3cm", "soil_moisture_1_3cm"},
	{"soil_moisture_3_9cm", "soil_moisture_3_9cm"},
	{"soil_moisture_9_27cm", "soil_moisture_9_27cm"},
	{"soil_moisture_27_81cm", "soil_moisture_27_81cm"},
	{"uv_index", "uv_index"},
	{"uv_index_clear_sky", "uv_index_clear_sky"},
	{weather.FieldCape, "cape"},
	{"freezing_level", "freezinglevel_height"},
	{"et0", "et0_fao_evapotranspiration"},
	{"evapotranspiration", "evapotranspiration"},
	{"sunshine_duration", "sunshine_duration"},
	// legacy aliases
	{weather.FieldSoilMoisture, "soil_moisture_0_1cm"},
	{"soil_temp", "soil_temperature_6cm"},
}

var openMeteoDaily = []hourlyParam{
	{"daylight_duration", "daylight_duration"},
	{"daily_sunshine_duration", "sunshine_duration"},
	{"daily_precip_sum", "precipitation_sum"},
	{"daily_rain_sum", "rain_sum"},
	{"daily_snow_sum", "snowfall_sum"},
	{"daily_uv_max", "uv_index_max"},
	{"daily_wind_max", "windspeed_10m_max"},
	{"daily_wind_gusts_max", "windgusts_10m_max"},
	{"daily_et0_sum", "et0_fao_evapotranspiration"},
}

var openMeteoAirQuality = []hourlyParam{
	{"pm10", "pm10"},
	{"pm2_5", "pm2_5"},
	{"carbon_monoxide", "carbon_monoxide"},
	{"nitrogen_dioxide", "nitrogen_dioxide"},
	{"sulphur_dioxide", "sulphur_dioxide"},
	{"ozone", "ozone"},
	{"aerosol_optical_depth", "aerosol_optical_depth"},
	{"dust", "dust"},
}

var openMeteoForecastDaily = []string{
	"weathercode", "temperature_2m_max", "temperature_2m_min",
	"apparent_temperature_max", "apparent_temperature_min",
	"precipitation_sum", "rain_sum", "snowfall_sum", "precipitation_probability_max",
	"windspeed_10m_max", "windgusts_10m_max", "winddirection_10m_dominant",
	"uv_index_max", "sunrise", "sunset",
}

// OpenMeteoConfig configures the Open-Meteo client. Empty URLs select the
// public endpoints.
type OpenMeteoConfig struct {
	HTTP          HTTPClientConfig
	ForecastURL   string
	AirQualityURL string
}

// OpenMeteoProvider serves international points and enriches domestic ones.
type OpenMeteoProvider struct {
	forecastURL   string
	airQualityURL string
	httpCfg       HTTPClientConfig
	circuit       *gobreaker.CircuitBreaker
	aqCircuit     *gobreaker.CircuitBreaker
	log           *logger.Logger
}

func NewOpenMeteoProvider(cfg OpenMeteoConfig, log *logger.Logger) *OpenMeteoProvider {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = defaultOpenMeteoForecastURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = defaultOpenMeteoAirQualityURL
	}
	if cfg.HTTP.Client == nil {
		cfg.HTTP.Client = http.DefaultClient
	}
	if cfg.HTTP.Backoff == (BackoffConfig{}) {
		cfg.HTTP.Backoff = DefaultBackoff
	}

	return &OpenMeteoProvider{
		forecastURL:   cfg.ForecastURL,
		airQualityURL: cfg.AirQualityURL,
		httpCfg:       cfg.HTTP,
		circuit:       newBreaker("openmeteo"),
		aqCircuit:     newBreaker("openmeteo-aq"),
		log:           orNop(log).Named("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return OpenMeteoName
}

type openMeteoForecast struct {
	CurrentWeather struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
		WeatherCode   float64 `json:"weathercode"`
		IsDay         *int    `json:"is_day"`
		Time          string  `json:"time"`
	} `json:"current_weather"`
	Hourly map[string][]*float64 `json:"hourly"`
	Daily  map[string][]any      `json:"daily"`
}

type openMeteoAirQualityResp struct {
	Current struct {
		USAQI *float64 `json:"us_aqi"`
	} `json:"current"`
	Hourly map[string][]*float64 `json:"hourly"`
}

func coordValues(lat, lon float64) url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	v.Set("timezone", "auto")
	return v
}

func paramNames(params []hourlyParam) string {
	seen := make(map[string]struct{}, len(params))
	names := make([]string, 0, len(params))
	for _, p := range params {
		if _, ok := seen[p.param]; ok {
			continue
		}
		seen[p.param] = struct{}{}
		names = append(names, p.param)
	}
	return strings.Join(names, ",")
}

func (p *OpenMeteoProvider) forecastQuery(lat, lon float64) string {
	v := coordValues(lat, lon)
	v.Set("current_weather", "true")
	v.Set("hourly", paramNames(openMeteoHourly)+",weathercode,is_day")
	v.Set("daily", "sunrise,sunset,"+paramNames(openMeteoDaily))
	v.Set("windspeed_unit", "ms")
	return p.forecastURL + "?" + v.Encode()
}

func (p *OpenMeteoProvider) airQualityQuery(lat, lon float64) string {
	v := coordValues(lat, lon)
	v.Set("current", "us_aqi")
	v.Set("hourly", "us_aqi,"+paramNames(openMeteoAirQuality)+",uv_index")
	return p.airQualityURL + "?" + v.Encode()
}

// FetchCurrent retrieves the current-hour snapshot. Forecast and air quality
// are requested concurrently; only the forecast is required.
func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, lat, lon float64) (weather.ProviderResult, error) {
	var (
		fc    openMeteoForecast
		aq    openMeteoAirQualityResp
		aqErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		return getJSON(ctx, p.httpCfg, p.circuit, p.forecastQuery(lat, lon), nil, &fc)
	})
	g.Go(func() error {
		aqErr = getJSON(ctx, p.httpCfg, p.aqCircuit, p.airQualityQuery(lat, lon), nil, &aq)
		return nil
	})
	err := g.Wait()
	metrics.ObserveProvider(OpenMeteoName, err)
	if err != nil {
		return weather.ProviderResult{}, fmt.Errorf("openmeteo forecast: %w", err)
	}
	if aqErr != nil {
		p.log.Warnw("air quality unavailable", "lat", lat, "lon", lon, "error", aqErr)
	}

	return weather.ProviderResult{
		Provider:  OpenMeteoName,
		FetchedAt: time.Now().UTC(),
		Values:    parseOpenMeteo(fc, aq),
	}, nil
}

// currentHour returns the hour-of-day of the provider's current_weather
// timestamp, which is local to the queried point.
func currentHour(ts string) int {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Hour()
		}
	}
	return time.Now().Hour()
}

func hourlyAt(series map[string][]*float64, key string, idx int) float64 {
	vals, ok := series[key]
	if !ok || idx < 0 || idx >= len(vals) || vals[idx] == nil {
		return 0
	}
	return *vals[idx]
}

func dailyFloat(series map[string][]any, key string, idx int) float64 {
	vals, ok := series[key]
	if !ok || idx >= len(vals) {
		return 0
	}
	if f, ok := vals[idx].(float64); ok {
		return f
	}
	return 0
}

func dailyString(series map[string][]any, key string, idx int) string {
	vals, ok := series[key]
	if !ok || idx >= len(vals) {
		return ""
	}
	if s, ok := vals[idx].(string); ok {
		return s
	}
	return ""
}

func parseOpenMeteo(fc openMeteoForecast, aq openMeteoAirQualityResp) weather.Snapshot {
	s := weather.NewSnapshot()
	cw := fc.CurrentWeather
	hour := currentHour(cw.Time)

	s.Set(weather.FieldTemp, cw.Temperature)
	s.Set(weather.FieldWindSpeed, cw.WindSpeed)
	s.Set("wind_dir", cw.WindDirection)
	s.Set(weather.FieldWeatherCode, cw.WeatherCode)
	s.Set(weather.FieldIsDay, cw.IsDay == nil || *cw.IsDay == 1)

	for _, hp := range openMeteoHourly {
		s.Set(hp.field, hourlyAt(fc.Hourly, hp.param, hour))
	}
	for _, dp := range openMeteoDaily {
		s.Set(dp.field, dailyFloat(fc.Daily, dp.param, 0))
	}
	s.Set("sunrise", dailyString(fc.Daily, "sunrise", 0))
	s.Set("sunset", dailyString(fc.Daily, "sunset", 0))

	if aq.Current.USAQI != nil {
		s.Set("us_aqi", *aq.Current.USAQI)
	}
	for _, ap := range openMeteoAirQuality {
		s.Set(ap.field, hourlyAt(aq.Hourly, ap.param, hour))
	}
	return s
}

// FetchForecast returns up to days of daily forecast.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, lat, lon float64, days int) ([]weather.DailyForecast, error) {
	v := coordValues(lat, lon)
	v.Set("daily", strings.Join(openMeteoForecastDaily, ","))
	v.Set("forecast_days", strconv.Itoa(days))
	v.Set("windspeed_unit", "ms")

	var payload struct {
		Daily map[string][]any `json:"daily"`
	}
	err := getJSON(ctx, p.httpCfg, p.circuit, p.forecastURL+"?"+v.Encode(), nil, &payload)
	metrics.ObserveProvider(OpenMeteoName, err)
	if err != nil {
		return nil, fmt.Errorf("openmeteo daily forecast: %w", err)
	}
	return parseForecast(payload.Daily), nil
}

func parseForecast(d map[string][]any) []weather.DailyForecast {
	dates := d["time"]
	out := make([]weather.DailyForecast, 0, len(dates))
	for i := range dates {
		out = append(out, weather.DailyForecast{
			Date:        dailyString(d, "time", i),
			WeatherCode: int(dailyFloat(d, "weathercode", i)),
			TempMax:     dailyFloat(d, "temperature_2m_max", i),
			TempMin:     dailyFloat(d, "temperature_2m_min", i),
			FeelsMax:    dailyFloat(d, "apparent_temperature_max", i),
			FeelsMin:    dailyFloat(d, "apparent_temperature_min", i),
			PrecipSum:   dailyFloat(d, "precipitation_sum", i),
			PrecipProb:  dailyFloat(d, "precipitation_probability_max", i),
			RainSum:     dailyFloat(d, "rain_sum", i),
			SnowSum:     dailyFloat(d, "snowfall_sum", i),
			WindMax:     dailyFloat(d, "windspeed_10m_max", i),
			GustMax:     dailyFloat(d, "windgusts_10m_max", i),
			WindDir:     dailyFloat(d, "winddirection_10m_dominant", i),
			UVMax:       dailyFloat(d, "uv_index_max", i),
			Sunrise:     dailyString(d, "sunrise", i),
			Sunset:      dailyString(d, "sunset", i),
		})
	}
	return out
}
