package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-events/internal/weather"
)

// series returns 24 hourly values with v at hour and i elsewhere.
func series(hour int, v any) []any {
	out := make([]any, 24)
	for i := range out {
		out[i] = float64(i)
	}
	out[hour] = v
	return out
}

func openMeteoServer(t *testing.T, aqStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ms", q.Get("windspeed_unit"))
		assert.Equal(t, "auto", q.Get("timezone"))

		if q.Get("forecast_days") != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"daily": map[string]any{
					"time":               []any{"2024-06-01", "2024-06-02"},
					"weathercode":        []any{61.0, 3.0},
					"temperature_2m_max": []any{24.5, 22.0},
					"temperature_2m_min": []any{12.0, 11.5},
					"precipitation_sum":  []any{4.2, nil},
					"sunrise":            []any{"2024-06-01T05:30", "2024-06-02T05:29"},
				},
			})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"current_weather": map[string]any{
				"temperature":   18.4,
				"windspeed":     4.5,
				"winddirection": 270.0,
				"weathercode":   2.0,
				"is_day":        0,
				"time":          "2024-06-01T14:00",
			},
			"hourly": map[string]any{
				"relativehumidity_2m": series(14, 72.0),
				"snow_depth":          series(14, nil),
				"visibility":          series(14, 24000.0),
				"cape":                series(14, 850.0),
				"soil_moisture_0_1cm": series(14, 0.31),
			},
			"daily": map[string]any{
				"sunrise":           []any{"2024-06-01T05:30"},
				"precipitation_sum": []any{4.2},
			},
		})
	})
	mux.HandleFunc("/aq", func(w http.ResponseWriter, r *http.Request) {
		if aqStatus != http.StatusOK {
			w.WriteHeader(aqStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"current": map[string]any{"us_aqi": 42.0},
			"hourly":  map[string]any{"pm2_5": series(14, 8.5)},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenMeteo(srv *httptest.Server) *OpenMeteoProvider {
	return NewOpenMeteoProvider(OpenMeteoConfig{
		HTTP: HTTPClientConfig{
			Client:  srv.Client(),
			Backoff: BackoffConfig{InitialInterval: time.Millisecond},
		},
		ForecastURL:   srv.URL + "/forecast",
		AirQualityURL: srv.URL + "/aq",
	}, nil)
}

func TestOpenMeteoFetchCurrent(t *testing.T) {
	srv := openMeteoServer(t, http.StatusOK)
	p := newTestOpenMeteo(srv)

	res, err := p.FetchCurrent(context.Background(), 52.52, 13.41)
	require.NoError(t, err)

	v := res.Values
	assert.Equal(t, OpenMeteoName, res.Provider)
	assert.Equal(t, 18.4, v.Float(weather.FieldTemp))
	assert.Equal(t, 4.5, v.Float(weather.FieldWindSpeed))
	assert.Equal(t, 2.0, v.Float(weather.FieldWeatherCode))
	assert.False(t, v.Bool(weather.FieldIsDay))

	// Values are read at the hour of current_weather.time.
	assert.Equal(t, 72.0, v.Float(weather.FieldHumidity))
	assert.Equal(t, 24000.0, v.Float(weather.FieldVisibility))
	assert.Equal(t, 850.0, v.Float(weather.FieldCape))
	assert.Equal(t, 0.31, v.Float(weather.FieldSoilMoisture))

	// Null hourly values fall back to the default.
	assert.Equal(t, 0.0, v.Float("snow_depth"))

	assert.Equal(t, "2024-06-01T05:30", v.String("sunrise"))
	assert.Equal(t, 4.2, v.Float("daily_precip_sum"))
	assert.Equal(t, 42.0, v.Float("us_aqi"))
	assert.Equal(t, 8.5, v.Float("pm2_5"))
}

func TestOpenMeteoAirQualityFailureIsTolerated(t *testing.T) {
	srv := openMeteoServer(t, http.StatusInternalServerError)
	p := newTestOpenMeteo(srv)

	res, err := p.FetchCurrent(context.Background(), 52.52, 13.41)
	require.NoError(t, err)
	assert.Equal(t, 18.4, res.Values.Float(weather.FieldTemp))
	assert.Equal(t, 0.0, res.Values.Float("us_aqi"))
	assert.Equal(t, 0.0, res.Values.Float("pm2_5"))
}

func TestOpenMeteoForecastFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestOpenMeteo(srv).FetchCurrent(context.Background(), 0, 0)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestOpenMeteoFetchForecast(t *testing.T) {
	srv := openMeteoServer(t, http.StatusOK)
	p := newTestOpenMeteo(srv)

	days, err := p.FetchForecast(context.Background(), 52.52, 13.41, 2)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2024-06-01", days[0].Date)
	assert.Equal(t, 61, days[0].WeatherCode)
	assert.Equal(t, 24.5, days[0].TempMax)
	assert.Equal(t, 4.2, days[0].PrecipSum)
	assert.Equal(t, "2024-06-01T05:30", days[0].Sunrise)

	assert.Equal(t, 3, days[1].WeatherCode)
	assert.Equal(t, 0.0, days[1].PrecipSum)
	assert.Equal(t, "", days[1].Sunset)
}
