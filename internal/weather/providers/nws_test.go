package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-events/internal/weather"
)

const observationBody = `{
  "properties": {
    "stationId": "KSTP",
    "timestamp": "2024-06-01T17:53:00+00:00",
    "textDescription": "Light Rain",
    "temperature": {"value": 21.5},
    "dewpoint": {"value": 15.0},
    "windDirection": {"value": 180},
    "windSpeed": {"value": 36},
    "windGust": {"value": 54},
    "barometricPressure": {"value": 101325},
    "visibility": {"value": 16090},
    "precipitationLastHour": {"value": 1.2},
    "relativeHumidity": {"value": 65},
    "windChill": {"value": null},
    "heatIndex": {"value": null},
    "cloudLayers": [{"amount": "FEW"}, {"amount": "BKN"}, {"amount": "SCT"}]
  }
}`

type nwsFixture struct {
	srv         *httptest.Server
	pointsCalls atomic.Int32
	pointsCode  int
}

func newNWSFixture(t *testing.T) *nwsFixture {
	t.Helper()
	f := &nwsFixture{pointsCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		f.pointsCalls.Add(1)
		assert.Equal(t, "application/geo+json", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if f.pointsCode != http.StatusOK {
			w.WriteHeader(f.pointsCode)
			return
		}
		fmt.Fprintf(w, `{"properties": {"gridId": "MPX", "gridX": 107, "gridY": 66,
			"observationStations": "%s/gridpoints/MPX/107,66/stations",
			"relativeLocation": {"properties": {"city": "South St. Paul", "state": "MN"}}}}`, f.srv.URL)
	})
	mux.HandleFunc("/gridpoints/MPX/107,66/stations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features": [
			{"properties": {"stationIdentifier": "KEMPTY"}},
			{"properties": {"stationIdentifier": "KDOWN"}},
			{"properties": {"stationIdentifier": "KSTP"}}]}`)
	})
	mux.HandleFunc("/stations/KEMPTY/observations/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": {"temperature": {"value": null}}}`)
	})
	mux.HandleFunc("/stations/KDOWN/observations/latest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/stations/KSTP/observations/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, observationBody)
	})
	mux.HandleFunc("/alerts/active", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "44.89,-93.02", r.URL.Query().Get("point"))
		fmt.Fprint(w, `{"features": [
			{"properties": {"event": "Severe Thunderstorm Warning", "severity": "Severe",
				"headline": "Severe storms", "description": "Large hail", "instruction": "Shelter"}},
			{"properties": {}}]}`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *nwsFixture) provider(now time.Time) *NWSProvider {
	return NewNWSProvider(NWSConfig{
		HTTP: HTTPClientConfig{
			Client:  f.srv.Client(),
			Backoff: BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond},
		},
		BaseURL:   f.srv.URL,
		UserAgent: "test-agent",
		Now:       func() time.Time { return now },
	}, nil)
}

func TestNWSFetchCurrent(t *testing.T) {
	f := newNWSFixture(t)
	p := f.provider(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	res, err := p.FetchCurrent(context.Background(), 44.89, -93.02)
	require.NoError(t, err)

	v := res.Values
	assert.Equal(t, NWSName, res.Provider)
	assert.Equal(t, "KSTP", v.String("_nws_station"))
	assert.Equal(t, "Light Rain", v.String("_nws_text"))
	assert.Equal(t, 21.5, v.Float(weather.FieldTemp))
	assert.InDelta(t, 10.0, v.Float(weather.FieldWindSpeed), 1e-9)
	assert.InDelta(t, 15.0, v.Float("wind_gusts"), 1e-9)
	assert.InDelta(t, 1013.25, v.Float("pressure"), 1e-9)
	assert.Equal(t, 75.0, v.Float("cloud_cover"))
	assert.Equal(t, 1.2, v.Float(weather.FieldPrecipitation))
	assert.Equal(t, float64(CodeRainSlight), v.Float(weather.FieldWeatherCode))
	assert.True(t, v.Bool(weather.FieldIsDay))
	assert.Equal(t, 21.5, v.Float("apparent_temp"))

	// Every recognized field is present.
	for _, fld := range weather.Fields {
		_, ok := v[fld.Name]
		assert.True(t, ok, fld.Name)
	}
}

func TestNWSCachesGridPoint(t *testing.T) {
	f := newNWSFixture(t)
	p := f.provider(time.Now())

	_, err := p.FetchCurrent(context.Background(), 44.891, -93.022)
	require.NoError(t, err)
	_, err = p.FetchCurrent(context.Background(), 44.889, -93.018)
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.pointsCalls.Load())
}

func TestNWSNightApproximation(t *testing.T) {
	f := newNWSFixture(t)
	p := f.provider(time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC))

	res, err := p.FetchCurrent(context.Background(), 44.89, -93.02)
	require.NoError(t, err)
	assert.False(t, res.Values.Bool(weather.FieldIsDay))
}

func TestNWSNotCoveredIsNotCached(t *testing.T) {
	f := newNWSFixture(t)
	f.pointsCode = http.StatusNotFound
	p := f.provider(time.Now())

	_, err := p.FetchCurrent(context.Background(), 51.5, -0.12)
	require.ErrorIs(t, err, ErrNotCovered)
	_, err = p.FetchCurrent(context.Background(), 51.5, -0.12)
	require.ErrorIs(t, err, ErrNotCovered)

	assert.EqualValues(t, 2, f.pointsCalls.Load())
}

func TestNWSNoValidObservation(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"properties": {"observationStations": "%s/stations"}}`, srv.URL)
	})
	mux.HandleFunc("/stations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features": [{"properties": {"stationIdentifier": "KNULL"}}]}`)
	})
	mux.HandleFunc("/stations/KNULL/observations/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": {"temperature": {"value": null}}}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	p := NewNWSProvider(NWSConfig{
		HTTP:    HTTPClientConfig{Client: srv.Client(), Backoff: BackoffConfig{InitialInterval: time.Millisecond}},
		BaseURL: srv.URL,
	}, nil)

	_, err := p.FetchCurrent(context.Background(), 40, -100)
	require.ErrorIs(t, err, ErrNoObservation)
}

func TestNWSFetchAlerts(t *testing.T) {
	f := newNWSFixture(t)
	p := f.provider(time.Now())

	alerts, err := p.FetchAlerts(context.Background(), 44.89, -93.02)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "Severe Thunderstorm Warning", alerts[0].Event)
	assert.Equal(t, "Severe", alerts[0].Severity)
	assert.Equal(t, "Shelter", alerts[0].Instruction)
	assert.Equal(t, "Unknown Alert", alerts[1].Event)
	assert.Equal(t, "Unknown", alerts[1].Severity)
}
