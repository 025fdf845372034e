package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	values   Snapshot
	err      error
	disabled bool
	alerts   []Alert
	forecast []DailyForecast
	calls    atomic.Int32
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Enabled() bool { return !f.disabled }

func (f *fakeProvider) FetchCurrent(ctx context.Context, lat, lon float64) (ProviderResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return ProviderResult{}, f.err
	}
	return ProviderResult{Provider: f.name, FetchedAt: time.Now(), Values: f.values.Clone()}, nil
}

func (f *fakeProvider) FetchAlerts(ctx context.Context, lat, lon float64) ([]Alert, error) {
	return f.alerts, f.err
}

func (f *fakeProvider) FetchForecast(ctx context.Context, lat, lon float64, days int) ([]DailyForecast, error) {
	if days < len(f.forecast) {
		return f.forecast[:days], nil
	}
	return f.forecast, nil
}

type fakeGrid struct {
	values map[string]float64
	err    error
	calls  atomic.Int32
}

func (f *fakeGrid) FetchSupplemental(ctx context.Context, lat, lon float64) (map[string]float64, error) {
	f.calls.Add(1)
	return f.values, f.err
}

type fakeStore struct {
	mu    sync.Mutex
	saved []StoredSnapshot
}

func (s *fakeStore) SaveSnapshot(loc Location, snap StoredSnapshot) {
	s.mu.Lock()
	s.saved = append(s.saved, snap)
	s.mu.Unlock()
}

func (s *fakeStore) GetLatest(loc Location) (StoredSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return StoredSnapshot{}, errors.New("empty")
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) GetRange(loc Location, from, to time.Time) ([]StoredSnapshot, error) {
	return nil, nil
}

func snapshotWith(kv map[string]any) Snapshot {
	s := NewSnapshot()
	for k, v := range kv {
		s.Set(k, v)
	}
	return s
}

type harness struct {
	nws, om, ow *fakeProvider
	grid        *fakeGrid
	store       *fakeStore
	svc         *Service
}

func newHarness() *harness {
	h := &harness{
		nws: &fakeProvider{name: "NWS", values: snapshotWith(map[string]any{
			FieldTemp: 21.0, FieldHumidity: 60.0, FieldWindSpeed: 0.0, FieldCape: 100.0,
		})},
		om: &fakeProvider{name: "Open-Meteo", values: snapshotWith(map[string]any{
			FieldTemp: 25.0, FieldHumidity: 40.0, FieldWindSpeed: 4.5, "us_aqi": 33.0, FieldCape: 700.0,
		})},
		ow:    &fakeProvider{name: "OpenWeather", values: snapshotWith(map[string]any{FieldTemp: 19.0})},
		grid:  &fakeGrid{values: map[string]float64{"gfs_cape": 1800, "gfs_soil_moisture": 0.31}},
		store: &fakeStore{},
	}
	h.svc = NewService(h.store, Providers{
		Domestic:      h.nws,
		International: h.om,
		Fallback:      h.ow,
		Grid:          h.grid,
	}, nil)
	return h
}

const (
	domesticLat, domesticLon = 44.89, -93.02
	foreignLat, foreignLon   = 52.52, 13.41
)

func TestGetWeatherDomesticEnrichedAndGridded(t *testing.T) {
	h := newHarness()

	snap, err := h.svc.GetWeather(context.Background(), domesticLat, domesticLon)
	require.NoError(t, err)

	assert.Equal(t, 21.0, snap.Float(FieldTemp), "core fields come from the primary")
	assert.Equal(t, 60.0, snap.Float(FieldHumidity))
	assert.Equal(t, 4.5, snap.Float(FieldWindSpeed), "null primary wind is filled by enrichment")
	assert.Equal(t, 33.0, snap.Float("us_aqi"))
	assert.Equal(t, 1800.0, snap.Float(FieldCape), "grid cape overrides enrichment and primary")
	assert.Equal(t, 1800.0, snap.Float("gfs_cape"))
	assert.Equal(t, 0.31, snap.Float(FieldSoilMoisture))
	assert.Equal(t, "NWS", snap.String(FieldSource))
	assert.Equal(t, domesticLat, snap.Float(FieldLatitude))
	assert.Equal(t, domesticLon, snap.Float(FieldLongitude))
	assert.Equal(t, "NWS", h.svc.LastSource())
	assert.EqualValues(t, 0, h.ow.calls.Load())
}

func TestGetWeatherDomesticFallsBackWithoutEnrichment(t *testing.T) {
	h := newHarness()
	h.nws.err = errors.New("points 500")

	snap, err := h.svc.GetWeather(context.Background(), domesticLat, domesticLon)
	require.NoError(t, err)

	assert.Equal(t, "Open-Meteo", snap.String(FieldSource))
	assert.Equal(t, 25.0, snap.Float(FieldTemp))
	assert.Equal(t, 700.0, snap.Float(FieldCape))
	assert.EqualValues(t, 1, h.om.calls.Load())
	assert.EqualValues(t, 0, h.grid.calls.Load())
}

func TestGetWeatherInternationalSkipsDomestic(t *testing.T) {
	h := newHarness()

	snap, err := h.svc.GetWeather(context.Background(), foreignLat, foreignLon)
	require.NoError(t, err)

	assert.Equal(t, "Open-Meteo", snap.String(FieldSource))
	assert.EqualValues(t, 0, h.nws.calls.Load())
	assert.EqualValues(t, 0, h.grid.calls.Load())
}

func TestGetWeatherLastResortFallback(t *testing.T) {
	h := newHarness()
	h.om.err = errors.New("timeout")

	snap, err := h.svc.GetWeather(context.Background(), foreignLat, foreignLon)
	require.NoError(t, err)
	assert.Equal(t, "OpenWeather", snap.String(FieldSource))
	assert.Equal(t, "OpenWeather", h.svc.LastSource())
}

func TestGetWeatherSkipsDisabledFallback(t *testing.T) {
	h := newHarness()
	h.om.err = errors.New("timeout")
	h.ow.disabled = true

	_, err := h.svc.GetWeather(context.Background(), foreignLat, foreignLon)
	require.ErrorIs(t, err, ErrNoData)
	assert.EqualValues(t, 0, h.ow.calls.Load())
}

func TestGetWeatherOptionalSourcesFail(t *testing.T) {
	h := newHarness()
	h.om.err = errors.New("enrichment down")
	h.grid.err = errors.New("nomads down")

	snap, err := h.svc.GetWeather(context.Background(), domesticLat, domesticLon)
	require.NoError(t, err)

	assert.Equal(t, "NWS", snap.String(FieldSource))
	assert.Equal(t, 0.0, snap.Float(FieldWindSpeed))
	assert.Equal(t, 100.0, snap.Float(FieldCape))
}

func TestPollKeepsLastSnapshotOnFailure(t *testing.T) {
	h := newHarness()
	loc := Location{Lat: domesticLat, Lon: domesticLon}

	first, err := h.svc.Poll(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "NWS", first.Source)

	h.nws.err = errors.New("down")
	h.om.err = errors.New("down")
	h.ow.err = errors.New("down")

	_, err = h.svc.Poll(context.Background(), loc)
	require.ErrorIs(t, err, ErrNoData)

	latest, err := h.svc.GetLatest(loc)
	require.NoError(t, err)
	assert.Equal(t, first.Timestamp, latest.Timestamp)
	assert.Len(t, h.store.saved, 1)
}

func TestGetAlerts(t *testing.T) {
	h := newHarness()
	h.nws.alerts = []Alert{{Event: "Heat Advisory", Severity: "Moderate"}}

	alerts, err := h.svc.GetAlerts(context.Background(), domesticLat, domesticLon)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Heat Advisory", alerts[0].Event)

	alerts, err = h.svc.GetAlerts(context.Background(), foreignLat, foreignLon)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetForecast(t *testing.T) {
	h := newHarness()
	h.om.forecast = []DailyForecast{{Date: "2024-06-01"}, {Date: "2024-06-02"}, {Date: "2024-06-03"}}

	days, err := h.svc.GetForecast(context.Background(), foreignLat, foreignLon, 2)
	require.NoError(t, err)
	assert.Len(t, days, 2)

	_, err = h.svc.GetForecast(context.Background(), foreignLat, foreignLon, 0)
	assert.Error(t, err)
}
