package weather

import (
	"fmt"
	"time"
)

// Field names referenced directly by the merge policy and the event engine.
const (
	FieldTemp          = "temp"
	FieldWeatherCode   = "weather_code"
	FieldIsDay         = "is_day"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
	FieldHumidity      = "humidity"
	FieldPrecipitation = "precipitation"
	FieldVisibility    = "visibility"
	FieldWindSpeed     = "wind_speed"
	FieldCape          = "cape"
	FieldCin           = "cin"
	FieldSoilMoisture  = "soil_moisture"
	FieldSource        = "_source"
)

// FieldKind is the value type a recognized snapshot field carries.
type FieldKind int

const (
	KindFloat FieldKind = iota
	KindString
	KindBool
)

// Field describes one recognized snapshot key.
type Field struct {
	Name string
	Kind FieldKind
}

func floats(names ...string) []Field {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: n, Kind: KindFloat})
	}
	return out
}

func concat(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Fields is the registry of every key a canonical snapshot carries.
var Fields = concat(
	// core
	floats(FieldTemp, FieldWindSpeed, "wind_dir", FieldWeatherCode, FieldLatitude, FieldLongitude),
	[]Field{{Name: FieldIsDay, Kind: KindBool}},
	// temperature & humidity
	floats("temp_2m", "apparent_temp", "dewpoint", FieldHumidity),
	// precipitation
	floats("precip_probability", FieldPrecipitation, "rain", "showers", "snowfall", "snow_depth"),
	// atmosphere
	floats("pressure", "surface_pressure", "cloud_cover", "cloud_cover_low", "cloud_cover_mid",
		"cloud_cover_high", FieldVisibility, "vapor_pressure_deficit"),
	// wind
	floats("wind_speed_10m", "wind_speed_80m", "wind_speed_120m", "wind_dir_10m", "wind_gusts"),
	// solar
	floats("shortwave_radiation", "direct_radiation", "diffuse_radiation", "direct_normal_irradiance",
		"global_tilted_irradiance", "terrestrial_radiation"),
	// soil
	floats("soil_temp_0cm", "soil_temp_6cm", "soil_temp_18cm", "soil_temp_54cm",
		"soil_moisture_0_1cm", "soil_moisture_1_3cm", "soil_moisture_3_9cm", "soil_moisture_9_27cm",
		"soil_moisture_27_81cm"),
	// advanced
	floats("uv_index", "uv_index_clear_sky", FieldCape, FieldCin, "freezing_level", "et0",
		"evapotranspiration", "sunshine_duration"),
	// air quality
	floats("us_aqi", "pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide", "sulphur_dioxide",
		"ozone", "aerosol_optical_depth", "dust"),
	// daily
	[]Field{{Name: "sunrise", Kind: KindString}, {Name: "sunset", Kind: KindString}},
	floats("daylight_duration", "daily_sunshine_duration", "daily_precip_sum", "daily_rain_sum",
		"daily_snow_sum", "daily_uv_max", "daily_wind_max", "daily_wind_gusts_max", "daily_et0_sum"),
	// legacy aliases
	floats(FieldSoilMoisture, "soil_temp"),
	// grid diagnostics
	floats("gfs_cape", "gfs_cin", "gfs_soil_moisture", "gfs_soil_temp", "gfs_visibility",
		"gfs_gust", "gfs_snow_depth", "gfs_precip_rate"),
	// provider diagnostics
	[]Field{
		{Name: "_nws_station", Kind: KindString},
		{Name: "_nws_timestamp", Kind: KindString},
		{Name: "_nws_text", Kind: KindString},
		{Name: FieldSource, Kind: KindString},
	},
)

var fieldKinds = func() map[string]FieldKind {
	m := make(map[string]FieldKind, len(Fields))
	for _, f := range Fields {
		m[f.Name] = f.Kind
	}
	return m
}()

// Snapshot is the canonical flat weather state. Values are float64, string
// or bool. Snapshots built with NewSnapshot carry every recognized field.
type Snapshot map[string]any

// NewSnapshot returns a snapshot with every recognized field set to its default.
func NewSnapshot() Snapshot {
	s := make(Snapshot, len(Fields))
	for _, f := range Fields {
		s[f.Name] = defaultFor(f.Kind)
	}
	return s
}

func defaultFor(k FieldKind) any {
	switch k {
	case KindString:
		return ""
	case KindBool:
		return false
	default:
		return 0.0
	}
}

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Set stores v under key, normalizing integer types to float64.
func (s Snapshot) Set(key string, v any) {
	switch n := v.(type) {
	case int:
		s[key] = float64(n)
	case int64:
		s[key] = float64(n)
	case float32:
		s[key] = float64(n)
	default:
		s[key] = v
	}
}

// Float returns the numeric value at key, or 0 when absent or non-numeric.
func (s Snapshot) Float(key string) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// String returns the string value at key, or "" when absent.
func (s Snapshot) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean value at key, or false when absent.
func (s Snapshot) Bool(key string) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return false
}

// Fill adds defaults for any recognized field missing from s.
func (s Snapshot) Fill() Snapshot {
	for _, f := range Fields {
		if _, ok := s[f.Name]; !ok {
			s[f.Name] = defaultFor(f.Kind)
		}
	}
	return s
}

// IsRecognized reports whether key is part of the canonical field set.
func IsRecognized(key string) bool {
	_, ok := fieldKinds[key]
	return ok
}

// isEmptyValue treats zero numbers, empty strings, false and nil as "no data".
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return x == 0
	case float32:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case string:
		return x == ""
	case bool:
		return !x
	default:
		return false
	}
}

// Location is a point the service tracks. City/Country are optional labels.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return fmt.Sprintf("%.2f,%.2f", l.Lat, l.Lon)
}

// Alert is one entry of the official alerts feed.
type Alert struct {
	Event       string `json:"event"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Headline    string `json:"headline"`
	Instruction string `json:"instruction"`
}

// DailyForecast is one day of the international provider's forecast.
type DailyForecast struct {
	Date        string  `json:"date"`
	WeatherCode int     `json:"weatherCode"`
	TempMax     float64 `json:"tempMax"`
	TempMin     float64 `json:"tempMin"`
	FeelsMax    float64 `json:"feelsMax"`
	FeelsMin    float64 `json:"feelsMin"`
	PrecipSum   float64 `json:"precipSum"`
	PrecipProb  float64 `json:"precipProb"`
	RainSum     float64 `json:"rainSum"`
	SnowSum     float64 `json:"snowSum"`
	WindMax     float64 `json:"windMax"`
	GustMax     float64 `json:"gustMax"`
	WindDir     float64 `json:"windDir"`
	UVMax       float64 `json:"uvMax"`
	Sunrise     string  `json:"sunrise"`
	Sunset      string  `json:"sunset"`
}

// StoredSnapshot is a snapshot kept by the store, stamped with when and
// where it was taken.
type StoredSnapshot struct {
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"` // always UTC
	Source    string    `json:"source"`
	Values    Snapshot  `json:"values"`
}
