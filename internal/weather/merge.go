package weather

// preferEnrichment lists fields the domestic primary frequently reports as
// null/zero. For these, a non-empty enrichment value always wins.
var preferEnrichment = map[string]struct{}{
	"wind_speed": {}, "wind_speed_10m": {}, "wind_speed_80m": {}, "wind_speed_120m": {},
	"wind_dir": {}, "wind_dir_10m": {}, "wind_gusts": {},
	"shortwave_radiation": {}, "direct_radiation": {}, "diffuse_radiation": {},
	"direct_normal_irradiance": {}, "global_tilted_irradiance": {}, "terrestrial_radiation": {},
	"uv_index": {}, "uv_index_clear_sky": {},
	"cape": {}, "cin": {}, "et0": {}, "evapotranspiration": {},
	"soil_moisture": {}, "soil_temp": {},
	"visibility": {}, "snow_depth": {},
	"us_aqi": {}, "pm2_5": {}, "pm10": {}, "ozone": {},
	"sunrise": {}, "sunset": {}, "daylight_duration": {},
	"precip_probability": {}, "precipitation": {}, "rain": {}, "snowfall": {}, "showers": {},
	"daily_precip_sum": {}, "daily_rain_sum": {}, "daily_snow_sum": {},
}

// enrichmentFields is the subset of an international-provider snapshot that is
// merged into a domestic primary. Core conditions (temp, humidity, pressure,
// weather code) always come from the primary.
var enrichmentFields = []string{
	"wind_speed", "wind_speed_10m", "wind_speed_80m", "wind_speed_120m",
	"wind_dir", "wind_dir_10m", "wind_gusts",
	"us_aqi", "pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide", "sulphur_dioxide",
	"ozone", "aerosol_optical_depth", "dust",
	"uv_index", "uv_index_clear_sky",
	"shortwave_radiation", "direct_radiation", "diffuse_radiation",
	"direct_normal_irradiance", "global_tilted_irradiance", "terrestrial_radiation",
	"precip_probability", "precipitation", "rain", "snowfall", "snow_depth", "showers",
	"freezing_level", "et0", "evapotranspiration",
	"sunrise", "sunset", "daylight_duration", "daily_sunshine_duration",
	"daily_precip_sum", "daily_rain_sum", "daily_snow_sum", "daily_uv_max",
	"daily_wind_max", "daily_wind_gusts_max", "daily_et0_sum",
}

// gridOverrides maps grid diagnostics onto the canonical fields they replace.
var gridOverrides = map[string]string{
	"gfs_cape":          FieldCape,
	"gfs_cin":           FieldCin,
	"gfs_soil_moisture": FieldSoilMoisture,
}

// EnrichmentSubset extracts the fields an enrichment source contributes.
// Fields the source does not carry are omitted, not defaulted.
func EnrichmentSubset(s Snapshot) Snapshot {
	out := make(Snapshot, len(enrichmentFields))
	for _, k := range enrichmentFields {
		if v, ok := s[k]; ok {
			out[k] = v
		}
	}
	return out
}

// SmartMerge folds enrichment into base and returns a new snapshot.
//
// Allow-listed keys take the enrichment value whenever it carries data, even
// over a non-zero primary. Other keys present in both are overwritten by the
// enrichment; keys missing from base are added.
func SmartMerge(base, enrichment Snapshot) Snapshot {
	out := base.Clone()
	for k, v := range enrichment {
		if _, exists := out[k]; !exists {
			out[k] = v
			continue
		}
		// An empty enrichment value never clobbers a preferred field,
		// whatever the primary holds.
		if _, preferred := preferEnrichment[k]; preferred && isEmptyValue(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeGrid applies supplemental grid values with priority over everything
// merged before: storm indices and soil moisture replace the canonical
// fields outright, and every gfs_* diagnostic is copied through.
func MergeGrid(base Snapshot, grid map[string]float64) Snapshot {
	out := base.Clone()
	for k, v := range grid {
		out[k] = v
		if canonical, ok := gridOverrides[k]; ok {
			out[canonical] = v
		}
	}
	return out
}
