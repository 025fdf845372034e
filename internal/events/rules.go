package events

import (
	"math"
	"slices"
	"time"

	"github.com/i474232898/weather-events/internal/weather"
)

// clearVisibility stands in for a missing visibility reading.
const clearVisibility = 10000.0

var heavySnowCodes = []int{73, 75, 77, 85, 86}

// conditions is the subset of a snapshot the thresholds read. adj scales
// every fixed threshold: adj = 1 / frequency multiplier.
type conditions struct {
	now        time.Time
	temp       float64
	code       int
	cape       float64
	wind       float64
	precip     float64
	visibility float64
	humidity   float64
	lat        float64
	isDay      bool
	sinceRain  time.Duration
	mult, adj  float64
}

func readConditions(snap weather.Snapshot) conditions {
	vis := snap.Float(weather.FieldVisibility)
	if vis <= 0 {
		vis = clearVisibility
	}
	return conditions{
		temp:       snap.Float(weather.FieldTemp),
		code:       int(snap.Float(weather.FieldWeatherCode)),
		cape:       snap.Float(weather.FieldCape),
		wind:       snap.Float(weather.FieldWindSpeed),
		precip:     snap.Float(weather.FieldPrecipitation),
		visibility: vis,
		humidity:   snap.Float(weather.FieldHumidity),
		lat:        snap.Float(weather.FieldLatitude),
		isDay:      snap.Bool(weather.FieldIsDay),
	}
}

// scaled returns a threshold lowered by the frequency multiplier.
func (c conditions) scaled(v float64) float64 { return v * c.adj }

func (c conditions) scaledDuration(d time.Duration) time.Duration {
	return time.Duration(float64(d) * c.adj)
}

// dwell tracks when a sustained condition first became true.
type dwell struct {
	since time.Time
}

// observe reports whether cond has held for longer than hold. It resets when
// cond lapses and after it fires.
func (d *dwell) observe(cond bool, now time.Time, hold time.Duration) bool {
	switch {
	case !cond:
		d.since = time.Time{}
	case d.since.IsZero():
		d.since = now
	case now.Sub(d.since) > hold:
		d.since = time.Time{}
		return true
	}
	return false
}

type threshold struct {
	typ    Type
	detect func(e *Engine, c conditions) (Severity, bool)
}

// thresholds run in order, each only while its type is inactive.
var thresholds = []threshold{
	{Thunderstorm, func(_ *Engine, c conditions) (Severity, bool) {
		if c.code >= 95 || c.cape > c.scaled(1500) {
			return thunderstormSeverity(c.cape, c.code), true
		}
		return "", false
	}},
	{Heatwave, func(e *Engine, c conditions) (Severity, bool) {
		if e.heat.observe(c.temp > c.scaled(35), c.now, c.scaledDuration(2*time.Hour)) {
			return heatBand.above(c.temp), true
		}
		return "", false
	}},
	{Blizzard, func(_ *Engine, c conditions) (Severity, bool) {
		if slices.Contains(heavySnowCodes, c.code) && c.wind > c.scaled(15) {
			return blizzardBand.above(c.wind), true
		}
		return "", false
	}},
	{Windstorm, func(_ *Engine, c conditions) (Severity, bool) {
		if c.wind > c.scaled(25) {
			return windstormBand.above(c.wind), true
		}
		return "", false
	}},
	{Drought, func(_ *Engine, c conditions) (Severity, bool) {
		hours := c.sinceRain.Hours()
		if hours <= c.scaled(24) || c.precip != 0 {
			return "", false
		}
		if hours > c.scaled(72) {
			return Severe, true
		}
		return Moderate, true
	}},
	{DustStorm, func(_ *Engine, c conditions) (Severity, bool) {
		if c.visibility < c.scaled(2000) && c.wind > c.scaled(15) && c.precip == 0 {
			return Moderate, true
		}
		return "", false
	}},
	{Fog, func(_ *Engine, c conditions) (Severity, bool) {
		if c.visibility < c.scaled(1000) && c.humidity > c.scaled(90) {
			return Minor, true
		}
		return "", false
	}},
	{Tornado, func(_ *Engine, c conditions) (Severity, bool) {
		if c.cape > c.scaled(3000) && c.code >= 95 && (c.mult > 1.2 || c.cape > 5000) {
			return Extreme, true
		}
		return "", false
	}},
	{Hurricane, func(_ *Engine, c conditions) (Severity, bool) {
		if c.wind > c.scaled(33) && c.precip > c.scaled(50) {
			return Extreme, true
		}
		return "", false
	}},
	{ColdSnap, func(e *Engine, c conditions) (Severity, bool) {
		if e.cold.observe(c.temp < c.scaled(-10), c.now, c.scaledDuration(time.Hour)) {
			return coldBand.below(c.temp), true
		}
		return "", false
	}},
	{FlashFlood, func(_ *Engine, c conditions) (Severity, bool) {
		if c.precip > c.scaled(100) {
			return Severe, true
		}
		return "", false
	}},
	{Aurora, func(e *Engine, c conditions) (Severity, bool) {
		if math.Abs(c.lat) <= c.scaled(60) || c.isDay {
			return "", false
		}
		if e.random() < 0.001*c.mult {
			return Minor, true
		}
		return "", false
	}},
}
