// Package events derives time-bounded weather events from merged snapshots
// and official alerts, and composes their effect on wind, solar and hydro
// output.
package events

import "time"

// Type identifies one of the twelve event kinds.
type Type string

const (
	Thunderstorm Type = "thunderstorm"
	Heatwave     Type = "heatwave"
	Blizzard     Type = "blizzard"
	Drought      Type = "drought"
	Windstorm    Type = "windstorm"
	DustStorm    Type = "dust_storm"
	Fog          Type = "fog"
	Tornado      Type = "tornado_warning"
	Hurricane    Type = "hurricane"
	ColdSnap     Type = "cold_snap"
	FlashFlood   Type = "flash_flood"
	Aurora       Type = "aurora"
)

// Types lists every event kind in detection order.
var Types = []Type{
	Thunderstorm, Heatwave, Blizzard, Windstorm, Drought, DustStorm,
	Fog, Tornado, Hurricane, ColdSnap, FlashFlood, Aurora,
}

// Severity is an ordinal intensity tier.
type Severity string

const (
	Minor    Severity = "minor"
	Moderate Severity = "moderate"
	Severe   Severity = "severe"
	Extreme  Severity = "extreme"
)

// Modifiers are per-channel output multipliers.
type Modifiers struct {
	Wind  float64 `json:"wind"`
	Solar float64 `json:"solar"`
	Hydro float64 `json:"hydro"`
}

// Neutral leaves every channel unchanged.
var Neutral = Modifiers{Wind: 1, Solar: 1, Hydro: 1}

// Mul composes two modifier sets channel by channel.
func (m Modifiers) Mul(o Modifiers) Modifiers {
	return Modifiers{Wind: m.Wind * o.Wind, Solar: m.Solar * o.Solar, Hydro: m.Hydro * o.Hydro}
}

// Event is one occurrence of a weather event.
type Event struct {
	ID            string        `json:"id"`
	Type          Type          `json:"type"`
	Severity      Severity      `json:"severity"`
	StartTime     time.Time     `json:"startTime"`
	Duration      time.Duration `json:"-"`
	Description   string        `json:"description"`
	Modifiers     Modifiers     `json:"modifiers"`
	WarningIssued bool          `json:"warningIssued"`
}

// Expired reports whether the event's window has elapsed at now.
func (e Event) Expired(now time.Time) bool {
	return now.Sub(e.StartTime) >= e.Duration
}

// Remaining returns the time left at now, never negative.
func (e Event) Remaining(now time.Time) time.Duration {
	left := e.Duration - now.Sub(e.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// Stats summarizes the engine's lifetime for achievement logic.
type Stats struct {
	ActiveCount         int     `json:"activeCount"`
	TotalExperienced    int     `json:"totalExperienced"`
	FrequencyMultiplier float64 `json:"frequencyMultiplier"`
	ExtremeExperienced  bool    `json:"extremeExperienced"`
	AuroraSeen          bool    `json:"auroraSeen"`
	TrackedSeconds      float64 `json:"trackedSeconds"`
}
