package events

import "time"

// tier is the fixed effect of one (type, severity) pair.
type tier struct {
	mods     Modifiers
	duration time.Duration
}

// profile holds the hand-tuned constants of one event type. Severities
// without an entry in tiers use base.
type profile struct {
	description string
	base        tier
	tiers       map[Severity]tier
}

func (p profile) tier(s Severity) tier {
	if t, ok := p.tiers[s]; ok {
		return t
	}
	return p.base
}

func mods(wind, solar, hydro float64) Modifiers {
	return Modifiers{Wind: wind, Solar: solar, Hydro: hydro}
}

// graded builds a four-tier table where every tier shares one duration.
func graded(d time.Duration, minor, moderate, severe, extreme Modifiers) map[Severity]tier {
	return map[Severity]tier{
		Minor:    {minor, d},
		Moderate: {moderate, d},
		Severe:   {severe, d},
		Extreme:  {extreme, d},
	}
}

var profiles = map[Type]profile{
	Thunderstorm: {
		description: "Thunderstorm overhead: lightning, heavy rain and gusty winds.",
		tiers: map[Severity]tier{
			Minor:    {mods(1.2, 0.8, 1.3), 30 * time.Minute},
			Moderate: {mods(1.3, 0.7, 1.5), time.Hour},
			Severe:   {mods(1.4, 0.5, 1.8), 90 * time.Minute},
			Extreme:  {mods(1.5, 0.3, 2.0), 2 * time.Hour},
		},
	},
	Heatwave: {
		description: "Extreme heat: solar output up, everything else suffers.",
		tiers: graded(4*time.Hour,
			mods(0.9, 1.2, 0.8), mods(0.8, 1.4, 0.7), mods(0.7, 1.6, 0.6), mods(0.6, 1.8, 0.5)),
	},
	Blizzard: {
		description: "Blizzard: heavy snow and wind, visibility near zero.",
		tiers: graded(3*time.Hour,
			mods(0.8, 0.5, 1.1), mods(0.7, 0.4, 1.2), mods(0.5, 0.2, 1.3), mods(0.3, 0.1, 1.5)),
	},
	Windstorm: {
		description: "High winds: turbines spinning hard, panels taking a beating.",
		tiers: graded(90*time.Minute,
			mods(1.4, 0.9, 1.0), mods(1.6, 0.8, 1.0), mods(1.8, 0.7, 1.0), mods(2.0, 0.6, 1.0)),
	},
	Drought: {
		description: "Drought: no rain in a long while, hydro collection collapsing.",
		base:        tier{mods(1.0, 1.0, 0.5), 24 * time.Hour},
		tiers: map[Severity]tier{
			Moderate: {mods(1.0, 1.1, 0.3), 24 * time.Hour},
			Severe:   {mods(1.0, 1.2, 0.1), 24 * time.Hour},
		},
	},
	DustStorm: {
		description: "Dust storm: airborne dust is smothering the solar array.",
		base:        tier{mods(1.2, 0.4, 0.8), 2 * time.Hour},
	},
	Fog: {
		description: "Dense fog: low visibility cutting solar output.",
		base:        tier{mods(0.8, 0.6, 1.1), 90 * time.Minute},
	},
	Tornado: {
		description: "Tornado warning: every machine is offline until it passes.",
		base:        tier{mods(0, 0, 0), 30 * time.Minute},
	},
	Hurricane: {
		description: "Hurricane: violent wind and rain, huge hydro gains at high risk.",
		base:        tier{mods(0.5, 0.2, 2.5), 6 * time.Hour},
	},
	ColdSnap: {
		description: "Cold snap: freezing temperatures dragging down every system.",
		tiers: graded(4*time.Hour,
			mods(0.9, 0.8, 0.9), mods(0.8, 0.7, 0.8), mods(0.7, 0.6, 0.7), mods(0.5, 0.4, 0.6)),
	},
	FlashFlood: {
		description: "Flash flood: torrential rain flooding the collectors.",
		base:        tier{mods(0.7, 0.3, 3.0), time.Hour},
	},
	Aurora: {
		description: "Aurora in the night sky: a rare boost to every channel.",
		base:        tier{mods(1.2, 1.5, 1.1), 3 * time.Hour},
	},
}

// band maps a magnitude to a severity. Bounds are checked from the top tier
// down; below the lowest bound the result is Minor.
type band struct {
	extreme, severe, moderate float64
}

func (b band) above(v float64) Severity {
	switch {
	case v > b.extreme:
		return Extreme
	case v > b.severe:
		return Severe
	case v > b.moderate:
		return Moderate
	default:
		return Minor
	}
}

func (b band) below(v float64) Severity {
	switch {
	case v < b.extreme:
		return Extreme
	case v < b.severe:
		return Severe
	case v < b.moderate:
		return Moderate
	default:
		return Minor
	}
}

var (
	heatBand      = band{extreme: 45, severe: 40, moderate: 37}
	blizzardBand  = band{extreme: 30, severe: 25, moderate: 20}
	windstormBand = band{extreme: 40, severe: 35, moderate: 30}
	coldBand      = band{extreme: -30, severe: -20, moderate: -15}
)

func thunderstormSeverity(cape float64, code int) Severity {
	switch {
	case cape > 4000 || code >= 99:
		return Extreme
	case cape > 2500 || code >= 97:
		return Severe
	case cape > 1500:
		return Moderate
	default:
		return Minor
	}
}
