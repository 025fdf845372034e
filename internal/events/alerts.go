package events

import (
	"github.com/i474232898/weather-events/internal/common"
)

type alertMatcher func(event string) bool

func has(keywords ...string) alertMatcher {
	return func(event string) bool { return common.HasAny(event, keywords...) }
}

func hasAll(keywords ...string) alertMatcher {
	return func(event string) bool { return common.HasAll(event, keywords...) }
}

func both(a, b alertMatcher) alertMatcher {
	return func(event string) bool { return a(event) && b(event) }
}

func either(a, b alertMatcher) alertMatcher {
	return func(event string) bool { return a(event) || b(event) }
}

// alertRule maps an official alert name to an event type and tier.
type alertRule struct {
	match    alertMatcher
	typ      Type
	severity Severity
}

// alertRules is evaluated top to bottom; the first match wins. Freeze and
// cold are checked before winter so "Extreme Cold Warning" is a cold snap.
var alertRules = []alertRule{
	{has("thunderstorm"), Thunderstorm, Severe},
	{has("tornado"), Tornado, Extreme},
	{has("hurricane"), Hurricane, Extreme},
	{has("flood"), FlashFlood, Severe},
	{has("heat"), Heatwave, Severe},
	{has("freeze", "cold"), ColdSnap, Severe},
	{both(has("winter"), has("storm", "warning")), Blizzard, Severe},
	{has("winter"), ColdSnap, Minor},
	{either(has("blizzard"), hasAll("snow", "warning")), Blizzard, Severe},
	{hasAll("wind", "warning"), Windstorm, Severe},
	{has("dust"), DustStorm, Severe},
}

// classifyAlert returns the event type and tier for an alert name.
func classifyAlert(event string) (Type, Severity, bool) {
	for _, r := range alertRules {
		if r.match(event) {
			return r.typ, r.severity, true
		}
	}
	return "", "", false
}
