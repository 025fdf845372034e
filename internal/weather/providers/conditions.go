package providers

import "github.com/i474232898/weather-events/internal/common"

// WMO weather codes as used by Open-Meteo. Every provider normalizes its
// native condition representation to these.
const (
	CodeClear        = 0
	CodeMainlyClear  = 1
	CodePartlyCloudy = 2
	CodeOvercast     = 3
	CodeFog          = 45
	CodeDrizzle      = 53
	CodeRainSlight   = 61
	CodeRain         = 63
	CodeRainHeavy    = 65
	CodeFreezing     = 66
	CodeFreezingRain = 67
	CodeSnowSlight   = 71
	CodeSnow         = 73
	CodeSnowHeavy    = 75
	CodeShowers      = 80
	CodeShowersMod   = 81
	CodeShowersHeavy = 82
	CodeSnowShowers  = 85
	CodeSnowShowersH = 86
	CodeThunder      = 95
	CodeThunderHeavy = 99
)

// phraseRule matches when the text contains any keyword. Refinements are
// checked in order before falling back to code.
type phraseRule struct {
	keywords []string
	code     int
	refine   []phraseRule
}

// phraseRules is evaluated top to bottom; the first match wins.
var phraseRules = []phraseRule{
	{keywords: []string{"thunder"}, code: CodeThunder, refine: []phraseRule{
		{keywords: []string{"heavy"}, code: CodeThunderHeavy},
	}},
	{keywords: []string{"snow", "blizzard"}, code: CodeSnow, refine: []phraseRule{
		{keywords: []string{"heavy"}, code: CodeSnowHeavy},
		{keywords: []string{"light"}, code: CodeSnowSlight},
	}},
	{keywords: []string{"freezing"}, code: CodeFreezing, refine: []phraseRule{
		{keywords: []string{"rain"}, code: CodeFreezingRain},
	}},
	{keywords: []string{"rain", "shower"}, code: CodeRain, refine: []phraseRule{
		{keywords: []string{"heavy"}, code: CodeRainHeavy},
		{keywords: []string{"light"}, code: CodeRainSlight},
	}},
	{keywords: []string{"drizzle"}, code: CodeDrizzle},
	{keywords: []string{"fog", "mist"}, code: CodeFog},
	{keywords: []string{"overcast", "cloudy"}, code: CodeOvercast},
	{keywords: []string{"partly", "mostly sunny"}, code: CodePartlyCloudy},
	{keywords: []string{"few", "mostly clear"}, code: CodeMainlyClear},
	{keywords: []string{"clear", "sunny", "fair"}, code: CodeClear},
}

func matchPhrase(text string, rules []phraseRule) (int, bool) {
	for _, r := range rules {
		if !common.HasAny(text, r.keywords...) {
			continue
		}
		if code, ok := matchPhrase(text, r.refine); ok {
			return code, true
		}
		return r.code, true
	}
	return 0, false
}

// TextToWeatherCode converts a free-text observation description to a WMO
// code, defaulting to partly cloudy when nothing matches.
func TextToWeatherCode(text string) int {
	if code, ok := matchPhrase(text, phraseRules); ok {
		return code
	}
	return CodePartlyCloudy
}

// idRange maps an inclusive range of OpenWeather condition ids to a WMO code.
type idRange struct {
	min, max int
	code     int
}

// openWeatherIDs is evaluated top to bottom; the first matching range wins.
var openWeatherIDs = []idRange{
	{202, 202, CodeThunderHeavy},
	{212, 212, CodeThunderHeavy},
	{221, 221, CodeThunderHeavy},
	{232, 232, CodeThunderHeavy},
	{200, 299, CodeThunder},
	{300, 399, CodeDrizzle},
	{511, 511, CodeFreezing},
	{500, 500, CodeRainSlight},
	{501, 501, CodeRain},
	{502, 504, CodeRainHeavy},
	{520, 520, CodeShowers},
	{521, 521, CodeShowersMod},
	{522, 531, CodeShowersHeavy},
	{600, 600, CodeSnowSlight},
	{601, 601, CodeSnow},
	{602, 602, CodeSnowHeavy},
	{611, 616, CodeFreezing},
	{620, 620, CodeSnowShowers},
	{621, 622, CodeSnowShowersH},
	{700, 799, CodeFog},
	{800, 800, CodeClear},
	{801, 801, CodeMainlyClear},
	{802, 802, CodePartlyCloudy},
	{803, 804, CodeOvercast},
}

// OpenWeatherIDToWeatherCode maps an OpenWeather condition id to a WMO code.
func OpenWeatherIDToWeatherCode(id int) int {
	for _, r := range openWeatherIDs {
		if id >= r.min && id <= r.max {
			return r.code
		}
	}
	return CodePartlyCloudy
}

// cloudAmounts maps METAR sky cover codes to percent cover.
var cloudAmounts = map[string]float64{
	"CLR": 0,
	"SKC": 0,
	"FEW": 18,
	"SCT": 44,
	"BKN": 75,
	"OVC": 100,
}
