package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextToWeatherCode(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"Thunderstorms and Heavy Rain", CodeThunderHeavy},
		{"Thunderstorms", CodeThunder},
		{"Heavy Snow", CodeSnowHeavy},
		{"Light Snow", CodeSnowSlight},
		{"Blizzard", CodeSnow},
		{"Freezing Rain", CodeFreezingRain},
		{"Freezing Fog", CodeFreezing},
		{"Heavy Rain", CodeRainHeavy},
		{"Light Rain", CodeRainSlight},
		{"Rain Showers", CodeRain},
		{"Drizzle", CodeDrizzle},
		{"Fog/Mist", CodeFog},
		{"Mostly Cloudy", CodeOvercast},
		{"Partly Cloudy", CodeOvercast},
		{"Mostly Sunny", CodePartlyCloudy},
		{"Mostly Clear", CodeMainlyClear},
		{"Clear", CodeClear},
		{"Fair", CodeClear},
		{"Haze", CodePartlyCloudy},
		{"", CodePartlyCloudy},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, TextToWeatherCode(tc.text))
		})
	}
}

func TestOpenWeatherIDToWeatherCode(t *testing.T) {
	cases := map[int]int{
		200: CodeThunder,
		202: CodeThunderHeavy,
		232: CodeThunderHeavy,
		310: CodeDrizzle,
		500: CodeRainSlight,
		501: CodeRain,
		503: CodeRainHeavy,
		511: CodeFreezing,
		521: CodeShowersMod,
		600: CodeSnowSlight,
		602: CodeSnowHeavy,
		741: CodeFog,
		800: CodeClear,
		801: CodeMainlyClear,
		802: CodePartlyCloudy,
		804: CodeOvercast,
		999: CodePartlyCloudy,
	}
	for id, want := range cases {
		assert.Equal(t, want, OpenWeatherIDToWeatherCode(id), "id %d", id)
	}
}
