package providers

import "math"

// ApparentTemperature returns the "feels like" temperature in °C.
//
// Provider-supplied wind chill or heat index win when present. Otherwise wind
// chill applies at T ≤ 10 °C with wind above 4.8 km/h, and the Rothfusz heat
// index at T ≥ 27 °C when humidity is known. Anything else is the air
// temperature itself.
func ApparentTemperature(tempC float64, windChill, heatIndex *float64, windMS, humidity float64) float64 {
	if windChill != nil {
		return *windChill
	}
	if heatIndex != nil {
		return *heatIndex
	}

	windKmh := windMS * 3.6
	if tempC <= 10 && windKmh > 4.8 {
		v := math.Pow(windKmh, 0.16)
		return 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
	}

	if tempC >= 27 {
		if humidity == 0 {
			return tempC
		}
		return fahrenheitToCelsius(rothfusz(celsiusToFahrenheit(tempC), humidity))
	}

	return tempC
}

func rothfusz(t, rh float64) float64 {
	hi := -42.379 + 2.04901523*t + 10.14333127*rh - 0.22475541*t*rh -
		6.83783e-3*t*t - 5.481717e-2*rh*rh + 1.22874e-3*t*t*rh +
		8.5282e-4*t*rh*rh - 1.99e-6*t*t*rh*rh

	switch {
	case rh < 13 && t >= 80 && t <= 112:
		hi -= ((13 - rh) / 4) * math.Sqrt((17-math.Abs(t-95))/17)
	case rh > 85 && t >= 80 && t <= 87:
		hi += ((rh - 85) / 10) * ((87 - t) / 5)
	}
	return hi
}

func celsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func fahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }
