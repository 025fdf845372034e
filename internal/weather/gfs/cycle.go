// Package gfs fetches supplemental diagnostics (storm indices, soil state,
// visibility, gusts) from the GFS 0.25° model through the NOMADS grib filter
// and caches them on disk per model cycle and coarse location.
package gfs

import (
	"fmt"
	"time"
)

const (
	// PublicationDelay is how long after its nominal time a cycle becomes
	// available on NOMADS.
	PublicationDelay = 4 * time.Hour
	// CycleLength is the spacing of model cycles and the cache lifetime.
	CycleLength = 6 * time.Hour

	maxForecastHour = 120
)

// Cycle identifies one GFS run and the forecast hour to read from it.
type Cycle struct {
	// Start is the nominal cycle time in UTC (00, 06, 12 or 18 hours).
	Start        time.Time
	ForecastHour int
}

func clampForecastHour(h int) int {
	return max(0, min(maxForecastHour, h))
}

// ResolveCycle returns the most recent cycle expected to be published at now.
func ResolveCycle(now time.Time) Cycle {
	now = now.UTC()
	avail := now.Add(-PublicationDelay)
	start := time.Date(avail.Year(), avail.Month(), avail.Day(), avail.Hour()/6*6, 0, 0, 0, time.UTC)
	return Cycle{
		Start:        start,
		ForecastHour: clampForecastHour(int(now.Sub(start) / time.Hour)),
	}
}

// Previous returns the cycle six hours earlier, reading six hours further
// into its forecast so the valid time stays the same.
func (c Cycle) Previous() Cycle {
	return Cycle{
		Start:        c.Start.Add(-CycleLength),
		ForecastHour: clampForecastHour(c.ForecastHour + 6),
	}
}

// Date is the cycle date as YYYYMMDD.
func (c Cycle) Date() string {
	return c.Start.Format("20060102")
}

// Hour is the cycle hour as two digits.
func (c Cycle) Hour() string {
	return fmt.Sprintf("%02d", c.Start.Hour())
}

func (c Cycle) String() string {
	return fmt.Sprintf("%s/%s f%03d", c.Date(), c.Hour(), c.ForecastHour)
}

// CacheKey buckets a location to 0.1° within a cycle.
func CacheKey(c Cycle, lat, lon float64) string {
	return fmt.Sprintf("%s_%s_%.1f_%.1f", c.Date(), c.Hour(), lat, lon)
}
