package gfs

import (
	"fmt"
	"math"
	"strings"
)

const defaultFilterURL = "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_0p25.pl"

const (
	levelSurface     = "surface"
	levelBelowGround = "0-0.1_m_below_ground"
)

// requestVars lists the grib filter variables with the level each is read at.
var requestVars = []struct {
	name  string
	level string
}{
	{"CAPE", levelSurface},
	{"CIN", levelSurface},
	{"SOILW", levelBelowGround},
	{"TSOIL", levelBelowGround},
	{"VIS", levelSurface},
	{"SNOD", levelSurface},
	{"GUST", levelSurface},
	{"PRATE", levelSurface},
}

// subregionHalfWidth is the half side of the requested box in degrees.
const subregionHalfWidth = 1.0

// BuildQuery returns the grib filter URL for a small box around the point.
func BuildQuery(base string, lat, lon float64, c Cycle) string {
	if base == "" {
		base = defaultFilterURL
	}

	params := []string{
		fmt.Sprintf("file=gfs.t%sz.pgrb2.0p25.f%03d", c.Hour(), c.ForecastHour),
	}
	levels := make([]string, 0, 2)
	seen := make(map[string]bool, 2)
	for _, v := range requestVars {
		params = append(params, "var_"+v.name+"=on")
		if !seen[v.level] {
			seen[v.level] = true
			levels = append(levels, "lev_"+v.level+"=on")
		}
	}
	params = append(params, levels...)

	left, right := lon-subregionHalfWidth, lon+subregionHalfWidth
	if left < -180 {
		left += 360
	}
	if right > 180 {
		right -= 360
	}
	bottom := math.Max(-90, lat-subregionHalfWidth)
	top := math.Min(90, lat+subregionHalfWidth)

	params = append(params,
		"subregion=",
		fmt.Sprintf("leftlon=%.2f", left),
		fmt.Sprintf("rightlon=%.2f", right),
		fmt.Sprintf("toplat=%.2f", top),
		fmt.Sprintf("bottomlat=%.2f", bottom),
		fmt.Sprintf("dir=%%2Fgfs.%s%%2F%s%%2Fatmos", c.Date(), c.Hour()),
	)
	return base + "?" + strings.Join(params, "&")
}
