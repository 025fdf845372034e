package gfs

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/nilsmagnus/grib/griblib"
)

// ErrNoGridData is returned when a GRIB payload yields none of the wanted variables.
var ErrNoGridData = errors.New("gfs: no usable grid values")

// Fixed surface types (GRIB2 code table 4.5).
const (
	surfaceGround     = 1
	surfaceBelowLand  = 106
	gribMissingMarker = 9.999e20
)

// gribVar identifies one wanted parameter by discipline, category and number
// at the surface type it is requested on.
type gribVar struct {
	key        string
	discipline int
	category   int
	number     int
	surface    int
}

var gribVars = []gribVar{
	{"cape", 0, 7, 6, surfaceGround},
	{"cin", 0, 7, 7, surfaceGround},
	{"vis", 0, 19, 0, surfaceGround},
	{"snod", 0, 1, 11, surfaceGround},
	{"gust", 0, 2, 22, surfaceGround},
	{"prate", 0, 1, 7, surfaceGround},
	{"soilw", 2, 0, 192, surfaceBelowLand},
	{"tsoil", 2, 0, 2, surfaceBelowLand},
	{"tsoil", 2, 3, 18, surfaceBelowLand},
}

// grid is a regular lat/lon grid in degrees.
type grid struct {
	ni, nj   int
	la1, lo1 float64
	di, dj   float64
	// scanning mode flags (GRIB2 flag table 3.4)
	scanning int
}

// field is one decoded message reduced to what point extraction needs.
type field struct {
	discipline int
	category   int
	number     int
	surface    int
	grid       grid
	values     []float64
}

// Decode reads every GRIB2 message in r and returns the raw values of the
// wanted variables at the grid point nearest to (lat, lon).
func Decode(r io.Reader, lat, lon float64) (map[string]float64, error) {
	messages, err := griblib.ReadMessages(r)
	if err != nil {
		return nil, fmt.Errorf("gfs: read grib: %w", err)
	}

	fields := make([]field, 0, len(messages))
	for _, m := range messages {
		f, ok := toField(m)
		if !ok {
			continue
		}
		fields = append(fields, f)
	}

	raw := extract(fields, lat, lon)
	if len(raw) == 0 {
		return nil, ErrNoGridData
	}
	return raw, nil
}

func toField(m *griblib.Message) (field, bool) {
	if m == nil {
		return field{}, false
	}

	var g grid
	switch def := m.Section3.Definition.(type) {
	case *griblib.Grid0:
		g = latLonGrid(*def)
	case griblib.Grid0:
		g = latLonGrid(def)
	default:
		return field{}, false
	}
	if g.ni <= 0 || g.nj <= 0 {
		return field{}, false
	}

	pdt := m.Section4.ProductDefinitionTemplate
	return field{
		discipline: int(m.Section0.Discipline),
		category:   int(pdt.ParameterCategory),
		number:     int(pdt.ParameterNumber),
		surface:    int(pdt.FirstSurface.Type),
		grid:       g,
		values:     m.Data(),
	}, true
}

// latLonGrid converts a template 3.0 definition, whose angles are in
// micro-degrees.
func latLonGrid(d griblib.Grid0) grid {
	const micro = 1e-6
	return grid{
		ni:       int(d.Ni),
		nj:       int(d.Nj),
		la1:      float64(d.La1) * micro,
		lo1:      float64(d.Lo1) * micro,
		di:       float64(d.Di) * micro,
		dj:       float64(d.Dj) * micro,
		scanning: int(d.ScanningMode),
	}
}

// point returns the coordinate of grid index (i, j).
func (g grid) point(i, j int) (lat, lon float64) {
	if g.scanning&0x40 != 0 {
		lat = g.la1 + float64(j)*g.dj
	} else {
		lat = g.la1 - float64(j)*g.dj
	}
	if g.scanning&0x80 != 0 {
		lon = g.lo1 - float64(i)*g.di
	} else {
		lon = g.lo1 + float64(i)*g.di
	}
	return lat, normLon(lon)
}

// normLon maps a longitude into [0, 360).
func normLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// lonDistance is the shortest angular distance between two 0-360 longitudes.
func lonDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 360-d)
}

// nearest returns the value at the grid point closest to (lat, lon).
// Rows are stored consecutively along i.
func (f field) nearest(lat, lon float64) (float64, bool) {
	lon = normLon(lon)
	best, bestDist := -1, math.Inf(1)
	for j := 0; j < f.grid.nj; j++ {
		for i := 0; i < f.grid.ni; i++ {
			idx := j*f.grid.ni + i
			if idx >= len(f.values) {
				break
			}
			plat, plon := f.grid.point(i, j)
			dlat, dlon := plat-lat, lonDistance(plon, lon)
			if d := dlat*dlat + dlon*dlon; d < bestDist {
				best, bestDist = idx, d
			}
		}
	}
	if best < 0 {
		return 0, false
	}
	v := f.values[best]
	if math.IsNaN(v) || v >= gribMissingMarker {
		return 0, false
	}
	return v, true
}

// extract groups fields by surface type and reads each wanted variable from
// its group.
func extract(fields []field, lat, lon float64) map[string]float64 {
	groups := make(map[int][]field)
	for _, f := range fields {
		groups[f.surface] = append(groups[f.surface], f)
	}
	surfaces := make([]int, 0, len(groups))
	for s := range groups {
		surfaces = append(surfaces, s)
	}
	sort.Ints(surfaces)

	out := make(map[string]float64)
	for _, s := range surfaces {
		for _, f := range groups[s] {
			for _, v := range gribVars {
				if v.surface != s || v.discipline != f.discipline || v.category != f.category || v.number != f.number {
					continue
				}
				if val, ok := f.nearest(lat, lon); ok {
					out[v.key] = val
				}
			}
		}
	}
	return out
}

// outputKeys maps raw variable names to snapshot diagnostics.
var outputKeys = map[string]string{
	"cape":  "gfs_cape",
	"cin":   "gfs_cin",
	"soilw": "gfs_soil_moisture",
	"tsoil": "gfs_soil_temp",
	"vis":   "gfs_visibility",
	"snod":  "gfs_snow_depth",
	"gust":  "gfs_gust",
	"prate": "gfs_precip_rate",
}

// Convert renames raw values and converts units: soil temperature from K
// to °C, precipitation rate from kg m⁻² s⁻¹ to mm/h.
func Convert(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		name, ok := outputKeys[k]
		if !ok {
			continue
		}
		switch k {
		case "tsoil":
			v -= 273.15
		case "prate":
			v *= 3600
		}
		out[name] = v
	}
	return out
}
