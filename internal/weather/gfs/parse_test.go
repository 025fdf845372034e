package gfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestFieldNearest(t *testing.T) {
	f := field{
		grid:   grid{ni: 3, nj: 3, la1: 45, lo1: 266, di: 0.25, dj: 0.25},
		values: seq(9),
	}

	v, ok := f.nearest(44.8, -93.8)
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	v, ok = f.nearest(45.2, -94.5)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestFieldNearestSouthToNorth(t *testing.T) {
	f := field{
		grid:   grid{ni: 2, nj: 3, la1: 10, lo1: 20, di: 0.25, dj: 0.25, scanning: 0x40},
		values: seq(6),
	}
	v, ok := f.nearest(10.5, 20.25)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestFieldNearestAcrossMeridian(t *testing.T) {
	f := field{
		grid:   grid{ni: 3, nj: 1, la1: 51.5, lo1: 359.75, di: 0.25, dj: 0.25},
		values: []float64{10, 20, 30},
	}
	v, ok := f.nearest(51.5, 0.1)
	require.True(t, ok)
	assert.Equal(t, 20.0, v)

	v, ok = f.nearest(51.5, -0.2)
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
}

func TestFieldNearestMissing(t *testing.T) {
	f := field{
		grid:   grid{ni: 1, nj: 1, la1: 0, lo1: 0, di: 0.25, dj: 0.25},
		values: []float64{9.999e20},
	}
	_, ok := f.nearest(0, 0)
	assert.False(t, ok)
}

func TestExtractGroupsBySurface(t *testing.T) {
	g := grid{ni: 1, nj: 1, la1: 44.75, lo1: 267, di: 0.25, dj: 0.25}
	fields := []field{
		{discipline: 0, category: 7, number: 6, surface: surfaceGround, grid: g, values: []float64{2100}},
		{discipline: 0, category: 7, number: 7, surface: surfaceGround, grid: g, values: []float64{-35}},
		{discipline: 2, category: 0, number: 192, surface: surfaceBelowLand, grid: g, values: []float64{0.27}},
		{discipline: 2, category: 0, number: 2, surface: surfaceBelowLand, grid: g, values: []float64{291.15}},
		// soil moisture at the wrong level is ignored
		{discipline: 2, category: 0, number: 192, surface: surfaceGround, grid: g, values: []float64{0.99}},
		// unknown parameter
		{discipline: 0, category: 0, number: 0, surface: surfaceGround, grid: g, values: []float64{300}},
	}

	raw := extract(fields, 44.8, -93)
	assert.Equal(t, map[string]float64{
		"cape":  2100,
		"cin":   -35,
		"soilw": 0.27,
		"tsoil": 291.15,
	}, raw)
}

func TestConvert(t *testing.T) {
	out := Convert(map[string]float64{
		"cape":    1500,
		"tsoil":   293.15,
		"prate":   0.001,
		"vis":     24100,
		"unknown": 1,
	})

	assert.Equal(t, 1500.0, out["gfs_cape"])
	assert.InDelta(t, 20.0, out["gfs_soil_temp"], 1e-9)
	assert.InDelta(t, 3.6, out["gfs_precip_rate"], 1e-9)
	assert.Equal(t, 24100.0, out["gfs_visibility"])
	assert.Len(t, out, 4)
}
