// Package windangle turns a shooting bearing and a wind bearing into the
// relative wind angle used by ballistic calculations.
package windangle

import (
	"math"

	"github.com/shottracker/shottracker/pkg/core"
)

// Resolve returns the angle between the shooting bearing and the wind bearing,
// folded onto the shorter arc and rounded to whole degrees. The result is in
// [0,180]: 0 is a pure head/tail wind, 90 a full crosswind. Left and right
// crosswinds of equal size resolve to the same value.
//
// Opposite bearings resolve to 180, not 0. Callers that want to treat both as
// "no crosswind" do that themselves.
func Resolve(shooting, wind core.Bearing) float64 {
	s, w := float64(shooting), float64(wind)
	if math.IsNaN(s) || math.IsNaN(w) || math.IsInf(s, 0) || math.IsInf(w, 0) {
		return 0
	}

	d := math.Mod(math.Abs(w-s), 360)
	if d > 180 {
		d = 360 - d
	}
	return math.Round(d)
}

// Normalize maps any bearing into [0,360).
func Normalize(b core.Bearing) core.Bearing {
	v := math.Mod(float64(b), 360)
	if v < 0 {
		v += 360
	}
	return core.Bearing(v)
}

// CrosswindFraction is the share of the wind speed acting across the line of
// fire for a relative angle in degrees.
func CrosswindFraction(angle float64) float64 {
	return math.Abs(math.Sin(angle * math.Pi / 180))
}
