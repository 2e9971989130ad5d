package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/shottracker/shottracker/internal/windangle"
	"github.com/shottracker/shottracker/pkg/core"
	"github.com/wroge/wgs84"
)

// Positions are projected to EPSG:3857 before measuring. Web Mercator is
// conformal, so over rifle distances the planar angle is the true bearing and
// the planar length only needs the cos(lat) scale correction.

const metersPerYard = 0.9144

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// LatLon is a WGS84 position in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p LatLon) valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -85 && p.Lat <= 85 && p.Lon >= -180 && p.Lon <= 180
}

// ParseLatLon parses a "lat,lon" string.
func ParseLatLon(s string) (LatLon, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLon{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLon{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLon{}, ErrInvalidCoordinates
	}
	p := LatLon{Lat: lat, Lon: lon}
	if !p.valid() {
		return LatLon{}, ErrInvalidCoordinates
	}
	return p, nil
}

// Point3857 projects a position into a Web Mercator point.
func Point3857(p LatLon) (geom.Point, error) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(p.Lon, p.Lat, 0)
	pt, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("projecting %v: %w", p, err)
	}
	return pt, nil
}

// ShotLine returns the bearing and distance in yards from shooter to target.
func ShotLine(shooter, target LatLon) (core.Bearing, float64, error) {
	if !shooter.valid() || !target.valid() {
		return 0, 0, ErrInvalidCoordinates
	}

	from, err := Point3857(shooter)
	if err != nil {
		return 0, 0, err
	}
	to, err := Point3857(target)
	if err != nil {
		return 0, 0, err
	}
	a, _ := from.XY()
	b, _ := to.XY()

	// atan2(dx, dy) measures clockwise from +y, i.e. from north
	bearing := windangle.Normalize(core.Bearing(math.Atan2(b.X-a.X, b.Y-a.Y) * 180 / math.Pi))

	planar, ok := geom.Distance(from.AsGeometry(), to.AsGeometry())
	if !ok {
		return 0, 0, ErrInvalidCoordinates
	}
	midLat := (shooter.Lat + target.Lat) / 2 * math.Pi / 180
	yards := planar * math.Cos(midLat) / metersPerYard

	return bearing, yards, nil
}
