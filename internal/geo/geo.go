// Package geo anchors the local city frame to the globe. Local X runs east,
// local Z runs north and Y is elevation, all in metres.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Anchor places the local origin at a longitude/latitude. Offsets are laid
// out in web mercator (EPSG:3857) metres scaled for the anchor latitude.
type Anchor struct {
	Lon, Lat float64

	originX, originY float64
	scale            float64
	to3857, to4326   func(a, b, c float64) (float64, float64, float64)
}

func NewAnchor(lon, lat float64) (*Anchor, error) {
	if lon < -180 || lon > 180 || lat <= -85 || lat >= 85 || math.IsNaN(lon) || math.IsNaN(lat) {
		return nil, ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	a := &Anchor{
		Lon:    lon,
		Lat:    lat,
		to3857: epsg.Transform(4326, 3857),
		to4326: epsg.Transform(3857, 4326),
		scale:  1 / math.Cos(lat*math.Pi/180),
	}
	a.originX, a.originY, _ = a.to3857(lon, lat, 0)
	return a, nil
}

// LonLat converts a local position to longitude and latitude.
func (a *Anchor) LonLat(pos mgl64.Vec3) (lon, lat float64) {
	x := a.originX + pos.X()*a.scale
	y := a.originY + pos.Z()*a.scale
	lon, lat, _ = a.to4326(x, y, 0)
	return lon, lat
}

// Local converts longitude, latitude and elevation back to the local frame.
func (a *Anchor) Local(lon, lat, elev float64) mgl64.Vec3 {
	x, y, _ := a.to3857(lon, lat, 0)
	return mgl64.Vec3{(x - a.originX) / a.scale, elev, (y - a.originY) / a.scale}
}

// Point returns pos as an EPSG:4326 point with elevation as Z.
func (a *Anchor) Point(pos mgl64.Vec3) geom.Point {
	lon, lat := a.LonLat(pos)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: lon, Y: lat},
		Z:    pos.Y(),
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
}

// ParsePosition parses "x,y,z" or "x,z" (ground level) in local metres.
func ParsePosition(coords string) (mgl64.Vec3, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return mgl64.Vec3{}, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return mgl64.Vec3{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	if len(vals) == 2 {
		return mgl64.Vec3{vals[0], 0, vals[1]}, nil
	}
	return mgl64.Vec3{vals[0], vals[1], vals[2]}, nil
}

// GroundXY projects a local position onto the ground plane used by layout
// geometry.
func GroundXY(pos mgl64.Vec3) geom.XY {
	return geom.XY{X: pos.X(), Y: pos.Z()}
}

// Polygon converts a closed ground ring of local positions to an EPSG:4326
// polygon. The ring is closed automatically.
func (a *Anchor) Polygon(ring []mgl64.Vec3) geom.Polygon {
	flat := make([]float64, 0, 2*len(ring)+2)
	for _, p := range ring {
		lon, lat := a.LonLat(p)
		flat = append(flat, lon, lat)
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		flat = append(flat, flat[0], flat[1])
	}
	return geom.NewPolygon([]geom.LineString{geom.NewLineString(geom.NewSequence(flat, geom.DimXY))})
}

// LineString converts local positions to an EPSG:4326 linestring.
func (a *Anchor) LineString(points []mgl64.Vec3) geom.LineString {
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		lon, lat := a.LonLat(p)
		flat = append(flat, lon, lat)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}
