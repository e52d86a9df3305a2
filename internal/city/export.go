package city

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/opencity/sandbox/internal/geo"
)

// GeoJSON renders the layout as a feature collection in EPSG:4326 for map
// tooling.
func (l *Layout) GeoJSON(a *geo.Anchor) ([]byte, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(l.Buildings)+len(l.Roads)+len(l.VehicleSpawns))
	for _, r := range l.Roads {
		fc = append(fc, geom.GeoJSONFeature{
			ID:       r.ID,
			Geometry: a.LineString([]mgl64.Vec3{r.Start, r.End}).AsGeometry(),
			Properties: map[string]interface{}{
				"kind":  "road",
				"width": r.Width,
			},
		})
	}
	for _, b := range l.Buildings {
		c, he := b.Center, b.HalfExtents
		ring := []mgl64.Vec3{
			{c.X() - he.X(), 0, c.Z() - he.Z()},
			{c.X() + he.X(), 0, c.Z() - he.Z()},
			{c.X() + he.X(), 0, c.Z() + he.Z()},
			{c.X() - he.X(), 0, c.Z() + he.Z()},
		}
		fc = append(fc, geom.GeoJSONFeature{
			ID:       string(b.ID),
			Geometry: a.Polygon(ring).AsGeometry(),
			Properties: map[string]interface{}{
				"kind":   "building",
				"height": 2 * he.Y(),
			},
		})
	}
	for i, s := range l.VehicleSpawns {
		fc = append(fc, geom.GeoJSONFeature{
			ID:       i,
			Geometry: a.Point(s.Position).AsGeometry(),
			Properties: map[string]interface{}{
				"kind":    "vehicle_spawn",
				"heading": s.Heading,
			},
		})
	}
	return json.Marshal(fc)
}
