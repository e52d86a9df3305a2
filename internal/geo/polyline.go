package geo

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParsePath parses a JSON array of ground coordinates into local positions.
// Input format: "[[x1,z1],[x2,z2],...]"
func ParsePath(input string) ([]mgl64.Vec3, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse path JSON: %w", err)
	}

	path := make([]mgl64.Vec3, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		path[i] = mgl64.Vec3{coord[0], 0, coord[1]}
	}

	return path, nil
}

// Polyline builds a ground-plane linestring through the given positions.
func Polyline(points []mgl64.Vec3) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X(), p.Z())
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// Rect builds an axis-aligned ground-plane polygon.
func Rect(minX, minZ, maxX, maxZ float64) geom.Polygon {
	ring := geom.NewLineString(geom.NewSequence([]float64{
		minX, minZ,
		maxX, minZ,
		maxX, maxZ,
		minX, maxZ,
		minX, minZ,
	}, geom.DimXY))
	return geom.NewPolygon([]geom.LineString{ring})
}
