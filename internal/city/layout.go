// Package city generates the street grid the game takes place in. A Layout
// is a plain value; Populate turns it into static physics bodies and the
// render collaborator draws it separately.
package city

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/opencity/sandbox/internal/geo"
	"github.com/opencity/sandbox/pkg/core"
)

type Config struct {
	Seed          int64   `json:"seed" mapstructure:"seed"`
	Blocks        int     `json:"blocks" mapstructure:"blocks"`
	BlockSize     float64 `json:"blockSize" mapstructure:"blockSize"`
	RoadWidth     float64 `json:"roadWidth" mapstructure:"roadWidth"`
	Setback       float64 `json:"setback" mapstructure:"setback"`
	MinHeight     float64 `json:"minHeight" mapstructure:"minHeight"`
	MaxHeight     float64 `json:"maxHeight" mapstructure:"maxHeight"`
	ParkChance    float64 `json:"parkChance" mapstructure:"parkChance"`
	VehicleSpawns int     `json:"vehicleSpawns" mapstructure:"vehicleSpawns"`
}

func DefaultConfig() Config {
	return Config{
		Seed:          1,
		Blocks:        4,
		BlockSize:     80,
		RoadWidth:     12,
		Setback:       4,
		MinHeight:     8,
		MaxHeight:     60,
		ParkChance:    0.1,
		VehicleSpawns: 6,
	}
}

func (c Config) validate() error {
	switch {
	case c.Blocks < 1:
		return errors.New("city needs at least one block")
	case c.BlockSize <= 3*c.Setback:
		return fmt.Errorf("block size %.1f too small for setback %.1f", c.BlockSize, c.Setback)
	case c.RoadWidth <= 0:
		return errors.New("road width must be positive")
	case c.MinHeight <= 0 || c.MaxHeight < c.MinHeight:
		return fmt.Errorf("invalid building heights %.1f..%.1f", c.MinHeight, c.MaxHeight)
	}
	return nil
}

type Building struct {
	ID          core.EntityID
	Center      mgl64.Vec3 // ground-level centre
	HalfExtents mgl64.Vec3
	Footprint   geom.Polygon
}

// Road is a straight axis-aligned street spanning the whole city.
type Road struct {
	ID         string
	Start, End mgl64.Vec3
	Width      float64
	Centerline geom.LineString
}

// Spawn is a ground position with a heading (yaw about +Y, 0 faces +Z).
type Spawn struct {
	Position mgl64.Vec3
	Heading  float64
}

type Layout struct {
	Config        Config
	Extent        float64 // side length of the square city
	Buildings     []Building
	Roads         []Road
	PlayerSpawn   Spawn
	VehicleSpawns []Spawn
}

// Generate builds a deterministic layout for cfg.Seed.
func Generate(cfg Config) (*Layout, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	pitch := cfg.BlockSize + cfg.RoadWidth
	extent := float64(cfg.Blocks)*cfg.BlockSize + float64(cfg.Blocks+1)*cfg.RoadWidth
	half := extent / 2

	l := &Layout{Config: cfg, Extent: extent}

	lines := make([]float64, cfg.Blocks+1)
	for i := range lines {
		lines[i] = -half + cfg.RoadWidth/2 + float64(i)*pitch
	}
	for i, c := range lines {
		for _, r := range []Road{
			{ID: fmt.Sprintf("ew-%d", i), Start: mgl64.Vec3{-half, 0, c}, End: mgl64.Vec3{half, 0, c}},
			{ID: fmt.Sprintf("ns-%d", i), Start: mgl64.Vec3{c, 0, -half}, End: mgl64.Vec3{c, 0, half}},
		} {
			r.Width = cfg.RoadWidth
			ls, err := geo.Polyline([]mgl64.Vec3{r.Start, r.End})
			if err != nil {
				return nil, err
			}
			r.Centerline = ls
			l.Roads = append(l.Roads, r)
		}
	}

	lot := (cfg.BlockSize - 3*cfg.Setback) / 2
	for bi := 0; bi < cfg.Blocks; bi++ {
		for bj := 0; bj < cfg.Blocks; bj++ {
			if rng.Float64() < cfg.ParkChance {
				continue
			}
			bx := -half + cfg.RoadWidth + float64(bi)*pitch
			bz := -half + cfg.RoadWidth + float64(bj)*pitch
			for li := 0; li < 2; li++ {
				for lj := 0; lj < 2; lj++ {
					w := lot * (0.7 + 0.3*rng.Float64())
					d := lot * (0.7 + 0.3*rng.Float64())
					h := cfg.MinHeight + (cfg.MaxHeight-cfg.MinHeight)*rng.Float64()
					cx := bx + cfg.Setback + float64(li)*(lot+cfg.Setback) + lot/2
					cz := bz + cfg.Setback + float64(lj)*(lot+cfg.Setback) + lot/2
					l.Buildings = append(l.Buildings, Building{
						ID:          core.EntityID(fmt.Sprintf("building-%d-%d-%d", bi, bj, li*2+lj)),
						Center:      mgl64.Vec3{cx, 0, cz},
						HalfExtents: mgl64.Vec3{w / 2, h / 2, d / 2},
						Footprint:   geo.Rect(cx-w/2, cz-d/2, cx+w/2, cz+d/2),
					})
				}
			}
		}
	}

	mid := lines[len(lines)/2]
	l.PlayerSpawn = Spawn{Position: mgl64.Vec3{mid + cfg.RoadWidth/2, 0, mid + cfg.RoadWidth/2 + 1}}

	lane := cfg.RoadWidth / 4
	if cfg.VehicleSpawns > 0 {
		// parked beside the player so a car is always in reach
		l.VehicleSpawns = append(l.VehicleSpawns, Spawn{Position: mgl64.Vec3{mid + lane, 0, mid + cfg.RoadWidth/2 + 3}})
	}
	for attempts := 0; len(l.VehicleSpawns) < cfg.VehicleSpawns && attempts < 20*cfg.VehicleSpawns; attempts++ {
		road := rng.Intn(len(lines))
		block := rng.Intn(cfg.Blocks)
		along := -half + cfg.RoadWidth + float64(block)*pitch + cfg.BlockSize/2
		s := Spawn{Position: mgl64.Vec3{lines[road] + lane, 0, along}}
		if rng.Intn(2) == 0 {
			s = Spawn{Position: mgl64.Vec3{along, 0, lines[road] - lane}, Heading: -math.Pi / 2}
		}
		if !l.spawnFree(s.Position) {
			continue
		}
		l.VehicleSpawns = append(l.VehicleSpawns, s)
	}
	return l, nil
}

func (l *Layout) spawnFree(p mgl64.Vec3) bool {
	for _, s := range l.VehicleSpawns {
		if s.Position.Sub(p).Len() < 8 {
			return false
		}
	}
	return true
}

// Clear reports whether a circle of radius r around p is free of buildings
// and inside the city.
func (l *Layout) Clear(p mgl64.Vec3, r float64) bool {
	half := l.Extent / 2
	if math.Abs(p.X()) > half-r || math.Abs(p.Z()) > half-r {
		return false
	}
	pt := geom.NewPoint(geom.Coordinates{XY: geo.GroundXY(p), Type: geom.DimXY})
	for _, b := range l.Buildings {
		d, ok := geom.Distance(pt.AsGeometry(), b.Footprint.AsGeometry())
		if ok && d < r {
			return false
		}
	}
	return true
}

// OnRoad reports whether p lies on a road surface.
func (l *Layout) OnRoad(p mgl64.Vec3) bool {
	for _, r := range l.Roads {
		if distanceToRoad(r, p) <= r.Width/2 {
			return true
		}
	}
	return false
}

// Snap moves p to the nearest road centreline point.
func (l *Layout) Snap(p mgl64.Vec3) mgl64.Vec3 {
	best, bestD := p, math.Inf(1)
	for _, r := range l.Roads {
		q := closestOnRoad(r, p)
		if d := q.Sub(p).Len(); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

// BuildingArea sums the footprint area of every building.
func (l *Layout) BuildingArea() float64 {
	var sum float64
	for _, b := range l.Buildings {
		sum += b.Footprint.Area()
	}
	return sum
}

func closestOnRoad(r Road, p mgl64.Vec3) mgl64.Vec3 {
	d := r.End.Sub(r.Start)
	t := p.Sub(r.Start).Dot(d) / d.Dot(d)
	t = math.Max(0, math.Min(1, t))
	q := r.Start.Add(d.Mul(t))
	return mgl64.Vec3{q.X(), 0, q.Z()}
}

func distanceToRoad(r Road, p mgl64.Vec3) float64 {
	q := closestOnRoad(r, p)
	return mgl64.Vec2{p.X() - q.X(), p.Z() - q.Z()}.Len()
}
