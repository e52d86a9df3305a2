package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestNewAnchor_Invalid(t *testing.T) {
	cases := [][2]float64{{200, 0}, {0, 89}, {-181, 10}, {math.NaN(), 0}}
	for _, c := range cases {
		if _, err := NewAnchor(c[0], c[1]); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("expected ErrInvalidCoordinates for %v, got %v", c, err)
		}
	}
}

func TestAnchor_OriginMapsToAnchor(t *testing.T) {
	a, err := NewAnchor(24.94, 60.17)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lon, lat := a.LonLat(mgl64.Vec3{})
	if math.Abs(lon-24.94) > 1e-9 || math.Abs(lat-60.17) > 1e-9 {
		t.Errorf("expected anchor, got %f,%f", lon, lat)
	}
}

func TestAnchor_MetresEast(t *testing.T) {
	a, err := NewAnchor(24.94, 60.17)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lon, lat := a.LonLat(mgl64.Vec3{1000, 0, 0})
	want := 1000 / (111319.49 * math.Cos(60.17*math.Pi/180))
	if math.Abs((lon-24.94)-want) > 1e-4 {
		t.Errorf("expected %f degrees east, got %f", want, lon-24.94)
	}
	if math.Abs(lat-60.17) > 1e-9 {
		t.Errorf("moving east changed latitude: %f", lat)
	}

	_, north := a.LonLat(mgl64.Vec3{0, 0, 1000})
	if north <= 60.17 {
		t.Errorf("expected +Z to move north, got %f", north)
	}
}

func TestAnchor_RoundTrip(t *testing.T) {
	a, err := NewAnchor(-73.98, 40.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := mgl64.Vec3{-152.5, 12, 380.25}
	lon, lat := a.LonLat(p)
	back := a.Local(lon, lat, p.Y())

	if back.Sub(p).Len() > 1e-6 {
		t.Errorf("expected %v, got %v", p, back)
	}
}

func TestAnchor_Point(t *testing.T) {
	a, err := NewAnchor(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pt := a.Point(mgl64.Vec3{0, 25, 0})
	coords, ok := pt.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-9 || math.Abs(coords.Y) > 1e-9 {
		t.Errorf("expected 0,0 got %f,%f", coords.X, coords.Y)
	}
	if coords.Z != 25 {
		t.Errorf("expected Z=25, got %f", coords.Z)
	}
}

func TestParsePosition_Valid(t *testing.T) {
	p, err := ParsePosition("100.5,2, -200.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != (mgl64.Vec3{100.5, 2, -200.25}) {
		t.Errorf("unexpected position %v", p)
	}
}

func TestParsePosition_GroundLevel(t *testing.T) {
	p, err := ParsePosition("10,20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != (mgl64.Vec3{10, 0, 20}) {
		t.Errorf("unexpected position %v", p)
	}
}

func TestParsePosition_Invalid(t *testing.T) {
	for _, in := range []string{"", "1", "a,b", "1,2,3,4", "1,NaN", "1,Inf"} {
		if _, err := ParsePosition(in); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("expected ErrInvalidCoordinates for %q, got %v", in, err)
		}
	}
}
