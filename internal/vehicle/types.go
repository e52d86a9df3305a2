package vehicle

import "github.com/go-gl/mathgl/mgl64"

// WheelConfig is the raycast suspension tuning shared by all four wheels.
// Stiffness and damping are per unit of chassis mass.
type WheelConfig struct {
	Radius              float64 `json:"radius" mapstructure:"radius"`
	Width               float64 `json:"width" mapstructure:"width"`
	SuspensionStiffness float64 `json:"suspensionStiffness" mapstructure:"suspensionStiffness"`
	SuspensionRest      float64 `json:"suspensionRestLength" mapstructure:"suspensionRestLength"`
	MaxSuspensionTravel float64 `json:"maxSuspensionTravel" mapstructure:"maxSuspensionTravel"`
	MaxSuspensionForce  float64 `json:"maxSuspensionForce" mapstructure:"maxSuspensionForce"`
	DampingRelaxation   float64 `json:"dampingRelaxation" mapstructure:"dampingRelaxation"`
	DampingCompression  float64 `json:"dampingCompression" mapstructure:"dampingCompression"`
	FrictionSlip        float64 `json:"frictionSlip" mapstructure:"frictionSlip"`
	RollInfluence       float64 `json:"rollInfluence" mapstructure:"rollInfluence"`
}

// DefaultWheelConfig keeps the empirically tuned feel.
func DefaultWheelConfig() WheelConfig {
	return WheelConfig{
		Radius:              0.4,
		Width:               0.3,
		SuspensionStiffness: 30,
		SuspensionRest:      0.3,
		MaxSuspensionTravel: 0.3,
		MaxSuspensionForce:  100000,
		DampingRelaxation:   2.3,
		DampingCompression:  4.4,
		FrictionSlip:        1.5,
		RollInfluence:       0.01,
	}
}

// Type is a per-model tuning. Speeds are in km/h. Engine and brake forces
// are newtons per wheel. Fuel rates are units per second.
type Type struct {
	Name                string      `json:"name" mapstructure:"name"`
	Mass                float64     `json:"mass" mapstructure:"mass"`
	HalfExtents         mgl64.Vec3  `json:"halfExtents" mapstructure:"halfExtents"`
	MaxSpeed            float64     `json:"maxSpeed" mapstructure:"maxSpeed"`
	SteerClamp          float64     `json:"steerClamp" mapstructure:"steerClamp"`
	EngineForce         float64     `json:"engineForce" mapstructure:"engineForce"`
	BrakeForce          float64     `json:"brakeForce" mapstructure:"brakeForce"`
	HandbrakeMultiplier float64     `json:"handbrakeMultiplier" mapstructure:"handbrakeMultiplier"`
	HandbrakeGrip       float64     `json:"handbrakeGrip" mapstructure:"handbrakeGrip"`
	ParkingBrake        float64     `json:"parkingBrake" mapstructure:"parkingBrake"`
	FuelIdleRate        float64     `json:"fuelIdleRate" mapstructure:"fuelIdleRate"`
	FuelThrottleRate    float64     `json:"fuelThrottleRate" mapstructure:"fuelThrottleRate"`
	ExitOffset          mgl64.Vec3  `json:"exitOffset" mapstructure:"exitOffset"`
	Wheel               WheelConfig `json:"wheel" mapstructure:"wheel"`
}

// DefaultTypes returns the built-in vehicle models keyed by name. Sports cars
// steer tighter than trucks.
func DefaultTypes() map[string]Type {
	wheel := DefaultWheelConfig()
	truckWheel := wheel
	truckWheel.Radius = 0.5

	return map[string]Type{
		"sports": {
			Name:                "sports",
			Mass:                1200,
			HalfExtents:         mgl64.Vec3{0.9, 0.35, 2.1},
			MaxSpeed:            220,
			SteerClamp:          0.4,
			EngineForce:         4500,
			BrakeForce:          3500,
			HandbrakeMultiplier: 2,
			HandbrakeGrip:       0.4,
			ParkingBrake:        1500,
			FuelIdleRate:        0.02,
			FuelThrottleRate:    0.25,
			ExitOffset:          mgl64.Vec3{-1.8, 0, 0},
			Wheel:               wheel,
		},
		"sedan": {
			Name:                "sedan",
			Mass:                1500,
			HalfExtents:         mgl64.Vec3{0.95, 0.45, 2.3},
			MaxSpeed:            150,
			SteerClamp:          0.5,
			EngineForce:         3000,
			BrakeForce:          3000,
			HandbrakeMultiplier: 2,
			HandbrakeGrip:       0.5,
			ParkingBrake:        1500,
			FuelIdleRate:        0.015,
			FuelThrottleRate:    0.18,
			ExitOffset:          mgl64.Vec3{-1.9, 0, 0},
			Wheel:               wheel,
		},
		"truck": {
			Name:                "truck",
			Mass:                4000,
			HalfExtents:         mgl64.Vec3{1.2, 0.8, 3.5},
			MaxSpeed:            110,
			SteerClamp:          0.65,
			EngineForce:         7000,
			BrakeForce:          8000,
			HandbrakeMultiplier: 1.5,
			HandbrakeGrip:       0.6,
			ParkingBrake:        4000,
			FuelIdleRate:        0.03,
			FuelThrottleRate:    0.3,
			ExitOffset:          mgl64.Vec3{-2.2, 0, 0},
			Wheel:               truckWheel,
		},
	}
}
