// Package input turns polled device snapshots into the movement intent or
// driving controls of the current control mode.
package input

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/vehicle"
	"github.com/opencity/sandbox/pkg/core"
)

// RawSnapshot is one poll of the input device.
type RawSnapshot struct {
	Actions  ActionSet
	LookX    float64 // camera yaw delta
	LookY    float64 // camera pitch delta
	Steer    float64 // analog steering refinement, [-1,1]
	Throttle float64 // analog throttle, [0,1]
	Brake    float64 // analog brake, [0,1]
}

// Config tunes the translation.
type Config struct {
	LookSensitivity float64 `json:"lookSensitivity" mapstructure:"lookSensitivity"`
	SteerRate       float64 `json:"steerRate" mapstructure:"steerRate"` // keyboard steering change per second
	MaxPitch        float64 `json:"maxPitch" mapstructure:"maxPitch"`
}

func DefaultConfig() Config {
	return Config{LookSensitivity: 0.0025, SteerRate: 4, MaxPitch: 1.4}
}

// Frame is the translated input of one tick.
type Frame struct {
	Held    ActionSet
	Pressed ActionSet // actions that went down this tick

	// on foot
	Move   mgl64.Vec3 // world-space horizontal direction, length <= 1
	Sprint bool
	Jump   bool

	// driving
	Drive vehicle.Controls

	Yaw   float64
	Pitch float64
}

// Translator keeps the state needed between polls: the previous action set
// for edge detection, the camera angles and the smoothed keyboard steering.
type Translator struct {
	cfg   Config
	prev  ActionSet
	yaw   float64
	pitch float64
	steer float64
}

func NewTranslator(cfg Config) *Translator {
	return &Translator{cfg: cfg}
}

func (t *Translator) Yaw() float64 { return t.yaw }

// Reset forgets held keys and steering, used after pause and load.
func (t *Translator) Reset() {
	t.prev = 0
	t.steer = 0
}

// Translate maps a snapshot for the given mode. dt is the frame time used
// for steering smoothing.
func (t *Translator) Translate(raw RawSnapshot, mode core.ControlMode, dt float64) Frame {
	held := raw.Actions
	pressed := ActionSet(uint32(held) &^ uint32(t.prev))
	t.prev = held

	t.yaw += raw.LookX * t.cfg.LookSensitivity
	t.yaw = math.Remainder(t.yaw, 2*math.Pi)
	t.pitch = mgl64.Clamp(t.pitch+raw.LookY*t.cfg.LookSensitivity, -t.cfg.MaxPitch, t.cfg.MaxPitch)

	f := Frame{Held: held, Pressed: pressed, Yaw: t.yaw, Pitch: t.pitch}
	if mode == core.ModeDriving {
		f.Drive = t.driving(raw, dt)
		return f
	}
	t.steer = 0
	f.Move = t.movement(held)
	f.Sprint = held.Has(Sprint)
	f.Jump = pressed.Has(Jump)
	return f
}

// movement returns the camera-relative walking direction. Yaw 0 faces +Z
// and positive yaw turns right.
func (t *Translator) movement(held ActionSet) mgl64.Vec3 {
	var fwd, right float64
	if held.Has(MoveForward) {
		fwd++
	}
	if held.Has(MoveBack) {
		fwd--
	}
	if held.Has(MoveRight) {
		right++
	}
	if held.Has(MoveLeft) {
		right--
	}
	if fwd == 0 && right == 0 {
		return mgl64.Vec3{}
	}
	sin, cos := math.Sincos(t.yaw)
	forward := mgl64.Vec3{-sin, 0, cos}
	rightDir := mgl64.Vec3{-cos, 0, -sin}
	dir := forward.Mul(fwd).Add(rightDir.Mul(right))
	if l := dir.Len(); l > 1 {
		dir = dir.Mul(1 / l)
	}
	return dir
}

func (t *Translator) driving(raw RawSnapshot, dt float64) vehicle.Controls {
	held := raw.Actions
	c := vehicle.Controls{
		Throttle:  mgl64.Clamp(raw.Throttle, 0, 1),
		Brake:     mgl64.Clamp(raw.Brake, 0, 1),
		Handbrake: held.Has(Handbrake),
	}
	if held.Has(MoveForward) {
		c.Throttle = 1
	}
	if held.Has(MoveBack) {
		c.Brake = 1
	}

	target := 0.0
	if held.Has(MoveRight) {
		target++
	}
	if held.Has(MoveLeft) {
		target--
	}
	maxDelta := t.cfg.SteerRate * dt
	t.steer += mgl64.Clamp(target-t.steer, -maxDelta, maxDelta)
	c.Steering = mgl64.Clamp(t.steer+raw.Steer, -1, 1)
	return c
}
