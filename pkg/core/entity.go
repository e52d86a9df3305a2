// pkg/core/entity.go
package core

import "github.com/go-gl/mathgl/mgl64"

// EntityID identifies a game entity (character, vehicle, pickup, building).
type EntityID string

// Category classifies the entity owning a physics body.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryGround
	CategoryStatic
	CategoryVehicle
	CategoryCharacter
	CategoryItem
	CategoryProp
)

var categoryNames = [...]string{"none", "ground", "static", "vehicle", "character", "item", "prop"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Walkable reports whether standing on this category grounds a character.
func (c Category) Walkable() bool {
	return c == CategoryGround || c == CategoryStatic
}

// Transform is a world-space placement.
type Transform struct {
	Position    mgl64.Vec3 `json:"position"`
	Orientation mgl64.Quat `json:"orientation"`
}

// NodeTransform is pushed to the scene collaborator once per tick for every
// body-linked visual node.
type NodeTransform struct {
	NodeID   string   `json:"nodeId"`
	EntityID EntityID `json:"entityId"`
	Transform
	Visible bool `json:"visible"`
}

// ControlMode is what the player currently controls.
type ControlMode string

const (
	ModeOnFoot  ControlMode = "on_foot"
	ModeDriving ControlMode = "driving"
)

// ViewMode is the camera mode.
type ViewMode string

const (
	ViewThirdPerson ViewMode = "third_person"
	ViewFirstPerson ViewMode = "first_person"
	ViewVehicle     ViewMode = "vehicle"
)
