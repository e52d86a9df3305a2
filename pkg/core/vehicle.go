// pkg/core/vehicle.go
package core

// VehicleSnapshot is the persisted state of one vehicle.
type VehicleSnapshot struct {
	ID         EntityID  `json:"id"`
	Type       string    `json:"type"`
	Transform  Transform `json:"transform"`
	Health     float64   `json:"health"`
	Fuel       float64   `json:"fuel"`
	EngineOn   bool      `json:"engineOn"`
	Headlights bool      `json:"headlights"`
	Destroyed  bool      `json:"destroyed"`
}

// CharacterSnapshot is the persisted state of the player character.
type CharacterSnapshot struct {
	ID        EntityID    `json:"id"`
	Transform Transform   `json:"transform"`
	Health    float64     `json:"health"`
	Stamina   float64     `json:"stamina"`
	Mode      ControlMode `json:"mode"`
	VehicleID EntityID    `json:"vehicleId,omitempty"`
}
