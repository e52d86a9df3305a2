// pkg/core/events.go
package core

// NotificationKind enumerates one-way notifications sent to economy/UI.
type NotificationKind string

const (
	NotifyMoneyDelta      NotificationKind = "money_delta"
	NotifyItemAcquired    NotificationKind = "item_acquired"
	NotifyWantedDelta     NotificationKind = "wanted_delta"
	NotifyMissionStatus   NotificationKind = "mission_status"
	NotifyObjective       NotificationKind = "objective_completed"
	NotifyVehicleDamaged  NotificationKind = "vehicle_damaged"
	NotifyVehicleDestroy  NotificationKind = "vehicle_destroyed"
	NotifyOutOfFuel       NotificationKind = "out_of_fuel"
	NotifyOutOfAmmo       NotificationKind = "out_of_ammo"
	NotifyHorn            NotificationKind = "horn"
	NotifyCheckpointFired NotificationKind = "checkpoint_triggered"
)

// Notification is a fire-and-forget message from the core. Only the fields
// relevant to Kind are set.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Tick      uint64           `json:"tick"`
	Money     int              `json:"money,omitempty"`
	Item      string           `json:"item,omitempty"`
	Count     int              `json:"count,omitempty"`
	Wanted    int              `json:"wanted,omitempty"`
	MissionID string           `json:"missionId,omitempty"`
	Objective string           `json:"objective,omitempty"`
	Status    string           `json:"status,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	EntityID  EntityID         `json:"entityId,omitempty"`
	Message   string           `json:"message,omitempty"`
}
