package mission

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/pkg/core"
)

// Config places the catalog missions in the city.
type Config struct {
	DeliveryTimeLimit float64       `json:"deliveryTimeLimit" mapstructure:"deliveryTimeLimit"`
	Pickup            mgl64.Vec3    `json:"pickup" mapstructure:"pickup"`
	Dropoff           mgl64.Vec3    `json:"dropoff" mapstructure:"dropoff"`
	CheckpointRadius  float64       `json:"checkpointRadius" mapstructure:"checkpointRadius"`
	ScrapLocations    []mgl64.Vec3  `json:"scrapLocations" mapstructure:"scrapLocations"`
	ChaseTarget       core.EntityID `json:"chaseTarget" mapstructure:"chaseTarget"`
	ChaseLoseDistance float64       `json:"chaseLoseDistance" mapstructure:"chaseLoseDistance"`
	EscapeDistance    float64       `json:"escapeDistance" mapstructure:"escapeDistance"`
	SurviveDuration   float64       `json:"surviveDuration" mapstructure:"surviveDuration"`
}

func DefaultConfig() Config {
	return Config{
		DeliveryTimeLimit: 180,
		Pickup:            mgl64.Vec3{40, 0, 40},
		Dropoff:           mgl64.Vec3{-120, 0, 160},
		CheckpointRadius:  5,
		ScrapLocations: []mgl64.Vec3{
			{80, 0, -40},
			{-40, 0, -120},
			{160, 0, 120},
		},
		ChaseTarget:       "getaway",
		ChaseLoseDistance: 250,
		EscapeDistance:    150,
		SurviveDuration:   60,
	}
}

// Catalog builds a fresh set of missions. Every call returns new values so
// a restart starts from scratch.
func Catalog(cfg Config) []*Mission {
	at := func(v mgl64.Vec3) *mgl64.Vec3 { return &v }

	scrap := &Mission{
		ID:          "scavenger_hunt",
		Title:       "Scavenger Hunt",
		Description: "Collect scrap parts scattered around the city.",
		Type:        TypeSide,
		Behavior:    &Collection{},
		Reward:      Reward{Money: 500, Items: []string{"toolkit"}},
	}
	for i, loc := range cfg.ScrapLocations {
		scrap.Objectives = append(scrap.Objectives, &Objective{
			ID:          "scrap_" + string(rune('a'+i)),
			Description: "Pick up a scrap part",
			Type:        ObjectivePickup,
			Item:        "scrap",
			Location:    at(loc),
			Radius:      cfg.CheckpointRadius,
			Optional:    true,
		})
	}
	scrap.Objectives = append(scrap.Objectives, &Objective{
		ID:          "collect_scrap",
		Description: "Collect the scrap parts",
		Type:        ObjectiveCollect,
		Item:        "scrap",
		Count:       len(cfg.ScrapLocations),
	})

	return []*Mission{
		{
			ID:          "first_ride",
			Title:       "First Ride",
			Description: "Find a car and get behind the wheel.",
			Type:        TypeMain,
			Objectives: []*Objective{
				{ID: "get_in", Description: "Get into a vehicle", Type: ObjectiveVehicle},
			},
			Reward: Reward{Money: 100},
		},
		{
			ID:          "special_delivery",
			Title:       "Special Delivery",
			Description: "Pick up a package and deliver it before time runs out.",
			Type:        TypeMain,
			TimeLimit:   cfg.DeliveryTimeLimit,
			Props: Properties{
				RequiresVehicle: true,
				EndLocation:     at(cfg.Dropoff),
				EndRadius:       cfg.CheckpointRadius,
				Sequential:      true,
			},
			Objectives: []*Objective{
				{ID: "pickup", Description: "Pick up the package", Type: ObjectivePickup,
					Location: at(cfg.Pickup), Radius: cfg.CheckpointRadius},
				{ID: "deliver", Description: "Deliver the package", Type: ObjectiveDestination},
			},
			Behavior: &Delivery{Item: "package", Tip: 250},
			Reward:   Reward{Money: 1000, Wanted: -1},
		},
		scrap,
		{
			ID:          "hot_pursuit",
			Title:       "Hot Pursuit",
			Description: "Stop the getaway car before it escapes.",
			Type:        TypeSide,
			Objectives: []*Objective{
				{ID: "stop_car", Description: "Stop the getaway car", Type: ObjectiveKill, Target: cfg.ChaseTarget},
			},
			Behavior: &Chase{Target: cfg.ChaseTarget, LoseDistance: cfg.ChaseLoseDistance},
			Reward:   Reward{Money: 1500, Wanted: 1},
		},
		{
			ID:          "lay_low",
			Title:       "Lay Low",
			Description: "Shake off the police.",
			Type:        TypeSide,
			Objectives: []*Objective{
				{ID: "get_away", Description: "Get away from the scene", Type: ObjectiveEscape, Distance: cfg.EscapeDistance},
				{ID: "hide", Description: "Stay hidden", Type: ObjectiveSurvive, Duration: cfg.SurviveDuration,
					Reward: &Reward{Money: 200}},
			},
			Behavior: &Escape{Heat: 2},
			Reward:   Reward{Money: 750},
		},
		{
			ID:          "last_stand",
			Title:       "Last Stand",
			Description: "Stay alive with the whole force after you.",
			Type:        TypeSide,
			Objectives: []*Objective{
				{ID: "survive", Description: "Survive the onslaught", Type: ObjectiveSurvive, Duration: cfg.SurviveDuration},
			},
			Behavior: &Survival{Level: 4},
			Reward:   Reward{Money: 2000, Items: []string{"armor"}},
		},
	}
}
