package config

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opencity/sandbox/internal/character"
	"github.com/opencity/sandbox/internal/city"
	"github.com/opencity/sandbox/internal/geo"
	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/internal/mission"
	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/internal/vehicle"
	"github.com/opencity/sandbox/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "citysim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings of the in-memory sqlite backend.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds the postgres connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// WebSocketConfig holds the remote save server settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the save-game backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the telemetry sink settings.
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
	Interval   time.Duration
}

// GraylogConfig holds the GELF output settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// AnchorConfig is the geographic position of the city origin.
type AnchorConfig struct {
	Lon float64
	Lat float64
}

// ServerConfig holds the stream server and tick loop settings.
type ServerConfig struct {
	Address          string
	TickRate         int
	AutosaveSlot     string
	AutosaveInterval time.Duration
	StatusInterval   time.Duration
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./citylogs")

	phys := physics.DefaultConfig()
	viper.SetDefault("physics.gravity", phys.Gravity.Y())
	viper.SetDefault("physics.fixedStep", phys.FixedStep)
	viper.SetDefault("physics.maxSubSteps", phys.MaxSubSteps)
	viper.SetDefault("physics.solverIterations", phys.SolverIterations)
	viper.SetDefault("physics.sleepSpeed", phys.SleepSpeed)
	viper.SetDefault("physics.sleepTime", phys.SleepTime)

	ch := character.DefaultConfig()
	viper.SetDefault("character.walkSpeed", ch.WalkSpeed)
	viper.SetDefault("character.runSpeed", ch.RunSpeed)
	viper.SetDefault("character.jumpSpeed", ch.JumpSpeed)
	viper.SetDefault("character.stepHeight", ch.StepHeight)
	viper.SetDefault("character.staminaDrain", ch.StaminaDrain)
	viper.SetDefault("character.staminaRegen", ch.StaminaRegen)

	wheel := vehicle.DefaultWheelConfig()
	viper.SetDefault("wheel.suspensionStiffness", wheel.SuspensionStiffness)
	viper.SetDefault("wheel.dampingRelaxation", wheel.DampingRelaxation)
	viper.SetDefault("wheel.dampingCompression", wheel.DampingCompression)
	viper.SetDefault("wheel.frictionSlip", wheel.FrictionSlip)
	viper.SetDefault("wheel.suspensionRestLength", wheel.SuspensionRest)
	viper.SetDefault("wheel.maxSuspensionTravel", wheel.MaxSuspensionTravel)
	viper.SetDefault("wheel.rollInfluence", wheel.RollInfluence)

	in := input.DefaultConfig()
	viper.SetDefault("input.lookSensitivity", in.LookSensitivity)
	viper.SetDefault("input.steerRate", in.SteerRate)
	viper.SetDefault("input.maxPitch", in.MaxPitch)

	ms := mission.DefaultConfig()
	viper.SetDefault("mission.deliveryTimeLimit", ms.DeliveryTimeLimit)
	viper.SetDefault("mission.pickup", formatVec(ms.Pickup))
	viper.SetDefault("mission.dropoff", formatVec(ms.Dropoff))
	viper.SetDefault("mission.checkpointRadius", ms.CheckpointRadius)
	viper.SetDefault("mission.scrapLocations", formatPath(ms.ScrapLocations))
	viper.SetDefault("mission.chaseTarget", string(ms.ChaseTarget))
	viper.SetDefault("mission.chaseLoseDistance", ms.ChaseLoseDistance)
	viper.SetDefault("mission.escapeDistance", ms.EscapeDistance)
	viper.SetDefault("mission.surviveDuration", ms.SurviveDuration)

	cc := city.DefaultConfig()
	viper.SetDefault("city.seed", cc.Seed)
	viper.SetDefault("city.blocks", cc.Blocks)
	viper.SetDefault("city.blockSize", cc.BlockSize)
	viper.SetDefault("city.roadWidth", cc.RoadWidth)
	viper.SetDefault("city.setback", cc.Setback)
	viper.SetDefault("city.minHeight", cc.MinHeight)
	viper.SetDefault("city.maxHeight", cc.MaxHeight)
	viper.SetDefault("city.parkChance", cc.ParkChance)
	viper.SetDefault("city.vehicleSpawns", cc.VehicleSpawns)
	viper.SetDefault("city.anchor.lon", 13.405)
	viper.SetDefault("city.anchor.lat", 52.52)

	viper.SetDefault("server.address", "127.0.0.1:8765")
	viper.SetDefault("server.tickRate", 60)
	viper.SetDefault("server.autosaveSlot", "autosave")
	viper.SetDefault("server.autosaveInterval", "5m")
	viper.SetDefault("server.statusInterval", "1s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "citysim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "citysim")
	viper.SetDefault("influx.bucket", "telemetry")
	viper.SetDefault("influx.backupFile", "telemetry_backup.lp.gz")
	viper.SetDefault("influx.interval", "1s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./saves")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./saves/citysim.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/saves")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "citysim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetPhysicsConfig returns the rigid body world settings.
func GetPhysicsConfig() physics.Config {
	cfg := physics.DefaultConfig()
	cfg.Gravity = mgl64.Vec3{0, viper.GetFloat64("physics.gravity"), 0}
	cfg.FixedStep = viper.GetFloat64("physics.fixedStep")
	cfg.MaxSubSteps = viper.GetInt("physics.maxSubSteps")
	cfg.SolverIterations = viper.GetInt("physics.solverIterations")
	cfg.SleepSpeed = viper.GetFloat64("physics.sleepSpeed")
	cfg.SleepTime = viper.GetFloat64("physics.sleepTime")
	return cfg
}

// GetCharacterConfig returns the avatar movement settings.
func GetCharacterConfig() character.Config {
	cfg := character.DefaultConfig()
	cfg.WalkSpeed = viper.GetFloat64("character.walkSpeed")
	cfg.RunSpeed = viper.GetFloat64("character.runSpeed")
	cfg.JumpSpeed = viper.GetFloat64("character.jumpSpeed")
	cfg.StepHeight = viper.GetFloat64("character.stepHeight")
	cfg.StaminaDrain = viper.GetFloat64("character.staminaDrain")
	cfg.StaminaRegen = viper.GetFloat64("character.staminaRegen")
	return cfg
}

// GetVehicleTypes returns the vehicle models with the shared wheel tuning
// applied and per-type overrides read from vehicles.<name>.<field>.
func GetVehicleTypes() map[string]vehicle.Type {
	types := vehicle.DefaultTypes()
	for name, t := range types {
		w := &t.Wheel
		w.SuspensionStiffness = viper.GetFloat64("wheel.suspensionStiffness")
		w.DampingRelaxation = viper.GetFloat64("wheel.dampingRelaxation")
		w.DampingCompression = viper.GetFloat64("wheel.dampingCompression")
		w.FrictionSlip = viper.GetFloat64("wheel.frictionSlip")
		w.SuspensionRest = viper.GetFloat64("wheel.suspensionRestLength")
		w.MaxSuspensionTravel = viper.GetFloat64("wheel.maxSuspensionTravel")
		w.RollInfluence = viper.GetFloat64("wheel.rollInfluence")
		// trucks keep their larger wheels unless the radius is overridden
		overrideFloat("wheel.radius", &w.Radius)

		prefix := "vehicles." + name + "."
		overrideFloat(prefix+"mass", &t.Mass)
		overrideFloat(prefix+"maxSpeed", &t.MaxSpeed)
		overrideFloat(prefix+"steerClamp", &t.SteerClamp)
		overrideFloat(prefix+"engineForce", &t.EngineForce)
		overrideFloat(prefix+"brakeForce", &t.BrakeForce)
		types[name] = t
	}
	return types
}

func overrideFloat(key string, dst *float64) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

// GetInputConfig returns the input translation settings.
func GetInputConfig() input.Config {
	return input.Config{
		LookSensitivity: viper.GetFloat64("input.lookSensitivity"),
		SteerRate:       viper.GetFloat64("input.steerRate"),
		MaxPitch:        viper.GetFloat64("input.maxPitch"),
	}
}

// GetMissionConfig returns the catalog placement settings. Positions are
// "x,y,z" strings and scrap locations a JSON path of [x,z] pairs.
func GetMissionConfig() (mission.Config, error) {
	cfg := mission.DefaultConfig()
	cfg.DeliveryTimeLimit = viper.GetFloat64("mission.deliveryTimeLimit")
	cfg.CheckpointRadius = viper.GetFloat64("mission.checkpointRadius")
	cfg.ChaseTarget = core.EntityID(viper.GetString("mission.chaseTarget"))
	cfg.ChaseLoseDistance = viper.GetFloat64("mission.chaseLoseDistance")
	cfg.EscapeDistance = viper.GetFloat64("mission.escapeDistance")
	cfg.SurviveDuration = viper.GetFloat64("mission.surviveDuration")

	var err error
	if cfg.Pickup, err = geo.ParsePosition(viper.GetString("mission.pickup")); err != nil {
		return cfg, fmt.Errorf("mission.pickup: %w", err)
	}
	if cfg.Dropoff, err = geo.ParsePosition(viper.GetString("mission.dropoff")); err != nil {
		return cfg, fmt.Errorf("mission.dropoff: %w", err)
	}
	if cfg.ScrapLocations, err = geo.ParsePath(viper.GetString("mission.scrapLocations")); err != nil {
		return cfg, fmt.Errorf("mission.scrapLocations: %w", err)
	}
	return cfg, nil
}

// GetCityConfig returns the layout generator settings.
func GetCityConfig() city.Config {
	return city.Config{
		Seed:          viper.GetInt64("city.seed"),
		Blocks:        viper.GetInt("city.blocks"),
		BlockSize:     viper.GetFloat64("city.blockSize"),
		RoadWidth:     viper.GetFloat64("city.roadWidth"),
		Setback:       viper.GetFloat64("city.setback"),
		MinHeight:     viper.GetFloat64("city.minHeight"),
		MaxHeight:     viper.GetFloat64("city.maxHeight"),
		ParkChance:    viper.GetFloat64("city.parkChance"),
		VehicleSpawns: viper.GetInt("city.vehicleSpawns"),
	}
}

// GetAnchorConfig returns the geographic anchor of the city.
func GetAnchorConfig() AnchorConfig {
	return AnchorConfig{
		Lon: viper.GetFloat64("city.anchor.lon"),
		Lat: viper.GetFloat64("city.anchor.lat"),
	}
}

// GetStorageConfig returns the save-game backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the telemetry sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupFile"),
		Interval:   viper.GetDuration("influx.interval"),
	}
}

// GetGraylogConfig returns the GELF output settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetServerConfig returns the stream server and loop settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:          viper.GetString("server.address"),
		TickRate:         viper.GetInt("server.tickRate"),
		AutosaveSlot:     viper.GetString("server.autosaveSlot"),
		AutosaveInterval: viper.GetDuration("server.autosaveInterval"),
		StatusInterval:   viper.GetDuration("server.statusInterval"),
	}
}

func formatVec(v mgl64.Vec3) string {
	return fmt.Sprintf("%g,%g,%g", v.X(), v.Y(), v.Z())
}

func formatPath(points []mgl64.Vec3) string {
	out := "["
	for i, p := range points {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("[%g,%g]", p.X(), p.Z())
	}
	return out + "]"
}
