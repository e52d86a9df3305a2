package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opencity/sandbox/internal/mission"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadJSON(t *testing.T, body string) {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	require.NoError(t, Load(dir))
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	loadJSON(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	loadJSON(t, `{}`)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./citylogs", viper.GetString("logsDir"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "citysim", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./saves", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "citysim", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, "", viper.GetString("otel.endpoint"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetPhysicsConfig_Defaults(t *testing.T) {
	loadJSON(t, `{}`)

	cfg := GetPhysicsConfig()
	assert.Equal(t, mgl64.Vec3{0, -9.82, 0}, cfg.Gravity)
	assert.InDelta(t, 1.0/60.0, cfg.FixedStep, 1e-12)
	assert.Equal(t, 5, cfg.MaxSubSteps)
	assert.Equal(t, 10, cfg.SolverIterations)
	assert.Equal(t, 0.1, cfg.SleepSpeed)
	assert.Equal(t, 1.0, cfg.SleepTime)
}

func TestGetCharacterConfig_Override(t *testing.T) {
	loadJSON(t, `{ "character": { "runSpeed": 12, "staminaDrain": 10 } }`)

	cfg := GetCharacterConfig()
	assert.Equal(t, 5.0, cfg.WalkSpeed)
	assert.Equal(t, 12.0, cfg.RunSpeed)
	assert.Equal(t, 10.0, cfg.StaminaDrain)
	assert.Equal(t, 30.0, cfg.StaminaRegen)
	assert.Equal(t, 0.45, cfg.StepHeight)
}

func TestGetVehicleTypes(t *testing.T) {
	loadJSON(t, `{
		"wheel": { "frictionSlip": 2.0 },
		"vehicles": { "truck": { "steerClamp": 0.8 } }
	}`)

	types := GetVehicleTypes()
	require.Contains(t, types, "sports")
	require.Contains(t, types, "sedan")
	require.Contains(t, types, "truck")

	for name, vt := range types {
		assert.Equal(t, 2.0, vt.Wheel.FrictionSlip, name)
		assert.Equal(t, 30.0, vt.Wheel.SuspensionStiffness, name)
	}
	assert.Equal(t, 0.8, types["truck"].SteerClamp)
	assert.Equal(t, 0.5, types["truck"].Wheel.Radius)
	assert.Equal(t, 0.4, types["sports"].Wheel.Radius)
}

func TestGetMissionConfig(t *testing.T) {
	t.Run("defaults round trip", func(t *testing.T) {
		loadJSON(t, `{}`)

		cfg, err := GetMissionConfig()
		require.NoError(t, err)
		assert.Equal(t, mission.DefaultConfig(), cfg)
	})

	t.Run("override", func(t *testing.T) {
		loadJSON(t, `{ "mission": {
			"pickup": "1,0,2",
			"scrapLocations": "[[5,6],[7,8]]",
			"deliveryTimeLimit": 90
		} }`)

		cfg, err := GetMissionConfig()
		require.NoError(t, err)
		assert.Equal(t, mgl64.Vec3{1, 0, 2}, cfg.Pickup)
		assert.Equal(t, []mgl64.Vec3{{5, 0, 6}, {7, 0, 8}}, cfg.ScrapLocations)
		assert.Equal(t, 90.0, cfg.DeliveryTimeLimit)
	})

	t.Run("bad position", func(t *testing.T) {
		loadJSON(t, `{ "mission": { "dropoff": "nowhere" } }`)

		_, err := GetMissionConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mission.dropoff")
	})
}

func TestGetCityConfig(t *testing.T) {
	loadJSON(t, `{ "city": { "seed": 42, "blocks": 6, "anchor": { "lon": 2.35, "lat": 48.85 } } }`)

	cfg := GetCityConfig()
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 6, cfg.Blocks)
	assert.Equal(t, 80.0, cfg.BlockSize)

	anchor := GetAnchorConfig()
	assert.Equal(t, 2.35, anchor.Lon)
	assert.Equal(t, 48.85, anchor.Lat)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	loadJSON(t, `{}`)

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./saves", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=citysim sslmode=disable", cfg.Postgres.DSN())
}

func TestGetStorageConfig_Override(t *testing.T) {
	loadJSON(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/city.db", "dumpInterval": "10m" },
			"websocket": { "url": "ws://saves:9000/ws", "secret": "s3" }
		}
	}`)

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/city.db", sc.SQLite.Path)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "ws://saves:9000/ws", sc.WebSocket.URL)
	assert.Equal(t, "s3", sc.WebSocket.Secret)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	loadJSON(t, `{}`)

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "citysim", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	loadJSON(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetInfluxAndGraylogConfig(t *testing.T) {
	loadJSON(t, `{
		"influx": { "enabled": true, "host": "metrics", "protocol": "https" },
		"graylog": { "enabled": true, "address": "gl:12201" }
	}`)

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "https://metrics:8086", ic.URL)
	assert.Equal(t, "telemetry", ic.Bucket)
	assert.Equal(t, time.Second, ic.Interval)

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "gl:12201", gc.Address)
}

func TestGetServerConfig(t *testing.T) {
	loadJSON(t, `{ "server": { "tickRate": 30 } }`)

	sc := GetServerConfig()
	assert.Equal(t, "127.0.0.1:8765", sc.Address)
	assert.Equal(t, 30, sc.TickRate)
	assert.Equal(t, "autosave", sc.AutosaveSlot)
	assert.Equal(t, 5*time.Minute, sc.AutosaveInterval)
	assert.Equal(t, time.Second, sc.StatusInterval)
}
