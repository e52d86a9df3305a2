package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/opencity/sandbox/internal/city"
	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/dispatcher"
	"github.com/opencity/sandbox/internal/geo"
	"github.com/opencity/sandbox/internal/influx"
	"github.com/opencity/sandbox/internal/logging"
	"github.com/opencity/sandbox/internal/monitor"
	intOtel "github.com/opencity/sandbox/internal/otel"
	"github.com/opencity/sandbox/internal/session"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/internal/worker"
	"github.com/opencity/sandbox/pkg/core"
	"github.com/opencity/sandbox/pkg/streaming"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "citysim"
)

// app holds the services of one process run.
type app struct {
	start     time.Time
	sessionID string
	level     string

	slogManager *logging.SlogManager
	logger      *slog.Logger
	logFile     *os.File
	otel        *intOtel.Provider
	gelf        *gelf.Writer

	backend    storage.Backend
	dispatcher *dispatcher.Dispatcher
	workers    *worker.Manager
	telemetry  *influx.Manager
	monitor    *monitor.Service
	hub        *hub
	session    *session.Session
	server     *http.Server
	serverCfg  config.ServerConfig

	loads chan *core.SaveGame
}

func main() {
	configDir := "."
	if dir := os.Getenv("CITYSIM_CONFIG_DIR"); dir != "" {
		configDir = dir
	}
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = strings.ToLower(os.Args[1])
	}

	a, err := setup(configDir)
	if err != nil {
		a.shutdown()
		fmt.Fprintf(os.Stderr, "citysim: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = a.run(ctx)
		stop()
	case "slots":
		err = a.printSlots()
	case "geojson":
		err = printGeoJSON()
	case "version":
		fmt.Println(CurrentVersion, BuildDate)
	default:
		err = fmt.Errorf("unknown command %q (run, slots, geojson, version)", cmd)
	}
	a.shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "citysim: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, sets up logging, otel and storage and builds the
// session.
func setup(configDir string) (*app, error) {
	a := &app{
		start:     time.Now(),
		sessionID: uuid.NewString(),
		loads:     make(chan *core.SaveGame, 1),
	}

	a.slogManager = logging.NewSlogManager()
	a.slogManager.Setup(nil, "info", nil)
	a.logger = a.slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "dir", configDir)
	}
	a.level = viper.GetString("logLevel")

	logPath := logging.LogFilePath(viper.GetString("logsDir"), AppName, a.start)
	logFile, err := logging.OpenLogFile(logPath)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
	} else {
		a.logFile = logFile
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			SessionID:      a.sessionID,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      a.logWriter(),
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	if gc := config.GetGraylogConfig(); gc.Enabled {
		a.gelf, err = gelf.NewWriter(gc.Address)
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "address", gc.Address, "error", err)
		} else {
			a.slogManager.GELF = a.gelf
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otel != nil {
		otelLogProvider = a.otel.LoggerProvider()
	}
	if a.logFile != nil {
		a.slogManager.Setup(a.logFile, a.level, otelLogProvider)
	} else {
		a.slogManager.Setup(nil, a.level, otelLogProvider)
	}
	a.logger = a.slogManager.Logger().With("session", a.sessionID)
	a.logger.Info("Starting up", "version", CurrentVersion, "build", BuildDate)

	if err := a.initStorage(); err != nil {
		return a, err
	}
	if err := a.initSession(); err != nil {
		return a, err
	}
	return a, nil
}

func (a *app) logWriter() *os.File {
	if a.logFile != nil {
		return a.logFile
	}
	return os.Stdout
}

func (a *app) initStorage() error {
	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, a.level, a.logWriter(), a.logger, a.start)
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return err
	}
	a.backend = backend

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(
		logging.NewZerolog(a.logWriter(), a.level, "dispatcher")))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	var sink worker.TelemetrySink
	if ic := config.GetInfluxConfig(); ic.Enabled {
		anchorCfg := config.GetAnchorConfig()
		anchor, err := geo.NewAnchor(anchorCfg.Lon, anchorCfg.Lat)
		if err != nil {
			a.logger.Warn("Invalid city anchor, telemetry without coordinates", "error", err)
		}
		tel := influx.NewManager(logging.NewZerolog(a.logWriter(), a.level, "influx"), ic, anchor)
		if err := tel.Connect(); err != nil {
			a.logger.Error("Telemetry unavailable", "error", err)
		} else {
			a.telemetry = tel
			sink = tel
		}
	}

	a.workers = worker.NewManager(worker.Dependencies{
		Backend:   a.backend,
		Telemetry: sink,
		Logger:    a.logger.With("component", "worker"),
	})
	a.workers.RegisterHandlers(a.dispatcher)
	a.logger.Info("Worker handlers registered with dispatcher", "storage", storageCfg.Type)
	return nil
}

func (a *app) initSession() error {
	missionCfg, err := config.GetMissionConfig()
	if err != nil {
		return err
	}
	ic := config.GetInfluxConfig()
	cfg := session.Config{
		SessionID:         a.sessionID,
		Physics:           config.GetPhysicsConfig(),
		Character:         config.GetCharacterConfig(),
		VehicleTypes:      config.GetVehicleTypes(),
		Input:             config.GetInputConfig(),
		Mission:           missionCfg,
		City:              config.GetCityConfig(),
		TelemetryInterval: ic.Interval,
	}
	a.serverCfg = config.GetServerConfig()
	a.hub = newHub(a.logger.With("component", "stream"))

	deps := session.Dependencies{
		Input:      a.hub,
		Scene:      a.hub,
		Notifier:   a.hub,
		Saves:      a.workers,
		Dispatcher: a.dispatcher,
		Logger:     a.logger,
	}
	if a.telemetry != nil {
		deps.Telemetry = a.workers
	}
	a.session, err = session.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	sess := a.session
	a.slogManager.GetTick = sess.TickCount
	// Status is the published copy, safe to read from any logging goroutine.
	a.slogManager.GetMissionID = func() string { return sess.Status().ActiveMission }
	a.slogManager.GetMode = func() string { return string(sess.Status().Mode) }

	a.monitor = monitor.NewService(monitor.Dependencies{
		Source:    sess,
		Recorder:  a.workers,
		Writes:    a.workers,
		OutputDir: viper.GetString("logsDir"),
		Interval:  a.serverCfg.StatusInterval,
		Logger:    a.logger.With("component", "monitor"),
	})
	return nil
}

// run serves the stream and drives the tick loop until ctx is done, then
// writes a final autosave.
func (a *app) run(ctx context.Context) error {
	if err := a.monitor.Start(); err != nil {
		a.logger.Warn("Failed to start status monitor", "error", err)
	}
	a.resumeAutosave()

	mux := http.NewServeMux()
	mux.Handle("/ws", a.hub)
	a.server = &http.Server{Addr: a.serverCfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Stream server listening", "address", a.serverCfg.Address)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	rate := max(a.serverCfg.TickRate, 1)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	autosave := newOptionalTicker(a.serverCfg.AutosaveInterval)
	defer autosave.Stop()
	status := newOptionalTicker(a.serverCfg.StatusInterval)
	defer status.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutting down", "tick", a.session.TickCount())
			a.autosave()
			return nil
		case err := <-serveErr:
			return fmt.Errorf("stream server: %w", err)
		case now := <-ticker.C:
			a.session.Tick(now.Sub(last).Seconds())
			last = now
		case cmd := <-a.hub.Commands():
			a.handleCommand(cmd)
		case save := <-a.loads:
			if err := a.session.Load(save); err != nil {
				a.logger.Error("Failed to load save", "slot", save.Slot, "error", err)
			}
			last = time.Now()
		case <-autosave.C():
			a.autosave()
		case <-status.C():
			a.hub.PushStatus(a.session.Status())
		}
	}
}

func (a *app) autosave() {
	if _, err := a.session.Command(session.CmdSave, a.serverCfg.AutosaveSlot); err != nil {
		a.logger.Error("Autosave failed", "slot", a.serverCfg.AutosaveSlot, "error", err)
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otel.Flush(ctx); err != nil {
			a.logger.Warn("Failed to flush OTel logs", "error", err)
		}
	}
}

// resumeAutosave loads the autosave slot when one exists.
func (a *app) resumeAutosave() {
	save, err := a.backend.LoadGame(a.serverCfg.AutosaveSlot)
	switch {
	case errors.Is(err, storage.ErrSlotNotFound):
		a.logger.Info("No autosave, starting a new game")
	case err != nil:
		a.logger.Warn("Failed to read autosave, starting a new game", "error", err)
	default:
		if err := a.session.Load(save); err != nil {
			a.logger.Error("Failed to resume autosave", "error", err)
			return
		}
		a.logger.Info("Resumed autosave", "tick", save.Tick)
	}
}

// handleCommand runs on the tick goroutine. Storage reads run in the
// background and come back through a.loads.
func (a *app) handleCommand(cmd streaming.CommandPayload) {
	switch cmd.Name {
	case "load":
		go func() {
			save, err := a.backend.LoadGame(cmd.Slot)
			if err != nil {
				a.logger.Error("Failed to load slot", "slot", cmd.Slot, "error", err)
				return
			}
			select {
			case a.loads <- save:
			default:
				a.logger.Warn("Load already pending, dropping", "slot", cmd.Slot)
			}
		}()
	case "list_slots":
		go func() {
			slots, err := a.backend.ListSlots()
			if err != nil {
				a.logger.Error("Failed to list slots", "error", err)
				return
			}
			a.hub.broadcast(streaming.TypeSlots, streaming.SlotsPayload{Slots: slots})
		}()
	default:
		args := cmd.Args
		if cmd.Slot != "" {
			args = append([]string{cmd.Slot}, args...)
		}
		if _, err := a.session.Command(cmd.Name, args...); err != nil {
			a.logger.Warn("Command failed", "command", cmd.Name, "error", err)
		}
	}
}

func (a *app) printSlots() error {
	slots, err := a.backend.ListSlots()
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Println("No saves.")
		return nil
	}
	for _, s := range slots {
		fmt.Printf("%-16s %s tick=%d id=%s\n", s.Slot, s.SavedAt.Format(time.RFC3339), s.Tick, s.SaveID)
	}
	return nil
}

func printGeoJSON() error {
	layout, err := city.Generate(config.GetCityConfig())
	if err != nil {
		return err
	}
	ac := config.GetAnchorConfig()
	anchor, err := geo.NewAnchor(ac.Lon, ac.Lat)
	if err != nil {
		return err
	}
	data, err := layout.GeoJSON(anchor)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

// shutdown stops services in reverse order. The dispatcher drains queued
// saves into the backend before the backend closes.
func (a *app) shutdown() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.telemetry != nil {
		if err := a.telemetry.Close(); err != nil {
			a.logger.Warn("Failed to close telemetry", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("Failed to close storage backend", "error", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel", "error", err)
		}
	}
	if a.gelf != nil {
		_ = a.gelf.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// optionalTicker is a ticker that never fires for a non-positive interval.
type optionalTicker struct {
	t *time.Ticker
}

func newOptionalTicker(d time.Duration) optionalTicker {
	if d <= 0 {
		return optionalTicker{}
	}
	return optionalTicker{t: time.NewTicker(d)}
}

func (o optionalTicker) C() <-chan time.Time {
	if o.t == nil {
		return nil
	}
	return o.t.C
}

func (o optionalTicker) Stop() {
	if o.t != nil {
		o.t.Stop()
	}
}
