package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// replaced in tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

const loggerName = "citysim"

// SlogManager manages slog-based logging with optional OTel and GELF output.
type SlogManager struct {
	logger *slog.Logger

	logProvider *sdklog.LoggerProvider
	sinks       *fanout

	// GELF receives every record when set before Setup.
	GELF GELFSender

	// Dynamic state added to each record; nil callbacks are skipped.
	GetTick      func() uint64
	GetMissionID func() string
	GetMode      func() string
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file, or to stdout
// when file is nil, plus OTel when provider is set and GELF when m.GELF is
// set.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(loggerName, otelslog.WithLoggerProvider(provider)))
	}

	if m.GELF != nil {
		handlers = append(handlers, NewGELFHandler(m.GELF, lvl))
	}

	m.sinks = newFanout(handlers...)
	m.logger = slog.New(&stampHandler{next: m.sinks, stamp: sessionStamp{
		tick:    m.tickValue,
		mission: m.missionValue,
		mode:    m.modeValue,
	}})
	m.logger.Info("Logging initialized", "level", level)
}

// The getters are read through the manager so they can be wired after Setup,
// once the session exists.
func (m *SlogManager) tickValue() uint64 {
	if m.GetTick == nil {
		return 0
	}
	return m.GetTick()
}

func (m *SlogManager) missionValue() string {
	if m.GetMissionID == nil {
		return ""
	}
	return m.GetMissionID()
}

func (m *SlogManager) modeValue() string {
	if m.GetMode == nil {
		return ""
	}
	return m.GetMode()
}

// FailedWrites counts sink writes that returned an error.
func (m *SlogManager) FailedWrites() uint64 {
	if m.sinks == nil {
		return 0
	}
	return m.sinks.failed.Load()
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry for a named component at a level given as a
// string, as read from remote commands.
func (m *SlogManager) WriteLog(component, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "component", component)
}
