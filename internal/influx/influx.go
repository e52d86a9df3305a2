// Package influx ships entity telemetry and mission results to InfluxDB.
// When the server cannot be reached points are appended to a gzip
// compressed line protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/geo"
	"github.com/opencity/sandbox/pkg/core"
)

// ErrDisabled is returned by Connect when telemetry is switched off.
var ErrDisabled = errors.New("influx telemetry is disabled")

const (
	measurementMission = "mission_result"
	retentionSeconds   = 60 * 60 * 24 * 90 // 90 days
	pingTimeout        = 3 * time.Second
)

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger

	cfg        config.InfluxConfig
	anchor     *geo.Anchor
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager. anchor may be nil, in which
// case samples carry no lon/lat fields.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, anchor *geo.Anchor) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
		cfg:     cfg,
		anchor:  anchor,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (m *Manager) Connect() error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	flush := uint(m.cfg.Interval.Milliseconds())
	if flush == 0 {
		flush = 1000
	}
	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(flush),
	)

	// validate client connection health
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	running, err := m.Client.Ping(ctx)
	cancel()

	if err != nil || !running {
		m.IsValid = false
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.cfg.BackupPath == "" {
		return errors.New("influx unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// SamplePoint converts a telemetry sample. The measurement is the entity
// category (vehicle, character).
func (m *Manager) SamplePoint(s core.TelemetrySample) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(s.Category.String())
	addTag(point, "session", s.SessionID)
	addTag(point, "entity", string(s.EntityID))
	point.AddField("tick", s.Tick).
		AddField("x", s.Position.X()).
		AddField("y", s.Position.Y()).
		AddField("z", s.Position.Z()).
		AddField("speed", s.Speed).
		AddField("health", s.Health).
		SetTime(s.Time)

	switch s.Category {
	case core.CategoryVehicle:
		point.AddField("fuel", s.Fuel).AddField("engine_on", s.EngineOn)
	case core.CategoryCharacter:
		point.AddField("stamina", s.Stamina).AddField("driving", s.Driving)
	}

	if m.anchor != nil {
		lon, lat := m.anchor.LonLat(s.Position)
		point.AddField("lon", lon).AddField("lat", lat)
	}
	return point
}

// RecordSamples writes one point per sample.
func (m *Manager) RecordSamples(samples []core.TelemetrySample) error {
	var errs []error
	for _, s := range samples {
		if err := m.WritePoint(m.SamplePoint(s)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordMissionResult writes a mission transition point.
func (m *Manager) RecordMissionResult(r *core.MissionResult) error {
	point := influxdb2_write.NewPointWithMeasurement(measurementMission)
	addTag(point, "session", r.SessionID)
	addTag(point, "mission", r.MissionID)
	addTag(point, "status", r.Status)
	point.AddField("elapsed", r.Elapsed).
		AddField("money", r.Money).
		SetTime(r.Time)
	if r.Reason != "" {
		point.AddField("reason", r.Reason)
	}
	return m.WritePoint(point)
}

// addTag skips empty values, which line protocol cannot carry.
func addTag(p *influxdb2_write.Point, key, value string) {
	if value != "" {
		p.AddTag(key, value)
	}
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
		m.Client = nil
	}
	m.IsValid = false

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}
