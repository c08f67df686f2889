package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Repo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	// Reduce log noise: "record not found" is expected during device resolution.
	gormLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return gorm.Open(
		postgres.New(postgres.Config{DSN: dsn}),
		&gorm.Config{DisableForeignKeyConstraintWhenMigrating: true, Logger: gormLogger},
	)
}

func New(db *gorm.DB) (*Repo, error) {
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

func ensureSchema(db *gorm.DB) error {
	m := db.Migrator()

	// Create missing tables only. We intentionally avoid AutoMigrate: the
	// schema is stable and managed by explicit model definitions.
	for _, mdl := range []any{&Connector{}, &Area{}, &Device{}, &AutomationRule{}, &EventRecord{}, &ActionExecution{}} {
		if m.HasTable(mdl) {
			continue
		}
		if err := m.CreateTable(mdl); err != nil {
			return fmt.Errorf("create table %T: %w", mdl, err)
		}
	}
	return nil
}

// --- connectors ---

func (r *Repo) ListEnabledConnectors(ctx context.Context) ([]Connector, error) {
	var rows []Connector
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at asc").Find(&rows).Error
	return rows, err
}

func (r *Repo) GetConnector(ctx context.Context, id uuid.UUID) (*Connector, error) {
	var c Connector
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// --- areas ---

func (r *Repo) GetArea(ctx context.Context, id uuid.UUID) (*Area, error) {
	var a Area
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// --- devices ---

// ResolveDevice returns the internal device row for a vendor-native
// identifier, creating it on first sighting so unknown devices still get an
// audit trail. typeName/subtype come from the event's resolved device info.
func (r *Repo) ResolveDevice(ctx context.Context, connectorID uuid.UUID, externalID, typeName, subtype string) (*Device, error) {
	var d Device
	err := r.db.WithContext(ctx).First(&d, "connector_id = ? AND external_id = ?", connectorID, externalID).Error
	if err == nil {
		updates := map[string]any{"last_seen": time.Now().UTC()}
		if d.Type == "" && typeName != "" {
			updates["type"] = typeName
			updates["subtype"] = subtype
		}
		_ = r.db.WithContext(ctx).Model(&d).Updates(updates).Error
		return &d, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	d = Device{
		ConnectorID: connectorID,
		ExternalID:  externalID,
		Type:        typeName,
		Subtype:     subtype,
		LastSeen:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// --- automation rules ---

func (r *Repo) ListEnabledRules(ctx context.Context) ([]AutomationRule, error) {
	var rows []AutomationRule
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at asc").Find(&rows).Error
	return rows, err
}

// --- events & audit ---

func (r *Repo) SaveEvent(ctx context.Context, rec *EventRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repo) RecordActionExecution(ctx context.Context, ruleID, eventID uuid.UUID, actionType, status, errMsg string) error {
	rec := &ActionExecution{RuleID: ruleID, EventID: eventID, ActionType: actionType, Status: status, Error: errMsg}
	return r.db.WithContext(ctx).Create(rec).Error
}

// PruneEventsBefore removes audit rows older than the cutoff. Returns the
// number of rows deleted.
func (r *Repo) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&EventRecord{})
	return res.RowsAffected, res.Error
}

// JSONB is a small helper for building jsonb columns from raw bytes.
func JSONB(b []byte) datatypes.JSON {
	if len(b) == 0 {
		return nil
	}
	return datatypes.JSON(b)
}
