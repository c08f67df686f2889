package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Connector is a configured integration instance for one vendor category
// (e.g. a specific YoLink home or Piko system). Config holds the per-vendor
// credential/endpoint JSON consumed by the matching connection manager.
type Connector struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;index:idx_connectors_org;not null" json:"organization_id"`
	Category       string         `gorm:"not null" json:"category"` // yolink|genea|piko
	Name           string         `gorm:"not null" json:"name"`
	Enabled        bool           `gorm:"not null;default:false" json:"enabled"`
	Config         datatypes.JSON `gorm:"type:jsonb" json:"config"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Area groups devices for arming and rule scoping.
type Area struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index:idx_areas_org;not null" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Device is the internal record for a vendor device. ExternalID is the
// vendor-native identifier; parsers only ever see that, never this row's ID.
type Device struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectorID uuid.UUID  `gorm:"type:uuid;index,uniqueIndex:idx_devices_connector_external;not null" json:"connector_id"`
	ExternalID  string     `gorm:"uniqueIndex:idx_devices_connector_external;not null" json:"external_id"`
	AreaID      *uuid.UUID `gorm:"type:uuid;index:idx_devices_area" json:"area_id,omitempty"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Subtype     string     `json:"subtype,omitempty"`
	LastSeen    time.Time  `json:"last_seen"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AutomationRule is a stored, organization-scoped rule. Config is the
// trigger/conditions/actions JSON; the engine validates it at load time and
// skips rules that fail, so a bad rule never blocks its siblings.
type AutomationRule struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;index:idx_rules_org;not null" json:"organization_id"`
	Name           string         `gorm:"not null" json:"name"`
	Enabled        bool           `gorm:"not null;default:false" json:"enabled"`
	Config         datatypes.JSON `gorm:"type:jsonb;not null" json:"config"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EventRecord is the audit row persisted for every StandardizedEvent.
type EventRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectorID    uuid.UUID      `gorm:"type:uuid;index:idx_events_connector;not null" json:"connector_id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;index:idx_events_org;not null" json:"organization_id"`
	DeviceUUID     *uuid.UUID     `gorm:"type:uuid;index:idx_events_device" json:"device_uuid,omitempty"`
	DeviceID       string         `gorm:"not null" json:"device_id"` // vendor-native
	Category       string         `gorm:"not null" json:"category"`
	Type           string         `gorm:"index:idx_events_type;not null" json:"type"`
	Subtype        string         `json:"subtype,omitempty"`
	Payload        datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	RawPayload     datatypes.JSON `gorm:"type:jsonb" json:"raw_payload,omitempty"`
	Timestamp      time.Time      `gorm:"index:idx_events_timestamp;not null" json:"timestamp"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ActionExecution records one dispatcher invocation for a matched rule.
type ActionExecution struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RuleID     uuid.UUID `gorm:"type:uuid;index:idx_action_execs_rule;not null" json:"rule_id"`
	EventID    uuid.UUID `gorm:"type:uuid;index:idx_action_execs_event;not null" json:"event_id"`
	ActionType string    `gorm:"not null" json:"action_type"`
	Status     string    `gorm:"not null" json:"status"` // success|failed
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *Connector) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (a *Area) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (e *EventRecord) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (a *ActionExecution) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
