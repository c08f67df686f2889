package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventCategory is the coarse classification of a StandardizedEvent.
type EventCategory string

const (
	CategoryDeviceState   EventCategory = "DEVICE_STATE"
	CategoryAccessControl EventCategory = "ACCESS_CONTROL"
	CategoryAnalytics     EventCategory = "ANALYTICS"
	CategoryDiagnostics   EventCategory = "DIAGNOSTICS"
	CategoryUnknown       EventCategory = "UNKNOWN"
)

// EventType is the fine-grained classification drawn from a fixed enumeration.
type EventType string

const (
	TypeStateChanged    EventType = "STATE_CHANGED"
	TypeBatteryLow      EventType = "BATTERY_LOW"
	TypeAccessGranted   EventType = "ACCESS_GRANTED"
	TypeAccessDenied    EventType = "ACCESS_DENIED"
	TypeDoorHeldOpen    EventType = "DOOR_HELD_OPEN"
	TypeDoorForcedOpen  EventType = "DOOR_FORCED_OPEN"
	TypeMotionDetected  EventType = "MOTION_DETECTED"
	TypeObjectDetected  EventType = "OBJECT_DETECTED"
	TypeDeviceOnline    EventType = "DEVICE_ONLINE"
	TypeDeviceOffline   EventType = "DEVICE_OFFLINE"
	TypeUnknownExternal EventType = "UNKNOWN_EXTERNAL_EVENT"
)

// EventSubtype refines an EventType. Empty means no subtype.
type EventSubtype string

const (
	SubtypeNormal            EventSubtype = "NORMAL"
	SubtypeInvalidCredential EventSubtype = "INVALID_CREDENTIAL"
	SubtypeExpiredCredential EventSubtype = "EXPIRED_CREDENTIAL"
	SubtypeUnknownCredential EventSubtype = "UNKNOWN_CREDENTIAL"
	SubtypeTamper            EventSubtype = "TAMPER"
	SubtypePerson            EventSubtype = "PERSON"
	SubtypeVehicle           EventSubtype = "VEHICLE"
)

// Classification bundles category/type/subtype so vendor action maps can be
// expressed as flat lookup tables.
type Classification struct {
	Category EventCategory
	Type     EventType
	Subtype  EventSubtype
}

// ClassifyUnknown is the defined fallback for unmapped vendor actions.
var ClassifyUnknown = Classification{Category: CategoryUnknown, Type: TypeUnknownExternal}

// StandardizedEvent is the canonical, vendor-agnostic event record every
// parser produces. DeviceID is always the vendor-native identifier; internal
// device resolution happens downstream. MessageID, when the vendor supplies
// one, is used to drop broker redeliveries.
type StandardizedEvent struct {
	EventID     uuid.UUID       `json:"event_id"`
	ConnectorID string          `json:"connector_id"`
	DeviceID    string          `json:"device_id"`
	MessageID   string          `json:"message_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Category    EventCategory   `json:"category"`
	Type        EventType       `json:"type"`
	Subtype     EventSubtype    `json:"subtype,omitempty"`
	DeviceInfo  TypedDeviceInfo `json:"device_info"`
	Payload     any             `json:"payload,omitempty"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
}

// StateChangePayload carries a translated device state change.
type StateChangePayload struct {
	RawStateValue string            `json:"raw_state_value"`
	State         IntermediateState `json:"state"`
	DisplayState  string            `json:"display_state"`
	BatteryLevel  *int              `json:"battery_level,omitempty"`
	Extra         map[string]any    `json:"extra,omitempty"`
}

// AccessControlPayload carries access-control context (actor, door).
type AccessControlPayload struct {
	ActorName      string `json:"actor_name,omitempty"`
	ActorEmail     string `json:"actor_email,omitempty"`
	CredentialType string `json:"credential_type,omitempty"`
	DoorName       string `json:"door_name,omitempty"`
	Message        string `json:"message,omitempty"`
}

// AnalyticsPayload carries camera analytics context.
type AnalyticsPayload struct {
	Caption     string `json:"caption,omitempty"`
	Description string `json:"description,omitempty"`
	ObjectClass string `json:"object_class,omitempty"`
}

// UnknownEventPayload preserves enough vendor context for display when the
// action code is unmapped or a raw state could not be translated.
type UnknownEventPayload struct {
	RawEventType  string `json:"raw_event_type,omitempty"`
	RawStateValue string `json:"raw_state_value,omitempty"`
	Message       string `json:"message,omitempty"`
}

// PayloadMap renders the typed payload as a loosely typed map so rule
// conditions can address fields by dot-path. Returns an empty map when the
// event has no payload.
func (e *StandardizedEvent) PayloadMap() map[string]any {
	if e.Payload == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}
