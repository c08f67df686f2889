// Package genea parses Genea access-control webhook payloads.
package genea

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/typemap"
)

// webhookBody is either a single event object or a batch under "events".
type webhookBody struct {
	Events []json.RawMessage `json:"events"`
}

type webhookEvent struct {
	UUID        string         `json:"uuid"`
	EventAction string         `json:"event_action"`
	EventTime   string         `json:"event_time"` // RFC3339
	CreatedAt   string         `json:"created_at"` // RFC3339
	Actor       *actorRef      `json:"actor"`
	Door        *entityRef     `json:"door"`
	Controller  *entityRef     `json:"controller"`
	Metadata    map[string]any `json:"metadata"`
}

type actorRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type entityRef struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	State string `json:"state,omitempty"`
}

// Genea action codes map directly to classifications. Door/controller state
// fields in the payload are intentionally never consulted; the action code
// alone is authoritative for this vendor.
var actionMap = map[string]model.Classification{
	"sequr_access_granted":             {Category: model.CategoryAccessControl, Type: model.TypeAccessGranted, Subtype: model.SubtypeNormal},
	"sequr_access_denied_invalid_pin":  {Category: model.CategoryAccessControl, Type: model.TypeAccessDenied, Subtype: model.SubtypeInvalidCredential},
	"sequr_access_denied_expired_card": {Category: model.CategoryAccessControl, Type: model.TypeAccessDenied, Subtype: model.SubtypeExpiredCredential},
	"sequr_access_denied_unknown_card": {Category: model.CategoryAccessControl, Type: model.TypeAccessDenied, Subtype: model.SubtypeUnknownCredential},
	"sequr_door_held_open":             {Category: model.CategoryAccessControl, Type: model.TypeDoorHeldOpen},
	"sequr_door_forced_open":           {Category: model.CategoryAccessControl, Type: model.TypeDoorForcedOpen},
	"sequr_controller_online":          {Category: model.CategoryDiagnostics, Type: model.TypeDeviceOnline},
	"sequr_controller_offline":         {Category: model.CategoryDiagnostics, Type: model.TypeDeviceOffline},
}

// Complex actions cover several outcomes under one code; classification
// requires inspecting payload fields.
var complexActions = map[string]func(webhookEvent) model.Classification{
	"sequr_access_denied": classifyAccessDenied,
}

func classifyAccessDenied(e webhookEvent) model.Classification {
	cls := model.Classification{Category: model.CategoryAccessControl, Type: model.TypeAccessDenied}
	reason, _ := e.Metadata["reason"].(string)
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "invalid_pin", "invalid_credential":
		cls.Subtype = model.SubtypeInvalidCredential
	case "expired_card", "expired_credential":
		cls.Subtype = model.SubtypeExpiredCredential
	case "unknown_card", "unknown_credential":
		cls.Subtype = model.SubtypeUnknownCredential
	}
	return cls
}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Category() model.ConnectorCategory { return model.ConnectorGenea }

// Parse translates one Genea webhook body. A batch body produces one
// StandardizedEvent per well-formed entry; malformed entries are skipped
// without suppressing their siblings.
func (p *Parser) Parse(connectorID string, raw []byte) []model.StandardizedEvent {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		slog.Warn("genea: undecodable payload", "connector_id", connectorID, "error", err)
		return nil
	}
	entries := body.Events
	if len(entries) == 0 {
		entries = []json.RawMessage{json.RawMessage(raw)}
	}

	var out []model.StandardizedEvent
	for _, entry := range entries {
		if evt, ok := p.parseOne(connectorID, entry); ok {
			out = append(out, evt)
		}
	}
	return out
}

func (p *Parser) parseOne(connectorID string, raw json.RawMessage) (model.StandardizedEvent, bool) {
	var e webhookEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		slog.Warn("genea: undecodable event entry", "connector_id", connectorID, "error", err)
		return model.StandardizedEvent{}, false
	}
	action := strings.TrimSpace(e.EventAction)
	deviceID, rawType := deviceIdentity(e)
	if action == "" || deviceID == "" {
		slog.Warn("genea: event missing essential fields", "connector_id", connectorID, "action", action, "device_id", deviceID)
		return model.StandardizedEvent{}, false
	}

	cls, ok := actionMap[strings.ToLower(action)]
	if !ok {
		if fn, okC := complexActions[strings.ToLower(action)]; okC {
			cls = fn(e)
			ok = true
		}
	}

	evt := model.StandardizedEvent{
		EventID:     uuid.New(),
		ConnectorID: connectorID,
		DeviceID:    deviceID,
		MessageID:   strings.TrimSpace(e.UUID),
		Timestamp:   eventTime(e),
		DeviceInfo:  typemap.GetDeviceTypeInfo(model.ConnectorGenea, rawType),
		RawPayload:  append(json.RawMessage(nil), raw...),
	}

	if !ok {
		evt.Category = model.ClassifyUnknown.Category
		evt.Type = model.ClassifyUnknown.Type
		evt.Payload = &model.UnknownEventPayload{RawEventType: action}
		return evt, true
	}

	evt.Category = cls.Category
	evt.Type = cls.Type
	evt.Subtype = cls.Subtype
	payload := &model.AccessControlPayload{}
	if e.Actor != nil {
		payload.ActorName = e.Actor.Name
		payload.ActorEmail = e.Actor.Email
	}
	if e.Door != nil {
		payload.DoorName = e.Door.Name
	}
	if reason, okR := e.Metadata["reason"].(string); okR {
		payload.Message = reason
	}
	evt.Payload = payload
	return evt, true
}

// deviceIdentity picks the vendor-native device identifier: the door when
// present, otherwise the controller.
func deviceIdentity(e webhookEvent) (id, rawType string) {
	if e.Door != nil && strings.TrimSpace(e.Door.UUID) != "" {
		return strings.TrimSpace(e.Door.UUID), "door"
	}
	if e.Controller != nil && strings.TrimSpace(e.Controller.UUID) != "" {
		return strings.TrimSpace(e.Controller.UUID), "controller"
	}
	return "", ""
}

func eventTime(e webhookEvent) time.Time {
	for _, candidate := range []string{e.EventTime, e.CreatedAt} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, candidate); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}
