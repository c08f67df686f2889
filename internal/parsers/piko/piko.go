// Package piko parses Piko VMS WebSocket event payloads.
package piko

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/typemap"
)

type wsEvent struct {
	EventType          string         `json:"eventType"`
	Caption            string         `json:"caption"`
	Description        string         `json:"description"`
	EventResourceID    string         `json:"eventResourceId"`
	EventResourceType  string         `json:"eventResourceType"`
	EventTimestampUsec int64          `json:"eventTimestampUsec"`
	EventParams        map[string]any `json:"eventParams"`
}

var actionMap = map[string]model.Classification{
	"cameramotionevent":     {Category: model.CategoryAnalytics, Type: model.TypeMotionDetected},
	"cameradisconnectevent": {Category: model.CategoryDiagnostics, Type: model.TypeDeviceOffline},
	"serverstartedevent":    {Category: model.CategoryDiagnostics, Type: model.TypeDeviceOnline},
}

// analyticsSdkEvent is a complex action: one code covers several detection
// outcomes, disambiguated by the analytics object class.
var complexActions = map[string]func(wsEvent) model.Classification{
	"analyticssdkevent": classifyAnalytics,
}

func classifyAnalytics(e wsEvent) model.Classification {
	cls := model.Classification{Category: model.CategoryAnalytics, Type: model.TypeObjectDetected}
	class, _ := e.EventParams["objectClass"].(string)
	if class == "" {
		class = e.Caption
	}
	switch {
	case strings.Contains(strings.ToLower(class), "person"):
		cls.Subtype = model.SubtypePerson
	case strings.Contains(strings.ToLower(class), "vehicle"):
		cls.Subtype = model.SubtypeVehicle
	}
	return cls
}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Category() model.ConnectorCategory { return model.ConnectorPiko }

// Parse translates one Piko WebSocket payload. Classification comes from the
// event-type map only; Piko payloads carry no device state to translate.
func (p *Parser) Parse(connectorID string, raw []byte) []model.StandardizedEvent {
	var e wsEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		slog.Warn("piko: undecodable payload", "connector_id", connectorID, "error", err)
		return nil
	}
	eventType := strings.TrimSpace(e.EventType)
	resourceID := strings.TrimSpace(e.EventResourceID)
	if eventType == "" || resourceID == "" {
		slog.Warn("piko: payload missing essential fields", "connector_id", connectorID, "event_type", eventType, "resource_id", resourceID)
		return nil
	}

	rawType := strings.TrimSpace(e.EventResourceType)
	if rawType == "" {
		rawType = "camera"
	}

	evt := model.StandardizedEvent{
		EventID:     uuid.New(),
		ConnectorID: connectorID,
		DeviceID:    resourceID,
		Timestamp:   eventTime(e.EventTimestampUsec),
		DeviceInfo:  typemap.GetDeviceTypeInfo(model.ConnectorPiko, rawType),
		RawPayload:  append(json.RawMessage(nil), raw...),
	}

	key := strings.ToLower(eventType)
	cls, ok := actionMap[key]
	if !ok {
		if fn, okC := complexActions[key]; okC {
			cls = fn(e)
			ok = true
		}
	}
	if !ok {
		evt.Category = model.ClassifyUnknown.Category
		evt.Type = model.ClassifyUnknown.Type
		evt.Payload = &model.UnknownEventPayload{RawEventType: eventType, Message: e.Caption}
		return []model.StandardizedEvent{evt}
	}

	evt.Category = cls.Category
	evt.Type = cls.Type
	evt.Subtype = cls.Subtype
	if cls.Category == model.CategoryAnalytics {
		class, _ := e.EventParams["objectClass"].(string)
		evt.Payload = &model.AnalyticsPayload{Caption: e.Caption, Description: e.Description, ObjectClass: class}
	}
	return []model.StandardizedEvent{evt}
}

func eventTime(usec int64) time.Time {
	if usec <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMicro(usec).UTC()
}
