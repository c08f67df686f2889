// Package yolink parses YoLink MQTT report payloads.
package yolink

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/statemap"
	"github.com/austin-smith/fusion-bridge-sub012/internal/typemap"
)

// message is the YoLink report envelope. The event field is of the form
// "<DeviceType>.<Action>", e.g. "DoorSensor.StatusChange".
type message struct {
	Event    string          `json:"event"`
	Time     int64           `json:"time"` // unix millis
	MsgID    string          `json:"msgid"`
	DeviceID string          `json:"deviceId"`
	Data     json.RawMessage `json:"data"`
}

type messageData struct {
	State   any    `json:"state"`
	Battery *int   `json:"battery"` // 0..4
	Alarm   string `json:"alarm,omitempty"`
}

// Suffix classifications for actions that do not carry a translatable state.
var actionMap = map[string]model.Classification{
	"online":  {Category: model.CategoryDiagnostics, Type: model.TypeDeviceOnline},
	"offline": {Category: model.CategoryDiagnostics, Type: model.TypeDeviceOffline},
}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Category() model.ConnectorCategory { return model.ConnectorYoLink }

// Parse translates one YoLink MQTT payload.
//
// YoLink precedence: when the payload carries a raw state that translates for
// an identifiable device type, the state change is the exclusive outcome and
// the action suffix is not consulted. Other vendors differ; each parser keeps
// its own observed behavior.
func (p *Parser) Parse(connectorID string, raw []byte) []model.StandardizedEvent {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		slog.Warn("yolink: undecodable payload", "connector_id", connectorID, "error", err)
		return nil
	}
	event := strings.TrimSpace(m.Event)
	deviceID := strings.TrimSpace(m.DeviceID)
	if event == "" || deviceID == "" {
		slog.Warn("yolink: payload missing essential fields", "connector_id", connectorID, "event", event, "device_id", deviceID)
		return nil
	}

	rawType, action := splitEvent(event)
	info := typemap.GetDeviceTypeInfo(model.ConnectorYoLink, rawType)
	ts := eventTime(m.Time)

	base := model.StandardizedEvent{
		EventID:     uuid.New(),
		ConnectorID: connectorID,
		DeviceID:    deviceID,
		MessageID:   strings.TrimSpace(m.MsgID),
		Timestamp:   ts,
		DeviceInfo:  info,
		RawPayload:  append(json.RawMessage(nil), raw...),
	}

	var data messageData
	_ = json.Unmarshal(m.Data, &data)
	rawState, _ := data.State.(string)

	if !info.Unmapped() && rawState != "" {
		if st, ok := statemap.TranslateRawState(info, rawState); ok {
			if display, ok := statemap.DisplayState(st); ok {
				evt := base
				evt.EventID = uuid.New()
				evt.Category = model.CategoryDeviceState
				evt.Type = model.TypeStateChanged
				evt.Payload = &model.StateChangePayload{
					RawStateValue: rawState,
					State:         st,
					DisplayState:  display,
					BatteryLevel:  data.Battery,
				}
				out := []model.StandardizedEvent{evt}
				if data.Battery != nil && *data.Battery <= 1 {
					out = append(out, batteryEvent(base, *data.Battery))
				}
				return out
			}
		}
	}

	if cls, ok := actionMap[strings.ToLower(action)]; ok {
		evt := base
		evt.Category = cls.Category
		evt.Type = cls.Type
		evt.Subtype = cls.Subtype
		return []model.StandardizedEvent{evt}
	}

	evt := base
	evt.Category = model.ClassifyUnknown.Category
	evt.Type = model.ClassifyUnknown.Type
	evt.Payload = &model.UnknownEventPayload{
		RawEventType:  event,
		RawStateValue: rawState,
		Message:       data.Alarm,
	}
	return []model.StandardizedEvent{evt}
}

func batteryEvent(base model.StandardizedEvent, level int) model.StandardizedEvent {
	evt := base
	evt.EventID = uuid.New()
	evt.Category = model.CategoryDiagnostics
	evt.Type = model.TypeBatteryLow
	evt.Payload = &model.StateChangePayload{BatteryLevel: &level}
	return evt
}

func splitEvent(event string) (rawType, action string) {
	if i := strings.Index(event, "."); i >= 0 {
		return event[:i], event[i+1:]
	}
	return event, ""
}

func eventTime(millis int64) time.Time {
	if millis <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(millis).UTC()
}
