package actions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

// EventSink receives synthetic events created by rules. Injected events are
// persisted and streamed like vendor events but are not re-evaluated by the
// engine, so a rule cannot trigger itself.
type EventSink interface {
	InjectEvent(ctx context.Context, evt model.StandardizedEvent) error
}

type createEventParams struct {
	Category string `json:"category,omitempty"`
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Message  string `json:"message,omitempty"`
}

type CreateEventDispatcher struct {
	sink EventSink
}

func NewCreateEvent(sink EventSink) *CreateEventDispatcher {
	return &CreateEventDispatcher{sink: sink}
}

func (d *CreateEventDispatcher) Type() string { return "create_event" }

func (d *CreateEventDispatcher) Dispatch(ctx context.Context, params json.RawMessage, actx Context) error {
	var p createEventParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errors.New("create_event: invalid params")
	}
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("create_event: type is required")
	}
	category := model.EventCategory(p.Category)
	if category == "" {
		category = model.CategoryDeviceState
	}
	evt := model.StandardizedEvent{
		EventID:     uuid.New(),
		ConnectorID: actx.Event.ConnectorID,
		DeviceID:    actx.Event.DeviceID,
		Timestamp:   time.Now().UTC(),
		Category:    category,
		Type:        model.EventType(p.Type),
		Subtype:     model.EventSubtype(p.Subtype),
		DeviceInfo:  actx.Event.DeviceInfo,
		Payload:     &model.UnknownEventPayload{Message: expand(p.Message, actx)},
	}
	return d.sink.InjectEvent(ctx, evt)
}
