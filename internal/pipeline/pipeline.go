// Package pipeline runs standardized events through persistence, state
// caching, live streaming and rule matching.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	GetConnector(ctx context.Context, id uuid.UUID) (*store.Connector, error)
	ResolveDevice(ctx context.Context, connectorID uuid.UUID, externalID, typeName, subtype string) (*store.Device, error)
	SaveEvent(ctx context.Context, rec *store.EventRecord) error
}

// Cache covers redelivery claims and last-known device state.
type Cache interface {
	ClaimMessage(ctx context.Context, connectorID, messageID string, ttl time.Duration) (bool, error)
	SetDeviceState(ctx context.Context, connectorID, externalID, display string) error
}

// Feed streams events to live subscribers.
type Feed interface {
	Publish(evt model.StandardizedEvent)
}

// Matcher evaluates automation rules against one event.
type Matcher interface {
	HandleEvent(ctx context.Context, evt *model.StandardizedEvent, device *store.Device, orgID uuid.UUID)
}

const defaultDedupTTL = 2 * time.Minute

type Pipeline struct {
	repo    Store
	cache   Cache
	feed    Feed
	matcher Matcher

	// DedupTTL bounds how long a vendor message id blocks redeliveries.
	DedupTTL time.Duration
}

func New(repo Store, cache Cache, feed Feed, matcher Matcher) *Pipeline {
	return &Pipeline{repo: repo, cache: cache, feed: feed, matcher: matcher, DedupTTL: defaultDedupTTL}
}

// Process runs each event through the full chain. A failing stage for one
// event never suppresses processing of the others, and persistence failures
// are logged without blocking matching.
func (p *Pipeline) Process(ctx context.Context, conn *store.Connector, events ...model.StandardizedEvent) {
	for i := range events {
		p.processOne(ctx, conn, &events[i], true)
	}
}

// InjectEvent persists and streams a synthetic rule-created event. Injected
// events are never fed back into rule matching.
func (p *Pipeline) InjectEvent(ctx context.Context, evt model.StandardizedEvent) error {
	connID, err := uuid.Parse(evt.ConnectorID)
	if err != nil {
		slog.Warn("pipeline: injected event has no valid connector id", "connector_id", evt.ConnectorID)
		p.feed.Publish(evt)
		return nil
	}
	conn, err := p.repo.GetConnector(ctx, connID)
	if err != nil {
		return err
	}
	p.processOne(ctx, conn, &evt, false)
	return nil
}

func (p *Pipeline) processOne(ctx context.Context, conn *store.Connector, evt *model.StandardizedEvent, match bool) {
	if evt.MessageID != "" && p.cache != nil {
		claimed, err := p.cache.ClaimMessage(ctx, conn.ID.String(), evt.MessageID, p.DedupTTL)
		if err != nil {
			slog.Warn("pipeline: dedup claim failed, processing anyway", "connector_id", conn.ID, "message_id", evt.MessageID, "error", err)
		} else if !claimed {
			slog.Debug("pipeline: duplicate message dropped", "connector_id", conn.ID, "message_id", evt.MessageID)
			return
		}
	}

	device, err := p.repo.ResolveDevice(ctx, conn.ID, evt.DeviceID, string(evt.DeviceInfo.Type), string(evt.DeviceInfo.Subtype))
	if err != nil {
		slog.Error("pipeline: device resolution failed", "connector_id", conn.ID, "device_id", evt.DeviceID, "error", err)
	}

	if err := p.repo.SaveEvent(ctx, p.record(conn, evt, device)); err != nil {
		slog.Error("pipeline: event persistence failed", "connector_id", conn.ID, "event_id", evt.EventID, "error", err)
	}

	if sc, ok := evt.Payload.(*model.StateChangePayload); ok && sc.DisplayState != "" && p.cache != nil {
		if err := p.cache.SetDeviceState(ctx, conn.ID.String(), evt.DeviceID, sc.DisplayState); err != nil {
			slog.Warn("pipeline: device state cache write failed", "connector_id", conn.ID, "device_id", evt.DeviceID, "error", err)
		}
	}

	p.feed.Publish(*evt)

	if match && p.matcher != nil {
		p.matcher.HandleEvent(ctx, evt, device, conn.OrganizationID)
	}
}

func (p *Pipeline) record(conn *store.Connector, evt *model.StandardizedEvent, device *store.Device) *store.EventRecord {
	rec := &store.EventRecord{
		ID:             evt.EventID,
		ConnectorID:    conn.ID,
		OrganizationID: conn.OrganizationID,
		DeviceID:       evt.DeviceID,
		Category:       string(evt.Category),
		Type:           string(evt.Type),
		Subtype:        string(evt.Subtype),
		RawPayload:     store.JSONB(evt.RawPayload),
		Timestamp:      evt.Timestamp,
	}
	if device != nil {
		rec.DeviceUUID = &device.ID
	}
	if evt.Payload != nil {
		if b, err := json.Marshal(evt.Payload); err == nil {
			rec.Payload = store.JSONB(b)
		}
	}
	return rec
}
