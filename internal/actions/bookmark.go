package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// BookmarkClient creates a video annotation on the VMS that owns the camera.
type BookmarkClient interface {
	CreateBookmark(ctx context.Context, connectorID, cameraExternalID, name, description string, start time.Time, duration time.Duration) error
}

type bookmarkParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

type BookmarkDispatcher struct {
	client BookmarkClient
}

func NewBookmark(client BookmarkClient) *BookmarkDispatcher {
	return &BookmarkDispatcher{client: client}
}

func (d *BookmarkDispatcher) Type() string { return "create_bookmark" }

func (d *BookmarkDispatcher) Dispatch(ctx context.Context, params json.RawMessage, actx Context) error {
	var p bookmarkParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errors.New("create_bookmark: invalid params")
	}
	name := expand(p.Name, actx)
	if name == "" {
		name = actx.RuleName
	}
	duration := p.DurationSec
	if duration <= 0 {
		duration = 30
	}
	return d.client.CreateBookmark(
		ctx,
		actx.Event.ConnectorID,
		actx.Event.DeviceID,
		name,
		expand(p.Description, actx),
		actx.Event.Timestamp,
		time.Duration(duration)*time.Second,
	)
}
