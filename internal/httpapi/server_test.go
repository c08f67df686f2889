package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers/genea"
	"github.com/austin-smith/fusion-bridge-sub012/internal/pipeline"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

type fakeRepo struct {
	conn *store.Connector
	area *store.Area
}

func (f *fakeRepo) GetConnector(ctx context.Context, id uuid.UUID) (*store.Connector, error) {
	if f.conn == nil || f.conn.ID != id {
		return nil, errors.New("not found")
	}
	return f.conn, nil
}

func (f *fakeRepo) GetArea(ctx context.Context, id uuid.UUID) (*store.Area, error) {
	if f.area == nil || f.area.ID != id {
		return nil, errors.New("not found")
	}
	return f.area, nil
}

func (f *fakeRepo) ResolveDevice(ctx context.Context, connectorID uuid.UUID, externalID, typeName, subtype string) (*store.Device, error) {
	return &store.Device{ID: uuid.New(), ConnectorID: connectorID, ExternalID: externalID}, nil
}

func (f *fakeRepo) SaveEvent(ctx context.Context, rec *store.EventRecord) error { return nil }

type fakeArming struct {
	modes map[uuid.UUID]model.ArmedState
}

func (f *fakeArming) SetAreaArmed(ctx context.Context, areaID uuid.UUID, mode model.ArmedState) error {
	f.modes[areaID] = mode
	return nil
}

func (f *fakeArming) AreaArmed(ctx context.Context, areaID uuid.UUID) (model.ArmedState, error) {
	return f.modes[areaID], nil
}

type fakeFeed struct{ events []model.StandardizedEvent }

func (f *fakeFeed) Publish(evt model.StandardizedEvent) { f.events = append(f.events, evt) }

func (f *fakeFeed) Subscribe() (<-chan model.StandardizedEvent, func()) {
	ch := make(chan model.StandardizedEvent)
	close(ch)
	return ch, func() {}
}

type fakeMatcher struct{ events []model.StandardizedEvent }

func (f *fakeMatcher) HandleEvent(ctx context.Context, evt *model.StandardizedEvent, device *store.Device, orgID uuid.UUID) {
	f.events = append(f.events, *evt)
}

func newTestServer(t *testing.T) (*Server, *fakeRepo, *fakeArming, *fakeMatcher) {
	t.Helper()
	repo := &fakeRepo{
		conn: &store.Connector{
			ID:             uuid.New(),
			OrganizationID: uuid.New(),
			Category:       string(model.ConnectorGenea),
			Name:           "hq",
			Enabled:        true,
			Config:         datatypes.JSON([]byte(`{}`)),
		},
		area: &store.Area{ID: uuid.New(), OrganizationID: uuid.New(), Name: "lobby"},
	}
	arming := &fakeArming{modes: map[uuid.UUID]model.ArmedState{}}
	feed := &fakeFeed{}
	matcher := &fakeMatcher{}
	pipe := pipeline.New(repo, nil, feed, matcher)
	return New(repo, arming, feed, pipe, genea.New()), repo, arming, matcher
}

func TestGeneaWebhookAcceptsBatch(t *testing.T) {
	srv, repo, _, matcher := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{
		"events": []map[string]any{
			{
				"uuid":         "e1",
				"event_action": "sequr_access_granted",
				"event_time":   time.Now().UTC().Format(time.RFC3339),
				"actor":        map[string]any{"name": "Sam Doe"},
				"door":         map[string]any{"uuid": "door-1", "name": "Front"},
			},
			{
				"uuid":         "e2",
				"event_action": "sequr_door_forced_open",
				"door":         map[string]any{"uuid": "door-1", "name": "Front"},
			},
		},
	})
	resp, err := http.Post(ts.URL+"/api/webhooks/genea/"+repo.conn.ID.String(), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var out struct {
		Accepted int `json:"accepted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Accepted != 2 {
		t.Fatalf("accepted = %d, want 2", out.Accepted)
	}
	if len(matcher.events) != 2 {
		t.Fatalf("matched = %d, want 2", len(matcher.events))
	}
	if matcher.events[0].Type != model.TypeAccessGranted || matcher.events[1].Type != model.TypeDoorForcedOpen {
		t.Fatalf("event types = %s, %s", matcher.events[0].Type, matcher.events[1].Type)
	}
}

func TestGeneaWebhookRejectsUnknownConnector(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/webhooks/genea/"+uuid.NewString(), "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGeneaWebhookRejectsWrongCategory(t *testing.T) {
	srv, repo, _, _ := newTestServer(t)
	repo.conn.Category = string(model.ConnectorYoLink)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/webhooks/genea/"+repo.conn.ID.String(), "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestArmDisarmRoundTrip(t *testing.T) {
	srv, repo, arming, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	base := ts.URL + "/api/areas/" + repo.area.ID.String()

	resp, err := http.Post(base+"/arm", "application/json", bytes.NewReader([]byte(`{"mode":"armed_stay"}`)))
	if err != nil {
		t.Fatalf("arm: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("arm status = %d, want 200", resp.StatusCode)
	}
	if got := arming.modes[repo.area.ID]; got != model.ArmedStay {
		t.Fatalf("mode = %q, want armed_stay", got)
	}

	resp, err = http.Post(base+"/disarm", "application/json", nil)
	if err != nil {
		t.Fatalf("disarm: %v", err)
	}
	resp.Body.Close()
	if got := arming.modes[repo.area.ID]; got != model.Disarmed {
		t.Fatalf("mode = %q, want disarmed", got)
	}
}

func TestArmRejectsDisarmedMode(t *testing.T) {
	srv, repo, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/areas/"+repo.area.ID.String()+"/arm", "application/json", bytes.NewReader([]byte(`{"mode":"disarmed"}`)))
	if err != nil {
		t.Fatalf("arm: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
