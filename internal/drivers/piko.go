package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// PikoAPI creates bookmarks against Piko VMS REST endpoints. One client
// serves all Piko connectors; per-connector base URLs and bearer tokens are
// registered as connectors come up.
type PikoAPI struct {
	client *http.Client

	mu      sync.RWMutex
	systems map[string]pikoSystem // keyed by connector id
}

type pikoSystem struct {
	baseURL string
	token   string
}

func NewPikoAPI(client *http.Client) *PikoAPI {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PikoAPI{client: client, systems: map[string]pikoSystem{}}
}

// RegisterSystem associates a connector with its REST endpoint.
func (p *PikoAPI) RegisterSystem(connectorID, baseURL, token string) {
	p.mu.Lock()
	p.systems[connectorID] = pikoSystem{baseURL: strings.TrimRight(baseURL, "/"), token: token}
	p.mu.Unlock()
}

type bookmarkRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartTimeMs int64  `json:"startTimeMs"`
	DurationMs  int64  `json:"durationMs"`
}

func (p *PikoAPI) CreateBookmark(ctx context.Context, connectorID, cameraExternalID, name, description string, start time.Time, duration time.Duration) error {
	p.mu.RLock()
	sys, ok := p.systems[connectorID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("piko system not registered for connector %s", connectorID)
	}

	body, _ := json.Marshal(bookmarkRequest{
		Name:        name,
		Description: description,
		StartTimeMs: start.UnixMilli(),
		DurationMs:  duration.Milliseconds(),
	})
	endpoint := sys.baseURL + "/rest/v2/devices/" + url.PathEscape(cameraExternalID) + "/bookmarks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sys.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("piko bookmark %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}
