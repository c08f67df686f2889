package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/austin-smith/fusion-bridge-sub012/internal/actions"
)

const pushcutBaseURL = "https://api.pushcut.io/v1"

// Pushcut sends push notifications through a named Pushcut notification.
type Pushcut struct {
	apiKey       string
	notification string
	client       *http.Client
}

func NewPushcut(apiKey, notification string, client *http.Client) *Pushcut {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Pushcut{apiKey: apiKey, notification: notification, client: client}
}

func (p *Pushcut) Name() string { return "pushcut" }

func (p *Pushcut) Send(ctx context.Context, n actions.Notification) error {
	if p.apiKey == "" || p.notification == "" {
		return errors.New("pushcut not configured")
	}
	payload := map[string]string{"text": n.Message}
	if n.Title != "" {
		payload["title"] = n.Title
	}
	b, _ := json.Marshal(payload)

	endpoint := pushcutBaseURL + "/notifications/" + url.PathEscape(p.notification)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pushcut %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogOnly is the fallback driver used when no push service is configured;
// notifications surface in the service log instead of being dropped
// silently.
type LogOnly struct{}

func (LogOnly) Name() string { return "log" }

func (LogOnly) Send(ctx context.Context, n actions.Notification) error {
	slog.Info("notification (no push driver configured)", "title", n.Title, "message", n.Message)
	return nil
}
