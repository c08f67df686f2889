// Package drivers holds the thin outbound clients the action dispatchers
// delegate to: push notification services and the Piko VMS REST surface.
package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/austin-smith/fusion-bridge-sub012/internal/actions"
)

const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// Pushover sends push notifications through the Pushover message API.
type Pushover struct {
	token   string
	userKey string
	client  *http.Client
}

func NewPushover(token, userKey string, client *http.Client) *Pushover {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Pushover{token: token, userKey: userKey, client: client}
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Send(ctx context.Context, n actions.Notification) error {
	if p.token == "" || p.userKey == "" {
		return errors.New("pushover not configured")
	}
	form := url.Values{}
	form.Set("token", p.token)
	form.Set("user", p.userKey)
	form.Set("message", n.Message)
	if n.Title != "" {
		form.Set("title", n.Title)
	}
	if n.Priority != 0 {
		form.Set("priority", strconv.Itoa(n.Priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pushoverEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pushover %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
