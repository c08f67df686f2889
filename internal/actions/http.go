package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type httpParams struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// HTTPDispatcher sends a templated HTTP request. URL and body support
// {{dot.path}} tokens resolved against the event context.
type HTTPDispatcher struct {
	client *http.Client
}

func NewHTTP(client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPDispatcher{client: client}
}

func (d *HTTPDispatcher) Type() string { return "send_http" }

func (d *HTTPDispatcher) Dispatch(ctx context.Context, params json.RawMessage, actx Context) error {
	var p httpParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errors.New("send_http: invalid params")
	}
	url := expand(strings.TrimSpace(p.URL), actx)
	if url == "" {
		return errors.New("send_http: url is required")
	}
	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if p.Body != "" {
		body = strings.NewReader(expand(p.Body, actx))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if p.Body != "" && p.Headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send_http %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}
