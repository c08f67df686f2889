package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers"
	"github.com/austin-smith/fusion-bridge-sub012/internal/pipeline"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

// pikoConfig is the Connector.Config shape for a Piko VMS system.
type pikoConfig struct {
	WebsocketURL string `json:"websocket_url"`
	Token        string `json:"token"`
}

const (
	pikoMinBackoff = time.Second
	pikoMaxBackoff = time.Minute
)

// PikoManager maintains the event WebSocket to one Piko system, reconnecting
// with backoff whenever the link drops. Each JSON frame is standardized and
// handed to the pipeline.
type PikoManager struct {
	conn   *store.Connector
	cfg    pikoConfig
	pipe   *pipeline.Pipeline
	parser parsers.Parser
	dialer *websocket.Dialer

	cancel context.CancelFunc
	done   chan struct{}

	mu sync.Mutex
	ws *websocket.Conn
}

func NewPiko(conn *store.Connector, pipe *pipeline.Pipeline, parser parsers.Parser) (*PikoManager, error) {
	var cfg pikoConfig
	if err := json.Unmarshal(conn.Config, &cfg); err != nil {
		return nil, fmt.Errorf("piko connector %s: invalid config: %w", conn.ID, err)
	}
	if cfg.WebsocketURL == "" {
		return nil, fmt.Errorf("piko connector %s: websocket_url is required", conn.ID)
	}
	return &PikoManager{
		conn:   conn,
		cfg:    cfg,
		pipe:   pipe,
		parser: parser,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

func (m *PikoManager) Name() string { return "piko/" + m.conn.Name }

func (m *PikoManager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx)
	return nil
}

func (m *PikoManager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	if m.ws != nil {
		_ = m.ws.Close()
	}
	m.mu.Unlock()
	if m.done != nil {
		<-m.done
	}
}

func (m *PikoManager) run(ctx context.Context) {
	defer close(m.done)
	backoff := pikoMinBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		err := m.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("piko websocket dropped, reconnecting", "connector_id", m.conn.ID, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > pikoMaxBackoff {
			backoff = pikoMaxBackoff
		}
	}
}

func (m *PikoManager) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if m.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+m.cfg.Token)
	}
	ws, _, err := m.dialer.DialContext(ctx, m.cfg.WebsocketURL, header)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.ws = ws
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.ws = nil
		m.mu.Unlock()
		_ = ws.Close()
	}()
	slog.Info("piko websocket connected", "connector_id", m.conn.ID)

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		events := m.parser.Parse(m.conn.ID.String(), frame)
		if len(events) > 0 {
			m.pipe.Process(ctx, m.conn, events...)
		}
	}
}
