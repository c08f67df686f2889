package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/mqtt"
	"github.com/austin-smith/fusion-bridge-sub012/internal/parsers"
	"github.com/austin-smith/fusion-bridge-sub012/internal/pipeline"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

// yolinkConfig is the Connector.Config shape for a YoLink home.
type yolinkConfig struct {
	BrokerURL   string `json:"broker_url"`
	HomeID      string `json:"home_id"`
	AccessToken string `json:"access_token"`
	ClientID    string `json:"client_id,omitempty"`
}

// MQTTDialer opens a broker connection. Injectable so manager behavior can
// be tested without a live broker.
type MQTTDialer func(brokerURL string, o mqtt.Options) (mqtt.ClientAPI, error)

func defaultMQTTDialer(brokerURL string, o mqtt.Options) (mqtt.ClientAPI, error) {
	return mqtt.New(brokerURL, o)
}

// YoLinkManager bridges one YoLink home: it subscribes to the home's report
// topic, standardizes every message and hands it to the pipeline. It also
// serves set_device_state actions for devices on its connector.
type YoLinkManager struct {
	conn   *store.Connector
	cfg    yolinkConfig
	pipe   *pipeline.Pipeline
	parser parsers.Parser
	dial   MQTTDialer

	client mqtt.ClientAPI
	topic  string
}

func NewYoLink(conn *store.Connector, pipe *pipeline.Pipeline, parser parsers.Parser, dial MQTTDialer) (*YoLinkManager, error) {
	var cfg yolinkConfig
	if err := json.Unmarshal(conn.Config, &cfg); err != nil {
		return nil, fmt.Errorf("yolink connector %s: invalid config: %w", conn.ID, err)
	}
	if cfg.HomeID == "" || cfg.BrokerURL == "" {
		return nil, fmt.Errorf("yolink connector %s: home_id and broker_url are required", conn.ID)
	}
	if dial == nil {
		dial = defaultMQTTDialer
	}
	return &YoLinkManager{
		conn:   conn,
		cfg:    cfg,
		pipe:   pipe,
		parser: parser,
		dial:   dial,
		topic:  "yl-home/" + cfg.HomeID + "/+/report",
	}, nil
}

func (m *YoLinkManager) Name() string { return "yolink/" + m.conn.Name }

func (m *YoLinkManager) Start(ctx context.Context) error {
	clientID := m.cfg.ClientID
	if clientID == "" {
		clientID = "fusion-" + m.conn.ID.String()[:8]
	}
	client, err := m.dial(m.cfg.BrokerURL, mqtt.Options{
		ClientID: clientID,
		Username: m.cfg.AccessToken,
	})
	if err != nil {
		return err
	}
	m.client = client
	return client.Subscribe(m.topic, func(_ paho.Client, msg paho.Message) {
		m.handle(ctx, msg.Payload())
	})
}

func (m *YoLinkManager) handle(ctx context.Context, payload []byte) {
	events := m.parser.Parse(m.conn.ID.String(), payload)
	if len(events) == 0 {
		return
	}
	m.pipe.Process(ctx, m.conn, events...)
}

func (m *YoLinkManager) Stop() {
	if m.client != nil {
		_ = m.client.Unsubscribe(m.topic)
		m.client.Disconnect()
	}
}

// CanHandle reports whether this manager can drive the device. Only devices
// on this connector with a controllable type qualify.
func (m *YoLinkManager) CanHandle(device *store.Device, action string) bool {
	if device.ConnectorID != m.conn.ID {
		return false
	}
	switch model.DeviceType(device.Type) {
	case model.DeviceTypeSwitch, model.DeviceTypeOutlet, model.DeviceTypeLock:
	default:
		return false
	}
	switch strings.ToLower(action) {
	case "on", "off", "open", "close", "lock", "unlock":
		return true
	}
	return false
}

func (m *YoLinkManager) ExecuteStateChange(ctx context.Context, device *store.Device, action string) error {
	if m.client == nil {
		return fmt.Errorf("yolink connector %s: not connected", m.conn.ID)
	}
	state := translateCommand(device, action)
	body, _ := json.Marshal(map[string]any{
		"method": commandMethod(device),
		"params": map[string]any{"state": state},
	})
	topic := "yl-home/" + m.cfg.HomeID + "/" + device.ExternalID + "/request"
	slog.Info("yolink set command", "connector_id", m.conn.ID, "device_id", device.ExternalID, "action", action)
	return m.client.Publish(topic, body)
}

func translateCommand(device *store.Device, action string) string {
	if model.DeviceType(device.Type) == model.DeviceTypeLock {
		if action == "lock" || action == "close" {
			return "locked"
		}
		return "unlocked"
	}
	if action == "on" || action == "open" {
		return "open"
	}
	return "closed"
}

func commandMethod(device *store.Device) string {
	switch model.DeviceType(device.Type) {
	case model.DeviceTypeLock:
		return "Lock.setState"
	case model.DeviceTypeOutlet:
		return "Outlet.setState"
	default:
		return "Switch.setState"
	}
}
