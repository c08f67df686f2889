package automation

import (
	"encoding/json"
	"testing"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

func TestNormalizeAndValidate(t *testing.T) {
	cases := []struct {
		name    string
		config  string
		wantErr bool
	}{
		{
			name:   "minimal valid",
			config: `{"trigger":{"event_types":["STATE_CHANGED"]},"actions":[{"type":"send_notification"}]}`,
		},
		{
			name:   "full valid",
			config: `{"trigger":{"source_types":["Door.*","Sensor.Leak"],"event_types":["STATE_CHANGED","DOOR_FORCED_OPEN"],"conditions":{"all":[{"path":"payload.display_state","op":"eq","value":"Open"}],"any":[{"path":"payload.battery_level"}]}},"temporal":[{"kind":"area_armed_within","within_sec":600}],"actions":[{"type":"Create_Event","params":{"type":"MOTION_DETECTED"}}]}`,
		},
		{
			name:    "missing event types",
			config:  `{"trigger":{},"actions":[{"type":"send_http"}]}`,
			wantErr: true,
		},
		{
			name:    "missing actions",
			config:  `{"trigger":{"event_types":["STATE_CHANGED"]}}`,
			wantErr: true,
		},
		{
			name:    "empty source type",
			config:  `{"trigger":{"source_types":["  "],"event_types":["STATE_CHANGED"]},"actions":[{"type":"send_http"}]}`,
			wantErr: true,
		},
		{
			name:    "bad condition op",
			config:  `{"trigger":{"event_types":["STATE_CHANGED"],"conditions":{"all":[{"path":"x","op":"matches"}]}},"actions":[{"type":"send_http"}]}`,
			wantErr: true,
		},
		{
			name:    "bad temporal kind",
			config:  `{"trigger":{"event_types":["STATE_CHANGED"]},"temporal":[{"kind":"moon_phase","within_sec":60}],"actions":[{"type":"send_http"}]}`,
			wantErr: true,
		},
		{
			name:    "temporal window must be positive",
			config:  `{"trigger":{"event_types":["STATE_CHANGED"]},"temporal":[{"kind":"area_armed_within","within_sec":0}],"actions":[{"type":"send_http"}]}`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg RuleConfig
			if err := json.Unmarshal([]byte(tc.config), &cfg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			err := cfg.NormalizeAndValidate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeLowercasesActionTypes(t *testing.T) {
	var cfg RuleConfig
	raw := `{"trigger":{"event_types":["STATE_CHANGED"]},"actions":[{"type":"  Send_Notification "}]}`
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := cfg.NormalizeAndValidate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Actions[0].Type != "send_notification" {
		t.Fatalf("action type = %q, want send_notification", cfg.Actions[0].Type)
	}
}

func TestMatchSourceType(t *testing.T) {
	contact := model.TypedDeviceInfo{Type: model.DeviceTypeSensor, Subtype: model.SubtypeContact}
	door := model.TypedDeviceInfo{Type: model.DeviceTypeDoor}

	cases := []struct {
		name     string
		patterns []string
		info     model.TypedDeviceInfo
		want     bool
	}{
		{"empty matches everything", nil, contact, true},
		{"bare type matches any subtype", []string{"Sensor"}, contact, true},
		{"wildcard matches any subtype", []string{"Sensor.*"}, contact, true},
		{"wildcard matches no subtype", []string{"Door.*"}, door, true},
		{"exact subtype match", []string{"Sensor.Contact"}, contact, true},
		{"exact subtype mismatch", []string{"Sensor.Leak"}, contact, false},
		{"type mismatch", []string{"Lock"}, door, false},
		{"case insensitive", []string{"sensor.contact"}, contact, true},
		{"first of several", []string{"Lock", "Sensor.Contact"}, contact, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchSourceType(tc.patterns, tc.info); got != tc.want {
				t.Fatalf("matchSourceType(%v, %v) = %v, want %v", tc.patterns, tc.info, got, tc.want)
			}
		})
	}
}
