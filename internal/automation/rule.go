package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

// RuleConfig is the only supported rule configuration format.
//
// Schema shape:
//
//	{
//	  "trigger": {
//	    "source_types": ["Door.*", "Sensor.Leak"],
//	    "event_types": ["STATE_CHANGED"],
//	    "conditions": {"all": [{"path": "payload.display_state", "op": "eq", "value": "Open"}]}
//	  },
//	  "temporal": [{"kind": "area_armed_within", "within_sec": 600}],
//	  "actions": [{"type": "send_notification", "params": {...}}]
//	}
//
// Source type filters:
// - "Door"        any event from a Door device, regardless of subtype
// - "Door.*"      same as above, explicit wildcard
// - "Sensor.Leak" exact type+subtype match
// Empty source_types matches every device type.
//
// event_types is an OR set and must not be empty.
//
// Conditions: "all" requires every leaf to pass, "any" at least one. An
// empty "all" is vacuously true. When both are present both groups must
// hold.
//
// This is stored in store.AutomationRule.Config as JSONB.
type RuleConfig struct {
	Trigger  TriggerConfig       `json:"trigger"`
	Temporal []TemporalCondition `json:"temporal,omitempty"`
	Actions  []ActionConfig      `json:"actions"`
}

type TriggerConfig struct {
	SourceTypes []string          `json:"source_types,omitempty"`
	EventTypes  []model.EventType `json:"event_types"`
	Conditions  *ConditionGroup   `json:"conditions,omitempty"`
}

type ConditionGroup struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
}

type Condition struct {
	Path  string          `json:"path"`
	Op    string          `json:"op,omitempty"`    // exists|eq|neq|gt|gte|lt|lte
	Value json.RawMessage `json:"value,omitempty"` // for comparisons
}

// TemporalCondition is evaluated against historical area state, not just the
// instantaneous event.
type TemporalCondition struct {
	Kind      string `json:"kind"` // area_armed_within|area_disarmed_within
	WithinSec int    `json:"within_sec"`
}

type ActionConfig struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (c *RuleConfig) NormalizeAndValidate() error {
	if len(c.Trigger.EventTypes) == 0 {
		return errors.New("trigger.event_types is required")
	}
	for i, st := range c.Trigger.SourceTypes {
		st = strings.TrimSpace(st)
		if st == "" {
			return errors.New("trigger.source_types must not contain empty values")
		}
		c.Trigger.SourceTypes[i] = st
	}
	if c.Trigger.Conditions != nil {
		for _, leaf := range append(append([]Condition(nil), c.Trigger.Conditions.All...), c.Trigger.Conditions.Any...) {
			if err := validateCondition(leaf); err != nil {
				return err
			}
		}
	}
	for i := range c.Temporal {
		t := &c.Temporal[i]
		t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
		switch t.Kind {
		case "area_armed_within", "area_disarmed_within":
		default:
			return fmt.Errorf("unsupported temporal kind: %s", t.Kind)
		}
		if t.WithinSec <= 0 {
			return errors.New("temporal.within_sec must be > 0")
		}
	}
	if len(c.Actions) == 0 {
		return errors.New("actions is required")
	}
	for i := range c.Actions {
		a := &c.Actions[i]
		a.Type = strings.ToLower(strings.TrimSpace(a.Type))
		if a.Type == "" {
			return errors.New("actions[].type is required")
		}
	}
	return nil
}

func validateCondition(c Condition) error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("condition.path is required")
	}
	op := strings.ToLower(strings.TrimSpace(c.Op))
	if op == "" {
		op = "exists"
	}
	switch op {
	case "exists", "eq", "neq", "gt", "gte", "lt", "lte":
		return nil
	default:
		return fmt.Errorf("unsupported condition op: %s", c.Op)
	}
}

// matchSourceType checks a trigger's device-type filter against the event's
// resolved device info. "Type.*" matches any subtype of Type, including
// none.
func matchSourceType(patterns []string, info model.TypedDeviceInfo) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		typePart, subPart := p, ""
		if i := strings.Index(p, "."); i >= 0 {
			typePart, subPart = p[:i], p[i+1:]
		}
		if !strings.EqualFold(typePart, string(info.Type)) {
			continue
		}
		if subPart == "" || subPart == "*" {
			return true
		}
		if strings.EqualFold(subPart, string(info.Subtype)) {
			return true
		}
	}
	return false
}

func matchEventType(set []model.EventType, t model.EventType) bool {
	for _, et := range set {
		if et == t {
			return true
		}
	}
	return false
}
