// Package statemap translates raw vendor state strings into the small
// IntermediateState enumeration, and renders those states for display.
package statemap

import (
	"strings"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

type stateKey struct {
	Type    model.DeviceType
	Subtype model.DeviceSubtype // "" doubles as the "null" subtype slot
}

// Translation tables keyed by (type, subtype), then by the lowercased raw
// value. Only combinations listed here produce an IntermediateState; callers
// treat a miss as "no determinable state", not an error.
var translations = map[stateKey]map[string]model.IntermediateState{
	{Type: model.DeviceTypeSensor, Subtype: model.SubtypeContact}: {
		"open":   model.StateOpen,
		"closed": model.StateClosed,
	},
	{Type: model.DeviceTypeDoor}: {
		"open":   model.StateOpen,
		"closed": model.StateClosed,
	},
	{Type: model.DeviceTypeSensor, Subtype: model.SubtypeMotion}: {
		"alert":  model.StateAlert,
		"normal": model.StateNormal,
	},
	{Type: model.DeviceTypeSensor, Subtype: model.SubtypeLeak}: {
		"alert":  model.StateAlert,
		"full":   model.StateAlert,
		"normal": model.StateNormal,
		"dry":    model.StateNormal,
	},
	{Type: model.DeviceTypeSensor, Subtype: model.SubtypeVibration}: {
		"alert":  model.StateAlert,
		"normal": model.StateNormal,
	},
	{Type: model.DeviceTypeLock}: {
		"locked":   model.StateLocked,
		"unlocked": model.StateUnlocked,
	},
	{Type: model.DeviceTypeSwitch}: {
		"on":     model.StateOn,
		"off":    model.StateOff,
		"open":   model.StateOn,
		"closed": model.StateOff,
	},
	{Type: model.DeviceTypeOutlet}: {
		"on":  model.StateOn,
		"off": model.StateOff,
	},
}

// TranslateRawState maps a raw vendor state string for the given device to
// an IntermediateState. ok is false when no mapping exists for that
// type/subtype/value combination; it never fails otherwise.
func TranslateRawState(info model.TypedDeviceInfo, rawState string) (model.IntermediateState, bool) {
	raw := strings.ToLower(strings.TrimSpace(rawState))
	if raw == "" {
		return model.IntermediateState{}, false
	}
	if table, ok := translations[stateKey{Type: info.Type, Subtype: info.Subtype}]; ok {
		if st, ok := table[raw]; ok {
			return st, true
		}
	}
	// Fall back to the subtype-less slot for types whose subtypes share a
	// vocabulary (e.g. a contact reading on a bare Door).
	if info.Subtype != "" {
		if table, ok := translations[stateKey{Type: info.Type}]; ok {
			if st, ok := table[raw]; ok {
				return st, true
			}
		}
	}
	return model.IntermediateState{}, false
}

var displayStrings = map[model.IntermediateState]string{
	model.StateOn:       "On",
	model.StateOff:      "Off",
	model.StateOpen:     "Open",
	model.StateClosed:   "Closed",
	model.StateLocked:   "Locked",
	model.StateUnlocked: "Unlocked",
	model.StateAlert:    "Alert",
	model.StateNormal:   "Normal",
}

// DisplayState renders an IntermediateState for humans. ok is false when no
// display string is defined; callers abandon the state-change path and fall
// back to an unknown-event representation.
func DisplayState(st model.IntermediateState) (string, bool) {
	s, ok := displayStrings[st]
	return s, ok
}
