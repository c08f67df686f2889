// Package typemap resolves vendor-native device type identifiers to the
// standardized TypedDeviceInfo. Lookups are data-driven map tables so tests
// can enumerate every vendor code.
package typemap

import (
	"strings"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

// Per-vendor tables. Keys are the raw type identifiers as the vendor reports
// them; matching is case-insensitive.
var yolinkTypes = map[string]model.TypedDeviceInfo{
	"doorsensor":      {Type: model.DeviceTypeSensor, Subtype: model.SubtypeContact},
	"motionsensor":    {Type: model.DeviceTypeSensor, Subtype: model.SubtypeMotion},
	"leaksensor":      {Type: model.DeviceTypeSensor, Subtype: model.SubtypeLeak},
	"vibrationsensor": {Type: model.DeviceTypeSensor, Subtype: model.SubtypeVibration},
	"thsensor":        {Type: model.DeviceTypeSensor, Subtype: model.SubtypeTemperature},
	"lock":            {Type: model.DeviceTypeLock},
	"switch":          {Type: model.DeviceTypeSwitch},
	"outlet":          {Type: model.DeviceTypeOutlet},
	"manipulator":     {Type: model.DeviceTypeSwitch},
	"hub":             {Type: model.DeviceTypeHub},
	"speakerhub":      {Type: model.DeviceTypeHub},
}

var geneaTypes = map[string]model.TypedDeviceInfo{
	"door":       {Type: model.DeviceTypeDoor},
	"controller": {Type: model.DeviceTypeHub},
}

var pikoTypes = map[string]model.TypedDeviceInfo{
	"camera": {Type: model.DeviceTypeCamera},
	"server": {Type: model.DeviceTypeHub},
}

var byCategory = map[model.ConnectorCategory]map[string]model.TypedDeviceInfo{
	model.ConnectorYoLink: yolinkTypes,
	model.ConnectorGenea:  geneaTypes,
	model.ConnectorPiko:   pikoTypes,
}

// GetDeviceTypeInfo maps a (connector category, raw vendor identifier) pair
// to its standardized type. Total: unrecognized pairs resolve to Unmapped
// rather than failing. Safe for concurrent use; the tables are never written
// after init.
func GetDeviceTypeInfo(category model.ConnectorCategory, rawIdentifier string) model.TypedDeviceInfo {
	table, ok := byCategory[category]
	if !ok {
		return model.TypedDeviceInfo{Type: model.DeviceTypeUnmapped}
	}
	info, ok := table[strings.ToLower(strings.TrimSpace(rawIdentifier))]
	if !ok {
		return model.TypedDeviceInfo{Type: model.DeviceTypeUnmapped}
	}
	return info
}
