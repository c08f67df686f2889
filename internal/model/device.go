package model

// ConnectorCategory identifies the vendor integration a connector belongs to.
type ConnectorCategory string

const (
	ConnectorYoLink ConnectorCategory = "yolink"
	ConnectorGenea  ConnectorCategory = "genea"
	ConnectorPiko   ConnectorCategory = "piko"
)

// DeviceType is the standardized, vendor-independent device classification.
type DeviceType string

const (
	DeviceTypeUnmapped DeviceType = "Unmapped"
	DeviceTypeDoor     DeviceType = "Door"
	DeviceTypeLock     DeviceType = "Lock"
	DeviceTypeSensor   DeviceType = "Sensor"
	DeviceTypeSwitch   DeviceType = "Switch"
	DeviceTypeOutlet   DeviceType = "Outlet"
	DeviceTypeCamera   DeviceType = "Camera"
	DeviceTypeHub      DeviceType = "Hub"
)

// DeviceSubtype refines a DeviceType. Empty means no subtype.
type DeviceSubtype string

const (
	SubtypeContact     DeviceSubtype = "Contact"
	SubtypeMotion      DeviceSubtype = "Motion"
	SubtypeLeak        DeviceSubtype = "Leak"
	SubtypeVibration   DeviceSubtype = "Vibration"
	SubtypeTemperature DeviceSubtype = "Temperature"
)

// TypedDeviceInfo is the standardized type/subtype pair resolved for a
// device. It is derived purely from lookup tables and never mutated.
type TypedDeviceInfo struct {
	Type    DeviceType    `json:"type"`
	Subtype DeviceSubtype `json:"subtype,omitempty"`
}

// Unmapped reports whether the vendor type was not recognized.
func (t TypedDeviceInfo) Unmapped() bool { return t.Type == DeviceTypeUnmapped }
