package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

// DeviceActionHandler executes a state-change command against a vendor
// device. Connection managers that can drive devices implement this.
type DeviceActionHandler interface {
	CanHandle(device *store.Device, action string) bool
	ExecuteStateChange(ctx context.Context, device *store.Device, action string) error
}

type deviceStateParams struct {
	Action string `json:"action"` // lock|unlock|on|off|...
}

type DeviceStateDispatcher struct {
	handlers []DeviceActionHandler
}

func NewDeviceState(handlers ...DeviceActionHandler) *DeviceStateDispatcher {
	return &DeviceStateDispatcher{handlers: handlers}
}

func (d *DeviceStateDispatcher) Type() string { return "set_device_state" }

func (d *DeviceStateDispatcher) Dispatch(ctx context.Context, params json.RawMessage, actx Context) error {
	var p deviceStateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errors.New("set_device_state: invalid params")
	}
	action := strings.ToLower(strings.TrimSpace(p.Action))
	if action == "" {
		return errors.New("set_device_state: action is required")
	}
	if actx.Device == nil {
		return errors.New("set_device_state: event device is not resolved")
	}
	for _, h := range d.handlers {
		if !h.CanHandle(actx.Device, action) {
			continue
		}
		return h.ExecuteStateChange(ctx, actx.Device, action)
	}
	return fmt.Errorf("set_device_state: no handler for device %s action %q", actx.Device.ExternalID, action)
}
