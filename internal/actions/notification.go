package actions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Notification is the uniform payload handed to push drivers.
type Notification struct {
	Title    string
	Message  string
	Priority int
}

// NotificationDriver sends one push notification (Pushover, Pushcut, ...).
type NotificationDriver interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

type notificationParams struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority,omitempty"`
}

type NotificationDispatcher struct {
	driver NotificationDriver
}

func NewNotification(driver NotificationDriver) *NotificationDispatcher {
	return &NotificationDispatcher{driver: driver}
}

func (d *NotificationDispatcher) Type() string { return "send_notification" }

func (d *NotificationDispatcher) Dispatch(ctx context.Context, params json.RawMessage, actx Context) error {
	var p notificationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errors.New("send_notification: invalid params")
	}
	message := expand(strings.TrimSpace(p.Message), actx)
	if message == "" {
		return errors.New("send_notification: message is required")
	}
	return d.driver.Send(ctx, Notification{
		Title:    expand(p.Title, actx),
		Message:  message,
		Priority: p.Priority,
	})
}
