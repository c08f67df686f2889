// Package actions holds the per-kind dispatchers the automation engine
// invokes for matched rules. Each dispatcher reports success/failure
// independently; the engine isolates failures so one bad action never blocks
// its siblings.
package actions

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

// Context is the event context handed to every dispatcher alongside the
// action's own parameters.
type Context struct {
	Event          *model.StandardizedEvent
	Device         *store.Device // resolved internal device, nil when unknown
	RuleID         uuid.UUID
	RuleName       string
	OrganizationID uuid.UUID
}

// Dispatcher executes one action kind.
type Dispatcher interface {
	Type() string
	Dispatch(ctx context.Context, params json.RawMessage, actx Context) error
}

// Registry maps action type names to dispatchers.
type Registry struct {
	byType map[string]Dispatcher
}

func NewRegistry(dispatchers ...Dispatcher) *Registry {
	r := &Registry{byType: map[string]Dispatcher{}}
	for _, d := range dispatchers {
		r.Register(d)
	}
	return r
}

// Register adds a dispatcher after construction. A later registration for
// the same type wins.
func (r *Registry) Register(d Dispatcher) {
	r.byType[strings.ToLower(d.Type())] = d
}

func (r *Registry) Get(actionType string) (Dispatcher, bool) {
	d, ok := r.byType[strings.ToLower(strings.TrimSpace(actionType))]
	return d, ok
}

var templateToken = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// templateContext builds the dot-path addressable view of the event used by
// templated action parameters, e.g. "{{event.device_id}}" or
// "{{payload.display_state}}".
func templateContext(actx Context) map[string]any {
	evtCtx := map[string]any{
		"event_id":  actx.Event.EventID.String(),
		"device_id": actx.Event.DeviceID,
		"category":  string(actx.Event.Category),
		"type":      string(actx.Event.Type),
		"subtype":   string(actx.Event.Subtype),
		"timestamp": actx.Event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
	out := map[string]any{
		"event":   evtCtx,
		"payload": actx.Event.PayloadMap(),
		"rule":    map[string]any{"id": actx.RuleID.String(), "name": actx.RuleName},
	}
	if actx.Device != nil {
		out["device"] = map[string]any{"id": actx.Device.ID.String(), "name": actx.Device.Name, "type": actx.Device.Type}
	}
	return out
}

// expand replaces {{dot.path}} tokens with values from the template context.
// Unresolvable tokens expand to the empty string.
func expand(template string, actx Context) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	tctx := templateContext(actx)
	return templateToken.ReplaceAllStringFunc(template, func(tok string) string {
		m := templateToken.FindStringSubmatch(tok)
		if len(m) != 2 {
			return ""
		}
		return stringAt(tctx, m[1])
	})
}

func stringAt(m map[string]any, path string) string {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = mm[part]
		if !ok {
			return ""
		}
	}
	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
