// Package automation evaluates stored rules against the standardized event
// stream and dispatches actions for the rules that match.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/austin-smith/fusion-bridge-sub012/internal/actions"
	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

// RuleSource provides the stored rule set. The engine treats rules as
// read-only input; persistence lifecycle lives elsewhere.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]store.AutomationRule, error)
}

// StateSource provides current and historical area state for condition
// evaluation. It is consulted fresh on every pass so a prior pass's actions
// (arm/disarm) are visible to subsequent events.
type StateSource interface {
	AreaArmed(ctx context.Context, areaID uuid.UUID) (model.ArmedState, error)
	ArmedWithin(ctx context.Context, areaID uuid.UUID, window time.Duration) (bool, error)
	DisarmedWithin(ctx context.Context, areaID uuid.UUID, window time.Duration) (bool, error)
}

// AuditSink records action execution outcomes.
type AuditSink interface {
	RecordActionExecution(ctx context.Context, ruleID, eventID uuid.UUID, actionType, status, errMsg string) error
}

type compiledRule struct {
	rule store.AutomationRule
	cfg  RuleConfig
}

// Engine matches StandardizedEvents against org-scoped rules. Safe for
// concurrent HandleEvent calls: a pass only reads the rule snapshot taken
// under the lock.
type Engine struct {
	rules    RuleSource
	state    StateSource
	audit    AuditSink
	registry *actions.Registry

	mu    sync.RWMutex
	byOrg map[uuid.UUID][]compiledRule

	inflight    sync.WaitGroup
	reloadEvery time.Duration
}

func New(rules RuleSource, state StateSource, audit AuditSink, registry *actions.Registry) *Engine {
	return &Engine{
		rules:       rules,
		state:       state,
		audit:       audit,
		registry:    registry,
		byOrg:       map[uuid.UUID][]compiledRule{},
		reloadEvery: 10 * time.Second,
	}
}

func (e *Engine) Start(ctx context.Context) error {
	if err := e.reload(ctx); err != nil {
		return err
	}
	go e.reloadLoop(ctx)
	return nil
}

// ReloadNow refreshes rule definitions immediately so updates take effect
// without waiting for the periodic reload loop.
func (e *Engine) ReloadNow(ctx context.Context) error {
	return e.reload(ctx)
}

func (e *Engine) reloadLoop(ctx context.Context) {
	t := time.NewTicker(e.reloadEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := e.reload(ctx); err != nil {
				slog.Warn("automation reload failed", "error", err)
			}
		}
	}
}

func (e *Engine) reload(ctx context.Context) error {
	rows, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		return err
	}

	// Build a new map; then swap. Rules with invalid config are skipped so
	// one bad rule never blocks its siblings.
	next := map[uuid.UUID][]compiledRule{}
	for _, row := range rows {
		var cfg RuleConfig
		if err := json.Unmarshal([]byte(row.Config), &cfg); err != nil {
			slog.Warn("invalid rule config", "rule_id", row.ID, "error", err)
			continue
		}
		if err := cfg.NormalizeAndValidate(); err != nil {
			slog.Warn("invalid rule config", "rule_id", row.ID, "error", err)
			continue
		}
		next[row.OrganizationID] = append(next[row.OrganizationID], compiledRule{rule: row, cfg: cfg})
	}

	e.mu.Lock()
	e.byOrg = next
	e.mu.Unlock()
	return nil
}

// HandleEvent runs one matching pass for the event. Rules are evaluated in
// stable insertion order; every failure mode degrades (skipped rule, logged
// action failure) rather than aborting the pass. Each matched rule's action
// list runs on its own goroutine, so a slow action never delays evaluation
// or dispatch of the remaining rules. The dispatch context is detached from
// the caller's so a webhook response finishing does not cancel its actions.
func (e *Engine) HandleEvent(ctx context.Context, evt *model.StandardizedEvent, device *store.Device, orgID uuid.UUID) {
	e.mu.RLock()
	rules := e.byOrg[orgID]
	e.mu.RUnlock()
	if len(rules) == 0 {
		return
	}

	evalCtx := e.buildEvalContext(ctx, evt, device)
	dispatchCtx := context.WithoutCancel(ctx)

	for _, cr := range rules {
		if !matchSourceType(cr.cfg.Trigger.SourceTypes, evt.DeviceInfo) {
			continue
		}
		if !matchEventType(cr.cfg.Trigger.EventTypes, evt.Type) {
			continue
		}
		if !evalGroup(cr.cfg.Trigger.Conditions, evalCtx) {
			continue
		}
		if !e.temporalPass(ctx, cr, device) {
			continue
		}
		cr := cr
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			e.dispatch(dispatchCtx, cr, evt, device, orgID)
		}()
	}
}

// Drain blocks until every in-flight action dispatch has finished. Called on
// shutdown so actions are not cut off mid-flight.
func (e *Engine) Drain() { e.inflight.Wait() }

func (e *Engine) buildEvalContext(ctx context.Context, evt *model.StandardizedEvent, device *store.Device) map[string]any {
	out := map[string]any{
		"payload": evt.PayloadMap(),
		"event": map[string]any{
			"category":  string(evt.Category),
			"type":      string(evt.Type),
			"subtype":   string(evt.Subtype),
			"device_id": evt.DeviceID,
		},
	}
	if device != nil {
		out["device"] = map[string]any{"id": device.ID.String(), "name": device.Name, "type": device.Type}
		if device.AreaID != nil {
			mode, err := e.state.AreaArmed(ctx, *device.AreaID)
			if err != nil {
				slog.Warn("area state lookup failed", "area_id", device.AreaID, "error", err)
			} else {
				out["area"] = map[string]any{"armed": mode.Armed(), "mode": string(mode)}
			}
		}
	}
	return out
}

// temporalPass evaluates the rule's temporal conditions against historical
// area state. Evaluation errors skip the rule for this event only.
func (e *Engine) temporalPass(ctx context.Context, cr compiledRule, device *store.Device) bool {
	if len(cr.cfg.Temporal) == 0 {
		return true
	}
	if device == nil || device.AreaID == nil {
		return false
	}
	for _, tc := range cr.cfg.Temporal {
		window := time.Duration(tc.WithinSec) * time.Second
		var ok bool
		var err error
		switch tc.Kind {
		case "area_armed_within":
			ok, err = e.state.ArmedWithin(ctx, *device.AreaID, window)
		case "area_disarmed_within":
			ok, err = e.state.DisarmedWithin(ctx, *device.AreaID, window)
		}
		if err != nil {
			slog.Warn("temporal condition evaluation failed", "rule_id", cr.rule.ID, "kind", tc.Kind, "error", err)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// dispatch executes the rule's actions in declared order. A failing action
// is logged and audited but never blocks sibling actions or later rules.
func (e *Engine) dispatch(ctx context.Context, cr compiledRule, evt *model.StandardizedEvent, device *store.Device, orgID uuid.UUID) {
	actx := actions.Context{
		Event:          evt,
		Device:         device,
		RuleID:         cr.rule.ID,
		RuleName:       cr.rule.Name,
		OrganizationID: orgID,
	}
	for _, a := range cr.cfg.Actions {
		d, ok := e.registry.Get(a.Type)
		if !ok {
			slog.Warn("unknown action type", "rule_id", cr.rule.ID, "action_type", a.Type, "event_id", evt.EventID)
			continue
		}
		if err := safeDispatch(ctx, d, a.Params, actx); err != nil {
			slog.Error("action dispatch failed",
				"rule_id", cr.rule.ID, "action_type", a.Type, "event_id", evt.EventID, "error", err)
			e.recordAudit(ctx, cr, evt, a.Type, "failed", err.Error())
			continue
		}
		e.recordAudit(ctx, cr, evt, a.Type, "success", "")
	}
}

// recordAudit writes one action outcome. An audit write failure is logged
// but never aborts the remaining actions.
func (e *Engine) recordAudit(ctx context.Context, cr compiledRule, evt *model.StandardizedEvent, actionType, status, errMsg string) {
	if err := e.audit.RecordActionExecution(ctx, cr.rule.ID, evt.EventID, actionType, status, errMsg); err != nil {
		slog.Warn("action audit write failed",
			"rule_id", cr.rule.ID, "action_type", actionType, "event_id", evt.EventID, "error", err)
	}
}

// safeDispatch contains a panicking dispatcher so one bad action cannot take
// down the matching pass.
func safeDispatch(ctx context.Context, d actions.Dispatcher, params json.RawMessage, actx actions.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{val: r}
		}
	}()
	return d.Dispatch(ctx, params, actx)
}

type panicError struct{ val any }

func (p *panicError) Error() string { return fmt.Sprintf("dispatcher panic: %v", p.val) }
