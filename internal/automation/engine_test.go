package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/austin-smith/fusion-bridge-sub012/internal/actions"
	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
	"github.com/austin-smith/fusion-bridge-sub012/internal/store"
)

type fakeRuleSource struct {
	rules []store.AutomationRule
}

func (f *fakeRuleSource) ListEnabledRules(ctx context.Context) ([]store.AutomationRule, error) {
	return f.rules, nil
}

type fakeStateSource struct {
	mode        model.ArmedState
	armedWithin bool
}

func (f *fakeStateSource) AreaArmed(ctx context.Context, areaID uuid.UUID) (model.ArmedState, error) {
	return f.mode, nil
}

func (f *fakeStateSource) ArmedWithin(ctx context.Context, areaID uuid.UUID, w time.Duration) (bool, error) {
	return f.armedWithin, nil
}

func (f *fakeStateSource) DisarmedWithin(ctx context.Context, areaID uuid.UUID, w time.Duration) (bool, error) {
	return false, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []string
}

func (f *fakeAudit) RecordActionExecution(ctx context.Context, ruleID, eventID uuid.UUID, actionType, status, errMsg string) error {
	f.mu.Lock()
	f.records = append(f.records, actionType+":"+status)
	f.mu.Unlock()
	return nil
}

func (f *fakeAudit) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.records...)
}

type fakeDispatcher struct {
	name  string
	fail  bool
	block chan struct{} // when non-nil, Dispatch waits for it to close

	mu    sync.Mutex
	calls int
}

func (f *fakeDispatcher) Type() string { return f.name }

func (f *fakeDispatcher) Dispatch(ctx context.Context, params json.RawMessage, actx actions.Context) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ruleRow(t *testing.T, orgID uuid.UUID, cfg RuleConfig) store.AutomationRule {
	t.Helper()
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal rule config: %v", err)
	}
	return store.AutomationRule{ID: uuid.New(), OrganizationID: orgID, Name: "r", Enabled: true, Config: datatypes.JSON(b)}
}

func stateChangedEvent(display string) *model.StandardizedEvent {
	return &model.StandardizedEvent{
		EventID:     uuid.New(),
		ConnectorID: "conn-1",
		DeviceID:    "D1",
		Timestamp:   time.Now().UTC(),
		Category:    model.CategoryDeviceState,
		Type:        model.TypeStateChanged,
		DeviceInfo:  model.TypedDeviceInfo{Type: model.DeviceTypeDoor},
		Payload:     &model.StateChangePayload{RawStateValue: "open", State: model.StateOpen, DisplayState: display},
	}
}

func newTestEngine(t *testing.T, rules []store.AutomationRule, st StateSource, dispatchers ...actions.Dispatcher) (*Engine, *fakeAudit) {
	t.Helper()
	audit := &fakeAudit{}
	eng := New(&fakeRuleSource{rules: rules}, st, audit, actions.NewRegistry(dispatchers...))
	if err := eng.ReloadNow(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return eng, audit
}

func TestHandleEvent_DispatchesMatchingRule(t *testing.T) {
	orgID := uuid.New()
	cfg := RuleConfig{
		Trigger: TriggerConfig{
			SourceTypes: []string{"Door.*"},
			EventTypes:  []model.EventType{model.TypeStateChanged},
			Conditions:  &ConditionGroup{All: []Condition{cond("payload.display_state", "eq", "Open")}},
		},
		Actions: []ActionConfig{{Type: "notify"}},
	}
	d := &fakeDispatcher{name: "notify"}
	eng, audit := newTestEngine(t, []store.AutomationRule{ruleRow(t, orgID, cfg)}, &fakeStateSource{}, d)

	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), nil, orgID)
	eng.Drain()
	if d.count() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", d.count())
	}
	if got := audit.snapshot(); len(got) != 1 || got[0] != "notify:success" {
		t.Fatalf("unexpected audit trail: %v", got)
	}

	eng.HandleEvent(context.Background(), stateChangedEvent("Closed"), nil, orgID)
	eng.Drain()
	if d.count() != 1 {
		t.Fatalf("expected condition to block second event, got %d dispatches", d.count())
	}
}

func TestHandleEvent_OrgScoping(t *testing.T) {
	orgA := uuid.New()
	cfg := RuleConfig{
		Trigger: TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Actions: []ActionConfig{{Type: "notify"}},
	}
	d := &fakeDispatcher{name: "notify"}
	eng, _ := newTestEngine(t, []store.AutomationRule{ruleRow(t, orgA, cfg)}, &fakeStateSource{}, d)

	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), nil, uuid.New())
	eng.Drain()
	if d.count() != 0 {
		t.Fatalf("expected no dispatch for foreign org, got %d", d.count())
	}
}

func TestHandleEvent_WildcardSubtypeMatching(t *testing.T) {
	orgID := uuid.New()
	cfg := RuleConfig{
		Trigger: TriggerConfig{
			SourceTypes: []string{"Sensor.*"},
			EventTypes:  []model.EventType{model.TypeStateChanged},
		},
		Actions: []ActionConfig{{Type: "notify"}},
	}
	d := &fakeDispatcher{name: "notify"}
	eng, _ := newTestEngine(t, []store.AutomationRule{ruleRow(t, orgID, cfg)}, &fakeStateSource{}, d)

	withSub := stateChangedEvent("Open")
	withSub.DeviceInfo = model.TypedDeviceInfo{Type: model.DeviceTypeSensor, Subtype: model.SubtypeContact}
	eng.HandleEvent(context.Background(), withSub, nil, orgID)

	noSub := stateChangedEvent("Open")
	noSub.DeviceInfo = model.TypedDeviceInfo{Type: model.DeviceTypeSensor}
	eng.HandleEvent(context.Background(), noSub, nil, orgID)

	door := stateChangedEvent("Open")
	eng.HandleEvent(context.Background(), door, nil, orgID)

	eng.Drain()
	if d.count() != 2 {
		t.Fatalf("expected wildcard to match both sensor events only, got %d", d.count())
	}
}

func TestHandleEvent_PartialFailureIsolation(t *testing.T) {
	orgID := uuid.New()
	failing := &fakeDispatcher{name: "first", fail: true}
	second := &fakeDispatcher{name: "second"}
	other := &fakeDispatcher{name: "other"}

	twoActions := RuleConfig{
		Trigger: TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Actions: []ActionConfig{{Type: "first"}, {Type: "second"}},
	}
	independent := RuleConfig{
		Trigger: TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Actions: []ActionConfig{{Type: "other"}},
	}
	rows := []store.AutomationRule{ruleRow(t, orgID, twoActions), ruleRow(t, orgID, independent)}
	eng, audit := newTestEngine(t, rows, &fakeStateSource{}, failing, second, other)

	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), nil, orgID)
	eng.Drain()

	if second.count() != 1 {
		t.Fatalf("expected action 2 to run despite action 1 failing")
	}
	if other.count() != 1 {
		t.Fatalf("expected independent rule to still dispatch")
	}

	// Rules dispatch concurrently, so only intra-rule audit order is
	// deterministic.
	got := audit.snapshot()
	idx := map[string]int{}
	for i, rec := range got {
		idx[rec] = i
	}
	for _, want := range []string{"first:failed", "second:success", "other:success"} {
		if _, ok := idx[want]; !ok {
			t.Fatalf("audit trail missing %s: %v", want, got)
		}
	}
	if len(got) != 3 {
		t.Fatalf("unexpected audit trail: %v", got)
	}
	if idx["first:failed"] > idx["second:success"] {
		t.Fatalf("actions within a rule ran out of order: %v", got)
	}
}

func TestHandleEvent_SlowActionDoesNotBlockOtherRules(t *testing.T) {
	orgID := uuid.New()
	release := make(chan struct{})
	slow := &fakeDispatcher{name: "slow", block: release}
	fast := &fakeDispatcher{name: "fast"}

	slowRule := RuleConfig{
		Trigger: TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Actions: []ActionConfig{{Type: "slow"}},
	}
	fastRule := RuleConfig{
		Trigger: TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Actions: []ActionConfig{{Type: "fast"}},
	}
	rows := []store.AutomationRule{ruleRow(t, orgID, slowRule), ruleRow(t, orgID, fastRule)}
	eng, _ := newTestEngine(t, rows, &fakeStateSource{}, slow, fast)

	done := make(chan struct{})
	go func() {
		eng.HandleEvent(context.Background(), stateChangedEvent("Open"), nil, orgID)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("HandleEvent blocked on a slow action")
	}

	// The fast rule must complete while the slow action is still held.
	deadline := time.Now().Add(2 * time.Second)
	for fast.count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("fast rule did not dispatch while slow action was in flight")
		}
		time.Sleep(time.Millisecond)
	}
	if slow.count() != 0 {
		t.Fatalf("slow action finished before being released")
	}

	close(release)
	eng.Drain()
	if slow.count() != 1 {
		t.Fatalf("slow action never completed, got %d", slow.count())
	}
}

func TestHandleEvent_InvalidRuleConfigSkipped(t *testing.T) {
	orgID := uuid.New()
	bad := store.AutomationRule{ID: uuid.New(), OrganizationID: orgID, Enabled: true, Config: datatypes.JSON(`{"trigger":{}}`)}
	good := ruleRow(t, orgID, RuleConfig{
		Trigger: TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Actions: []ActionConfig{{Type: "notify"}},
	})
	d := &fakeDispatcher{name: "notify"}
	eng, _ := newTestEngine(t, []store.AutomationRule{bad, good}, &fakeStateSource{}, d)

	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), nil, orgID)
	eng.Drain()
	if d.count() != 1 {
		t.Fatalf("expected valid rule to dispatch despite invalid sibling, got %d", d.count())
	}
}

func TestHandleEvent_TemporalCondition(t *testing.T) {
	orgID := uuid.New()
	areaID := uuid.New()
	device := &store.Device{ID: uuid.New(), ExternalID: "D1", AreaID: &areaID}
	cfg := RuleConfig{
		Trigger:  TriggerConfig{EventTypes: []model.EventType{model.TypeStateChanged}},
		Temporal: []TemporalCondition{{Kind: "area_armed_within", WithinSec: 600}},
		Actions:  []ActionConfig{{Type: "notify"}},
	}
	d := &fakeDispatcher{name: "notify"}
	st := &fakeStateSource{armedWithin: false}
	eng, _ := newTestEngine(t, []store.AutomationRule{ruleRow(t, orgID, cfg)}, st, d)

	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), device, orgID)
	eng.Drain()
	if d.count() != 0 {
		t.Fatalf("expected temporal condition to block dispatch")
	}

	st.armedWithin = true
	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), device, orgID)
	eng.Drain()
	if d.count() != 1 {
		t.Fatalf("expected dispatch once area was armed within window")
	}

	// No resolved device means no area context; temporal rules cannot pass.
	eng.HandleEvent(context.Background(), stateChangedEvent("Open"), nil, orgID)
	eng.Drain()
	if d.count() != 1 {
		t.Fatalf("expected temporal rule to skip events without a device area")
	}
}
