package automation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// evalGroup evaluates a structured boolean condition group against the
// event's evaluation context. "all" requires every leaf to pass and is
// vacuously true when empty; "any" requires at least one leaf.
func evalGroup(g *ConditionGroup, evalCtx map[string]any) bool {
	if g == nil {
		return true
	}
	for _, c := range g.All {
		if !evalCondition(c, evalCtx) {
			return false
		}
	}
	if len(g.Any) == 0 {
		return true
	}
	for _, c := range g.Any {
		if evalCondition(c, evalCtx) {
			return true
		}
	}
	return false
}

func evalCondition(c Condition, evalCtx map[string]any) bool {
	path := strings.TrimSpace(c.Path)
	op := strings.ToLower(strings.TrimSpace(c.Op))
	if op == "" {
		op = "exists"
	}
	if path == "" {
		return true
	}

	// Small dot-path accessor (e.g. "payload.display_state").
	var cur any = evalCtx
	found := true
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			cur, found = nil, false
			break
		}
		cur, ok = m[part]
		if !ok {
			cur, found = nil, false
			break
		}
	}

	if op == "exists" {
		return found && cur != nil
	}
	if !found || cur == nil {
		return false
	}

	var want any
	if len(c.Value) > 0 {
		_ = json.Unmarshal(c.Value, &want)
	}

	switch op {
	case "eq":
		return looseEqual(cur, want)
	case "neq":
		return !looseEqual(cur, want)
	case "gt", "gte", "lt", "lte":
		left, okL := toFloat(cur)
		right, okR := toFloat(want)
		if !okL || !okR {
			return false
		}
		switch op {
		case "gt":
			return left > right
		case "gte":
			return left >= right
		case "lt":
			return left < right
		case "lte":
			return left <= right
		}
	}
	return false
}

func looseEqual(a, b any) bool {
	// Normalize numbers (JSON unmarshalling yields float64).
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	if oka && okb {
		return math.Abs(fa-fb) < 1e-9
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		var num json.Number = json.Number(strings.TrimSpace(t))
		f, err := num.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
