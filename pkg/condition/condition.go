package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator names a comparison between a resolved field and a rule value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpExists      Operator = "exists"
)

// Valid reports whether the operator is one of the supported comparisons.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpExists:
		return true
	}
	return false
}

// Logic selects how the rules of a Set are combined.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Valid reports whether the logic flag is empty (treated as AND) or one of
// the known combinators. Casing is ignored, so rule files may write
// "or" or "OR" interchangeably.
func (l Logic) Valid() bool {
	return l == "" ||
		strings.EqualFold(string(l), string(LogicAnd)) ||
		strings.EqualFold(string(l), string(LogicOr))
}

// Rule is a single field comparison.
type Rule struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    Value    `json:"value" yaml:"value"`
}

// Set is a flat, ordered list of rules combined by a single logic flag.
type Set struct {
	Logic Logic  `json:"logic" yaml:"logic"`
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Evaluate applies the rule set to the given context. An empty rule list is
// vacuously true. With LogicOr any passing rule is enough; otherwise all
// rules must pass. Evaluation never returns an error: unknown operators and
// recovered panics count as non-matches.
func (s Set) Evaluate(context map[string]any) bool {
	if len(s.Rules) == 0 {
		return true
	}

	if strings.EqualFold(string(s.Logic), string(LogicOr)) {
		for _, r := range s.Rules {
			if r.matches(context) {
				return true
			}
		}
		return false
	}

	for _, r := range s.Rules {
		if !r.matches(context) {
			return false
		}
	}
	return true
}

// Validate rejects unknown logic flags and operators. Evaluate treats those
// as non-matches at runtime; loaders call Validate so a typo in a rule file
// fails at load instead of producing a rule that never fires.
func (s Set) Validate() error {
	if !s.Logic.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLogic, s.Logic)
	}
	for i, r := range s.Rules {
		if !r.Operator.Valid() {
			return fmt.Errorf("%w: rule %d: %q", ErrUnknownOperator, i, r.Operator)
		}
	}
	return nil
}

// matches evaluates a single rule, recovering any panic as a non-match so a
// malformed rule can never take down event processing.
func (r Rule) matches(context map[string]any) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	field, found := Lookup(context, r.Field)

	switch r.Operator {
	case OpEquals:
		return found && equals(field, r.Value)
	case OpNotEquals:
		return !found || !equals(field, r.Value)
	case OpGreaterThan:
		fv, ok1 := toFloat(field)
		rv, ok2 := r.Value.Float()
		return found && ok1 && ok2 && fv > rv
	case OpLessThan:
		fv, ok1 := toFloat(field)
		rv, ok2 := r.Value.Float()
		return found && ok1 && ok2 && fv < rv
	case OpContains:
		return found && strings.Contains(toText(field), r.Value.Text())
	case OpExists:
		return found && field != nil
	default:
		return false
	}
}

// Lookup resolves a dot-separated path against a nested map, stopping at the
// first missing or non-map intermediate key. The second return value reports
// whether the full path resolved.
func Lookup(context map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = context
	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func equals(field any, v Value) bool {
	switch v.Kind() {
	case KindNull:
		return field == nil
	case KindBool:
		b, ok := field.(bool)
		return ok && b == mustBool(v)
	case KindNumber:
		fv, ok := toFloat(field)
		rv, _ := v.Float()
		return ok && fv == rv
	default:
		// String comparison falls back to numeric equality when both sides
		// coerce, so "5" equals 5 the way the loose source semantics did.
		if fv, ok := toFloat(field); ok {
			if rv, ok := v.Float(); ok {
				return fv == rv
			}
		}
		return toText(field) == v.Text()
	}
}

func mustBool(v Value) bool { return v.b }

func toFloat(field any) (float64, bool) {
	switch t := field.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toText(field any) string {
	switch t := field.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
