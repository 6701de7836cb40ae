// Package condition implements the flat condition-set evaluator shared by
// the trigger and journey engines.
//
// A Set is an ordered list of rules combined by a single AND/OR logic flag
// (case-insensitive, empty means AND); there is no nested grouping. Each
// rule resolves its field via dot-path traversal over a nested map (yielding
// "missing" on any absent intermediate key) and compares the resolved value
// against a tagged Value using one of six operators.
//
// Evaluation is total by construction: an empty rule list evaluates to true,
// an unknown operator evaluates to false, and any panic raised while
// comparing values is recovered and treated as a non-match. Errors are never
// propagated out of Evaluate, which keeps the evaluator safe to run against
// arbitrary event payloads.
//
// # Usage
//
//	set := condition.Set{
//	    Logic: condition.LogicAnd,
//	    Rules: []condition.Rule{
//	        {Field: "data.score", Operator: condition.OpGreaterThan, Value: condition.Number(50)},
//	        {Field: "user.premium", Operator: condition.OpEquals, Value: condition.Bool(true)},
//	    },
//	}
//
//	matched := set.Evaluate(map[string]any{
//	    "data": map[string]any{"score": 72},
//	    "user": map[string]any{"premium": true},
//	})
package condition
