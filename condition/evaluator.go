// Package condition implements the evaluation engine behind the
// built-in `condition` node (spec.md §4.3, §6): an ordered list of
// paths, each an ordered list of clauses combined by AND/OR, evaluated
// against the assembled node inputs and the run's output table.
//
// A clause may also carry the "expression" operator, evaluated through
// a CEL program instead of the built-in operator table -- the same
// mechanism the teacher project uses for its loop/branch conditions,
// generalized here to a single clause within a larger path.
package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/lyzr/flowengine/resolver"
)

// Clause is one test within a condition path.
type Clause struct {
	Field      string      `json:"field"`      // dotted path into the evaluation context
	Operator   string      `json:"operator"`   // one of the §6 operator list, or "expression"
	Value      interface{} `json:"value,omitempty"`
	Value2     interface{} `json:"value2,omitempty"` // second bound for date_between
	Expression string      `json:"expression,omitempty"`
}

// Path is one candidate branch: its clauses combine with Combinator
// ("AND" by default, or "OR").
type Path struct {
	ID         string   `json:"id"`
	Combinator string   `json:"combinator,omitempty"`
	Clauses    []Clause `json:"clauses"`
}

// Evaluator evaluates condition paths. It caches compiled CEL programs
// across calls (expressions tend to repeat across a run's node
// invocations), guarded by a mutex since nodes evaluate concurrently.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// New returns a ready Evaluator with an empty CEL program cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]cel.Program)}
}

// Match evaluates paths in order against data and returns the id of
// the first path whose clauses all (or any, per its combinator)
// succeed. ok is false when no path matches.
func (e *Evaluator) Match(paths []Path, data map[string]interface{}) (matchedID string, ok bool, err error) {
	for _, p := range paths {
		matched, err := e.evalPath(p, data)
		if err != nil {
			return "", false, fmt.Errorf("path %s: %w", p.ID, err)
		}
		if matched {
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

func (e *Evaluator) evalPath(p Path, data map[string]interface{}) (bool, error) {
	if len(p.Clauses) == 0 {
		return false, nil
	}
	useOr := strings.EqualFold(p.Combinator, "OR")
	for _, c := range p.Clauses {
		result, err := e.evalClause(c, data)
		if err != nil {
			return false, err
		}
		if result && useOr {
			return true, nil
		}
		if !result && !useOr {
			return false, nil
		}
	}
	return !useOr, nil
}

func (e *Evaluator) evalClause(c Clause, data map[string]interface{}) (bool, error) {
	if strings.EqualFold(c.Operator, "expression") {
		return e.evalCEL(c.Expression, data)
	}
	actual, found := lookupField(c.Field, data)
	return applyOperator(c.Operator, actual, found, c.Value, c.Value2)
}

// lookupField resolves a dotted path against data using the same
// gjson-backed mechanism the Template Resolver uses for field access.
func lookupField(field string, data map[string]interface{}) (interface{}, bool) {
	if field == "" {
		return nil, false
	}
	result, err := resolver.QueryJSON(data, field)
	if err != nil || !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Evaluator) evalCEL(expr string, data map[string]interface{}) (bool, error) {
	prg, err := e.programFor(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]interface{}{"ctx": data})
	if err != nil {
		return false, fmt.Errorf("cel evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cel expression did not return a boolean, got %T", out.Value())
	}
	return result, nil
}

func (e *Evaluator) programFor(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	env, err := cel.NewEnv(cel.Variable("ctx", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// applyOperator implements the §6 operator list over (actual, target).
func applyOperator(op string, actual interface{}, found bool, target, target2 interface{}) (bool, error) {
	switch op {
	case "is_empty":
		return !found || isEmpty(actual), nil
	case "is_not_empty":
		return found && !isEmpty(actual), nil
	case "type_equals":
		return found && typeName(actual) == fmt.Sprint(target), nil
	}

	if !found {
		// Every remaining operator requires a resolved field; absence
		// is simply "no match" rather than an evaluation error.
		return false, nil
	}

	switch op {
	case "==":
		return looseEqual(actual, target), nil
	case "!=":
		return !looseEqual(actual, target), nil
	case ">", ">=", "<", "<=":
		a, aok := toFloat(actual)
		b, bok := toFloat(target)
		if !aok || !bok {
			return false, nil
		}
		switch op {
		case ">":
			return a > b, nil
		case ">=":
			return a >= b, nil
		case "<":
			return a < b, nil
		default:
			return a <= b, nil
		}
	case "contains":
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(target)), nil
	case "not_contains":
		return !strings.Contains(fmt.Sprint(actual), fmt.Sprint(target)), nil
	case "startswith":
		return strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(target)), nil
	case "endswith":
		return strings.HasSuffix(fmt.Sprint(actual), fmt.Sprint(target)), nil
	case "matches_regex":
		re, err := regexp.Compile(fmt.Sprint(target))
		if err != nil {
			return false, fmt.Errorf("matches_regex: %w", err)
		}
		return re.MatchString(fmt.Sprint(actual)), nil
	case "in_list":
		return inList(actual, target), nil
	case "not_in_list":
		return !inList(actual, target), nil
	case "length_equals", "length_greater_than", "length_less_than":
		length := lengthOf(actual)
		target, ok := toFloat(target)
		if !ok {
			return false, nil
		}
		switch op {
		case "length_equals":
			return float64(length) == target, nil
		case "length_greater_than":
			return float64(length) > target, nil
		default:
			return float64(length) < target, nil
		}
	case "date_before", "date_after", "date_equals":
		a, aok := toTime(actual)
		b, bok := toTime(target)
		if !aok || !bok {
			return false, nil
		}
		switch op {
		case "date_before":
			return a.Before(b), nil
		case "date_after":
			return a.After(b), nil
		default:
			return a.Equal(b), nil
		}
	case "date_between":
		a, aok := toTime(actual)
		lo, lok := toTime(target)
		hi, hok := toTime(target2)
		if !aok || !lok || !hok {
			return false, nil
		}
		return !a.Before(lo) && !a.After(hi), nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", op)
	}
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "unknown"
	}
}

func looseEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func inList(actual, target interface{}) bool {
	list, ok := target.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(actual, item) {
			return true
		}
	}
	return false
}

func lengthOf(v interface{}) int {
	switch val := v.(type) {
	case string:
		return len(val)
	case []interface{}:
		return len(val)
	case map[string]interface{}:
		return len(val)
	default:
		return 0
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case time.Time:
		return val, true
	default:
		return time.Time{}, false
	}
}
