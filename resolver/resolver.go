// Package resolver implements the Template Resolver (spec.md §4.1): a
// pure function from (template string, output table) to a resolved
// string, plus the node-name normalization and field-fallback rules
// that make `{{node.field}}` tolerant of the project's inconsistent id
// conventions.
//
// The resolver never mutates the output table it is given and is safe
// to call concurrently on disjoint inputs, matching the purity
// requirement in spec.md §4.1 and §8 invariant 3.
package resolver

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/lyzr/flowengine/sdk"
	"github.com/tidwall/gjson"
)

// tokenPattern matches `{{ ws? ref . field ws? }}` per spec.md's
// template grammar. ref and field are [A-Za-z0-9_-]+.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\.([A-Za-z0-9_\-]+)\s*\}\}`)

// fallbackFields is the standard field-fallback order from spec.md
// §4.1 step 3.
var fallbackFields = []string{"output", "text", "content", "response", "result", "value"}

// Resolver substitutes `{{node.field}}` tokens against an output table.
// It holds no mutable state; a zero value is ready to use.
type Resolver struct{}

// New returns a ready-to-use Resolver.
func New() *Resolver { return &Resolver{} }

// Table is the read-only set of node outputs the resolver searches.
// It is satisfied by a plain map[string]sdk.NodeOutput as well as any
// type with the same method set (e.g. the engine's output table).
type Table interface {
	Get(nodeID string) (sdk.NodeOutput, bool)
	Keys() []string
}

// MapTable adapts a plain map to the Table interface for callers (and
// tests) that don't have a live output table handy.
type MapTable map[string]sdk.NodeOutput

func (m MapTable) Get(nodeID string) (sdk.NodeOutput, bool) { v, ok := m[nodeID]; return v, ok }
func (m MapTable) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// ResolveString substitutes every token in tmpl against table in a
// single pass (resolved substitutions are not themselves rescanned).
// Tokens that fail to resolve are left verbatim and reported as
// warnings; a template with zero tokens is returned unchanged.
func (r *Resolver) ResolveString(tmpl string, table Table) (string, []sdk.ResolveWarning) {
	matches := tokenPattern.FindAllStringSubmatchIndex(tmpl, -1)
	if matches == nil {
		return tmpl, nil
	}

	var warnings []sdk.ResolveWarning
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		ref := tmpl[m[2]:m[3]]
		field := tmpl[m[4]:m[5]]
		token := tmpl[start:end]

		b.WriteString(tmpl[last:start])

		value, reason, ok := r.resolveToken(ref, field, table)
		if !ok {
			b.WriteString(token)
			warnings = append(warnings, sdk.ResolveWarning{Token: token, Reason: reason})
		} else {
			b.WriteString(Stringify(value))
		}
		last = end
	}
	b.WriteString(tmpl[last:])
	return b.String(), warnings
}

// resolveToken resolves one `ref.field` pair to a value, or reports why
// it could not.
func (r *Resolver) resolveToken(ref, field string, table Table) (interface{}, string, bool) {
	nodeID, ok := NormalizeNodeRef(ref, table.Keys())
	if !ok {
		return nil, "unknown node: " + ref, false
	}
	output, ok := table.Get(nodeID)
	if !ok {
		return nil, "unknown node: " + ref, false
	}
	value, ok := ResolveField(field, output)
	if !ok {
		return nil, "unknown field: " + field, false
	}
	return value, "", true
}

// ResolveValue recursively resolves every string found in v (including
// strings nested inside maps and slices) against table, per the Input
// Assembler's step 4 contract. Non-string scalars pass through
// untouched.
func (r *Resolver) ResolveValue(v interface{}, table Table) (interface{}, []sdk.ResolveWarning) {
	switch val := v.(type) {
	case string:
		resolved, warnings := r.ResolveString(val, table)
		return resolved, warnings
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		var warnings []sdk.ResolveWarning
		for k, inner := range val {
			rv, w := r.ResolveValue(inner, table)
			out[k] = rv
			warnings = append(warnings, w...)
		}
		return out, warnings
	case []interface{}:
		out := make([]interface{}, len(val))
		var warnings []sdk.ResolveWarning
		for i, inner := range val {
			rv, w := r.ResolveValue(inner, table)
			out[i] = rv
			warnings = append(warnings, w...)
		}
		return out, warnings
	default:
		return v, nil
	}
}

// ResolveParams deep-resolves every string in a node's params mapping,
// as required by the Input Assembler (spec.md §4.4 step 4).
func (r *Resolver) ResolveParams(params map[string]interface{}, table Table) (map[string]interface{}, []sdk.ResolveWarning) {
	resolved, warnings := r.ResolveValue(params, table)
	m, _ := resolved.(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, warnings
}

// NormalizeNodeRef applies the five-step node-name normalization
// algorithm from spec.md §4.1 against the candidate key set.
func NormalizeNodeRef(ref string, candidates []string) (string, bool) {
	// 1. Exact match.
	for _, c := range candidates {
		if c == ref {
			return c, true
		}
	}

	// 2. Case-preserving replacement of -<->_ and retry exact.
	swapped := swapDashUnderscore(ref)
	for _, c := range candidates {
		if c == swapped {
			return c, true
		}
	}

	// 3. Suffix-number alignment.
	refPrefix, refNum, refHasNum := splitTrailingInt(ref)
	if refHasNum {
		for _, c := range candidates {
			cPrefix, cNum, cHasNum := splitTrailingInt(c)
			if !cHasNum || cNum != refNum {
				continue
			}
			if strings.Contains(cPrefix, refPrefix) || strings.Contains(c, refPrefix) {
				return c, true
			}
		}
	}

	// 4. Prefix-family fuzzy matching: requested begins with a known
	// family prefix (e.g. "input_") and the candidate contains that
	// family name and ends with the same trailing integer.
	if refHasNum {
		family := strings.TrimRight(refPrefix, "_-")
		family = strings.TrimSuffix(family, "_")
		family = strings.TrimSuffix(family, "-")
		if family != "" {
			for _, c := range candidates {
				_, cNum, cHasNum := splitTrailingInt(c)
				if !cHasNum || cNum != refNum {
					continue
				}
				if strings.Contains(strings.ToLower(c), strings.ToLower(family)) {
					return c, true
				}
			}
		}
	}

	// 5. Unresolved.
	return "", false
}

func swapDashUnderscore(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '-':
			b.WriteRune('_')
		case '_':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// trailingIntPattern extracts a trailing run of digits.
var trailingIntPattern = regexp.MustCompile(`^(.*?)(\d+)$`)

// splitTrailingInt splits s into (prefix, trailing-integer) when s ends
// in digits.
func splitTrailingInt(s string) (prefix string, n int, ok bool) {
	m := trailingIntPattern.FindStringSubmatch(s)
	if m == nil {
		return s, 0, false
	}
	val, err := strconv.Atoi(m[2])
	if err != nil {
		return s, 0, false
	}
	return m[1], val, true
}

// ResolveField implements spec.md §4.1's field-resolution cascade
// against a matched NodeOutput.
func ResolveField(field string, output sdk.NodeOutput) (interface{}, bool) {
	// 1. Exact requested field name.
	if v, ok := output[field]; ok {
		return v, true
	}

	// 2. Its lowercase form.
	lower := strings.ToLower(field)
	if lower != field {
		if v, ok := output[lower]; ok {
			return v, true
		}
	}

	// 3. Standard fallback order.
	for _, f := range fallbackFields {
		if v, ok := output[f]; ok {
			return v, true
		}
	}

	// 4. First non-metadata field (stable iteration order not
	// guaranteed by map, but any field satisfies spec's "first").
	for k, v := range output {
		if !sdk.MetadataFields[k] {
			return v, true
		}
	}

	// 5. Unresolved.
	return nil, false
}

// Stringify coerces a resolved value to its textual form: canonical
// JSON for objects/arrays, language-native text for scalars, and the
// empty string for nil, per spec.md §4.1's value-coercion rule.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// QueryJSON extracts a dotted-path field from a value's JSON
// projection using gjson, used by the json_handler node and as a
// fallback query mechanism for nested field access beyond the flat
// alias fields the resolver resolves directly.
func QueryJSON(v interface{}, path string) (gjson.Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(b, path), nil
}
