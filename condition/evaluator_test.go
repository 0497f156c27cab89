package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_FirstMatchingPathWins(t *testing.T) {
	e := New()
	paths := []Path{
		{ID: "p0", Clauses: []Clause{{Field: "approved", Operator: "==", Value: true}}},
		{ID: "default", Clauses: []Clause{{Field: "approved", Operator: "is_not_empty"}}},
	}
	id, ok, err := e.Match(paths, map[string]interface{}{"approved": true})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p0", id)
}

func TestMatch_NoPathMatches(t *testing.T) {
	e := New()
	paths := []Path{
		{ID: "p0", Clauses: []Clause{{Field: "approved", Operator: "==", Value: true}}},
	}
	_, ok, err := e.Match(paths, map[string]interface{}{"approved": false})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_ORCombinator(t *testing.T) {
	e := New()
	paths := []Path{{
		ID:         "p0",
		Combinator: "OR",
		Clauses: []Clause{
			{Field: "a", Operator: "==", Value: "nope"},
			{Field: "b", Operator: "==", Value: "yes"},
		},
	}}
	id, ok, err := e.Match(paths, map[string]interface{}{"a": "x", "b": "yes"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p0", id)
}

func TestMatch_ANDCombinatorDefault(t *testing.T) {
	e := New()
	paths := []Path{{
		ID: "p0",
		Clauses: []Clause{
			{Field: "a", Operator: "==", Value: "x"},
			{Field: "b", Operator: "==", Value: "yes"},
		},
	}}
	_, ok, err := e.Match(paths, map[string]interface{}{"a": "x", "b": "no"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperators_Table(t *testing.T) {
	cases := []struct {
		op     string
		field  string
		value  interface{}
		value2 interface{}
		data   map[string]interface{}
		want   bool
	}{
		{op: "contains", field: "s", value: "ell", data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "startswith", field: "s", value: "he", data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "endswith", field: "s", value: "lo", data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "is_empty", field: "s", data: map[string]interface{}{"s": ""}, want: true},
		{op: "is_not_empty", field: "s", data: map[string]interface{}{"s": "x"}, want: true},
		{op: "matches_regex", field: "s", value: "^h.*o$", data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "in_list", field: "s", value: []interface{}{"a", "hello"}, data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "not_in_list", field: "s", value: []interface{}{"a", "b"}, data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "length_equals", field: "s", value: float64(5), data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "length_greater_than", field: "s", value: float64(2), data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "length_less_than", field: "s", value: float64(10), data: map[string]interface{}{"s": "hello"}, want: true},
		{op: "type_equals", field: "s", value: "string", data: map[string]interface{}{"s": "hello"}, want: true},
		{op: ">", field: "n", value: float64(1), data: map[string]interface{}{"n": float64(2)}, want: true},
		{op: "date_before", field: "d", value: "2026-01-01", data: map[string]interface{}{"d": "2025-01-01"}, want: true},
		{op: "date_between", field: "d", value: "2025-01-01", value2: "2026-01-01", data: map[string]interface{}{"d": "2025-06-01"}, want: true},
	}
	e := New()
	for _, tc := range cases {
		paths := []Path{{ID: "p", Clauses: []Clause{{Field: tc.field, Operator: tc.op, Value: tc.value, Value2: tc.value2}}}}
		_, ok, err := e.Match(paths, tc.data)
		require.NoError(t, err, tc.op)
		assert.Equal(t, tc.want, ok, tc.op)
	}
}

func TestMatch_ExpressionOperatorUsesCEL(t *testing.T) {
	e := New()
	paths := []Path{{ID: "p0", Clauses: []Clause{{Operator: "expression", Expression: "ctx.count > 3"}}}}
	id, ok, err := e.Match(paths, map[string]interface{}{"count": 4.0})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p0", id)
}

func TestMatch_ExpressionCacheReusedAcrossCalls(t *testing.T) {
	e := New()
	paths := []Path{{ID: "p0", Clauses: []Clause{{Operator: "expression", Expression: "ctx.x == 1.0"}}}}
	_, _, err := e.Match(paths, map[string]interface{}{"x": 1.0})
	require.NoError(t, err)
	assert.Len(t, e.cache, 1)
	_, _, err = e.Match(paths, map[string]interface{}{"x": 1.0})
	require.NoError(t, err)
	assert.Len(t, e.cache, 1)
}
