package routing

import (
	"math"
	"reflect"
	"strings"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/spf13/cast"
)

// compare applies op to the resolved field value. A field that was not found
// behaves as null.
func compare(op models.ComparisonOperator, actual any, found bool, expected any) bool {
	if !found {
		actual = nil
	}

	switch op {
	case models.OpEqual:
		return equalValues(actual, expected)
	case models.OpNotEqual:
		return !equalValues(actual, expected)
	case models.OpGreater:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a > b })
	case models.OpGreaterEqual:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a >= b })
	case models.OpLess:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a < b })
	case models.OpLessEqual:
		return compareNumbers(actual, expected, func(a, b float64) bool { return a <= b })
	case models.OpIn:
		members, ok := listOf(expected)

		return ok && containsValue(members, actual)
	case models.OpNotIn:
		members, ok := listOf(expected)

		return ok && !containsValue(members, actual)
	case models.OpBetween:
		return between(actual, expected)
	case models.OpContains:
		return contains(actual, expected)
	case models.OpIsNull:
		return isNull(actual, expected)
	default:
		return false
	}
}

// equalValues compares two operands after coercing them to a common
// primitive type. Numbers win over strings, booleans over strings.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	_, aBool := a.(bool)
	_, bBool := b.(bool)

	if aBool || bBool {
		x, okA := toBool(a)
		y, okB := toBool(b)

		return okA && okB && x == y
	}

	if isNumber(a) || isNumber(b) {
		x, okA := toNumber(a)
		y, okB := toNumber(b)

		return okA && okB && x == y
	}

	as, aString := a.(string)
	bs, bString := b.(string)

	if aString && bString {
		return as == bs
	}

	return reflect.DeepEqual(a, b)
}

func compareNumbers(a, b any, cmp func(a, b float64) bool) bool {
	x, okA := toNumber(a)
	y, okB := toNumber(b)

	return okA && okB && cmp(x, y)
}

func between(actual, bounds any) bool {
	pair, ok := listOf(bounds)
	if !ok || len(pair) != 2 {
		return false
	}

	value, ok := toNumber(actual)
	if !ok {
		return false
	}

	low, okLow := toNumber(pair[0])
	high, okHigh := toNumber(pair[1])

	return okLow && okHigh && low <= value && value <= high
}

func contains(actual, expected any) bool {
	if s, ok := actual.(string); ok {
		sub, err := cast.ToStringE(expected)

		return err == nil && strings.Contains(s, sub)
	}

	if elements, ok := listOf(actual); ok {
		return containsValue(elements, expected)
	}

	return false
}

// isNull reads expected as the expected nullness. A missing expectation means true.
func isNull(actual, expected any) bool {
	want := true

	if expected != nil {
		b, err := cast.ToBoolE(expected)
		if err != nil {
			return false
		}

		want = b
	}

	return (actual == nil) == want
}

func containsValue(list []any, value any) bool {
	for _, member := range list {
		if equalValues(member, value) {
			return true
		}
	}

	return false
}

// listOf returns the elements of any slice or array value.
func listOf(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}

	return list, true
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// toNumber accepts numbers and numeric strings. Booleans are not numbers.
func toNumber(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	}

	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, false
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}

	// "inf" and "nan" parse as floats but are text in a record.
	if _, ok := v.(string); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return 0, false
	}

	return f, true
}

// toBool accepts booleans, the strings "true" and "false", and the numbers 0
// and 1.
func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}

		return false, false
	}

	if !isNumber(v) {
		return false, false
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return false, false
	}

	switch f {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}
