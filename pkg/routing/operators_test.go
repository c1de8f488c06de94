package routing

import (
	"testing"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateItem(t *testing.T) {
	ctx, err := ParseContext([]byte(`{
		"form": {
			"amount": 1500,
			"amount_text": "1500",
			"category": "travel",
			"urgent": true,
			"note": null,
			"name": "inf",
			"ratio": "NaN",
			"tags": ["q3", "offsite"],
			"lines": [{"sku": "A-1", "qty": 2}, {"sku": "B-7", "qty": 10}]
		},
		"entity": {"customer": {"tier": "gold"}, "total_price": 200000, "labels": ["a", "b"]},
		"initiator": {"department": "sales", "level": 3}
	}`))
	require.NoError(t, err)

	tests := []struct {
		name string
		item models.ConditionItem
		want bool
	}{
		{name: "equal string", item: models.ConditionItem{Field: "form.category", Op: models.OpEqual, Value: "travel"}, want: true},
		{name: "equal coerces numeric string", item: models.ConditionItem{Field: "form.amount_text", Op: models.OpEqual, Value: 1500}, want: true},
		{name: "equal int and float", item: models.ConditionItem{Field: "form.amount", Op: models.OpEqual, Value: 1500.0}, want: true},
		{name: "equal bool", item: models.ConditionItem{Field: "form.urgent", Op: models.OpEqual, Value: "true"}, want: true},
		{name: "equal nested path", item: models.ConditionItem{Field: "entity.customer.tier", Op: models.OpEqual, Value: "gold"}, want: true},
		{name: "equal missing field", item: models.ConditionItem{Field: "form.missing", Op: models.OpEqual, Value: "x"}, want: false},
		{name: "not equal", item: models.ConditionItem{Field: "initiator.department", Op: models.OpNotEqual, Value: "finance"}, want: true},
		{name: "not equal missing field", item: models.ConditionItem{Field: "form.missing", Op: models.OpNotEqual, Value: "x"}, want: true},
		{name: "greater", item: models.ConditionItem{Field: "form.amount", Op: models.OpGreater, Value: 1000}, want: true},
		{name: "greater equal boundary", item: models.ConditionItem{Field: "form.amount", Op: models.OpGreaterEqual, Value: 1500}, want: true},
		{name: "less", item: models.ConditionItem{Field: "initiator.level", Op: models.OpLess, Value: 3}, want: false},
		{name: "less equal", item: models.ConditionItem{Field: "initiator.level", Op: models.OpLessEqual, Value: "3"}, want: true},
		{name: "numeric op on string", item: models.ConditionItem{Field: "form.category", Op: models.OpGreater, Value: 1}, want: false},
		{name: "numeric op on bool", item: models.ConditionItem{Field: "form.urgent", Op: models.OpGreater, Value: 0}, want: false},
		{name: "numeric op on missing", item: models.ConditionItem{Field: "form.missing", Op: models.OpLess, Value: 10}, want: false},
		{name: "in", item: models.ConditionItem{Field: "initiator.department", Op: models.OpIn, Value: []any{"sales", "marketing"}}, want: true},
		{name: "in typed slice", item: models.ConditionItem{Field: "form.amount", Op: models.OpIn, Value: []int{1000, 1500}}, want: true},
		{name: "in without list", item: models.ConditionItem{Field: "initiator.department", Op: models.OpIn, Value: "sales"}, want: false},
		{name: "not in", item: models.ConditionItem{Field: "initiator.department", Op: models.OpNotIn, Value: []string{"finance"}}, want: true},
		{name: "not in missing field", item: models.ConditionItem{Field: "form.missing", Op: models.OpNotIn, Value: []string{"finance"}}, want: true},
		{name: "between inclusive low", item: models.ConditionItem{Field: "form.amount", Op: models.OpBetween, Value: []any{1500, 2000}}, want: true},
		{name: "between inclusive high", item: models.ConditionItem{Field: "form.amount", Op: models.OpBetween, Value: []any{1000, 1500}}, want: true},
		{name: "between outside", item: models.ConditionItem{Field: "form.amount", Op: models.OpBetween, Value: []any{0, 100}}, want: false},
		{name: "between malformed range", item: models.ConditionItem{Field: "form.amount", Op: models.OpBetween, Value: []any{0}}, want: false},
		{name: "contains substring", item: models.ConditionItem{Field: "form.category", Op: models.OpContains, Value: "rav"}, want: true},
		{name: "contains element", item: models.ConditionItem{Field: "form.tags", Op: models.OpContains, Value: "offsite"}, want: true},
		{name: "contains missing element", item: models.ConditionItem{Field: "form.tags", Op: models.OpContains, Value: "q4"}, want: false},
		{name: "contains on number", item: models.ConditionItem{Field: "form.amount", Op: models.OpContains, Value: "1"}, want: false},
		{name: "list index path", item: models.ConditionItem{Field: "form.lines.1.qty", Op: models.OpGreaterEqual, Value: 10}, want: true},
		{name: "is null missing", item: models.ConditionItem{Field: "form.missing", Op: models.OpIsNull, Value: true}, want: true},
		{name: "is null explicit null", item: models.ConditionItem{Field: "form.note", Op: models.OpIsNull, Value: true}, want: true},
		{name: "is null present", item: models.ConditionItem{Field: "form.category", Op: models.OpIsNull, Value: true}, want: false},
		{name: "is not null present", item: models.ConditionItem{Field: "form.category", Op: models.OpIsNull, Value: false}, want: true},
		{name: "is not null missing", item: models.ConditionItem{Field: "form.missing", Op: models.OpIsNull, Value: false}, want: false},
		{name: "is null without value", item: models.ConditionItem{Field: "form.missing", Op: models.OpIsNull}, want: true},
		{name: "infinity text is not a number", item: models.ConditionItem{Field: "form.name", Op: models.OpGreater, Value: 100000}, want: false},
		{name: "infinity text greater equal", item: models.ConditionItem{Field: "form.name", Op: models.OpGreaterEqual, Value: 0}, want: false},
		{name: "nan text less", item: models.ConditionItem{Field: "form.ratio", Op: models.OpLess, Value: 1}, want: false},
		{name: "infinity text in range", item: models.ConditionItem{Field: "form.name", Op: models.OpBetween, Value: []any{0, "Infinity"}}, want: false},
		{name: "infinity text equal", item: models.ConditionItem{Field: "form.name", Op: models.OpEqual, Value: "inf"}, want: true},
		{name: "bool equal one", item: models.ConditionItem{Field: "form.urgent", Op: models.OpEqual, Value: 1}, want: true},
		{name: "bool not equal two", item: models.ConditionItem{Field: "form.urgent", Op: models.OpEqual, Value: 2}, want: false},
		{name: "bool not equal other text", item: models.ConditionItem{Field: "form.urgent", Op: models.OpEqual, Value: "yes"}, want: false},
		{name: "wildcard is not a match", item: models.ConditionItem{Field: "entity.total*", Op: models.OpGreater, Value: 100000}, want: false},
		{name: "wildcard field is null", item: models.ConditionItem{Field: "entity.total*", Op: models.OpIsNull, Value: true}, want: true},
		{name: "literal field", item: models.ConditionItem{Field: "entity.total_price", Op: models.OpGreater, Value: 100000}, want: true},
		{name: "unknown operator", item: models.ConditionItem{Field: "form.category", Op: "matches", Value: "travel"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateItem(tt.item, ctx))
		})
	}
}

func TestContext(t *testing.T) {
	_, err := ParseContext([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrInvalidContext)

	_, err = ParseContext([]byte(`{"form":`))
	assert.ErrorIs(t, err, ErrInvalidContext)

	ctx, err := NewContext(nil)
	require.NoError(t, err)

	_, found := ctx.Lookup("form.amount")
	assert.False(t, found)

	ctx, err = ctx.With("form.amount", 42)
	require.NoError(t, err)

	value, found := ctx.Lookup("form.amount")
	assert.True(t, found)
	assert.Equal(t, float64(42), value)

	data, err := ctx.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"form":{"amount":42}}`, string(data))
}

func TestContext_LookupIsLiteral(t *testing.T) {
	ctx, err := ParseContext([]byte(`{"entity": {"total_price": 200000, "tags": ["a", "b"]}, "odd": {"a*b": 1}}`))
	require.NoError(t, err)

	tests := []struct {
		path  string
		found bool
		value any
	}{
		{path: "entity.total_price", found: true, value: float64(200000)},
		{path: "entity.tags.1", found: true, value: "b"},
		{path: "odd.a*b", found: true, value: float64(1)},
		{path: "entity.total*"},
		{path: "entity.total_pric?"},
		{path: "entity.tags.#"},
		{path: "@this"},
		{path: "entity|total_price"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			value, found := ctx.Lookup(tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.value, value)
		})
	}

	ctx, err = ctx.With("odd.x*y", "set")
	require.NoError(t, err)

	value, found := ctx.Lookup("odd.x*y")
	assert.True(t, found)
	assert.Equal(t, "set", value)
}
