package routing

import (
	"testing"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustContext(t *testing.T, values map[string]any) Context {
	t.Helper()

	ctx, err := NewContext(values)
	require.NoError(t, err)

	return ctx
}

func scenarioRules() []*models.RoutingRule {
	return []*models.RoutingRule{
		{
			ID:    "large",
			Order: 1,
			Conditions: models.ConditionGroup{
				Operator: models.LogicalAnd,
				Items: []models.ConditionItem{
					{Field: "entity.total_price", Op: models.OpGreater, Value: 100000},
				},
			},
			FlowID:   "flowA",
			IsActive: true,
		},
		{
			ID:         "fallback",
			Order:      2,
			Conditions: models.ConditionGroup{Operator: models.LogicalAnd},
			FlowID:     "flowB",
			IsActive:   true,
		},
	}
}

func TestSelectFlow_OrderedRules(t *testing.T) {
	tests := []struct {
		name       string
		totalPrice any
		want       string
	}{
		{name: "below threshold falls through", totalPrice: 50000, want: "flowB"},
		{name: "above threshold", totalPrice: 200000, want: "flowA"},
		{name: "numeric string", totalPrice: "200000", want: "flowA"},
		{name: "non numeric", totalPrice: "lots", want: "flowB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := mustContext(t, map[string]any{"entity": map[string]any{"total_price": tt.totalPrice}})

			flowID, ok := SelectFlow(scenarioRules(), ctx)

			assert.True(t, ok)
			assert.Equal(t, tt.want, flowID)
		})
	}
}

func TestSelectFlow_OrderIndependentOfInputOrder(t *testing.T) {
	rules := scenarioRules()
	reversed := []*models.RoutingRule{rules[1], rules[0]}
	ctx := mustContext(t, map[string]any{"entity": map[string]any{"total_price": 200000}})

	first, _ := SelectFlow(rules, ctx)
	second, _ := SelectFlow(reversed, ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, "flowA", first)
}

func TestSelectFlow_EqualOrderKeepsInputOrder(t *testing.T) {
	rules := []*models.RoutingRule{
		{ID: "a", Order: 1, FlowID: "flowA", IsActive: true},
		{ID: "b", Order: 1, FlowID: "flowB", IsActive: true},
	}

	flowID, ok := SelectFlow(rules, EmptyContext())
	require.True(t, ok)
	assert.Equal(t, "flowA", flowID)

	flowID, ok = SelectFlow([]*models.RoutingRule{rules[1], rules[0]}, EmptyContext())
	require.True(t, ok)
	assert.Equal(t, "flowB", flowID)
}

func TestSelectFlow_SkipsInactiveAndReportsNoMatch(t *testing.T) {
	rules := []*models.RoutingRule{
		{ID: "inactive", Order: 0, FlowID: "flowX", IsActive: false},
		nil,
		{
			ID:    "region",
			Order: 1,
			Conditions: models.ConditionGroup{
				Operator: models.LogicalOr,
				Items: []models.ConditionItem{
					{Field: "form.region", Op: models.OpEqual, Value: "EU"},
				},
			},
			FlowID:   "flowEU",
			IsActive: true,
		},
	}

	flowID, ok := SelectFlow(rules, mustContext(t, map[string]any{"form": map[string]any{"region": "US"}}))

	assert.False(t, ok)
	assert.Empty(t, flowID)

	flowID, ok = SelectFlow(nil, EmptyContext())
	assert.False(t, ok)
	assert.Empty(t, flowID)
}

func TestSelectFlow_Deterministic(t *testing.T) {
	rules := scenarioRules()
	ctx := mustContext(t, map[string]any{"entity": map[string]any{"total_price": 150000}})

	first, _ := SelectFlow(rules, ctx)
	for range 10 {
		again, _ := SelectFlow(rules, ctx)
		assert.Equal(t, first, again)
	}
}

func TestEvaluateGroup_EmptyItems(t *testing.T) {
	assert.True(t, EvaluateGroup(models.ConditionGroup{Operator: models.LogicalAnd}, EmptyContext()))
	assert.False(t, EvaluateGroup(models.ConditionGroup{Operator: models.LogicalOr}, EmptyContext()))
	assert.True(t, EvaluateGroup(models.ConditionGroup{}, EmptyContext()))
}

func TestEvaluateGroup_Operators(t *testing.T) {
	ctx := mustContext(t, map[string]any{"form": map[string]any{"amount": 10, "type": "travel"}})

	matching := models.ConditionItem{Field: "form.amount", Op: models.OpGreater, Value: 5}
	failing := models.ConditionItem{Field: "form.type", Op: models.OpEqual, Value: "office"}

	assert.False(t, EvaluateGroup(models.ConditionGroup{
		Operator: models.LogicalAnd,
		Items:    []models.ConditionItem{matching, failing},
	}, ctx))
	assert.True(t, EvaluateGroup(models.ConditionGroup{
		Operator: models.LogicalOr,
		Items:    []models.ConditionItem{failing, matching},
	}, ctx))
}

func TestEvaluate_Trace(t *testing.T) {
	rules := scenarioRules()
	rules = append(rules, &models.RoutingRule{ID: "never", Order: 3, FlowID: "flowC", IsActive: true})

	decision := Evaluate(rules, mustContext(t, map[string]any{"entity": map[string]any{"total_price": 50000}}))

	assert.True(t, decision.Matched)
	assert.Equal(t, "flowB", decision.FlowID)
	assert.Equal(t, "fallback", decision.RuleID)
	require.Len(t, decision.Trace, 2)

	first := decision.Trace[0]
	assert.Equal(t, "large", first.RuleID)
	assert.False(t, first.Matched)
	require.Len(t, first.Items, 1)
	assert.True(t, first.Items[0].Found)
	assert.Equal(t, float64(50000), first.Items[0].Actual)
	assert.False(t, first.Items[0].Result)

	assert.True(t, decision.Trace[1].Matched)
	assert.Empty(t, decision.Trace[1].Items)
}
