// Package routing selects the sub-flow a submitted record is routed to by
// evaluating routing rules against a runtime context.
package routing

import (
	"cmp"
	"slices"

	"github.com/dukex/flowdesigner/pkg/models"
)

// ItemTrace records how one condition item was evaluated.
type ItemTrace struct {
	Field  string                    `json:"field"`
	Op     models.ComparisonOperator `json:"op"`
	Value  any                       `json:"value"`
	Actual any                       `json:"actual"`
	Found  bool                      `json:"found"`
	Result bool                      `json:"result"`
}

// RuleTrace records how one active rule was evaluated.
type RuleTrace struct {
	RuleID   string                 `json:"ruleId"`
	Name     string                 `json:"name"`
	Order    int                    `json:"order"`
	Operator models.LogicalOperator `json:"operator"`
	Matched  bool                   `json:"matched"`
	Items    []ItemTrace            `json:"items"`
}

// Decision is the outcome of evaluating a rule set.
type Decision struct {
	Matched bool        `json:"matched"`
	FlowID  string      `json:"flowId,omitempty"`
	RuleID  string      `json:"ruleId,omitempty"`
	Trace   []RuleTrace `json:"trace"`
}

// SelectFlow returns the flow ID of the first active rule, by ascending
// order, whose conditions match ctx. It reports false when no rule matches
// and the caller should fall back to its default flow.
func SelectFlow(rules []*models.RoutingRule, ctx Context) (string, bool) {
	decision := Evaluate(rules, ctx)

	return decision.FlowID, decision.Matched
}

// Evaluate is SelectFlow with a trace of every rule evaluated up to the match.
func Evaluate(rules []*models.RoutingRule, ctx Context) Decision {
	decision := Decision{Trace: []RuleTrace{}}

	for _, rule := range ActiveRules(rules) {
		trace := RuleTrace{
			RuleID:   rule.ID,
			Name:     rule.Name,
			Order:    rule.Order,
			Operator: groupOperator(rule.Conditions),
			Items:    make([]ItemTrace, 0, len(rule.Conditions.Items)),
		}

		for _, item := range rule.Conditions.Items {
			trace.Items = append(trace.Items, traceItem(item, ctx))
		}

		trace.Matched = combine(trace.Operator, trace.Items)
		decision.Trace = append(decision.Trace, trace)

		if trace.Matched {
			decision.Matched = true
			decision.FlowID = rule.FlowID
			decision.RuleID = rule.ID

			break
		}
	}

	return decision
}

// ActiveRules returns the active rules sorted by ascending order. Rules with
// equal order keep their input order.
func ActiveRules(rules []*models.RoutingRule) []*models.RoutingRule {
	active := make([]*models.RoutingRule, 0, len(rules))

	for _, rule := range rules {
		if rule != nil && rule.IsActive {
			active = append(active, rule)
		}
	}

	slices.SortStableFunc(active, func(a, b *models.RoutingRule) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return active
}

// EvaluateGroup reports whether a condition group matches ctx. An empty group
// matches under AND and never matches under OR.
func EvaluateGroup(group models.ConditionGroup, ctx Context) bool {
	operator := groupOperator(group)

	for _, item := range group.Items {
		result := EvaluateItem(item, ctx)

		if operator == models.LogicalOr && result {
			return true
		}

		if operator == models.LogicalAnd && !result {
			return false
		}
	}

	return operator == models.LogicalAnd
}

// EvaluateItem reports whether one condition item matches ctx.
func EvaluateItem(item models.ConditionItem, ctx Context) bool {
	actual, found := ctx.Lookup(item.Field)

	return compare(item.Op, actual, found, item.Value)
}

func traceItem(item models.ConditionItem, ctx Context) ItemTrace {
	actual, found := ctx.Lookup(item.Field)

	return ItemTrace{
		Field:  item.Field,
		Op:     item.Op,
		Value:  item.Value,
		Actual: actual,
		Found:  found,
		Result: compare(item.Op, actual, found, item.Value),
	}
}

func combine(operator models.LogicalOperator, items []ItemTrace) bool {
	if operator == models.LogicalOr {
		return slices.ContainsFunc(items, func(i ItemTrace) bool { return i.Result })
	}

	return !slices.ContainsFunc(items, func(i ItemTrace) bool { return !i.Result })
}

// groupOperator treats anything but OR as AND.
func groupOperator(group models.ConditionGroup) models.LogicalOperator {
	if group.Operator == models.LogicalOr {
		return models.LogicalOr
	}

	return models.LogicalAnd
}
