package models

// LogicalOperator combines the items of a condition group.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// ComparisonOperator compares a context field with a rule value.
type ComparisonOperator string

const (
	OpEqual        ComparisonOperator = "=="
	OpNotEqual     ComparisonOperator = "!="
	OpGreater      ComparisonOperator = ">"
	OpGreaterEqual ComparisonOperator = ">="
	OpLess         ComparisonOperator = "<"
	OpLessEqual    ComparisonOperator = "<="
	OpIn           ComparisonOperator = "in"
	OpNotIn        ComparisonOperator = "not_in"
	OpBetween      ComparisonOperator = "between"
	OpContains     ComparisonOperator = "contains"
	OpIsNull       ComparisonOperator = "is_null"
)

// Context field namespaces.
const (
	FieldNamespaceForm      = "form"
	FieldNamespaceEntity    = "entity"
	FieldNamespaceInitiator = "initiator"
)

// ConditionItem compares the value found at Field with Value.
type ConditionItem struct {
	Field string             `json:"field" validate:"required"`
	Op    ComparisonOperator `json:"op"    validate:"required,oneof=== != > >= < <= in not_in between contains is_null"`
	Value any                `json:"value"`
}

// ConditionGroup is a flat AND/OR of condition items.
type ConditionGroup struct {
	Operator LogicalOperator `json:"operator" validate:"omitempty,oneof=AND OR"`
	Items    []ConditionItem `json:"items"    validate:"dive"`
}

// RoutingRule routes a submitted record to a sub-flow when its conditions match.
type RoutingRule struct {
	ID         string         `json:"id"         validate:"required"`
	Name       string         `json:"name"`
	Order      int            `json:"order"`
	Conditions ConditionGroup `json:"conditions"`
	FlowID     string         `json:"flowId"`
	IsActive   bool           `json:"isActive"`
}

// Clone returns a deep copy of the rule.
func (r *RoutingRule) Clone() *RoutingRule {
	clone := *r

	clone.Conditions.Items = nil
	if r.Conditions.Items != nil {
		clone.Conditions.Items = make([]ConditionItem, len(r.Conditions.Items))
		for i, item := range r.Conditions.Items {
			clone.Conditions.Items[i] = ConditionItem{
				Field: item.Field,
				Op:    item.Op,
				Value: cloneValue(item.Value),
			}
		}
	}

	return &clone
}

// CloneRoutingRules deep copies a rule list.
func CloneRoutingRules(rules []*RoutingRule) []*RoutingRule {
	clone := make([]*RoutingRule, 0, len(rules))
	for _, rule := range rules {
		clone = append(clone, rule.Clone())
	}

	return clone
}
