// Package validation checks a flow document for structural problems before it is published.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Severity of an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes.
const (
	CodeMissingStart       = "missing_start"
	CodeDuplicateStart     = "duplicate_start"
	CodeMissingEnd         = "missing_end"
	CodeDuplicateEnd       = "duplicate_end"
	CodeStartNoOutgoing    = "start_no_outgoing"
	CodeEndNoIncoming      = "end_no_incoming"
	CodeDisconnectedNode   = "disconnected_node"
	CodeMissingApprover    = "missing_approver"
	CodeDanglingEdge       = "dangling_edge"
	CodeConditionBranches  = "condition_branches"
	CodeRuleWithoutFlow    = "rule_without_flow"
	CodeDuplicateRuleID    = "duplicate_rule_id"
	CodeInvalidRuleSetting = "invalid_rule"
)

// Issue is one finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	NodeID   string   `json:"nodeId,omitempty"`
	EdgeID   string   `json:"edgeId,omitempty"`
	RuleID   string   `json:"ruleId,omitempty"`
}

// Result holds the findings of one validation run. Errors and Warnings carry
// the messages of Issues in the same order.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	IsValid  bool     `json:"isValid"`
	Issues   []Issue  `json:"issues"`
}

func (r *Result) add(issue Issue) {
	r.Issues = append(r.Issues, issue)

	if issue.Severity == SeverityError {
		r.Errors = append(r.Errors, issue.Message)
	} else {
		r.Warnings = append(r.Warnings, issue.Message)
	}
}

var ruleValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate inspects doc without modifying it. Findings are ordered by check,
// then by node ID, then by edge or rule position.
func Validate(doc *models.FlowDocument) Result {
	result := Result{
		Errors:   []string{},
		Warnings: []string{},
		Issues:   []Issue{},
	}

	if doc == nil {
		doc = &models.FlowDocument{}
	}

	g := newGraph(doc)

	checkTerminal(&result, g, models.NodeTypeStart, CodeMissingStart, CodeDuplicateStart)
	checkTerminal(&result, g, models.NodeTypeEnd, CodeMissingEnd, CodeDuplicateEnd)

	for _, node := range g.nodesOfType(models.NodeTypeStart) {
		if g.outgoing[node.ID] == 0 {
			result.add(Issue{
				Severity: SeverityError,
				Code:     CodeStartNoOutgoing,
				Message:  fmt.Sprintf("START node %s has no outgoing edge", describe(node)),
				NodeID:   node.ID,
			})
		}
	}

	for _, node := range g.nodesOfType(models.NodeTypeEnd) {
		if g.incoming[node.ID] == 0 {
			result.add(Issue{
				Severity: SeverityError,
				Code:     CodeEndNoIncoming,
				Message:  fmt.Sprintf("END node %s has no incoming edge", describe(node)),
				NodeID:   node.ID,
			})
		}
	}

	for _, node := range g.nodes {
		if node.Type.IsTerminal() {
			continue
		}

		if missing := g.missingConnections(node.ID); missing != "" {
			result.add(Issue{
				Severity: SeverityWarning,
				Code:     CodeDisconnectedNode,
				Message:  fmt.Sprintf("Node %s has no %s", describe(node), missing),
				NodeID:   node.ID,
			})
		}
	}

	for _, node := range g.nodesOfType(models.NodeTypeApproval) {
		data, ok := node.Data.(*models.ApprovalData)
		if !ok || strings.TrimSpace(data.ApproverType) == "" {
			result.add(Issue{
				Severity: SeverityError,
				Code:     CodeMissingApprover,
				Message:  fmt.Sprintf("Approval node %s has no approver type", describe(node)),
				NodeID:   node.ID,
			})
		}
	}

	checkEdges(&result, g)
	checkConditionBranches(&result, g)
	checkRoutingRules(&result, doc.RoutingRules)

	result.IsValid = len(result.Errors) == 0

	return result
}

func checkTerminal(result *Result, g *graph, nodeType models.NodeType, missingCode, duplicateCode string) {
	label := strings.ToUpper(string(nodeType))

	switch count := len(g.nodesOfType(nodeType)); {
	case count == 0:
		result.add(Issue{
			Severity: SeverityError,
			Code:     missingCode,
			Message:  fmt.Sprintf("Flow has no %s node", label),
		})
	case count > 1:
		result.add(Issue{
			Severity: SeverityError,
			Code:     duplicateCode,
			Message:  fmt.Sprintf("Flow has %d %s nodes, exactly one is required", count, label),
		})
	}
}

func checkEdges(result *Result, g *graph) {
	for _, edge := range g.edges {
		_, sourceOk := g.byID[edge.Source]
		_, targetOk := g.byID[edge.Target]

		if sourceOk && targetOk {
			continue
		}

		result.add(Issue{
			Severity: SeverityWarning,
			Code:     CodeDanglingEdge,
			Message:  fmt.Sprintf("Edge %s references a missing node (%s -> %s)", edge.ID, edge.Source, edge.Target),
			EdgeID:   edge.ID,
		})
	}
}

func checkConditionBranches(result *Result, g *graph) {
	for _, node := range g.nodesOfType(models.NodeTypeCondition) {
		if branches := g.outgoing[node.ID]; branches < 2 {
			result.add(Issue{
				Severity: SeverityWarning,
				Code:     CodeConditionBranches,
				Message:  fmt.Sprintf("Condition node %s has %d outgoing branch(es), at least 2 expected", describe(node), branches),
				NodeID:   node.ID,
			})
		}
	}
}

func checkRoutingRules(result *Result, rules []*models.RoutingRule) {
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		if rule == nil {
			continue
		}

		if rule.ID != "" && seen[rule.ID] {
			result.add(Issue{
				Severity: SeverityWarning,
				Code:     CodeDuplicateRuleID,
				Message:  fmt.Sprintf("Routing rule id %s is used more than once", rule.ID),
				RuleID:   rule.ID,
			})
		}

		seen[rule.ID] = true

		if rule.IsActive && strings.TrimSpace(rule.FlowID) == "" {
			result.add(Issue{
				Severity: SeverityWarning,
				Code:     CodeRuleWithoutFlow,
				Message:  fmt.Sprintf("Active routing rule %s has no target flow", ruleName(rule, i)),
				RuleID:   rule.ID,
			})
		}

		var validationErrors validator.ValidationErrors
		if err := ruleValidator.Struct(rule); errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				result.add(Issue{
					Severity: SeverityWarning,
					Code:     CodeInvalidRuleSetting,
					Message: fmt.Sprintf("Routing rule %s has an invalid %s (%s)",
						ruleName(rule, i), strings.TrimPrefix(fieldErr.Namespace(), "RoutingRule."), fieldErr.Tag()),
					RuleID: rule.ID,
				})
			}
		}
	}
}

func ruleName(rule *models.RoutingRule, index int) string {
	switch {
	case rule.Name != "":
		return fmt.Sprintf("%q", rule.Name)
	case rule.ID != "":
		return rule.ID
	default:
		return fmt.Sprintf("#%d", index)
	}
}

func describe(node *models.Node) string {
	return fmt.Sprintf("%q (%s)", node.Label(), node.ID)
}
