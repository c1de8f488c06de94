package models

import (
	"errors"
	"fmt"
)

// ErrUnknownNodeType is returned when a node type is not one of the built-in types.
var ErrUnknownNodeType = errors.New("unknown node type")

// Approval modes.
const (
	ApprovalModeSequential  = "sequential"  // Approvers act one after another
	ApprovalModeCountersign = "countersign" // Every approver must approve
	ApprovalModeOrSign      = "or_sign"     // First approver decides
)

// Timeout actions applied when an approval stage exceeds its timeout.
const (
	TimeoutActionNone        = "none"
	TimeoutActionAutoApprove = "auto_approve"
	TimeoutActionAutoReject  = "auto_reject"
	TimeoutActionRemind      = "remind"
)

// Join modes of a parallel gateway.
const (
	JoinModeAll = "all"
	JoinModeAny = "any"
)

// NodeData is the type-specific configuration of a node.
type NodeData interface {
	// NodeType returns the node type this configuration belongs to.
	NodeType() NodeType
	// DisplayLabel returns the operator-facing label.
	DisplayLabel() string
	// Clone returns a deep copy.
	Clone() NodeData
}

// StartData configures the START node.
type StartData struct {
	Label      string   `json:"label"`
	Initiators []string `json:"initiators,omitempty"`
}

func (d *StartData) NodeType() NodeType   { return NodeTypeStart }
func (d *StartData) DisplayLabel() string { return d.Label }

func (d *StartData) Clone() NodeData {
	c := *d
	c.Initiators = cloneStrings(d.Initiators)

	return &c
}

// EndData configures the END node.
type EndData struct {
	Label string `json:"label"`
}

func (d *EndData) NodeType() NodeType   { return NodeTypeEnd }
func (d *EndData) DisplayLabel() string { return d.Label }

func (d *EndData) Clone() NodeData {
	c := *d

	return &c
}

// ApprovalData configures an approval stage.
type ApprovalData struct {
	Label          string         `json:"label"`
	ApprovalMode   string         `json:"approvalMode"`
	ApproverType   string         `json:"approverType"`
	ApproverConfig map[string]any `json:"approverConfig"`
	TimeoutHours   int            `json:"timeoutHours"`
	TimeoutAction  string         `json:"timeoutAction"`
	AllowDelegate  bool           `json:"allowDelegate"`
	AllowAddSigner bool           `json:"allowAddSigner"`
	RejectTarget   string         `json:"rejectTarget,omitempty"` // Node ID to return to on rejection
}

func (d *ApprovalData) NodeType() NodeType   { return NodeTypeApproval }
func (d *ApprovalData) DisplayLabel() string { return d.Label }

func (d *ApprovalData) Clone() NodeData {
	c := *d
	c.ApproverConfig = cloneMap(d.ApproverConfig)

	return &c
}

// CCData configures a carbon-copy stage.
type CCData struct {
	Label       string         `json:"label"`
	CCType      string         `json:"ccType"`
	CCConfig    map[string]any `json:"ccConfig"`
	AllowSelect bool           `json:"allowSelect"`
}

func (d *CCData) NodeType() NodeType   { return NodeTypeCC }
func (d *CCData) DisplayLabel() string { return d.Label }

func (d *CCData) Clone() NodeData {
	c := *d
	c.CCConfig = cloneMap(d.CCConfig)

	return &c
}

// ConditionData configures a condition gateway.
type ConditionData struct {
	Label         string `json:"label"`
	DefaultBranch string `json:"defaultBranch,omitempty"` // Edge ID taken when no branch matches
}

func (d *ConditionData) NodeType() NodeType   { return NodeTypeCondition }
func (d *ConditionData) DisplayLabel() string { return d.Label }

func (d *ConditionData) Clone() NodeData {
	c := *d

	return &c
}

// ParallelData configures a parallel gateway.
type ParallelData struct {
	Label    string `json:"label"`
	JoinMode string `json:"joinMode"`
}

func (d *ParallelData) NodeType() NodeType   { return NodeTypeParallel }
func (d *ParallelData) DisplayLabel() string { return d.Label }

func (d *ParallelData) Clone() NodeData {
	c := *d

	return &c
}

// DefaultNodeData returns a fresh configuration record with the default values for t.
//
//nolint:ireturn // NodeData is a tagged variant
func DefaultNodeData(t NodeType) (NodeData, error) {
	switch t {
	case NodeTypeStart:
		return &StartData{Label: "Start"}, nil
	case NodeTypeEnd:
		return &EndData{Label: "End"}, nil
	case NodeTypeApproval:
		return &ApprovalData{
			Label:          "Approval",
			ApprovalMode:   ApprovalModeSequential,
			ApproverConfig: map[string]any{},
			TimeoutAction:  TimeoutActionNone,
		}, nil
	case NodeTypeCC:
		return &CCData{
			Label:    "Carbon copy",
			CCConfig: map[string]any{},
		}, nil
	case NodeTypeCondition:
		return &ConditionData{Label: "Condition"}, nil
	case NodeTypeParallel:
		return &ParallelData{Label: "Parallel", JoinMode: JoinModeAll}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}

	return append([]string(nil), s...)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = cloneValue(v)
	}

	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		c := make([]any, len(t))
		for i, item := range t {
			c[i] = cloneValue(item)
		}

		return c
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}
