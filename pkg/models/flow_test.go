package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeType_IsValid(t *testing.T) {
	tests := []struct {
		nodeType NodeType
		valid    bool
		terminal bool
	}{
		{NodeTypeStart, true, true},
		{NodeTypeEnd, true, true},
		{NodeTypeApproval, true, false},
		{NodeTypeCC, true, false},
		{NodeTypeCondition, true, false},
		{NodeTypeParallel, true, false},
		{"timer", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.nodeType), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.nodeType.IsValid())
			assert.Equal(t, tt.terminal, tt.nodeType.IsTerminal())
		})
	}
}

func TestDefaultNodeData(t *testing.T) {
	for _, nodeType := range NodeTypes {
		data, err := DefaultNodeData(nodeType)
		require.NoError(t, err)
		assert.Equal(t, nodeType, data.NodeType())
		assert.NotEmpty(t, data.DisplayLabel())
	}

	_, err := DefaultNodeData("timer")
	require.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestNode_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expectErr bool
		check     func(t *testing.T, n *Node)
	}{
		{
			name:  "missing fields keep defaults",
			input: `{"id":"a1","type":"approval","position":{"x":1,"y":2},"data":{"label":"Manager"}}`,
			check: func(t *testing.T, n *Node) {
				t.Helper()

				data, ok := n.Data.(*ApprovalData)
				require.True(t, ok)
				assert.Equal(t, "Manager", data.Label)
				assert.Equal(t, ApprovalModeSequential, data.ApprovalMode)
				assert.Equal(t, TimeoutActionNone, data.TimeoutAction)
				assert.InDelta(t, 2.0, n.Position.Y, 0)
			},
		},
		{
			name:  "null data",
			input: `{"id":"p1","type":"parallel","data":null}`,
			check: func(t *testing.T, n *Node) {
				t.Helper()

				data, ok := n.Data.(*ParallelData)
				require.True(t, ok)
				assert.Equal(t, JoinModeAll, data.JoinMode)
			},
		},
		{
			name:      "unknown type",
			input:     `{"id":"x","type":"timer"}`,
			expectErr: true,
		},
		{
			name:      "data of the wrong shape",
			input:     `{"id":"c1","type":"cc","data":{"ccConfig":"everyone"}}`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Node

			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.expectErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			tt.check(t, &n)
		})
	}
}

func TestNode_Label(t *testing.T) {
	data, _ := DefaultNodeData(NodeTypeCC)
	assert.Equal(t, "Carbon copy", (&Node{ID: "cc-1", Data: data}).Label())

	data.(*CCData).Label = ""
	assert.Equal(t, "cc-1", (&Node{ID: "cc-1", Data: data}).Label())
	assert.Equal(t, "n1", (&Node{ID: "n1"}).Label())
}

func TestFlowDocument_Clone(t *testing.T) {
	approval, _ := DefaultNodeData(NodeTypeApproval)
	approval.(*ApprovalData).ApproverConfig["roles"] = []any{"manager"}

	doc := &FlowDocument{
		ID:      "flow-1",
		Version: 1,
		Nodes: map[string]*Node{
			"a1": {ID: "a1", Type: NodeTypeApproval, Data: approval},
		},
		Edges: []*Edge{{ID: "e1", Source: "start", Target: "a1"}},
		RoutingRules: []*RoutingRule{{
			ID: "r1",
			Conditions: ConditionGroup{
				Operator: LogicalAnd,
				Items:    []ConditionItem{{Field: "form.dept", Op: OpIn, Value: []any{"sales"}}},
			},
		}},
	}

	clone := doc.Clone()

	clone.Nodes["a1"].Data.(*ApprovalData).ApproverConfig["roles"].([]any)[0] = "director"
	clone.Edges[0].Target = "end"
	clone.RoutingRules[0].Conditions.Items[0].Value.([]any)[0] = "hr"
	clone.Nodes["a2"] = &Node{ID: "a2"}

	assert.Equal(t, "manager", approval.(*ApprovalData).ApproverConfig["roles"].([]any)[0])
	assert.Equal(t, "a1", doc.Edges[0].Target)
	assert.Equal(t, "sales", doc.RoutingRules[0].Conditions.Items[0].Value.([]any)[0])
	assert.Len(t, doc.Nodes, 1)
}

func TestFlowDocument_Queries(t *testing.T) {
	doc := &FlowDocument{
		Nodes: map[string]*Node{
			"c2": {ID: "c2", Type: NodeTypeCC},
			"c1": {ID: "c1", Type: NodeTypeCC},
			"s":  {ID: "s", Type: NodeTypeStart},
		},
		Edges: []*Edge{{ID: "e1", Source: "s", Target: "c1"}},
	}

	assert.Equal(t, 2, doc.CountNodes(NodeTypeCC))
	assert.Equal(t, []string{"c1", "c2", "s"}, doc.SortedNodeIDs())

	ccs := doc.NodesOfType(NodeTypeCC)
	require.Len(t, ccs, 2)
	assert.Equal(t, "c1", ccs[0].ID)

	edge, index := doc.FindEdge("e1")
	require.NotNil(t, edge)
	assert.Equal(t, 0, index)

	_, index = doc.FindEdge("missing")
	assert.Equal(t, -1, index)

	assert.True(t, doc.HasEdgeBetween("s", "c1"))
	assert.False(t, doc.HasEdgeBetween("c1", "s"))
}

func TestConditionItem_Validation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name    string
		item    ConditionItem
		wantErr bool
	}{
		{"equal", ConditionItem{Field: "form.amount", Op: OpEqual, Value: 1}, false},
		{"between", ConditionItem{Field: "form.amount", Op: OpBetween, Value: []any{1, 2}}, false},
		{"is null", ConditionItem{Field: "entity.owner", Op: OpIsNull}, false},
		{"missing field", ConditionItem{Op: OpEqual}, true},
		{"unknown operator", ConditionItem{Field: "form.amount", Op: "~="}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.item)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
