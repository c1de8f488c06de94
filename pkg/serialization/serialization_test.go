package serialization

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *models.FlowDocument {
	return &models.FlowDocument{
		ID:          "flow-1",
		Name:        "Purchase order approval",
		Description: "Orders above budget",
		TemplateID:  "tpl-po",
		Version:     3,
		Nodes: map[string]*models.Node{
			"start": {ID: "start", Type: models.NodeTypeStart, Position: models.Position{X: 250, Y: 50}, Data: &models.StartData{Label: "Start"}},
			"mgr": {ID: "mgr", Type: models.NodeTypeApproval, Position: models.Position{X: 250, Y: 200}, Data: &models.ApprovalData{
				Label:          "Manager",
				ApprovalMode:   models.ApprovalModeOrSign,
				ApproverType:   "role",
				ApproverConfig: map[string]any{"roles": []any{"manager"}},
				TimeoutHours:   48,
				TimeoutAction:  models.TimeoutActionRemind,
				AllowDelegate:  true,
			}},
			"end": {ID: "end", Type: models.NodeTypeEnd, Position: models.Position{X: 250, Y: 400}, Data: &models.EndData{Label: "End"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "mgr"},
			{ID: "e2", Source: "mgr", Target: "end", Label: "approved"},
		},
		RoutingRules: []*models.RoutingRule{
			{
				ID:    "r1",
				Name:  "Large orders",
				Order: 1,
				Conditions: models.ConditionGroup{
					Operator: models.LogicalAnd,
					Items: []models.ConditionItem{
						{Field: "entity.total_price", Op: models.OpGreater, Value: float64(100000)},
					},
				},
				FlowID:   "flowA",
				IsActive: true,
			},
		},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	doc := sampleDocument()
	exportedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	data, err := Encode(doc, exportedAt)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2024-05-01T10:00:00Z", raw["exportedAt"])
	assert.Equal(t, "tpl-po", raw["templateId"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)

	exported, err := DecodeExported(data)
	require.NoError(t, err)
	assert.True(t, exportedAt.Equal(exported.ExportedAt))
	assert.Equal(t, *doc, exported.FlowDocument)
}

func TestDecode_DefaultsAndToleratesOlderDocuments(t *testing.T) {
	data := []byte(`{
		"id": "flow-legacy",
		"name": "Legacy",
		"legacyField": {"ignored": true},
		"nodes": {
			"start": {"type": "start", "position": {"x": 1, "y": 2}},
			"a1": {"id": "a1", "type": "approval", "data": {"label": "Finance", "approverType": "user", "unknown": 1}},
			"end": {"type": "end", "data": null}
		},
		"edges": [
			{"id": "e1", "source": "start", "target": "a1"},
			{"id": "e2", "source": "a1", "target": "ghost"}
		]
	}`)

	doc, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Version)
	assert.Empty(t, doc.RoutingRules)
	assert.NotNil(t, doc.RoutingRules)
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, "start", doc.Nodes["start"].ID)

	approval, ok := doc.Nodes["a1"].Data.(*models.ApprovalData)
	require.True(t, ok)
	assert.Equal(t, "Finance", approval.Label)
	assert.Equal(t, "user", approval.ApproverType)
	assert.Equal(t, models.ApprovalModeSequential, approval.ApprovalMode, "missing fields keep defaults")

	end, ok := doc.Nodes["end"].Data.(*models.EndData)
	require.True(t, ok)
	assert.Equal(t, "End", end.Label)

	// The edge pointing at a missing node is pruned
	require.Len(t, doc.Edges, 1)
	assert.Equal(t, "e1", doc.Edges[0].ID)
}

func TestDecode_MissingEdgesDefaultToEmpty(t *testing.T) {
	doc, err := Decode([]byte(`{"id": "flow-bare", "nodes": {"start": {"type": "start"}, "end": {"type": "end"}}}`))
	require.NoError(t, err)

	assert.NotNil(t, doc.Edges)
	assert.Empty(t, doc.Edges)
	assert.Len(t, doc.Nodes, 2)

	data, err := Encode(doc, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"edges": []`)
}

func TestDecode_InvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{"id":`},
		{name: "missing id", data: `{"nodes": {}, "edges": []}`},
		{name: "missing nodes", data: `{"id": "f", "edges": []}`},
		{name: "unknown node type", data: `{"id": "f", "nodes": {"t": {"type": "timer"}}, "edges": []}`},
		{name: "edge without source", data: `{"id": "f", "nodes": {}, "edges": [{"id": "e", "target": "x"}]}`},
		{name: "node key mismatch", data: `{"id": "f", "nodes": {"a": {"id": "b", "type": "cc"}}, "edges": []}`},
		{name: "rule without id", data: `{"id": "f", "nodes": {}, "edges": [], "routingRules": [{"flowId": "x"}]}`},
		{name: "unknown operator", data: `{"id": "f", "nodes": {}, "edges": [], "routingRules": [{"id": "r", "conditions": {"operator": "AND", "items": [{"field": "form.a", "op": "~="}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.data))
			require.ErrorIs(t, err, ErrInvalidDocument)
			assert.Nil(t, doc)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("nil document", func(t *testing.T) {
		_, _, err := Normalize(nil)
		require.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("data type mismatch", func(t *testing.T) {
		doc := &models.FlowDocument{
			ID: "f",
			Nodes: map[string]*models.Node{
				"a": {ID: "a", Type: models.NodeTypeApproval, Data: &models.CCData{}},
			},
		}

		_, _, err := Normalize(doc)
		require.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("returns a copy and reports pruned edges", func(t *testing.T) {
		doc := sampleDocument()
		doc.Edges = append(doc.Edges, &models.Edge{ID: "dangling", Source: "mgr", Target: "gone"})

		normalized, pruned, err := Normalize(doc)
		require.NoError(t, err)
		assert.Equal(t, []string{"dangling"}, pruned)
		assert.Len(t, normalized.Edges, 2)

		normalized.Nodes["mgr"].Data.(*models.ApprovalData).Label = "changed"
		assert.Equal(t, "Manager", doc.Nodes["mgr"].Data.(*models.ApprovalData).Label)
	})

	t.Run("empty group operator defaults to AND", func(t *testing.T) {
		rules, err := NormalizeRoutingRules([]*models.RoutingRule{{ID: "r"}})
		require.NoError(t, err)
		assert.Equal(t, models.LogicalAnd, rules[0].Conditions.Operator)
		assert.NotNil(t, rules[0].Conditions.Items)
	})
}
