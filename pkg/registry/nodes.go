package registry

import "github.com/dukex/flowdesigner/pkg/models"

// RegisterDefaultNodes registers the built-in approval flow node types.
func (r *Registry) RegisterDefaultNodes() {
	// A flow has a single entry and a single exit
	r.RegisterNode(NodeTypeInfo{Type: models.NodeTypeStart, Label: "Start", Color: "#52c41a", MaxCount: 1})
	r.RegisterNode(NodeTypeInfo{Type: models.NodeTypeApproval, Label: "Approval", Color: "#1890ff"})
	r.RegisterNode(NodeTypeInfo{Type: models.NodeTypeCC, Label: "Carbon copy", Color: "#722ed1"})
	r.RegisterNode(NodeTypeInfo{Type: models.NodeTypeCondition, Label: "Condition", Color: "#faad14"})
	r.RegisterNode(NodeTypeInfo{Type: models.NodeTypeParallel, Label: "Parallel", Color: "#13c2c2"})
	r.RegisterNode(NodeTypeInfo{Type: models.NodeTypeEnd, Label: "End", Color: "#f5222d", MaxCount: 1})
}
