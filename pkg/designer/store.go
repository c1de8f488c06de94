package designer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowdesigner/pkg/history"
	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/registry"
	"github.com/dukex/flowdesigner/pkg/serialization"
	"github.com/google/uuid"
)

// IDs of the terminal nodes of a fresh document.
const (
	StartNodeID = "start"
	EndNodeID   = "end"
)

// Selection is the node or edge currently selected in the editor.
type Selection struct {
	NodeID string `json:"selectedNodeId,omitempty"`
	EdgeID string `json:"selectedEdgeId,omitempty"`
}

// SelectionListener is notified synchronously whenever the selection changes.
type SelectionListener interface {
	SelectionChanged(selection Selection)
}

// SelectionListenerFunc adapts a function to SelectionListener.
type SelectionListenerFunc func(selection Selection)

func (f SelectionListenerFunc) SelectionChanged(selection Selection) {
	f(selection)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for snapshots and exports.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides how node, edge and document IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithHistoryCapacity bounds the undo history.
func WithHistoryCapacity(capacity int) Option {
	return func(s *Store) {
		s.history = history.NewManager(capacity)
	}
}

// WithSelectionListener registers the selection change listener.
func WithSelectionListener(listener SelectionListener) Option {
	return func(s *Store) {
		s.listener = listener
	}
}

// Store owns one flow document and exposes the only API that mutates it.
// Every structural mutation records a history snapshot; a failed mutation
// leaves document, selection and history untouched. A Store is not safe for
// concurrent use.
type Store struct {
	registry  *registry.Registry
	history   *history.Manager
	doc       *models.FlowDocument
	selection Selection
	listener  SelectionListener
	dirty     bool

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a store holding a fresh document with START and END nodes.
func NewStore(reg *registry.Registry, opts ...Option) *Store {
	s := &Store{
		registry: reg,
		history:  history.NewManager(history.DefaultCapacity),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ResetDocument()

	return s
}

// Document returns a copy of the working document.
func (s *Store) Document() *models.FlowDocument {
	return s.doc.Clone()
}

// Node returns a copy of a node.
func (s *Store) Node(id string) (*models.Node, error) {
	node, ok := s.doc.Nodes[id]
	if !ok {
		return nil, &GraphError{Op: "Node", NodeID: id, Err: ErrNodeNotFound}
	}

	return node.Clone(), nil
}

// AddNode creates a node of the given type with the catalog defaults and selects it.
func (s *Store) AddNode(nodeType models.NodeType, position models.Position) (*models.Node, error) {
	info, ok := s.registry.Lookup(nodeType)
	if !ok {
		return nil, &GraphError{Op: "AddNode", NodeType: nodeType, Err: ErrUnknownNodeType}
	}

	if info.HasLimit() && s.doc.CountNodes(nodeType) >= info.MaxCount {
		return nil, &GraphError{
			Op:       "AddNode",
			NodeType: nodeType,
			Err:      fmt.Errorf("%w: at most %d %s node(s) allowed", ErrNodeLimitExceeded, info.MaxCount, nodeType),
		}
	}

	data, err := s.registry.NewNodeData(nodeType)
	if err != nil {
		return nil, &GraphError{Op: "AddNode", NodeType: nodeType, Err: err}
	}

	node := &models.Node{
		ID:       s.newID(),
		Type:     nodeType,
		Position: position,
		Data:     data,
	}

	err = s.apply("AddNode", func(doc *models.FlowDocument) error {
		doc.Nodes[node.ID] = node.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.setSelection(Selection{NodeID: node.ID})

	return node, nil
}

// UpdateNode shallow-merges patch into the node data.
func (s *Store) UpdateNode(id string, patch map[string]any) (*models.Node, error) {
	var updated *models.Node

	err := s.apply("UpdateNode", func(doc *models.FlowDocument) error {
		node, ok := doc.Nodes[id]
		if !ok {
			return &GraphError{Op: "UpdateNode", NodeID: id, Err: ErrNodeNotFound}
		}

		data, unused, err := mergeNodeData(node.Data, patch)
		if err != nil {
			return &GraphError{Op: "UpdateNode", NodeID: id, NodeType: node.Type, Err: err}
		}

		if len(unused) > 0 {
			s.logger.Debug("Ignoring unknown node data fields", "node_id", id, "fields", unused)
		}

		node.Data = data
		updated = node.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteNode removes a node together with every edge touching it, as one
// undoable step. START and END nodes are protected.
func (s *Store) DeleteNode(id string) error {
	err := s.apply("DeleteNode", func(doc *models.FlowDocument) error {
		node, ok := doc.Nodes[id]
		if !ok {
			return &GraphError{Op: "DeleteNode", NodeID: id, Err: ErrNodeNotFound}
		}

		if node.Type.IsTerminal() {
			return &GraphError{Op: "DeleteNode", NodeID: id, NodeType: node.Type, Err: ErrProtectedNode}
		}

		delete(doc.Nodes, id)

		removed := make(map[string]bool)
		edges := make([]*models.Edge, 0, len(doc.Edges))

		for _, edge := range doc.Edges {
			if edge.Source == id || edge.Target == id {
				removed[edge.ID] = true

				continue
			}

			edges = append(edges, edge)
		}

		doc.Edges = edges

		clearDanglingReferences(doc, id, removed)

		return nil
	})
	if err != nil {
		return err
	}

	if s.selection.NodeID == id || (s.selection.EdgeID != "" && !s.hasEdge(s.selection.EdgeID)) {
		s.setSelection(Selection{})
	}

	return nil
}

// clearDanglingReferences drops node data references to a removed node or edges.
func clearDanglingReferences(doc *models.FlowDocument, nodeID string, edgeIDs map[string]bool) {
	for _, node := range doc.Nodes {
		switch data := node.Data.(type) {
		case *models.ApprovalData:
			if data.RejectTarget == nodeID {
				data.RejectTarget = ""
			}
		case *models.ConditionData:
			if edgeIDs[data.DefaultBranch] {
				data.DefaultBranch = ""
			}
		}
	}
}

// MoveNode updates a node position. Moves are not recorded in history so a
// drag does not flood the undo stack; the current snapshot is kept in sync.
func (s *Store) MoveNode(id string, position models.Position) (*models.Node, error) {
	node, ok := s.doc.Nodes[id]
	if !ok {
		return nil, &GraphError{Op: "MoveNode", NodeID: id, Err: ErrNodeNotFound}
	}

	node.Position = position
	s.dirty = true

	snapshot, err := history.NewSnapshot(s.doc, s.now())
	if err != nil {
		return nil, fmt.Errorf("MoveNode: %w", err)
	}

	s.history.ReplaceCurrent(snapshot)

	return node.Clone(), nil
}

// AddEdge connects source to target.
func (s *Store) AddEdge(source, target, label string) (*models.Edge, error) {
	edge := &models.Edge{
		ID:     s.newID(),
		Source: source,
		Target: target,
		Label:  label,
	}

	err := s.apply("AddEdge", func(doc *models.FlowDocument) error {
		if source == target {
			return &GraphError{Op: "AddEdge", Source: source, Target: target, Err: ErrSelfLoop}
		}

		if doc.HasEdgeBetween(source, target) {
			return &GraphError{Op: "AddEdge", Source: source, Target: target, Err: ErrDuplicateEdge}
		}

		for _, endpoint := range []string{source, target} {
			if _, ok := doc.Nodes[endpoint]; !ok {
				return &GraphError{
					Op:     "AddEdge",
					NodeID: endpoint,
					Source: source,
					Target: target,
					Err:    fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint),
				}
			}
		}

		e := *edge
		doc.Edges = append(doc.Edges, &e)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// DeleteEdge removes an edge.
func (s *Store) DeleteEdge(id string) error {
	err := s.apply("DeleteEdge", func(doc *models.FlowDocument) error {
		_, index := doc.FindEdge(id)
		if index < 0 {
			return &GraphError{Op: "DeleteEdge", EdgeID: id, Err: ErrEdgeNotFound}
		}

		doc.Edges = append(doc.Edges[:index], doc.Edges[index+1:]...)

		clearDanglingReferences(doc, "", map[string]bool{id: true})

		return nil
	})
	if err != nil {
		return err
	}

	if s.selection.EdgeID == id {
		s.setSelection(Selection{})
	}

	return nil
}

// ReplaceRoutingRules replaces the rule list wholesale. Callers own rule ID uniqueness.
func (s *Store) ReplaceRoutingRules(rules []*models.RoutingRule) ([]*models.RoutingRule, error) {
	normalized, err := serialization.NormalizeRoutingRules(rules)
	if err != nil {
		return nil, &GraphError{Op: "ReplaceRoutingRules", Err: err}
	}

	err = s.apply("ReplaceRoutingRules", func(doc *models.FlowDocument) error {
		doc.RoutingRules = normalized

		return nil
	})
	if err != nil {
		return nil, err
	}

	return models.CloneRoutingRules(normalized), nil
}

// UpdateMetadata renames or redescribes the flow.
func (s *Store) UpdateMetadata(name, description string) error {
	return s.apply("UpdateMetadata", func(doc *models.FlowDocument) error {
		doc.Name = name
		doc.Description = description

		return nil
	})
}

// LoadDocument replaces the working document and restarts history from it.
// A malformed document is rejected without touching the current state.
func (s *Store) LoadDocument(doc *models.FlowDocument) error {
	normalized, pruned, err := serialization.Normalize(doc)
	if err != nil {
		return &GraphError{Op: "LoadDocument", Err: err}
	}

	if len(pruned) > 0 {
		s.logger.Warn("Pruned dangling edges while loading flow", "flow_id", normalized.ID, "edges", pruned)
	}

	err = s.reset(normalized)
	if err != nil {
		return &GraphError{Op: "LoadDocument", Err: err}
	}

	return nil
}

// LoadJSON decodes an exported document and loads it.
func (s *Store) LoadJSON(data []byte) error {
	doc, err := serialization.Decode(data)
	if err != nil {
		return &GraphError{Op: "LoadDocument", Err: err}
	}

	return s.reset(doc)
}

// ResetDocument replaces the working document with a fresh one holding only START and END.
func (s *Store) ResetDocument() {
	doc := s.initialDocument()

	// A fresh document always serializes
	_ = s.reset(doc)
}

// ExportDocument returns a copy of the document stamped with the export time.
func (s *Store) ExportDocument() *models.ExportedDocument {
	return &models.ExportedDocument{
		FlowDocument: *s.doc.Clone(),
		ExportedAt:   s.now(),
	}
}

// Undo restores the previous snapshot. It reports false when there is nothing to undo.
func (s *Store) Undo() (bool, error) {
	snapshot, ok := s.history.Undo()
	if !ok {
		return false, nil
	}

	return true, s.restore(snapshot)
}

// Redo restores the next snapshot. It reports false when there is nothing to redo.
func (s *Store) Redo() (bool, error) {
	snapshot, ok := s.history.Redo()
	if !ok {
		return false, nil
	}

	return true, s.restore(snapshot)
}

func (s *Store) CanUndo() bool {
	return s.history.CanUndo()
}

func (s *Store) CanRedo() bool {
	return s.history.CanRedo()
}

// HistoryLen returns the number of snapshots held.
func (s *Store) HistoryLen() int {
	return s.history.Len()
}

// Selection returns the current selection.
func (s *Store) Selection() Selection {
	return s.selection
}

// SelectNode selects a node, clearing any edge selection.
func (s *Store) SelectNode(id string) error {
	if _, ok := s.doc.Nodes[id]; !ok {
		return &GraphError{Op: "SelectNode", NodeID: id, Err: ErrNodeNotFound}
	}

	s.setSelection(Selection{NodeID: id})

	return nil
}

// SelectEdge selects an edge, clearing any node selection.
func (s *Store) SelectEdge(id string) error {
	if !s.hasEdge(id) {
		return &GraphError{Op: "SelectEdge", EdgeID: id, Err: ErrEdgeNotFound}
	}

	s.setSelection(Selection{EdgeID: id})

	return nil
}

// ClearSelection deselects everything.
func (s *Store) ClearSelection() {
	s.setSelection(Selection{})
}

// Dirty reports whether the document changed since the last MarkSaved or load.
func (s *Store) Dirty() bool {
	return s.dirty
}

// MarkSaved clears the dirty flag.
func (s *Store) MarkSaved() {
	s.dirty = false
}

// apply runs mutation on a copy of the document and commits it with a new
// snapshot only when the mutation succeeds.
func (s *Store) apply(op string, mutation func(doc *models.FlowDocument) error) error {
	working := s.doc.Clone()

	err := mutation(working)
	if err != nil {
		return err
	}

	snapshot, err := history.NewSnapshot(working, s.now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.doc = working
	s.history.Record(snapshot)
	s.dirty = true

	s.logger.Debug("Applied flow mutation", "op", op, "flow_id", working.ID, "history_size", s.history.Len())

	return nil
}

func (s *Store) reset(doc *models.FlowDocument) error {
	snapshot, err := history.NewSnapshot(doc, s.now())
	if err != nil {
		return err
	}

	s.doc = doc
	s.history.Reset(snapshot)
	s.dirty = false
	s.setSelection(Selection{})

	return nil
}

func (s *Store) restore(snapshot history.Snapshot) error {
	doc, err := snapshot.Restore()
	if err != nil {
		return err
	}

	s.doc = doc
	s.dirty = true

	selection := s.selection
	if selection.NodeID != "" {
		if _, ok := doc.Nodes[selection.NodeID]; !ok {
			selection = Selection{}
		}
	}

	if selection.EdgeID != "" && !s.hasEdge(selection.EdgeID) {
		selection = Selection{}
	}

	s.setSelection(selection)

	return nil
}

func (s *Store) hasEdge(id string) bool {
	edge, _ := s.doc.FindEdge(id)

	return edge != nil
}

func (s *Store) setSelection(selection Selection) {
	if s.selection == selection {
		return
	}

	s.selection = selection

	if s.listener != nil {
		s.listener.SelectionChanged(selection)
	}
}

func (s *Store) initialDocument() *models.FlowDocument {
	start, _ := s.registry.NewNodeData(models.NodeTypeStart)
	end, _ := s.registry.NewNodeData(models.NodeTypeEnd)

	return &models.FlowDocument{
		ID:      s.newID(),
		Name:    "Untitled flow",
		Version: 1,
		Nodes: map[string]*models.Node{
			StartNodeID: {ID: StartNodeID, Type: models.NodeTypeStart, Position: models.Position{X: 250, Y: 50}, Data: start},
			EndNodeID:   {ID: EndNodeID, Type: models.NodeTypeEnd, Position: models.Position{X: 250, Y: 450}, Data: end},
		},
		Edges:        []*models.Edge{},
		RoutingRules: []*models.RoutingRule{},
	}
}
