package services

import (
	"context"

	"github.com/dukex/flowdesigner/pkg/designer"
	"github.com/dukex/flowdesigner/pkg/events"
	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/otelhelper"
	"github.com/dukex/flowdesigner/pkg/routing"
	"github.com/dukex/flowdesigner/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
)

// change describes what an edit touched. A zero change is not published.
type change struct {
	changed bool
	nodeID  string
	edgeID  string
}

// AddNode adds a node to an open flow.
func (d *Designer) AddNode(ctx context.Context, flowID string, nodeType models.NodeType, position models.Position) (*models.Node, error) {
	var node *models.Node

	err := d.edit(ctx, flowID, "add_node", func(store *designer.Store) (change, error) {
		var err error

		node, err = store.AddNode(nodeType, position)
		if err != nil {
			return change{}, err
		}

		return change{changed: true, nodeID: node.ID}, nil
	}, attribute.String(otelhelper.NodeTypeKey, string(nodeType)))

	return node, err
}

// UpdateNode merges patch into the data of a node.
func (d *Designer) UpdateNode(ctx context.Context, flowID, nodeID string, patch map[string]any) (*models.Node, error) {
	var node *models.Node

	err := d.edit(ctx, flowID, "update_node", func(store *designer.Store) (change, error) {
		var err error

		node, err = store.UpdateNode(nodeID, patch)
		if err != nil {
			return change{}, err
		}

		return change{changed: true, nodeID: nodeID}, nil
	}, attribute.String(otelhelper.NodeIDKey, nodeID))

	return node, err
}

// MoveNode repositions a node.
func (d *Designer) MoveNode(ctx context.Context, flowID, nodeID string, position models.Position) (*models.Node, error) {
	var node *models.Node

	err := d.edit(ctx, flowID, "move_node", func(store *designer.Store) (change, error) {
		var err error

		node, err = store.MoveNode(nodeID, position)
		if err != nil {
			return change{}, err
		}

		return change{changed: true, nodeID: nodeID}, nil
	}, attribute.String(otelhelper.NodeIDKey, nodeID))

	return node, err
}

// DeleteNode removes a node and its edges.
func (d *Designer) DeleteNode(ctx context.Context, flowID, nodeID string) error {
	return d.edit(ctx, flowID, "delete_node", func(store *designer.Store) (change, error) {
		err := store.DeleteNode(nodeID)
		if err != nil {
			return change{}, err
		}

		return change{changed: true, nodeID: nodeID}, nil
	}, attribute.String(otelhelper.NodeIDKey, nodeID))
}

// AddEdge connects two nodes of an open flow.
func (d *Designer) AddEdge(ctx context.Context, flowID, source, target, label string) (*models.Edge, error) {
	var edge *models.Edge

	err := d.edit(ctx, flowID, "add_edge", func(store *designer.Store) (change, error) {
		var err error

		edge, err = store.AddEdge(source, target, label)
		if err != nil {
			return change{}, err
		}

		return change{changed: true, edgeID: edge.ID}, nil
	})

	return edge, err
}

// DeleteEdge removes an edge.
func (d *Designer) DeleteEdge(ctx context.Context, flowID, edgeID string) error {
	return d.edit(ctx, flowID, "delete_edge", func(store *designer.Store) (change, error) {
		err := store.DeleteEdge(edgeID)
		if err != nil {
			return change{}, err
		}

		return change{changed: true, edgeID: edgeID}, nil
	}, attribute.String(otelhelper.EdgeIDKey, edgeID))
}

// ReplaceRoutingRules replaces the routing rules of an open flow.
func (d *Designer) ReplaceRoutingRules(ctx context.Context, flowID string, rules []*models.RoutingRule) ([]*models.RoutingRule, error) {
	var replaced []*models.RoutingRule

	err := d.edit(ctx, flowID, "replace_routing_rules", func(store *designer.Store) (change, error) {
		var err error

		replaced, err = store.ReplaceRoutingRules(rules)
		if err != nil {
			return change{}, err
		}

		return change{changed: true}, nil
	})

	return replaced, err
}

// UpdateMetadata renames or redescribes an open flow.
func (d *Designer) UpdateMetadata(ctx context.Context, flowID, name, description string) error {
	return d.edit(ctx, flowID, "update_metadata", func(store *designer.Store) (change, error) {
		err := store.UpdateMetadata(name, description)
		if err != nil {
			return change{}, err
		}

		return change{changed: true}, nil
	}, attribute.String(otelhelper.FlowNameKey, name))
}

// Undo steps back one snapshot. It reports false when there was nothing to undo.
func (d *Designer) Undo(ctx context.Context, flowID string) (bool, error) {
	var undone bool

	err := d.edit(ctx, flowID, "undo", func(store *designer.Store) (change, error) {
		var err error

		undone, err = store.Undo()

		return change{changed: undone}, err
	})

	return undone, err
}

// Redo steps forward one snapshot. It reports false when there was nothing to redo.
func (d *Designer) Redo(ctx context.Context, flowID string) (bool, error) {
	var redone bool

	err := d.edit(ctx, flowID, "redo", func(store *designer.Store) (change, error) {
		var err error

		redone, err = store.Redo()

		return change{changed: redone}, err
	})

	return redone, err
}

// SelectNode selects a node of an open flow.
func (d *Designer) SelectNode(ctx context.Context, flowID, nodeID string) error {
	return d.edit(ctx, flowID, "select_node", func(store *designer.Store) (change, error) {
		return change{}, store.SelectNode(nodeID)
	}, attribute.String(otelhelper.NodeIDKey, nodeID))
}

// SelectEdge selects an edge of an open flow.
func (d *Designer) SelectEdge(ctx context.Context, flowID, edgeID string) error {
	return d.edit(ctx, flowID, "select_edge", func(store *designer.Store) (change, error) {
		return change{}, store.SelectEdge(edgeID)
	}, attribute.String(otelhelper.EdgeIDKey, edgeID))
}

// ClearSelection deselects everything in an open flow.
func (d *Designer) ClearSelection(ctx context.Context, flowID string) error {
	return d.edit(ctx, flowID, "clear_selection", func(store *designer.Store) (change, error) {
		store.ClearSelection()

		return change{}, nil
	})
}

// Validate checks an open flow.
func (d *Designer) Validate(ctx context.Context, flowID string) (validation.Result, error) {
	var result validation.Result

	err := d.view(ctx, flowID, "validate", func(store *designer.Store) {
		result = validation.Validate(store.Document())
	})
	if err != nil {
		return validation.Result{}, err
	}

	d.logger.DebugContext(ctx, "Validated flow", "flow_id", flowID,
		"errors", len(result.Errors), "warnings", len(result.Warnings))

	return result, nil
}

// Route evaluates the routing rules of an open flow against rctx.
func (d *Designer) Route(ctx context.Context, flowID string, rctx routing.Context) (routing.Decision, error) {
	var decision routing.Decision

	err := d.view(ctx, flowID, "route", func(store *designer.Store) {
		decision = routing.Evaluate(store.Document().RoutingRules, rctx)
	})

	return decision, err
}

// view runs read on the store of an open flow.
func (d *Designer) view(ctx context.Context, flowID, op string, read func(store *designer.Store)) error {
	_, span := otelhelper.StartSpan(ctx, d.tracer, "designer."+op,
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.OperationKey, op))
	defer span.End()

	sess, ok := d.lookup(flowID)
	if !ok {
		err := &ServiceError{Op: op, FlowID: flowID, Err: ErrFlowNotOpen}
		otelhelper.SetError(span, err)

		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	read(sess.store)

	return nil
}

// edit runs fn on the store of an open flow under the session lock and
// publishes the resulting events once the lock is released.
func (d *Designer) edit(ctx context.Context, flowID, op string, fn func(store *designer.Store) (change, error), attrs ...attribute.KeyValue) error {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer."+op, append(attrs,
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.OperationKey, op))...)
	defer span.End()

	sess, ok := d.lookup(flowID)
	if !ok {
		err := &ServiceError{Op: op, FlowID: flowID, Err: ErrFlowNotOpen}
		otelhelper.SetError(span, err)

		return err
	}

	sess.mu.Lock()

	sess.selectionChanged = false
	c, err := fn(sess.store)
	selectionChanged := sess.selectionChanged
	selection := sess.store.Selection()
	canUndo, canRedo := sess.store.CanUndo(), sess.store.CanRedo()

	if err == nil {
		sess.lastActive = d.now()
	}

	sess.mu.Unlock()

	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if c.changed {
		mutated := events.FlowMutated{
			BaseEvent: events.NewBaseEvent(events.FlowMutatedEvent, flowID),
			Operation: op,
			NodeID:    c.nodeID,
			EdgeID:    c.edgeID,
			CanUndo:   canUndo,
			CanRedo:   canRedo,
		}

		d.publish(ctx, flowID, mutated)
	}

	if selectionChanged {
		d.publish(ctx, flowID, events.SelectionChanged{
			BaseEvent: events.NewBaseEvent(events.SelectionChangedEvent, flowID),
			NodeID:    selection.NodeID,
			EdgeID:    selection.EdgeID,
		})
	}

	return nil
}

// Export returns the open flow stamped with the export time without saving it.
func (d *Designer) Export(ctx context.Context, flowID string) (*models.ExportedDocument, error) {
	var exported *models.ExportedDocument

	err := d.view(ctx, flowID, "export", func(store *designer.Store) {
		exported = store.ExportDocument()
	})

	return exported, err
}
