package main

import (
	"context"
	"log/slog"

	"github.com/dukex/flowdesigner/pkg/eventbus"
	"github.com/dukex/flowdesigner/pkg/events"
)

// ActivityLog consumes designer events and writes them to the log, one line
// per lifecycle change. Selection changes are logged at debug level.
type ActivityLog struct {
	logger *slog.Logger
}

func NewActivityLog(logger *slog.Logger) *ActivityLog {
	return &ActivityLog{logger: logger.With("component", "activity")}
}

// Register installs a handler for every designer event type.
func (a *ActivityLog) Register(subscriber eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.FlowOpenedEvent:       a.flowOpened,
		events.FlowClosedEvent:       a.flowClosed,
		events.FlowSavedEvent:        a.flowSaved,
		events.FlowDeletedEvent:      a.flowDeleted,
		events.FlowMutatedEvent:      a.flowMutated,
		events.SelectionChangedEvent: a.selectionChanged,
	}

	for eventType, handler := range handlers {
		err := subscriber.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *ActivityLog) flowOpened(ctx context.Context, event any) error {
	e, ok := event.(*events.FlowOpened)
	if !ok {
		return nil
	}

	a.logger.InfoContext(ctx, "Flow opened", "flow_id", e.FlowID, "name", e.Name, "created", e.Created)

	return nil
}

func (a *ActivityLog) flowClosed(ctx context.Context, event any) error {
	e, ok := event.(*events.FlowClosed)
	if !ok {
		return nil
	}

	if e.Dirty {
		a.logger.WarnContext(ctx, "Flow closed with unsaved changes", "flow_id", e.FlowID)

		return nil
	}

	a.logger.InfoContext(ctx, "Flow closed", "flow_id", e.FlowID)

	return nil
}

func (a *ActivityLog) flowSaved(ctx context.Context, event any) error {
	e, ok := event.(*events.FlowSaved)
	if !ok {
		return nil
	}

	a.logger.InfoContext(ctx, "Flow saved",
		"flow_id", e.FlowID,
		"version", e.Version,
		"nodes", e.NodeCount,
		"edges", e.EdgeCount,
		"rules", e.RuleCount,
		"autosave", e.Autosave)

	return nil
}

func (a *ActivityLog) flowDeleted(ctx context.Context, event any) error {
	e, ok := event.(*events.FlowDeleted)
	if !ok {
		return nil
	}

	a.logger.InfoContext(ctx, "Flow deleted", "flow_id", e.FlowID)

	return nil
}

func (a *ActivityLog) flowMutated(ctx context.Context, event any) error {
	e, ok := event.(*events.FlowMutated)
	if !ok {
		return nil
	}

	a.logger.DebugContext(ctx, "Flow edited", "flow_id", e.FlowID, "operation", e.Operation)

	return nil
}

func (a *ActivityLog) selectionChanged(ctx context.Context, event any) error {
	e, ok := event.(*events.SelectionChanged)
	if !ok {
		return nil
	}

	a.logger.DebugContext(ctx, "Selection changed", "flow_id", e.FlowID, "node_id", e.NodeID, "edge_id", e.EdgeID)

	return nil
}
