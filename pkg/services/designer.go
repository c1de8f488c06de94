package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukex/flowdesigner/pkg/designer"
	"github.com/dukex/flowdesigner/pkg/eventbus"
	"github.com/dukex/flowdesigner/pkg/events"
	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/otelhelper"
	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/dukex/flowdesigner/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Designer.
type Option func(*Designer)

// WithEventBus publishes flow events on bus.
func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(d *Designer) {
		d.eventBus = bus
	}
}

// WithTracer records a span per operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Designer) {
		d.tracer = tracer
	}
}

// WithStoreOptions passes options to every store the designer creates.
func WithStoreOptions(opts ...designer.Option) Option {
	return func(d *Designer) {
		d.storeOpts = append(d.storeOpts, opts...)
	}
}

// WithClock overrides the time source used for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(d *Designer) {
		d.now = now
	}
}

// Designer keeps one graph store per open flow. Each session serializes
// access to its store; different flows are edited concurrently.
type Designer struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	storeOpts   []designer.Option
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu         sync.Mutex
	flowID     string
	store      *designer.Store
	openedAt   time.Time
	lastActive time.Time
	lastSaved  time.Time

	selectionChanged bool
}

// SessionInfo describes an open flow.
type SessionInfo struct {
	FlowID     string    `json:"flowId"`
	Name       string    `json:"name"`
	Dirty      bool      `json:"dirty"`
	CanUndo    bool      `json:"canUndo"`
	CanRedo    bool      `json:"canRedo"`
	OpenedAt   time.Time `json:"openedAt"`
	LastActive time.Time `json:"lastActive"`
	LastSaved  time.Time `json:"lastSaved,omitzero"`
}

// State is the editor state of an open flow.
type State struct {
	Document  *models.FlowDocument `json:"document"`
	Selection designer.Selection   `json:"selection"`
	CanUndo   bool                 `json:"canUndo"`
	CanRedo   bool                 `json:"canRedo"`
	Dirty     bool                 `json:"dirty"`
}

// NewDesigner creates a designer service.
func NewDesigner(p persistence.Persistence, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Designer {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Designer{
		persistence: p,
		registry:    reg,
		tracer:      otelhelper.NoopTracer(),
		logger:      logger.With("module", "designer"),
		now:         func() time.Time { return time.Now().UTC() },
		sessions:    make(map[string]*session),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// HealthCheck checks the health of the persistence layer.
func (d *Designer) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateFlow opens a session on a new document holding only START and END.
func (d *Designer) CreateFlow(ctx context.Context, name, description string) (*State, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer.create_flow")
	defer span.End()

	sess := d.newSession()

	doc := sess.store.Document()
	if name != "" {
		doc.Name = name
	}

	doc.Description = description

	err := sess.store.LoadDocument(doc)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, &ServiceError{Op: "CreateFlow", Err: err}
	}

	sess.flowID = doc.ID
	span.SetAttributes(attribute.String(otelhelper.FlowIDKey, sess.flowID))

	d.register(sess)

	d.logger.InfoContext(ctx, "Created flow", "flow_id", sess.flowID, "name", doc.Name)
	d.publish(ctx, sess.flowID, events.FlowOpened{
		BaseEvent: events.NewBaseEvent(events.FlowOpenedEvent, sess.flowID),
		Name:      doc.Name,
		Created:   true,
	})

	return d.state(sess), nil
}

// OpenFlow opens a stored flow for editing. An already open flow keeps its session.
func (d *Designer) OpenFlow(ctx context.Context, flowID string) (*State, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer.open_flow",
		attribute.String(otelhelper.FlowIDKey, flowID))
	defer span.End()

	if sess, ok := d.lookup(flowID); ok {
		return d.state(sess), nil
	}

	exported, err := d.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, &ServiceError{Op: "OpenFlow", FlowID: flowID, Err: err}
	}

	sess := d.newSession()

	err = sess.store.LoadDocument(&exported.FlowDocument)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, &ServiceError{Op: "OpenFlow", FlowID: flowID, Err: err}
	}

	sess.flowID = flowID
	sess.lastSaved = exported.ExportedAt

	if existing, loaded := d.registerIfAbsent(sess); loaded {
		return d.state(existing), nil
	}

	d.logger.InfoContext(ctx, "Opened flow", "flow_id", flowID)
	d.publish(ctx, flowID, events.FlowOpened{
		BaseEvent: events.NewBaseEvent(events.FlowOpenedEvent, flowID),
		Name:      exported.Name,
	})

	return d.state(sess), nil
}

// ImportFlow opens a session on an exported JSON document. A session already
// editing the same flow ID is replaced.
func (d *Designer) ImportFlow(ctx context.Context, data []byte) (*State, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer.import_flow")
	defer span.End()

	sess := d.newSession()

	err := sess.store.LoadJSON(data)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, &ServiceError{Op: "ImportFlow", Err: err}
	}

	sess.flowID = sess.store.Document().ID
	span.SetAttributes(attribute.String(otelhelper.FlowIDKey, sess.flowID))

	d.register(sess)

	d.logger.InfoContext(ctx, "Imported flow", "flow_id", sess.flowID)
	d.publish(ctx, sess.flowID, events.FlowOpened{
		BaseEvent: events.NewBaseEvent(events.FlowOpenedEvent, sess.flowID),
		Name:      sess.store.Document().Name,
		Created:   true,
	})

	return d.state(sess), nil
}

// CloseFlow discards the session of an open flow. Unsaved edits are lost.
func (d *Designer) CloseFlow(ctx context.Context, flowID string) error {
	d.mu.Lock()
	sess, ok := d.sessions[flowID]
	delete(d.sessions, flowID)
	d.mu.Unlock()

	if !ok {
		return &ServiceError{Op: "CloseFlow", FlowID: flowID, Err: ErrFlowNotOpen}
	}

	sess.mu.Lock()
	dirty := sess.store.Dirty()
	sess.mu.Unlock()

	if dirty {
		d.logger.WarnContext(ctx, "Closed flow with unsaved changes", "flow_id", flowID)
	}

	d.publish(ctx, flowID, events.FlowClosed{
		BaseEvent: events.NewBaseEvent(events.FlowClosedEvent, flowID),
		Dirty:     dirty,
	})

	return nil
}

// SaveFlow exports the open flow and stores it.
func (d *Designer) SaveFlow(ctx context.Context, flowID string) (*models.ExportedDocument, error) {
	return d.save(ctx, flowID, false)
}

// DeleteFlow removes a stored flow and closes its session if open.
func (d *Designer) DeleteFlow(ctx context.Context, flowID string) error {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer.delete_flow",
		attribute.String(otelhelper.FlowIDKey, flowID))
	defer span.End()

	err := d.persistence.FlowRepository().Delete(ctx, flowID)

	d.mu.Lock()
	_, open := d.sessions[flowID]
	delete(d.sessions, flowID)
	d.mu.Unlock()

	if err != nil && !(open && persistence.IsFlowNotFound(err)) {
		otelhelper.SetError(span, err)

		return &ServiceError{Op: "DeleteFlow", FlowID: flowID, Err: err}
	}

	d.logger.InfoContext(ctx, "Deleted flow", "flow_id", flowID)
	d.publish(ctx, flowID, events.FlowDeleted{
		BaseEvent: events.NewBaseEvent(events.FlowDeletedEvent, flowID),
	})

	return nil
}

// ListFlows lists stored flows.
func (d *Designer) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	err := opts.ApplyDefaults()
	if err != nil {
		return nil, &ServiceError{Op: "ListFlows", Err: err}
	}

	result, err := d.persistence.FlowRepository().ListFlows(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return result, nil
}

// Sessions describes every open flow ordered by flow ID.
func (d *Designer) Sessions() []SessionInfo {
	d.mu.RLock()
	sessions := make([]*session, 0, len(d.sessions))

	for _, sess := range d.sessions {
		sessions = append(sessions, sess)
	}
	d.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))

	for _, sess := range sessions {
		sess.mu.Lock()
		infos = append(infos, SessionInfo{
			FlowID:     sess.flowID,
			Name:       sess.store.Document().Name,
			Dirty:      sess.store.Dirty(),
			CanUndo:    sess.store.CanUndo(),
			CanRedo:    sess.store.CanRedo(),
			OpenedAt:   sess.openedAt,
			LastActive: sess.lastActive,
			LastSaved:  sess.lastSaved,
		})
		sess.mu.Unlock()
	}

	slices.SortFunc(infos, func(a, b SessionInfo) int {
		return cmp.Compare(a.FlowID, b.FlowID)
	})

	return infos
}

// FlushDirty saves every open flow with unsaved changes and returns how many
// were saved. Failures do not stop the remaining saves.
func (d *Designer) FlushDirty(ctx context.Context) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer.flush_dirty")
	defer span.End()

	var (
		saved int
		errs  []error
	)

	for _, info := range d.Sessions() {
		if !info.Dirty {
			continue
		}

		_, err := d.save(ctx, info.FlowID, true)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		saved++
	}

	err := errors.Join(errs...)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	if saved > 0 {
		d.logger.InfoContext(ctx, "Autosaved flows", "count", saved)
	}

	return saved, err
}

// State returns the editor state of an open flow.
func (d *Designer) State(_ context.Context, flowID string) (*State, error) {
	sess, ok := d.lookup(flowID)
	if !ok {
		return nil, &ServiceError{Op: "State", FlowID: flowID, Err: ErrFlowNotOpen}
	}

	return d.state(sess), nil
}

func (d *Designer) save(ctx context.Context, flowID string, autosave bool) (*models.ExportedDocument, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "designer.save_flow",
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.Bool("flowdesigner.autosave", autosave))
	defer span.End()

	sess, ok := d.lookup(flowID)
	if !ok {
		err := &ServiceError{Op: "SaveFlow", FlowID: flowID, Err: ErrFlowNotOpen}
		otelhelper.SetError(span, err)

		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	exported := sess.store.ExportDocument()

	err := d.persistence.FlowRepository().Save(ctx, exported)
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.ErrorContext(ctx, "Failed to save flow", "flow_id", flowID, "error", err)

		return nil, &ServiceError{Op: "SaveFlow", FlowID: flowID, Err: err}
	}

	sess.store.MarkSaved()
	sess.lastSaved = exported.ExportedAt

	summary := persistence.Summarize(exported)

	d.logger.InfoContext(ctx, "Saved flow", "flow_id", flowID, "autosave", autosave)
	d.publish(ctx, flowID, events.FlowSaved{
		BaseEvent:  events.NewBaseEvent(events.FlowSavedEvent, flowID),
		Name:       summary.Name,
		Version:    summary.Version,
		NodeCount:  summary.NodeCount,
		EdgeCount:  summary.EdgeCount,
		RuleCount:  summary.RuleCount,
		ExportedAt: summary.ExportedAt,
		Autosave:   autosave,
	})

	return exported, nil
}

func (d *Designer) newSession() *session {
	now := d.now()
	sess := &session{openedAt: now, lastActive: now}

	opts := slices.Concat(d.storeOpts, []designer.Option{
		designer.WithLogger(d.logger),
		designer.WithSelectionListener(designer.SelectionListenerFunc(func(designer.Selection) {
			sess.selectionChanged = true
		})),
	})

	sess.store = designer.NewStore(d.registry, opts...)
	sess.selectionChanged = false

	return sess
}

func (d *Designer) register(sess *session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions[sess.flowID] = sess
}

func (d *Designer) registerIfAbsent(sess *session) (*session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.sessions[sess.flowID]; ok {
		return existing, true
	}

	d.sessions[sess.flowID] = sess

	return sess, false
}

func (d *Designer) lookup(flowID string) (*session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sess, ok := d.sessions[flowID]

	return sess, ok
}

func (d *Designer) state(sess *session) *State {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return stateOf(sess)
}

func stateOf(sess *session) *State {
	return &State{
		Document:  sess.store.Document(),
		Selection: sess.store.Selection(),
		CanUndo:   sess.store.CanUndo(),
		CanRedo:   sess.store.CanRedo(),
		Dirty:     sess.store.Dirty(),
	}
}

func (d *Designer) publish(ctx context.Context, flowID string, event eventbus.Event) {
	if d.eventBus == nil {
		return
	}

	err := d.eventBus.Publish(ctx, flowID, event)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish event", "flow_id", flowID, "event_type", event.GetType(), "error", err)
	}
}
