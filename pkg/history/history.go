// Package history provides snapshot-based undo/redo for flow documents.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/flowdesigner/pkg/models"
)

const (
	// DefaultCapacity is the maximum number of snapshots kept.
	DefaultCapacity = 50

	// FormatVersion identifies the snapshot encoding. Full-document JSON is version 1.
	FormatVersion = 1
)

// Snapshot is an immutable serialized copy of a flow document.
type Snapshot struct {
	FormatVersion int             `json:"formatVersion"`
	RecordedAt    time.Time       `json:"recordedAt"`
	Document      json.RawMessage `json:"document"`
}

// NewSnapshot serializes doc into a snapshot.
func NewSnapshot(doc *models.FlowDocument, recordedAt time.Time) (Snapshot, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to serialize flow %s: %w", doc.ID, err)
	}

	return Snapshot{
		FormatVersion: FormatVersion,
		RecordedAt:    recordedAt,
		Document:      data,
	}, nil
}

// Restore decodes the document held by the snapshot.
func (s Snapshot) Restore() (*models.FlowDocument, error) {
	if s.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version %d", s.FormatVersion)
	}

	var doc models.FlowDocument

	err := json.Unmarshal(s.Document, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}

	if doc.Nodes == nil {
		doc.Nodes = make(map[string]*models.Node)
	}

	return &doc, nil
}

// Manager keeps a bounded linear history with a current-position pointer.
// Recording after an undo discards the redoable branch.
type Manager struct {
	snapshots []Snapshot
	position  int
	capacity  int
}

// NewManager creates an empty history with the given capacity. A capacity
// below one falls back to DefaultCapacity.
func NewManager(capacity int) *Manager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	return &Manager{
		snapshots: make([]Snapshot, 0, capacity),
		position:  -1,
		capacity:  capacity,
	}
}

// Record truncates the redo branch, appends the snapshot and evicts the
// oldest entries beyond capacity.
func (m *Manager) Record(s Snapshot) {
	m.snapshots = append(m.snapshots[:m.position+1], s)
	m.position++

	if overflow := len(m.snapshots) - m.capacity; overflow > 0 {
		m.snapshots = append(m.snapshots[:0:0], m.snapshots[overflow:]...)
		m.position -= overflow
	}
}

// Reset discards every snapshot and starts over from s.
func (m *Manager) Reset(s Snapshot) {
	m.snapshots = append(make([]Snapshot, 0, m.capacity), s)
	m.position = 0
}

// ReplaceCurrent overwrites the snapshot at the pointer without touching the
// rest of the sequence. It records s when the history is empty.
func (m *Manager) ReplaceCurrent(s Snapshot) {
	if m.position < 0 {
		m.Record(s)

		return
	}

	m.snapshots[m.position] = s
}

// Undo moves the pointer back and returns the snapshot now current.
func (m *Manager) Undo() (Snapshot, bool) {
	if !m.CanUndo() {
		return Snapshot{}, false
	}

	m.position--

	return m.snapshots[m.position], true
}

// Redo moves the pointer forward and returns the snapshot now current.
func (m *Manager) Redo() (Snapshot, bool) {
	if !m.CanRedo() {
		return Snapshot{}, false
	}

	m.position++

	return m.snapshots[m.position], true
}

func (m *Manager) CanUndo() bool {
	return m.position > 0
}

func (m *Manager) CanRedo() bool {
	return m.position < len(m.snapshots)-1
}

// Current returns the snapshot at the pointer.
func (m *Manager) Current() (Snapshot, bool) {
	if m.position < 0 {
		return Snapshot{}, false
	}

	return m.snapshots[m.position], true
}

// Len returns the number of snapshots held.
func (m *Manager) Len() int {
	return len(m.snapshots)
}

// Position returns the current pointer, -1 when empty.
func (m *Manager) Position() int {
	return m.position
}

// Capacity returns the maximum number of snapshots kept.
func (m *Manager) Capacity() int {
	return m.capacity
}

// Snapshots returns a copy of the snapshot sequence, oldest first.
func (m *Manager) Snapshots() []Snapshot {
	return append([]Snapshot(nil), m.snapshots...)
}
