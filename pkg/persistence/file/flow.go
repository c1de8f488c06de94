package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/dukex/flowdesigner/pkg/serialization"
)

const flowsDir = "flows"

// FlowRepository stores one JSON file per flow under <root>/flows.
type FlowRepository struct {
	root string
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{root: root}
}

// ListFlows returns paginated and filtered flow summaries with in-memory operations.
func (fr *FlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	err := opts.ApplyDefaults()
	if err != nil {
		return nil, err
	}

	root := os.DirFS(path.Join(fr.root, flowsDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list flow files: %w", err)
	}

	summaries := make([]*persistence.FlowSummary, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		flowID := strings.TrimSuffix(file, ".json")

		doc, err := fr.GetByID(ctx, flowID)
		if err != nil {
			// Removed between glob and read
			if persistence.IsFlowNotFound(err) {
				continue
			}

			return nil, fmt.Errorf("failed to load flow %s: %w", flowID, err)
		}

		summaries = append(summaries, persistence.Summarize(doc))
	}

	return persistence.PageSummaries(summaries, opts), nil
}

// GetByID retrieves a flow by its ID from the file system.
func (fr *FlowRepository) GetByID(_ context.Context, id string) (*models.ExportedDocument, error) {
	filePath, err := fr.filePath("GetByID", id)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch flow %s: %w", id, err)
	}

	doc, err := serialization.DecodeExported(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}

	return doc, nil
}

// Save writes a flow to the file system, replacing any previous version.
func (fr *FlowRepository) Save(_ context.Context, doc *models.ExportedDocument) error {
	filePath, err := fr.filePath("Save", doc.ID)
	if err != nil {
		return err
	}

	err = os.MkdirAll(path.Join(fr.root, flowsDir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create flows directory: %w", err)
	}

	data, err := serialization.Encode(&doc.FlowDocument, doc.ExportedAt)
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes a flow by its ID.
func (fr *FlowRepository) Delete(_ context.Context, id string) error {
	filePath, err := fr.filePath("Delete", id)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	return nil
}

// filePath rejects IDs that would escape the flows directory.
func (fr *FlowRepository) filePath(op, id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", &persistence.FlowError{Op: op, FlowID: id, Err: persistence.ErrInvalidFlow, Message: "unsafe flow id"}
	}

	return filepath.Clean(path.Join(fr.root, flowsDir, id+".json")), nil
}
