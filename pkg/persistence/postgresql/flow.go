package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/dukex/flowdesigner/pkg/serialization"
)

// sortColumns maps list sort fields to columns.
var sortColumns = map[string]string{
	persistence.SortByName:       "name",
	persistence.SortByExportedAt: "exported_at",
}

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// ListFlows returns paginated flow summaries.
func (r *FlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	err := opts.ApplyDefaults()
	if err != nil {
		return nil, err
	}

	var totalCount int64

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM flows
		WHERE deleted_at IS NULL AND ($1 = '' OR template_id = $1)
	`, opts.TemplateID).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	// Column and direction come from allowlists, never from the caller
	query := fmt.Sprintf(`
		SELECT
			id
		  , name
		  , description
		  , template_id
		  , version
		  , node_count
		  , edge_count
		  , rule_count
		  , exported_at
		FROM flows
		WHERE deleted_at IS NULL AND ($1 = '' OR template_id = $1)
		ORDER BY %s %s, id %s
		LIMIT $2 OFFSET $3
	`, sortColumns[opts.SortBy], opts.SortOrder, opts.SortOrder)

	rows, err := r.db.QueryContext(ctx, query, opts.TemplateID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func(ctx context.Context, r *FlowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	summaries := make([]*persistence.FlowSummary, 0)

	for rows.Next() {
		var summary persistence.FlowSummary

		err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.Description,
			&summary.TemplateID,
			&summary.Version,
			&summary.NodeCount,
			&summary.EdgeCount,
			&summary.RuleCount,
			&summary.ExportedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		summary.ExportedAt = summary.ExportedAt.UTC()
		summaries = append(summaries, &summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return &persistence.FlowListResult{
		Flows:       summaries,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(summaries)) < totalCount,
	}, nil
}

// GetByID returns a stored document.
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.ExportedDocument, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT document
		FROM flows
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch flow %s: %w", id, err)
	}

	doc, err := serialization.DecodeExported(document)
	if err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}

	return doc, nil
}

// Save upserts a document. Saving a deleted flow restores it.
func (r *FlowRepository) Save(ctx context.Context, doc *models.ExportedDocument) error {
	if doc.ID == "" {
		return &persistence.FlowError{Op: "Save", Err: persistence.ErrInvalidFlow, Message: "missing id"}
	}

	document, err := serialization.Encode(&doc.FlowDocument, doc.ExportedAt)
	if err != nil {
		return err
	}

	summary := persistence.Summarize(doc)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flows (id, name, description, template_id, version, document,
node_count, edge_count, rule_count, exported_at, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			template_id = EXCLUDED.template_id,
			version = EXCLUDED.version,
			document = EXCLUDED.document,
			node_count = EXCLUDED.node_count,
			edge_count = EXCLUDED.edge_count,
			rule_count = EXCLUDED.rule_count,
			exported_at = EXCLUDED.exported_at,
			updated_at = NOW(),
			deleted_at = NULL
	`,
		summary.ID,
		summary.Name,
		summary.Description,
		summary.TemplateID,
		summary.Version,
		document,
		summary.NodeCount,
		summary.EdgeCount,
		summary.RuleCount,
		doc.ExportedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", doc.ID, err)
	}

	return nil
}

// Delete soft deletes a flow by setting deleted_at timestamp.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE flows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}
