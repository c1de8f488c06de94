// Package persistence provides the storage abstraction for exported flow documents.
package persistence

import (
	"context"

	"github.com/dukex/flowdesigner/pkg/models"
)

// Persistence is a storage backend for flow documents.
type Persistence interface {
	FlowRepository() FlowRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// FlowRepository stores exported documents keyed by flow ID.
type FlowRepository interface {
	// ListFlows returns summaries of the stored flows.
	ListFlows(ctx context.Context, opts ListFlowsOptions) (*FlowListResult, error)

	// GetByID returns a stored document. It fails with ErrFlowNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.ExportedDocument, error)

	// Save creates or replaces a document.
	Save(ctx context.Context, doc *models.ExportedDocument) error

	// Delete removes a document. It fails with ErrFlowNotFound when absent.
	Delete(ctx context.Context, id string) error
}
