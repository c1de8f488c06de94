package persistence

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowdesigner/pkg/models"
)

// Sort fields accepted by ListFlows.
const (
	SortByName       = "name"
	SortByExportedAt = "exported_at"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListFlowsOptions filters, sorts and paginates ListFlows.
type ListFlowsOptions struct {
	Limit      int
	Offset     int
	SortBy     string
	SortOrder  string
	TemplateID string
}

// ApplyDefaults fills unset options and rejects fields outside the allowlist.
func (o *ListFlowsOptions) ApplyDefaults() error {
	if o.Limit <= 0 || o.Limit > maxListLimit {
		o.Limit = defaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = SortByExportedAt
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	if o.SortBy != SortByName && o.SortBy != SortByExportedAt {
		return fmt.Errorf("%w: sort field %s", ErrInvalidListOptions, o.SortBy)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return fmt.Errorf("%w: sort order %s", ErrInvalidListOptions, o.SortOrder)
	}

	return nil
}

// FlowSummary describes a stored flow without its graph.
type FlowSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TemplateID  string    `json:"templateId"`
	Version     int       `json:"version"`
	NodeCount   int       `json:"nodeCount"`
	EdgeCount   int       `json:"edgeCount"`
	RuleCount   int       `json:"ruleCount"`
	ExportedAt  time.Time `json:"exportedAt"`
}

// FlowListResult is one page of flow summaries.
type FlowListResult struct {
	Flows       []*FlowSummary `json:"flows"`
	TotalCount  int64          `json:"totalCount"`
	HasNextPage bool           `json:"hasNextPage"`
}

// Summarize builds the summary of a stored document.
func Summarize(doc *models.ExportedDocument) *FlowSummary {
	return &FlowSummary{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		TemplateID:  doc.TemplateID,
		Version:     doc.Version,
		NodeCount:   len(doc.Nodes),
		EdgeCount:   len(doc.Edges),
		RuleCount:   len(doc.RoutingRules),
		ExportedAt:  doc.ExportedAt,
	}
}

// PageSummaries filters, sorts and paginates summaries in memory for
// backends without a query engine. opts must have defaults applied.
func PageSummaries(summaries []*FlowSummary, opts ListFlowsOptions) *FlowListResult {
	filtered := make([]*FlowSummary, 0, len(summaries))

	for _, summary := range summaries {
		if opts.TemplateID != "" && summary.TemplateID != opts.TemplateID {
			continue
		}

		filtered = append(filtered, summary)
	}

	sortSummaries(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &FlowListResult{
			Flows:       make([]*FlowSummary, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}
	}

	endIdx := min(opts.Offset+opts.Limit, len(filtered))

	return &FlowListResult{
		Flows:       filtered[opts.Offset:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}
}

// sortSummaries sorts in place; ties are broken by ID so pages are stable.
func sortSummaries(summaries []*FlowSummary, sortBy, sortOrder string) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]

		if sortOrder == "desc" {
			a, b = b, a
		}

		switch sortBy {
		case SortByName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default:
			if !a.ExportedAt.Equal(b.ExportedAt) {
				return a.ExportedAt.Before(b.ExportedAt)
			}
		}

		return a.ID < b.ID
	})
}
