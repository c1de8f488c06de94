// Package redis provides Redis persistence for flow documents. Each flow is
// stored under its own key and the set of flow IDs is kept in an index set.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/dukex/flowdesigner/pkg/serialization"
	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "flowdesigner"

// Persistence implements the persistence layer for Redis.
type Persistence struct {
	client   goredis.UniversalClient
	logger   *slog.Logger
	flowRepo *FlowRepository
}

// NewPersistence connects to the Redis server addressed by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewPersistenceWithClient(client, logger, defaultKeyPrefix), nil
}

// NewPersistenceWithClient wraps an existing client. Keys are namespaced by prefix.
func NewPersistenceWithClient(client goredis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	return &Persistence{
		client:   client,
		logger:   logger,
		flowRepo: &FlowRepository{client: client, logger: logger, prefix: prefix},
	}
}

// Close closes the Redis client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// FlowRepository returns the Redis flow repository.
func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

// FlowRepository stores documents as JSON strings.
type FlowRepository struct {
	client goredis.UniversalClient
	logger *slog.Logger
	prefix string
}

func (r *FlowRepository) flowKey(id string) string {
	return strings.Join([]string{r.prefix, "flow", id}, ":")
}

func (r *FlowRepository) indexKey() string {
	return r.prefix + ":flows"
}

// ListFlows loads every indexed flow and pages the summaries in memory.
func (r *FlowRepository) ListFlows(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	err := opts.ApplyDefaults()
	if err != nil {
		return nil, err
	}

	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flow ids: %w", err)
	}

	summaries := make([]*persistence.FlowSummary, 0, len(ids))

	for _, id := range ids {
		doc, err := r.GetByID(ctx, id)
		if err != nil {
			if persistence.IsFlowNotFound(err) {
				r.logger.WarnContext(ctx, "Flow index references a missing flow", "flow_id", id)

				continue
			}

			return nil, err
		}

		summaries = append(summaries, persistence.Summarize(doc))
	}

	return persistence.PageSummaries(summaries, opts), nil
}

// GetByID returns a stored document.
func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.ExportedDocument, error) {
	body, err := r.client.Get(ctx, r.flowKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
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

// Save writes the document and indexes its ID in one transaction.
func (r *FlowRepository) Save(ctx context.Context, doc *models.ExportedDocument) error {
	if doc.ID == "" {
		return &persistence.FlowError{Op: "Save", Err: persistence.ErrInvalidFlow, Message: "missing id"}
	}

	body, err := serialization.Encode(&doc.FlowDocument, doc.ExportedAt)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.flowKey(doc.ID), body, 0)
		pipe.SAdd(ctx, r.indexKey(), doc.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", doc.ID, err)
	}

	return nil
}

// Delete removes the document and its index entry.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	var deleted *goredis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, r.flowKey(id))
		pipe.SRem(ctx, r.indexKey(), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}
