// Package serialization converts flow documents to and from their JSON interchange shape.
package serialization

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a document is malformed or misses required fields.
var ErrInvalidDocument = errors.New("invalid flow document")

//go:embed document.schema.json
var documentSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(documentSchema)

// Encode serializes doc as an exported document stamped with exportedAt.
func Encode(doc *models.FlowDocument, exportedAt time.Time) ([]byte, error) {
	exported := models.ExportedDocument{
		FlowDocument: *doc,
		ExportedAt:   exportedAt.UTC(),
	}

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow %s: %w", doc.ID, err)
	}

	return data, nil
}

// Decode parses a document produced by Encode or by a prior version of it.
// Unknown fields are ignored and missing optional fields are defaulted.
func Decode(data []byte) (*models.FlowDocument, error) {
	err := validateSchema(data)
	if err != nil {
		return nil, err
	}

	var doc models.FlowDocument

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	normalized, _, err := Normalize(&doc)
	if err != nil {
		return nil, err
	}

	return normalized, nil
}

// DecodeExported parses a document and keeps its export timestamp.
func DecodeExported(data []byte) (*models.ExportedDocument, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}

	var stamp struct {
		ExportedAt time.Time `json:"exportedAt"`
	}

	// A missing or malformed timestamp is not fatal
	_ = json.Unmarshal(data, &stamp)

	return &models.ExportedDocument{FlowDocument: *doc, ExportedAt: stamp.ExportedAt}, nil
}

func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		var messages []string
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
	}

	return nil
}

// Normalize returns a deep copy of doc with optional fields defaulted and
// dangling edges removed. It returns the IDs of the pruned edges.
func Normalize(doc *models.FlowDocument) (*models.FlowDocument, []string, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID == "" {
		return nil, nil, fmt.Errorf("%w: id is required", ErrInvalidDocument)
	}

	if doc.Nodes == nil {
		return nil, nil, fmt.Errorf("%w: nodes are required", ErrInvalidDocument)
	}

	normalized := &models.FlowDocument{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		TemplateID:  doc.TemplateID,
		Version:     doc.Version,
		Nodes:       make(map[string]*models.Node, len(doc.Nodes)),
		Edges:       make([]*models.Edge, 0, len(doc.Edges)),
	}

	if normalized.Version <= 0 {
		normalized.Version = 1
	}

	for key, node := range doc.Nodes {
		n, err := normalizeNode(key, node)
		if err != nil {
			return nil, nil, err
		}

		normalized.Nodes[n.ID] = n
	}

	var pruned []string

	for i, edge := range doc.Edges {
		if edge == nil || edge.ID == "" || edge.Source == "" || edge.Target == "" {
			return nil, nil, fmt.Errorf("%w: edge %d misses id, source or target", ErrInvalidDocument, i)
		}

		_, sourceOk := normalized.Nodes[edge.Source]
		_, targetOk := normalized.Nodes[edge.Target]

		if !sourceOk || !targetOk {
			pruned = append(pruned, edge.ID)

			continue
		}

		e := *edge
		normalized.Edges = append(normalized.Edges, &e)
	}

	rules, err := NormalizeRoutingRules(doc.RoutingRules)
	if err != nil {
		return nil, nil, err
	}

	normalized.RoutingRules = rules

	return normalized, pruned, nil
}

// NormalizeRoutingRules deep copies rules, defaulting an empty group operator to AND.
func NormalizeRoutingRules(rules []*models.RoutingRule) ([]*models.RoutingRule, error) {
	normalized := make([]*models.RoutingRule, 0, len(rules))

	for i, rule := range rules {
		if rule == nil || rule.ID == "" {
			return nil, fmt.Errorf("%w: routing rule %d misses id", ErrInvalidDocument, i)
		}

		r := rule.Clone()
		if r.Conditions.Operator == "" {
			r.Conditions.Operator = models.LogicalAnd
		}

		if r.Conditions.Items == nil {
			r.Conditions.Items = []models.ConditionItem{}
		}

		normalized = append(normalized, r)
	}

	return normalized, nil
}

func normalizeNode(key string, node *models.Node) (*models.Node, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: node %s is null", ErrInvalidDocument, key)
	}

	n := node.Clone()

	if n.ID == "" {
		n.ID = key
	}

	if n.ID != key {
		return nil, fmt.Errorf("%w: node key %s does not match node id %s", ErrInvalidDocument, key, n.ID)
	}

	if !n.Type.IsValid() {
		return nil, fmt.Errorf("%w: node %s has unknown type %q", ErrInvalidDocument, key, n.Type)
	}

	if n.Data == nil {
		data, err := models.DefaultNodeData(n.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}

		n.Data = data
	}

	if n.Data.NodeType() != n.Type {
		return nil, fmt.Errorf("%w: node %s is %s but carries %s data", ErrInvalidDocument, key, n.Type, n.Data.NodeType())
	}

	return n, nil
}
