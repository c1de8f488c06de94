// Package config provides configuration loading for the node catalog
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/registry"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalogConfig = errors.New("invalid catalog config")

// CatalogConfigFile represents the structure of the catalog.yaml file
type CatalogConfigFile struct {
	NodeTypes []NodeTypeConfig `yaml:"node_types"`
}

// NodeTypeConfig overrides the presentation and limit of one built-in node type
type NodeTypeConfig struct {
	Type     string `yaml:"type"`
	Label    string `yaml:"label"`
	Color    string `yaml:"color"`
	MaxCount *int   `yaml:"max_count"`
}

// LoadCatalogConfig loads catalog overrides from a YAML file
func LoadCatalogConfig(filepath string) (*CatalogConfigFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	return ParseCatalogConfig(data)
}

// ParseCatalogConfig parses and validates catalog overrides
func ParseCatalogConfig(data []byte) (*CatalogConfigFile, error) {
	var configFile CatalogConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML config: %v", ErrInvalidCatalogConfig, err)
	}

	if err := ValidateCatalogConfig(configFile); err != nil {
		return nil, err
	}

	return &configFile, nil
}

// ValidateCatalogConfig validates the catalog configuration
func ValidateCatalogConfig(config CatalogConfigFile) error {
	seen := make(map[string]bool, len(config.NodeTypes))

	for i, nodeType := range config.NodeTypes {
		t := models.NodeType(nodeType.Type)

		if !t.IsValid() {
			return fmt.Errorf("%w: node_types[%d]: unknown node type '%s'", ErrInvalidCatalogConfig, i, nodeType.Type)
		}

		if seen[nodeType.Type] {
			return fmt.Errorf("%w: node_types[%d]: duplicate node type '%s'", ErrInvalidCatalogConfig, i, nodeType.Type)
		}

		seen[nodeType.Type] = true

		if nodeType.MaxCount == nil {
			continue
		}

		if *nodeType.MaxCount < 0 {
			return fmt.Errorf("%w: node_types[%d]: max_count must not be negative", ErrInvalidCatalogConfig, i)
		}

		// START and END stay singletons
		if t.IsTerminal() && *nodeType.MaxCount != 1 {
			return fmt.Errorf("%w: node_types[%d]: max_count of %s is fixed at 1", ErrInvalidCatalogConfig, i, t)
		}
	}

	return nil
}

// Apply overrides the matching registry entries. Empty fields keep the built-in value.
func (c *CatalogConfigFile) Apply(reg *registry.Registry) {
	for _, nodeType := range c.NodeTypes {
		info, ok := reg.Lookup(models.NodeType(nodeType.Type))
		if !ok {
			continue
		}

		if nodeType.Label != "" {
			info.Label = nodeType.Label
		}

		if nodeType.Color != "" {
			info.Color = nodeType.Color
		}

		if nodeType.MaxCount != nil {
			info.MaxCount = *nodeType.MaxCount
		}

		reg.RegisterNode(info)
	}
}
