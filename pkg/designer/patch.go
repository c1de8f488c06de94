package designer

import (
	"fmt"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/go-viper/mapstructure/v2"
)

// mergeNodeData shallow-merges patch into a copy of data. Top-level keys of
// patch replace the matching fields wholesale; a nil value zeroes the field.
//
//nolint:ireturn // NodeData is a tagged variant
func mergeNodeData(data models.NodeData, patch map[string]any) (models.NodeData, []string, error) {
	merged := data.Clone()

	var metadata mapstructure.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Metadata:         &metadata,
		Result:           merged,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create data decoder: %w", err)
	}

	err = decoder.Decode(patch)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidNodeData, err)
	}

	return merged, metadata.Unused, nil
}
