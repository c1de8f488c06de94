package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		flowErr := persistence.NewFlowError("GetByID", "flow-123", persistence.ErrFlowNotFound)

		assert.True(t, persistence.IsFlowNotFound(flowErr))
		assert.True(t, persistence.IsFlowNotFound(fmt.Errorf("wrapped: %w", flowErr)))
		assert.True(t, errors.Is(flowErr, persistence.ErrFlowNotFound))
		assert.False(t, persistence.IsFlowNotFound(persistence.NewFlowError("Save", "flow-123", persistence.ErrInvalidFlow)))
	})

	t.Run("flow error contains context", func(t *testing.T) {
		err := persistence.NewFlowError("Delete", "flow-123", persistence.ErrFlowNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "flow-123")
		assert.Contains(t, err.Error(), "flow not found")
	})

	t.Run("flow error with message", func(t *testing.T) {
		err := &persistence.FlowError{Op: "Save", FlowID: "flow-9", Err: persistence.ErrInvalidFlow, Message: "missing id"}

		assert.Equal(t, "Save operation failed for flow flow-9: missing id (invalid flow)", err.Error())
	})
}
