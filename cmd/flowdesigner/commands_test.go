package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowdesigner/pkg/designer"
	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/registry"
	"github.com/dukex/flowdesigner/pkg/routing"
	"github.com/dukex/flowdesigner/pkg/serialization"
	"github.com/dukex/flowdesigner/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func writeFlow(t *testing.T, connect bool, rules ...*models.RoutingRule) string {
	t.Helper()

	store := designer.NewStore(registry.NewRegistry(nil))

	if connect {
		_, err := store.AddEdge(designer.StartNodeID, designer.EndNodeID, "")
		require.NoError(t, err)
	}

	if len(rules) > 0 {
		_, err := store.ReplaceRoutingRules(rules)
		require.NoError(t, err)
	}

	data, err := serialization.Encode(store.Document(), exportedAt)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	err := app.Run(t.Context(), append([]string{"flowdesigner"}, args...))

	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name      string
		connect   bool
		expectErr error
		contains  string
	}{
		{"connected flow", true, nil, "Valid"},
		{"start without outgoing edge", false, ErrInvalidFlow, validation.CodeStartNoOutgoing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "validate", writeFlow(t, tt.connect))

			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
			} else {
				require.NoError(t, err)
			}

			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestValidateCommand_JSON(t *testing.T) {
	out, err := run(t, "validate", "--json", writeFlow(t, true))
	require.NoError(t, err)

	var result validation.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.IsValid)
}

func TestValidateCommand_Errors(t *testing.T) {
	_, err := run(t, "validate")
	require.ErrorIs(t, err, ErrMissingFile)

	_, err = run(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"no id"}`), 0o600))

	_, err = run(t, "validate", path)
	require.ErrorIs(t, err, serialization.ErrInvalidDocument)
}

func TestRouteCommand(t *testing.T) {
	rule := &models.RoutingRule{
		ID:       "vip",
		Name:     "VIP initiator",
		Order:    1,
		FlowID:   "flow-vip",
		IsActive: true,
		Conditions: models.ConditionGroup{
			Operator: models.LogicalAnd,
			Items: []models.ConditionItem{
				{Field: "initiator.level", Op: models.OpGreaterEqual, Value: 5},
			},
		},
	}
	flow := writeFlow(t, true, rule)

	contextFile := filepath.Join(t.TempDir(), "context.json")
	require.NoError(t, os.WriteFile(contextFile, []byte(`{"initiator":{"level":7}}`), 0o600))

	tests := []struct {
		name        string
		args        []string
		wantMatched bool
	}{
		{"context file", []string{"--context", contextFile}, true},
		{"override lowers level", []string{"--context", contextFile, "--set", "initiator.level=2"}, false},
		{"set only", []string{"--set", "initiator.level=9"}, true},
		{"empty context", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"route"}, tt.args...)
			out, err := run(t, append(args, flow)...)
			require.NoError(t, err)

			var decision routing.Decision
			require.NoError(t, json.Unmarshal([]byte(out), &decision))
			assert.Equal(t, tt.wantMatched, decision.Matched)

			if tt.wantMatched {
				assert.Equal(t, "flow-vip", decision.FlowID)
			}
		})
	}
}

func TestRouteCommand_InvalidSet(t *testing.T) {
	_, err := run(t, "route", "--set", "level", writeFlow(t, true))
	require.ErrorIs(t, err, ErrInvalidSet)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"5000", float64(5000)},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{"finance", "finance"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.raw), tt.raw)
	}
}

func TestNormalizeCommand(t *testing.T) {
	flow := writeFlow(t, true)

	out, err := run(t, "normalize", flow)
	require.NoError(t, err)

	exported, err := serialization.DecodeExported([]byte(out))
	require.NoError(t, err)
	assert.True(t, exportedAt.Equal(exported.ExportedAt))
	assert.Len(t, exported.Edges, 1)

	output := filepath.Join(t.TempDir(), "normalized.json")

	_, err = run(t, "normalize", "--output", output, flow)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.JSONEq(t, out, string(data))
}
