package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/flowdesigner/pkg/persistence/file"
	"github.com/dukex/flowdesigner/pkg/registry"
	"github.com/dukex/flowdesigner/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(tempDir string) *fiber.App {
	reg := registry.NewRegistry(slog.Default())
	designer := services.NewDesigner(file.NewPersistence(tempDir), reg, slog.Default())

	return NewAPI(slog.Default(), designer, reg).App()
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Flow Designer API", string(readBody(t, resp)))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(readBody(t, resp)))
}

func TestAPI_ListFlows_Empty(t *testing.T) {
	app := setupTestApp(t.TempDir())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/flows", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.Unmarshal(readBody(t, resp), &result))
	assert.Empty(t, result["flows"])
	assert.InDelta(t, 0, result["totalCount"], 0)
}

func TestAPI_CreateAndSaveFlow(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodPost, "/flows", bytes.NewBufferString(`{"name":"Travel request"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var state services.State
	require.NoError(t, json.Unmarshal(readBody(t, resp), &state))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/flows/"+state.Document.ID+"/save", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	stored, err := file.NewPersistence(tempDir).FlowRepository().GetByID(t.Context(), state.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "Travel request", stored.Name)
}
