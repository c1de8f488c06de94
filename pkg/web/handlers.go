// Package web provides HTTP handlers and REST API endpoints for flow design.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/persistence"
	"github.com/dukex/flowdesigner/pkg/registry"
	"github.com/dukex/flowdesigner/pkg/routing"
	"github.com/dukex/flowdesigner/pkg/serialization"
	"github.com/dukex/flowdesigner/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	designer  *services.Designer
	validator *validator.Validate
	registry  *registry.Registry
}

func NewAPIHandlers(
	designerService *services.Designer,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		designer:  designerService,
		validator: validator,
		registry:  registry,
	}
}

// Register mounts every flow designer route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/catalog", h.GetCatalog)
	router.Get("/health", h.HealthCheck)

	f := router.Group("/flows")
	f.Get("/", h.ListFlows)
	f.Post("/", h.CreateFlow)
	f.Post("/import", h.ImportFlow)
	f.Get("/sessions", h.ListSessions)
	f.Get("/:id", h.GetFlow)
	f.Patch("/:id", h.UpdateFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Post("/:id/save", h.SaveFlow)
	f.Post("/:id/close", h.CloseFlow)
	f.Get("/:id/export", h.ExportFlow)

	f.Post("/:id/nodes", h.AddNode)
	f.Patch("/:id/nodes/:nodeId", h.UpdateNode)
	f.Put("/:id/nodes/:nodeId/position", h.MoveNode)
	f.Delete("/:id/nodes/:nodeId", h.DeleteNode)

	f.Post("/:id/edges", h.AddEdge)
	f.Delete("/:id/edges/:edgeId", h.DeleteEdge)

	f.Put("/:id/routing-rules", h.ReplaceRoutingRules)
	f.Put("/:id/selection", h.UpdateSelection)
	f.Post("/:id/undo", h.Undo)
	f.Post("/:id/redo", h.Redo)
	f.Get("/:id/validation", h.ValidateFlow)
	f.Post("/:id/route", h.RouteFlow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.designer.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flow designer API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Flow designer API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetCatalog(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"nodeTypes": h.registry.NodeTypes(),
	})
}

func (h *APIHandlers) ListFlows(c fiber.Ctx) error {
	opts, err := parseListFlowsOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.designer.ListFlows(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	// ListFlows applied the defaults on its own copy
	_ = opts.ApplyDefaults()

	return c.JSON(ListFlowsResponse{
		Flows:       result.Flows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

// parseListFlowsOptions parses query parameters for listing flows.
func parseListFlowsOptions(c fiber.Ctx) (persistence.ListFlowsOptions, error) {
	opts := persistence.ListFlowsOptions{
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
		TemplateID: c.Query("template_id"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return opts, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return opts, err
		}

		opts.Offset = offset
	}

	return opts, nil
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	state, err := h.designer.CreateFlow(c.Context(), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) ImportFlow(c fiber.Ctx) error {
	state, err := h.designer.ImportFlow(c.Context(), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) ListSessions(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sessions": h.designer.Sessions(),
	})
}

// GetFlow returns the editor state of a flow, opening it from storage when needed.
func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	state, err := h.designer.OpenFlow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	current, err := h.designer.State(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	name, description := current.Document.Name, current.Document.Description

	if req.Name != nil {
		name = *req.Name
	}

	if req.Description != nil {
		description = *req.Description
	}

	err = h.designer.UpdateMetadata(c.Context(), id, name, description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondState(c, id)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	err := h.designer.DeleteFlow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SaveFlow(c fiber.Ctx) error {
	exported, err := h.designer.SaveFlow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(persistence.Summarize(exported))
}

func (h *APIHandlers) CloseFlow(c fiber.Ctx) error {
	err := h.designer.CloseFlow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ExportFlow(c fiber.Ctx) error {
	exported, err := h.designer.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	data, err := serialization.Encode(&exported.FlowDocument, exported.ExportedAt)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+exported.ID+`.json"`)

	return c.Send(data)
}

func (h *APIHandlers) AddNode(c fiber.Ctx) error {
	var req AddNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	node, err := h.designer.AddNode(c.Context(), c.Params("id"), models.NodeType(req.Type), req.Position.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	node, err := h.designer.UpdateNode(c.Context(), c.Params("id"), c.Params("nodeId"), req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) MoveNode(c fiber.Ctx) error {
	var req MoveNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	node, err := h.designer.MoveNode(c.Context(), c.Params("id"), c.Params("nodeId"), req.Position.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	err := h.designer.DeleteNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AddEdge(c fiber.Ctx) error {
	var req AddEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	edge, err := h.designer.AddEdge(c.Context(), c.Params("id"), req.Source, req.Target, req.Label)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) DeleteEdge(c fiber.Ctx) error {
	err := h.designer.DeleteEdge(c.Context(), c.Params("id"), c.Params("edgeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReplaceRoutingRules(c fiber.Ctx) error {
	var req ReplaceRoutingRulesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	rules, err := h.designer.ReplaceRoutingRules(c.Context(), c.Params("id"), req.Rules)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"rules": rules})
}

func (h *APIHandlers) UpdateSelection(c fiber.Ctx) error {
	id := c.Params("id")

	var req SelectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	var err error

	switch {
	case req.NodeID != "":
		err = h.designer.SelectNode(c.Context(), id, req.NodeID)
	case req.EdgeID != "":
		err = h.designer.SelectEdge(c.Context(), id, req.EdgeID)
	default:
		err = h.designer.ClearSelection(c.Context(), id)
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondState(c, id)
}

func (h *APIHandlers) Undo(c fiber.Ctx) error {
	applied, err := h.designer.Undo(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondHistory(c, c.Params("id"), applied)
}

func (h *APIHandlers) Redo(c fiber.Ctx) error {
	applied, err := h.designer.Redo(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.respondHistory(c, c.Params("id"), applied)
}

func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	result, err := h.designer.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) RouteFlow(c fiber.Ctx) error {
	var req RouteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidBody(c, err)
	}

	rctx, err := routing.NewContext(req.Context)
	if err != nil {
		return badRequest(c, err.Error())
	}

	decision, err := h.designer.Route(c.Context(), c.Params("id"), rctx)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(decision)
}

func (h *APIHandlers) respondState(c fiber.Ctx, id string) error {
	state, err := h.designer.State(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) respondHistory(c fiber.Ctx, id string, applied bool) error {
	state, err := h.designer.State(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(HistoryResponse{
		Applied: applied,
		CanUndo: state.CanUndo,
		CanRedo: state.CanRedo,
	})
}
