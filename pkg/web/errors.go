package web

import (
	"errors"

	"github.com/dukex/flowdesigner/pkg/designer"
	"github.com/dukex/flowdesigner/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// validationProblem is a problem document listing the rejected fields.
type validationProblem struct {
	*problems.DefaultProblem

	Fields map[string]string `json:"fields"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// invalidBody reports validator failures field by field.
func invalidBody(c fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badRequest(c, err.Error())
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields[fieldErr.Namespace()] = fieldErr.Tag()
	}

	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(err.Error())

	return c.Status(fiber.StatusBadRequest).JSON(validationProblem{
		DefaultProblem: problem,
		Fields:         fields,
	})
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		problemType := "not_found"

		switch {
		case errors.Is(err, services.ErrFlowNotOpen):
			problemType = "flow_not_open"
		case errors.Is(err, services.ErrFlowNotFound):
			problemType = "flow_not_found"
		case errors.Is(err, designer.ErrNodeNotFound):
			problemType = "node_not_found"
		case errors.Is(err, designer.ErrEdgeNotFound):
			problemType = "edge_not_found"
		}

		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
