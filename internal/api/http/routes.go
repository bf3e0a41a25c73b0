package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/askweather/askweather/internal/pipeline"
)

var validate = validator.New()

// queryRequest is the body of the weather query endpoint.
type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, pipe *pipeline.Pipeline, maxQueryLength int) {
	v1 := app.Group("/api/v1")

	v1.Post("/weather/query", func(c *fiber.Ctx) error {
		var req queryRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Request body must be JSON with a 'query' field")
		}
		if err := validate.Struct(req); err != nil {
			return badRequest(c, "Query parameter is required")
		}
		if maxQueryLength > 0 && len(req.Query) > maxQueryLength {
			return badRequest(c, "Query exceeds maximum length")
		}

		resp, errResp := pipe.ProcessQuery(c.Context(), req.Query)
		if errResp != nil {
			return c.Status(statusFor(errResp.Error)).JSON(errResp)
		}
		return c.JSON(resp)
	})
}

func badRequest(c *fiber.Ctx, hint string) error {
	return c.Status(fiber.StatusBadRequest).JSON(pipeline.ErrorResponse{
		Error: pipeline.CodeInvalidRequest,
		Hint:  hint,
	})
}

// statusFor maps stable pipeline error codes onto HTTP status classes.
func statusFor(code string) int {
	switch {
	case pipeline.ClientInputError(code):
		return fiber.StatusBadRequest
	case code == pipeline.CodeTimeout:
		return fiber.StatusGatewayTimeout
	case pipeline.UpstreamError(code):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
