package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/rshsreehari/coderev-platform/internal/dlq"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/submission"
)

// ErrInvalidInput mirrors submission.ErrInvalidInput for DTO-level
// validation failures raised before the service layer is invoked.
var ErrInvalidInput = submission.ErrInvalidInput

// writeError maps a domain error to the §7 error response shape.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, submission.ErrInvalidInput), errors.Is(err, ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, jobstore.ErrNotFound), errors.Is(err, dlq.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
}
