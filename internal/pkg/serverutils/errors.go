package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// NotFoundError marks a missing resource; the middleware answers 404.
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Id)
}

// BadRequestError marks input the client must fix; the middleware answers 400.
type BadRequestError struct {
	Message string
	Err     error
}

func (e *BadRequestError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// ErrorHandlerMiddleware turns handler errors into the error envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message := classifyError(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func classifyError(err error) (int, string) {
	var fiberErr *fiber.Error
	var notFound *NotFoundError
	var badRequest *BadRequestError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		return fiber.StatusBadRequest, formatValidation(validationErrs)
	case errors.As(err, &badRequest):
		return fiber.StatusBadRequest, badRequest.Error()
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, notFound.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}

func formatValidation(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return "validation error: " + strings.Join(parts, ", ")
}
