package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `validate:"required"`
	Count int    `validate:"gte=1"`
}

func TestClassifyError(t *testing.T) {
	validationErr := ValidateRequest(payload{})
	require.Error(t, validationErr)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"validation", validationErr, 400, "validation error: payload.Name failed on 'required', payload.Count failed on 'gte'"},
		{"bad request", &BadRequestError{Message: "invalid job id", Err: errors.New("bad uuid")}, 400, "invalid job id: bad uuid"},
		{"wrapped not found", fmt.Errorf("lookup: %w", &NotFoundError{Resource: "review job", Id: "42"}), 404, "review job 42 not found"},
		{"fiber error", fiber.ErrUpgradeRequired, 426, "Upgrade Required"},
		{"unknown", errors.New("boom"), 500, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := classifyError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(payload{Name: "a", Count: 1}))
	assert.Error(t, ValidateRequest(payload{Name: "a"}))
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/missing", func(c *fiber.Ctx) error {
		return &NotFoundError{Resource: "review job", Id: "x"}
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(SuccessResponse("fine", map[string]int{"n": 1}))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var envelope Response[any]
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, 404, envelope.Code)
	assert.Equal(t, "review job x not found", envelope.Message)

	resp, err = app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"success":true,"code":200,"message":"fine","data":{"n":1}}`, string(body))
}
