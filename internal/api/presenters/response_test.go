package presenters

import (
	"Fasting-Tracker/domain"
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

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, fiber.StatusOK},
		{domain.ErrSessionNotFound, fiber.StatusNotFound},
		{domain.ErrMealNotFound, fiber.StatusNotFound},
		{fmt.Errorf("start: %w", domain.ErrConflict), fiber.StatusConflict},
		{domain.ErrAnalysisInFlight, fiber.StatusConflict},
		{domain.ErrInvalidTransition, fiber.StatusConflict},
		{domain.ErrInvalidInput, fiber.StatusBadRequest},
		{domain.ErrInvalidImageFormat, fiber.StatusBadRequest},
		{domain.ErrNothingToAnalyze, fiber.StatusBadRequest},
		{domain.ErrOwnerMissing, fiber.StatusBadRequest},
		{domain.ErrParseUUID, fiber.StatusBadRequest},
		{&domain.ValidationError{Field: "calories", Reason: "missing"}, fiber.StatusUnprocessableEntity},
		{&domain.ProviderError{Op: "generate", Err: errors.New("x")}, fiber.StatusBadGateway},
		{domain.ErrTokenExpired, fiber.StatusUnauthorized},
		{domain.ErrForbidden, fiber.StatusForbidden},
		{domain.ErrNotImplemented, fiber.StatusNotImplemented},
		{domain.ErrImageStorageDisabled, fiber.StatusServiceUnavailable},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "err=%v", tc.err)
	}
}

func TestFailedResponse_Envelope(t *testing.T) {
	app := fiber.New()
	app.Get("/fail", func(c *fiber.Ctx) error {
		return FailedResponse(c, "failed to pause fast", fmt.Errorf("%w: cannot pause while idle", domain.ErrInvalidTransition))
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return SuccessResponse(c, fiber.Map{"state": "idle"}, fiber.StatusOK, "ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var res Response
	require.NoError(t, json.Unmarshal(body, &res))
	assert.False(t, res.Success)
	assert.Equal(t, domain.CodeInvalidTransition, res.ErrorCode)
	assert.Equal(t, "invalid transition: cannot pause while idle", res.Error)

	resp, err = app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok","data":{"state":"idle"}}`, string(body))
}
