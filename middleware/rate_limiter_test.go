package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcompose/config"
	"feedcompose/utils"
)

func limiterApp(requests int) (*fiber.App, *[]error) {
	var seen []error
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			seen = append(seen, err)
			var appErr *utils.AppError
			if errors.As(err, &appErr) {
				return c.Status(appErr.Code).JSON(fiber.Map{"error": appErr.MessageID})
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	app.Use(RateLimiter(config.RateLimitConfig{
		Requests:               requests,
		WindowSeconds:          60,
		CleanupIntervalMinutes: 5,
		IdleEvictionMinutes:    10,
	}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app, &seen
}

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	app, seen := limiterApp(3)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	assert.Empty(t, *seen)
}

func TestRateLimiterReturnsAppError(t *testing.T) {
	app, seen := limiterApp(1)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// The rejection flows through the app error pipeline, not a raw JSON
	// write from the middleware.
	require.Len(t, *seen, 1)
	var appErr *utils.AppError
	require.ErrorAs(t, (*seen)[0], &appErr)
	assert.Equal(t, utils.KindRateLimit, appErr.Kind)
	assert.Equal(t, 429, appErr.Code)
	assert.Equal(t, "error_rate_limit", appErr.MessageID)
}
