package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingLimiter struct {
	budget int
	err    error
}

func (l *countingLimiter) Allow(context.Context, string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.budget == 0 {
		return false, nil
	}
	l.budget--
	return true, nil
}

func newApp(l Limiter) *fiber.App {
	app := fiber.New()
	app.Get("/", Middleware(l, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestMiddlewareEnforcesBudget(t *testing.T) {
	app := newApp(&countingLimiter{budget: 2})

	for i, want := range []int{200, 200, 429} {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "request %d", i)
	}
}

func TestMiddlewareFailsOpen(t *testing.T) {
	app := newApp(&countingLimiter{err: errors.New("redis down")})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ok)
}
