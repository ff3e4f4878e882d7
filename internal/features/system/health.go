package system

import (
	"context"
	"time"

	"go-letters/internal/common/api"
	"go-letters/internal/database"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type HealthController struct {
	ping   func(ctx context.Context) error
	logger *zap.Logger
}

func NewHealthController(db *database.MongodbDB, logger *zap.Logger) *HealthController {
	return &HealthController{
		ping: func(ctx context.Context) error {
			return db.Client.Ping(ctx, readpref.Primary())
		},
		logger: logger,
	}
}

// Live godoc
// @Summary      Liveness probe
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Router       /health [get]
func (h *HealthController) Live(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Ready godoc
// @Summary      Readiness probe
// @Description  Reports whether the database answers a ping
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health/ready [get]
func (h *HealthController) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "database": "down"})
	}
	return c.JSON(fiber.Map{"status": "ok", "database": "up"})
}

type HealthApi struct {
	controller *HealthController
}

func NewHealthApi(controller *HealthController) api.Route {
	return &HealthApi{controller: controller}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.controller.Live)
	app.Get("/health/ready", h.controller.Ready)
}
