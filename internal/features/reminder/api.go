package reminder

import (
	"go-letters/internal/common/api"
	"go-letters/internal/config"
	"go-letters/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReminderApi struct {
	controller *ReminderController
	config     *config.Config
}

func NewReminderApi(controller *ReminderController, config *config.Config) api.Route {
	return &ReminderApi{
		controller: controller,
		config:     config,
	}
}

func (h *ReminderApi) Setup(app *fiber.App) {
	reminders := app.Group("/api/reminders",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.RequireRole(h.config.AdminRoles...))

	reminders.Post("/run", h.controller.RunNow)
	reminders.Get("/runs", h.controller.ListRuns)
}
