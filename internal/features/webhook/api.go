package webhook

import (
	"go-letters/internal/common/api"
	"go-letters/internal/config"
	"go-letters/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller *WebhookController
	config     *config.Config
}

func NewWebhookApi(controller *WebhookController, config *config.Config) api.Route {
	return &WebhookApi{
		controller: controller,
		config:     config,
	}
}

func (h *WebhookApi) Setup(app *fiber.App) {
	webhooks := app.Group("/api/webhooks",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.RequireRole(h.config.AdminRoles...),
	)

	webhooks.Post("/", h.controller.CreateWebhook)
	webhooks.Get("/", h.controller.ListWebhooks)
	webhooks.Get("/:id", h.controller.GetWebhook)
	webhooks.Get("/:id/logs", h.controller.ListLogs)
	webhooks.Put("/:id", h.controller.UpdateWebhook)
	webhooks.Delete("/:id", h.controller.DeleteWebhook)
}
