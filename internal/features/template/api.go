package template

import (
	"go-letters/internal/common/api"
	"go-letters/internal/config"
	"go-letters/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TemplateApi struct {
	controller *TemplateController
	config     *config.Config
}

func NewTemplateApi(controller *TemplateController, config *config.Config) api.Route {
	return &TemplateApi{
		controller: controller,
		config:     config,
	}
}

func (h *TemplateApi) Setup(app *fiber.App) {
	templates := app.Group("/api/templates", middleware.AuthMiddleware(h.config.SkipAuth))

	templates.Get("/", h.controller.ListTemplates)
	templates.Get("/:id", h.controller.GetTemplate)

	admin := middleware.RequireRole(h.config.AdminRoles...)
	templates.Post("/", admin, h.controller.CreateTemplate)
	templates.Put("/:id", admin, h.controller.UpdateTemplate)
	templates.Delete("/:id", admin, h.controller.DeleteTemplate)
}
