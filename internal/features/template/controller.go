package template

import (
	"go-letters/internal/common/response"
	"go-letters/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TemplateController struct {
	Service TemplateService
}

func NewTemplateController(service TemplateService) *TemplateController {
	return &TemplateController{Service: service}
}

// CreateTemplate godoc
// @Summary Create a document template
// @Tags templates
// @Accept json
// @Produce json
// @Param template body Template true "Template"
// @Success 201 {object} Template
// @Failure 422 {object} response.ErrorBody
// @Router /api/templates [post]
func (ctrl *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	var input Template
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.CreateTemplate(c.UserContext(), &input, middleware.Claims(c).UserID); err != nil {
		return response.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(input)
}

// ListTemplates godoc
// @Summary List templates
// @Tags templates
// @Produce json
// @Param kind query string false "letter or leave"
// @Param active query bool false "Only active templates"
// @Success 200 {array} Template
// @Router /api/templates [get]
func (ctrl *TemplateController) ListTemplates(c *fiber.Ctx) error {
	templates, err := ctrl.Service.ListTemplates(c.UserContext(), c.Query("kind"), c.QueryBool("active"))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(templates)
}

// GetTemplate godoc
// @Summary Get a template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} Template
// @Failure 404 {object} response.ErrorBody
// @Router /api/templates/{id} [get]
func (ctrl *TemplateController) GetTemplate(c *fiber.Ctx) error {
	tpl, err := ctrl.Service.GetTemplate(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(tpl)
}

// UpdateTemplate godoc
// @Summary Replace a template
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param template body Template true "Template"
// @Success 200 {object} Template
// @Router /api/templates/{id} [put]
func (ctrl *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	var input Template
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	tpl, err := ctrl.Service.UpdateTemplate(c.UserContext(), c.Params("id"), &input, middleware.Claims(c).UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(tpl)
}

// DeleteTemplate godoc
// @Summary Delete a template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 204
// @Router /api/templates/{id} [delete]
func (ctrl *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteTemplate(c.UserContext(), c.Params("id"), middleware.Claims(c).UserID); err != nil {
		return response.Error(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
