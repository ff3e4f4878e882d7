package webhook

import (
	"go-letters/internal/common/response"
	"go-letters/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WebhookController struct {
	Service WebhookService
}

func NewWebhookController(service WebhookService) *WebhookController {
	return &WebhookController{
		Service: service,
	}
}

// CreateWebhook godoc
// @Summary Create webhook
// @Description Subscribe a URL to workflow events
// @Tags webhooks
// @Accept json
// @Produce json
// @Param webhook body Webhook true "Webhook Details"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} response.ErrorBody
// @Router /api/webhooks [post]
func (ctrl *WebhookController) CreateWebhook(c *fiber.Ctx) error {
	var webhook Webhook
	if err := c.BodyParser(&webhook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.CreateWebhook(c.UserContext(), &webhook, middleware.Claims(c).UserID); err != nil {
		return response.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Webhook created successfully",
		"data":    webhook,
	})
}

// ListWebhooks godoc
// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Success 200 {array} Webhook
// @Router /api/webhooks [get]
func (ctrl *WebhookController) ListWebhooks(c *fiber.Ctx) error {
	webhooks, err := ctrl.Service.ListWebhooks(c.UserContext())
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"data": webhooks,
	})
}

// GetWebhook godoc
// @Summary Get webhook
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} Webhook
// @Failure 404 {object} response.ErrorBody
// @Router /api/webhooks/{id} [get]
func (ctrl *WebhookController) GetWebhook(c *fiber.Ctx) error {
	webhook, err := ctrl.Service.GetWebhook(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(webhook)
}

// UpdateWebhook godoc
// @Summary Update webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param webhook body Webhook true "Webhook Details"
// @Success 200 {object} Webhook
// @Router /api/webhooks/{id} [put]
func (ctrl *WebhookController) UpdateWebhook(c *fiber.Ctx) error {
	var webhook Webhook
	if err := c.BodyParser(&webhook); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := ctrl.Service.UpdateWebhook(c.UserContext(), c.Params("id"), &webhook, middleware.Claims(c).UserID)
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(updated)
}

// DeleteWebhook godoc
// @Summary Delete webhook
// @Tags webhooks
// @Param id path string true "Webhook ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/webhooks/{id} [delete]
func (ctrl *WebhookController) DeleteWebhook(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteWebhook(c.UserContext(), c.Params("id"), middleware.Claims(c).UserID); err != nil {
		return response.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Webhook deleted successfully",
	})
}

// ListLogs godoc
// @Summary Recent deliveries of a webhook
// @Tags webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {array} WebhookLog
// @Router /api/webhooks/{id}/logs [get]
func (ctrl *WebhookController) ListLogs(c *fiber.Ctx) error {
	logs, err := ctrl.Service.ListLogs(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"data": logs,
	})
}
