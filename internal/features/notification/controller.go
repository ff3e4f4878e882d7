package notification

import (
	"go-letters/internal/common/response"
	"go-letters/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type NotificationController struct {
	service NotificationService
	hub     *Hub
	logger  *zap.Logger
}

func NewNotificationController(service NotificationService, hub *Hub, logger *zap.Logger) *NotificationController {
	return &NotificationController{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// List godoc
// @Summary List my notifications
// @Tags notifications
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /api/notifications [get]
func (c *NotificationController) List(ctx *fiber.Ctx) error {
	userID := middleware.Claims(ctx).UserID
	page := int64(ctx.QueryInt("page", 1))
	limit := int64(ctx.QueryInt("limit", 10))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	notifications, total, err := c.service.GetUserNotifications(ctx.UserContext(), userID, page, limit)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"data":  notifications,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetUnreadCount godoc
// @Summary Count my unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /api/notifications/unread-count [get]
func (c *NotificationController) GetUnreadCount(ctx *fiber.Ctx) error {
	count, err := c.service.GetUnreadCount(ctx.UserContext(), middleware.Claims(ctx).UserID)
	if err != nil {
		return response.Error(ctx, err)
	}

	return ctx.JSON(fiber.Map{"count": count})
}

// MarkAsRead godoc
// @Summary Mark a notification as read
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]string
// @Router /api/notifications/{id}/read [put]
func (c *NotificationController) MarkAsRead(ctx *fiber.Ctx) error {
	if err := c.service.MarkAsRead(ctx.UserContext(), ctx.Params("id"), middleware.Claims(ctx).UserID); err != nil {
		return response.Error(ctx, err)
	}

	return ctx.JSON(fiber.Map{"status": "success"})
}

// MarkAllAsRead godoc
// @Summary Mark all my notifications as read
// @Tags notifications
// @Success 200 {object} map[string]string
// @Router /api/notifications/mark-all-read [post]
func (c *NotificationController) MarkAllAsRead(ctx *fiber.Ctx) error {
	if err := c.service.MarkAllAsRead(ctx.UserContext(), middleware.Claims(ctx).UserID); err != nil {
		return response.Error(ctx, err)
	}

	return ctx.JSON(fiber.Map{"status": "success"})
}

// Upgrade only lets authenticated websocket handshakes through.
func (c *NotificationController) Upgrade(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	claims := middleware.Claims(ctx)
	if claims == nil {
		return fiber.ErrUnauthorized
	}
	ctx.Locals("ws_user_id", claims.UserID)
	return ctx.Next()
}

// HandleWebSocket streams the user's new notifications until the peer hangs up.
func (c *NotificationController) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("ws_user_id").(string)
	client := c.hub.Register(userID)
	defer c.hub.Unregister(client)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", zap.String("user_id", userID), zap.Error(err))
				return
			}
		case <-closed:
			return
		}
	}
}
