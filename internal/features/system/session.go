package system

import (
	"go-letters/internal/common/api"
	"go-letters/internal/config"
	"go-letters/internal/middleware"
	"go-letters/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

// Session describes the caller as the workflow sees them
type Session struct {
	UserID             string   `json:"user_id"`
	Roles              []string `json:"roles"`
	CanRequestRevision bool     `json:"can_request_revision"`
	IsAdmin            bool     `json:"is_admin"`
}

type SessionController struct {
	config *config.Config
}

func NewSessionController(cfg *config.Config) *SessionController {
	return &SessionController{config: cfg}
}

// Me godoc
// @Summary      Current user
// @Description  Returns the caller's identity and workflow capabilities
// @Tags         session
// @Produce      json
// @Success      200  {object}  Session
// @Router       /api/me [get]
func (ctrl *SessionController) Me(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	actor := workflow.NewActor(claims.UserID, claims.Roles, ctrl.config.RevisionRoles, ctrl.config.AdminRoles)
	return c.JSON(Session{
		UserID:             actor.UserID,
		Roles:              actor.Roles,
		CanRequestRevision: actor.CanRequestRevision,
		IsAdmin:            actor.IsAdmin,
	})
}

type SessionApi struct {
	controller *SessionController
	config     *config.Config
}

func NewSessionApi(controller *SessionController, cfg *config.Config) api.Route {
	return &SessionApi{controller: controller, config: cfg}
}

func (h *SessionApi) Setup(app *fiber.App) {
	app.Get("/api/me", middleware.AuthMiddleware(h.config.SkipAuth), h.controller.Me)
}
