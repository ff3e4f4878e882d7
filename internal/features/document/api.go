package document

import (
	"go-letters/internal/common/api"
	"go-letters/internal/config"
	"go-letters/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DocumentApi struct {
	controller *DocumentController
	config     *config.Config
}

func NewDocumentApi(controller *DocumentController, config *config.Config) api.Route {
	return &DocumentApi{
		controller: controller,
		config:     config,
	}
}

func (h *DocumentApi) Setup(app *fiber.App) {
	docs := app.Group("/api/documents", middleware.AuthMiddleware(h.config.SkipAuth))

	// Static paths first so they are not captured by /:id
	docs.Get("/register/export", middleware.RequireRole(h.config.AdminRoles...), h.controller.ExportRegister)

	docs.Post("/", h.controller.CreateDocument)
	docs.Get("/", h.controller.ListDocuments)
	docs.Get("/:id", h.controller.GetDocument)
	docs.Put("/:id", h.controller.UpdateDocument)
	docs.Delete("/:id", h.controller.DeleteDocument)

	docs.Put("/:id/slots/:slotId", h.controller.AssignSlot)
	docs.Post("/:id/submit", h.controller.Submit)
	docs.Post("/:id/signatories/:signatoryId/sign", h.controller.Sign)
	docs.Post("/:id/signatories/:signatoryId/reject", h.controller.Reject)
	docs.Post("/:id/signatories/:signatoryId/revoke", h.controller.Revoke)
	docs.Post("/:id/request-revision", h.controller.RequestRevision)
	docs.Post("/:id/submit-revision", h.controller.SubmitRevision)

	docs.Get("/:id/progress", h.controller.GetProgress)
	docs.Get("/:id/revisions", h.controller.GetRevisions)
}
