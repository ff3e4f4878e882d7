package document

import (
	"fmt"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/common/response"
	"go-letters/internal/config"
	"go-letters/internal/middleware"
	"go-letters/internal/workflow"

	"github.com/gofiber/fiber/v2"
)

type DocumentController struct {
	Service DocumentService
	config  *config.Config
}

func NewDocumentController(service DocumentService, config *config.Config) *DocumentController {
	return &DocumentController{
		Service: service,
		config:  config,
	}
}

func (ctrl *DocumentController) actor(c *fiber.Ctx) workflow.Actor {
	claims := middleware.Claims(c)
	return workflow.NewActor(claims.UserID, claims.Roles, ctrl.config.RevisionRoles, ctrl.config.AdminRoles)
}

func transitionResult(c *fiber.Ctx, doc *workflow.Document, err error) error {
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(NewTransitionResponse(doc))
}

// CreateDocument godoc
// @Summary Create a draft
// @Tags documents
// @Accept json
// @Produce json
// @Param document body CreateInput true "Draft"
// @Success 201 {object} DocumentView
// @Failure 422 {object} response.ErrorBody
// @Router /api/documents [post]
func (ctrl *DocumentController) CreateDocument(c *fiber.Ctx) error {
	var input CreateInput
	if err := response.Bind(c, &input); err != nil {
		return response.Error(c, err)
	}

	doc, err := ctrl.Service.Create(c.UserContext(), ctrl.actor(c), input)
	if err != nil {
		return response.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(NewDocumentView(doc))
}

// ListDocuments godoc
// @Summary List documents
// @Description Non-admins only see documents they created or sign
// @Tags documents
// @Produce json
// @Param status query string false "Status"
// @Param kind query string false "letter or leave"
// @Param creator_id query string false "Creator"
// @Param signatory_id query string false "Signatory user"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /api/documents [get]
func (ctrl *DocumentController) ListDocuments(c *fiber.Ctx) error {
	filter := Filter{
		Status:      workflow.Status(c.Query("status")),
		Kind:        workflow.Kind(c.Query("kind")),
		CreatorID:   c.Query("creator_id"),
		SignatoryID: c.Query("signatory_id"),
	}
	actor := ctrl.actor(c)
	if !actor.IsAdmin {
		filter.Participant = actor.UserID
	}
	page := common_models.PageQuery{
		Page:  int64(c.QueryInt("page", 1)),
		Limit: int64(c.QueryInt("limit", 20)),
	}

	docs, total, err := ctrl.Service.List(c.UserContext(), filter, page)
	if err != nil {
		return response.Error(c, err)
	}

	views := make([]DocumentView, 0, len(docs))
	for i := range docs {
		views = append(views, NewDocumentView(&docs[i]))
	}
	return c.JSON(fiber.Map{
		"data":  views,
		"total": total,
		"page":  page.Page,
		"limit": page.Limit,
	})
}

// GetDocument godoc
// @Summary Get a document with its progress
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} DocumentView
// @Failure 404 {object} response.ErrorBody
// @Router /api/documents/{id} [get]
func (ctrl *DocumentController) GetDocument(c *fiber.Ctx) error {
	doc, err := ctrl.Service.Get(c.UserContext(), c.Params("id"), ctrl.actor(c))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(NewDocumentView(doc))
}

// UpdateDocument godoc
// @Summary Edit a draft or a document waiting for revision
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param document body UpdateInput true "Changes"
// @Success 200 {object} DocumentView
// @Failure 423 {object} response.ErrorBody
// @Router /api/documents/{id} [put]
func (ctrl *DocumentController) UpdateDocument(c *fiber.Ctx) error {
	var input UpdateInput
	if err := response.Bind(c, &input); err != nil {
		return response.Error(c, err)
	}

	doc, err := ctrl.Service.Update(c.UserContext(), c.Params("id"), ctrl.actor(c), input)
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(NewDocumentView(doc))
}

// DeleteDocument godoc
// @Summary Delete a document nobody has signed
// @Tags documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 423 {object} response.ErrorBody
// @Router /api/documents/{id} [delete]
func (ctrl *DocumentController) DeleteDocument(c *fiber.Ctx) error {
	if err := ctrl.Service.Delete(c.UserContext(), c.Params("id"), ctrl.actor(c)); err != nil {
		return response.Error(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AssignSlot godoc
// @Summary Assign a signature slot to a user
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param slotId path string true "Slot ID"
// @Param assignment body AssignInput true "Assignee"
// @Success 200 {object} DocumentView
// @Failure 423 {object} response.ErrorBody
// @Router /api/documents/{id}/slots/{slotId} [put]
func (ctrl *DocumentController) AssignSlot(c *fiber.Ctx) error {
	var input AssignInput
	if err := response.Bind(c, &input); err != nil {
		return response.Error(c, err)
	}

	doc, err := ctrl.Service.Assign(c.UserContext(), c.Params("id"), c.Params("slotId"), input.UserID, ctrl.actor(c))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(NewDocumentView(doc))
}

// Submit godoc
// @Summary Submit a draft for signatures
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} TransitionResponse
// @Failure 422 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /api/documents/{id}/submit [post]
func (ctrl *DocumentController) Submit(c *fiber.Ctx) error {
	doc, err := ctrl.Service.Submit(c.UserContext(), c.Params("id"), ctrl.actor(c))
	return transitionResult(c, doc, err)
}

// Sign godoc
// @Summary Approve as a signatory
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param signatoryId path string true "Signatory ID"
// @Param body body ActInput false "Notes"
// @Success 200 {object} TransitionResponse
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /api/documents/{id}/signatories/{signatoryId}/sign [post]
func (ctrl *DocumentController) Sign(c *fiber.Ctx) error {
	var input ActInput
	if len(c.Body()) > 0 {
		if err := response.Bind(c, &input); err != nil {
			return response.Error(c, err)
		}
	}
	doc, err := ctrl.Service.Sign(c.UserContext(), c.Params("id"), c.Params("signatoryId"), ctrl.actor(c), input.Notes)
	return transitionResult(c, doc, err)
}

// Reject godoc
// @Summary Reject as a signatory
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param signatoryId path string true "Signatory ID"
// @Param body body ActInput true "Reason"
// @Success 200 {object} TransitionResponse
// @Failure 409 {object} response.ErrorBody
// @Router /api/documents/{id}/signatories/{signatoryId}/reject [post]
func (ctrl *DocumentController) Reject(c *fiber.Ctx) error {
	var input ActInput
	if err := response.Bind(c, &input); err != nil {
		return response.Error(c, err)
	}
	doc, err := ctrl.Service.Reject(c.UserContext(), c.Params("id"), c.Params("signatoryId"), ctrl.actor(c), input.Notes)
	return transitionResult(c, doc, err)
}

// Revoke godoc
// @Summary Revoke an approval (administrators)
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param signatoryId path string true "Signatory ID"
// @Param body body RevokeInput true "Reason"
// @Success 200 {object} TransitionResponse
// @Router /api/documents/{id}/signatories/{signatoryId}/revoke [post]
func (ctrl *DocumentController) Revoke(c *fiber.Ctx) error {
	var input RevokeInput
	if err := response.Bind(c, &input); err != nil {
		return response.Error(c, err)
	}
	doc, err := ctrl.Service.Revoke(c.UserContext(), c.Params("id"), c.Params("signatoryId"), ctrl.actor(c), input.Reason)
	return transitionResult(c, doc, err)
}

// RequestRevision godoc
// @Summary Send the document back to its creator
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param body body RevisionRequestInput true "Revision request"
// @Success 200 {object} TransitionResponse
// @Router /api/documents/{id}/request-revision [post]
func (ctrl *DocumentController) RequestRevision(c *fiber.Ctx) error {
	var input RevisionRequestInput
	if err := response.Bind(c, &input); err != nil {
		return response.Error(c, err)
	}
	doc, err := ctrl.Service.RequestRevision(c.UserContext(), c.Params("id"), ctrl.actor(c), input.Notes, input.RequestedChanges)
	return transitionResult(c, doc, err)
}

// SubmitRevision godoc
// @Summary Resubmit a revised document
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param body body SubmitRevisionInput true "Revision"
// @Success 200 {object} TransitionResponse
// @Router /api/documents/{id}/submit-revision [post]
func (ctrl *DocumentController) SubmitRevision(c *fiber.Ctx) error {
	var input SubmitRevisionInput
	if len(c.Body()) > 0 {
		if err := response.Bind(c, &input); err != nil {
			return response.Error(c, err)
		}
	}
	doc, err := ctrl.Service.SubmitRevision(c.UserContext(), c.Params("id"), ctrl.actor(c), input.Notes, input.VariableValues)
	return transitionResult(c, doc, err)
}

// GetProgress godoc
// @Summary Signature progress
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} workflow.Progress
// @Router /api/documents/{id}/progress [get]
func (ctrl *DocumentController) GetProgress(c *fiber.Ctx) error {
	progress, err := ctrl.Service.Progress(c.UserContext(), c.Params("id"), ctrl.actor(c))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(progress)
}

// GetRevisions godoc
// @Summary Revision history, oldest first
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {array} revision.Revision
// @Router /api/documents/{id}/revisions [get]
func (ctrl *DocumentController) GetRevisions(c *fiber.Ctx) error {
	history, err := ctrl.Service.History(c.UserContext(), c.Params("id"), ctrl.actor(c))
	if err != nil {
		return response.Error(c, err)
	}
	return c.JSON(history)
}

// ExportRegister godoc
// @Summary Export the register of certified documents
// @Tags documents
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string false "Start date (YYYY-MM-DD), defaults to January 1st"
// @Param to query string false "End date (YYYY-MM-DD, exclusive), defaults to tomorrow"
// @Success 200 {file} file
// @Router /api/documents/register/export [get]
func (ctrl *DocumentController) ExportRegister(c *fiber.Ctx) error {
	now := time.Now().UTC()
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := now.Truncate(24 * time.Hour).Add(24 * time.Hour)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.DateOnly, v); err != nil {
			return response.Error(c, workflow.NewValidationError("invalid date", "from"))
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.DateOnly, v); err != nil {
			return response.Error(c, workflow.NewValidationError("invalid date", "to"))
		}
	}
	if !from.Before(to) {
		return response.Error(c, workflow.NewValidationError("from must be before to", "from", "to"))
	}

	data, err := ctrl.Service.ExportRegister(c.UserContext(), from, to)
	if err != nil {
		return response.Error(c, err)
	}

	filename := registerFilename(from, to)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	return c.Send(data)
}
