package document

import (
	"go-letters/internal/workflow"
)

type CreateInput struct {
	Kind           workflow.Kind  `json:"kind" validate:"required,oneof=letter leave"`
	Title          string         `json:"title" validate:"required,max=300"`
	TemplateID     string         `json:"template_id" validate:"required"`
	VariableValues map[string]any `json:"variable_values"`
}

type UpdateInput struct {
	Title          string         `json:"title" validate:"max=300"`
	VariableValues map[string]any `json:"variable_values"`
}

type AssignInput struct {
	UserID string `json:"user_id" validate:"required"`
}

type ActInput struct {
	Notes string `json:"notes"`
}

type RevokeInput struct {
	Reason string `json:"reason" validate:"required"`
}

type RevisionRequestInput struct {
	Notes            string `json:"notes" validate:"required"`
	RequestedChanges string `json:"requested_changes"`
}

type SubmitRevisionInput struct {
	Notes          string         `json:"notes"`
	VariableValues map[string]any `json:"variable_values"`
}

// TransitionResponse is returned by every workflow action
type TransitionResponse struct {
	ID             string            `json:"id"`
	Status         workflow.Status   `json:"status"`
	Progress       workflow.Progress `json:"progress"`
	CurrentVersion int               `json:"current_version"`
}

// DocumentView is a document with its derived progress
type DocumentView struct {
	*workflow.Document
	Progress   workflow.Progress    `json:"progress"`
	Actionable []workflow.Signatory `json:"actionable"`
}

func NewTransitionResponse(doc *workflow.Document) TransitionResponse {
	return TransitionResponse{
		ID:             doc.ID.Hex(),
		Status:         doc.Status,
		Progress:       doc.Progress(),
		CurrentVersion: doc.CurrentVersion,
	}
}

func NewDocumentView(doc *workflow.Document) DocumentView {
	actionable := doc.Actionable()
	if actionable == nil {
		actionable = []workflow.Signatory{}
	}
	return DocumentView{Document: doc, Progress: doc.Progress(), Actionable: actionable}
}
