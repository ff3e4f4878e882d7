package template

import (
	"time"

	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template describes the signature layout and variables of a document kind
type Template struct {
	ID            primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Name          string                 `bson:"name" json:"name" validate:"required"`
	Kind          workflow.Kind          `bson:"kind" json:"kind" validate:"required,oneof=letter leave"`
	Slots         []workflow.Slot        `bson:"slots" json:"slots" validate:"dive"`
	Variables     []workflow.Variable    `bson:"variables" json:"variables" validate:"dive"`
	NumberFormat  string                 `bson:"number_format,omitempty" json:"number_format,omitempty"`
	SigningPolicy workflow.SigningPolicy `bson:"signing_policy,omitempty" json:"signing_policy,omitempty" validate:"omitempty,oneof=parallel sequential"`
	Active        bool                   `bson:"active" json:"active"`
	CreatedBy     string                 `bson:"created_by" json:"created_by"`
	CreatedAt     time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time              `bson:"updated_at" json:"updated_at"`
}

// Snapshot copies the parts of the template a submitted document keeps.
func (t *Template) Snapshot() workflow.TemplateSnapshot {
	slots := make([]workflow.Slot, len(t.Slots))
	copy(slots, t.Slots)
	vars := make([]workflow.Variable, len(t.Variables))
	copy(vars, t.Variables)
	return workflow.TemplateSnapshot{
		TemplateID:    t.ID.Hex(),
		Name:          t.Name,
		Slots:         slots,
		Variables:     vars,
		NumberFormat:  t.NumberFormat,
		SigningPolicy: t.SigningPolicy,
	}
}
