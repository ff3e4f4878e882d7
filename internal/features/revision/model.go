package revision

import (
	"time"

	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Revision is an immutable audit entry tied to a document version
type Revision struct {
	ID               primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	DocumentID       primitive.ObjectID    `bson:"document_id" json:"document_id"`
	Version          int                   `bson:"version" json:"version"`
	Type             workflow.RevisionType `bson:"type" json:"type"`
	RevisionNotes    string                `bson:"revision_notes,omitempty" json:"revision_notes,omitempty"`
	RequestedChanges string                `bson:"requested_changes,omitempty" json:"requested_changes,omitempty"`
	CreatorID        string                `bson:"creator_id" json:"creator_id"`
	CreatedAt        time.Time             `bson:"created_at" json:"created_at"`
}
