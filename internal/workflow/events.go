package workflow

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventKind string

const (
	EventSubmitted         EventKind = "document.submitted"
	EventAwaitingSignature EventKind = "document.awaiting_signature"
	EventSigned            EventKind = "document.signed"
	EventRejected          EventKind = "document.rejected"
	EventFullySigned       EventKind = "document.fully_signed"
	EventRevisionRequested EventKind = "document.revision_requested"
	EventRevisionSubmitted EventKind = "document.revision_submitted"
	EventSignatoryRevoked  EventKind = "document.signatory_revoked"
)

// EventKinds lists every event a transition can emit.
func EventKinds() []EventKind {
	return []EventKind{
		EventSubmitted, EventAwaitingSignature, EventSigned, EventRejected,
		EventFullySigned, EventRevisionRequested, EventRevisionSubmitted, EventSignatoryRevoked,
	}
}

// Event is a post-commit side effect request. Transitions return them; the
// caller dispatches them only after the write has been committed.
type Event struct {
	Kind       EventKind          `json:"kind"`
	DocumentID primitive.ObjectID `json:"document_id"`
	Version    int                `json:"version"`
	ActorID    string             `json:"actor_id"`
	Recipients []string           `json:"recipients"`
	Title      string             `json:"title"`
	Message    string             `json:"message"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

type RevisionType string

const (
	RevisionInitial   RevisionType = "initial"
	RevisionRequest   RevisionType = "revision_request"
	RevisionSubmitted RevisionType = "revision_submitted"
)

// RevisionEntry is a revision log line produced by a transition, to be
// recorded once the transition commits.
type RevisionEntry struct {
	Version          int
	Type             RevisionType
	Notes            string
	RequestedChanges string
	CreatorID        string
}

// Outcome is the result of a successful transition.
type Outcome struct {
	Document  *Document
	Previous  Status
	Events    []Event
	Revisions []RevisionEntry
}

func (o *Outcome) emit(kind EventKind, actorID string, recipients []string, title, message string) {
	o.Events = append(o.Events, Event{
		Kind:       kind,
		DocumentID: o.Document.ID,
		Version:    o.Document.CurrentVersion,
		ActorID:    actorID,
		Recipients: uniqueUsers(recipients),
		Title:      title,
		Message:    message,
		Metadata: map[string]any{
			"document_id": o.Document.ID.Hex(),
			"kind":        string(o.Document.Kind),
			"status":      string(o.Document.Status),
		},
	})
}
