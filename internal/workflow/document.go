package workflow

import (
	"maps"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind distinguishes the document families that share the signing workflow
type Kind string

const (
	KindLetter Kind = "letter" // outgoing letter
	KindLeave  Kind = "leave"  // leave / early-leave request
)

func (k Kind) Valid() bool {
	return k == KindLetter || k == KindLeave
}

// Status is the aggregate document status. It is never trusted as stored;
// see Document.Recompute.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingApproval   Status = "pending_approval"
	StatusPartiallySigned   Status = "partially_signed"
	StatusFullySigned       Status = "fully_signed"
	StatusRejected          Status = "rejected"
	StatusRevisionRequested Status = "revision_requested"
)

func (s Status) Terminal() bool {
	return s == StatusFullySigned || s == StatusRejected
}

// InReview reports whether signatories may currently act on the document.
func (s Status) InReview() bool {
	return s == StatusPendingApproval || s == StatusPartiallySigned
}

// Phase is the part of the lifecycle that cannot be read off the signatory set.
type Phase string

const (
	PhaseDraft    Phase = "draft"
	PhaseReview   Phase = "review"
	PhaseRevision Phase = "revision"
)

type SignatoryStatus string

const (
	SignatoryPending  SignatoryStatus = "pending"
	SignatoryApproved SignatoryStatus = "approved"
	SignatoryRejected SignatoryStatus = "rejected"
)

// SigningPolicy decides whether sign_order gates who may act.
type SigningPolicy string

const (
	PolicyParallel   SigningPolicy = "parallel"
	PolicySequential SigningPolicy = "sequential"
)

func (p SigningPolicy) Valid() bool {
	return p == PolicyParallel || p == PolicySequential
}

// Slot is a named position in a template's signature layout
type Slot struct {
	ID     string `bson:"id" json:"id" validate:"required"`
	Label  string `bson:"label" json:"label"`
	Column int    `bson:"column" json:"column"`
	Order  int    `bson:"order" json:"order"`
}

// Variable describes a template field the creator fills in
type Variable struct {
	Key      string `bson:"key" json:"key" validate:"required"`
	Type     string `bson:"type" json:"type"`
	Required bool   `bson:"required" json:"required"`
}

// TemplateSnapshot is copied by value into the document at submission so
// later template edits never touch historical signatories.
type TemplateSnapshot struct {
	TemplateID    string        `bson:"template_id" json:"template_id"`
	Name          string        `bson:"name" json:"name"`
	Slots         []Slot        `bson:"slots" json:"slots"`
	Variables     []Variable    `bson:"variables" json:"variables"`
	NumberFormat  string        `bson:"number_format,omitempty" json:"number_format,omitempty"`
	SigningPolicy SigningPolicy `bson:"signing_policy,omitempty" json:"signing_policy,omitempty"`
}

type Signatory struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	SlotID    string             `bson:"slot_id" json:"slot_id"`
	Label     string             `bson:"label" json:"label"`
	Column    int                `bson:"column" json:"column"`
	UserID    string             `bson:"user_id" json:"user_id"`
	SignOrder int                `bson:"sign_order" json:"sign_order"`
	Status    SignatoryStatus    `bson:"status" json:"status"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	SignedAt  *time.Time         `bson:"signed_at,omitempty" json:"signed_at,omitempty"`
	SignedSeq int                `bson:"signed_seq,omitempty" json:"signed_seq,omitempty"`
}

type Certificate struct {
	Number           string    `bson:"number" json:"number"`
	VerificationCode string    `bson:"verification_code" json:"verification_code"`
	VerificationURL  string    `bson:"verification_url" json:"verification_url"`
	Fingerprint      string    `bson:"fingerprint" json:"fingerprint"`
	IssuedAt         time.Time `bson:"issued_at" json:"issued_at"`
}

// CertificateClaim marks a certificate issuance in progress. Only the holder
// of Token draws a sequence number; once drawn, Seq and IssuedAt stay with
// the document until the certificate is stored, so a retry reuses them.
type CertificateClaim struct {
	Token     string    `bson:"token"`
	ClaimedAt time.Time `bson:"claimed_at"`
	Seq       int64     `bson:"seq,omitempty"`
	IssuedAt  time.Time `bson:"issued_at,omitempty"`
}

// AdminEntry records an administrative override such as a revoke.
type AdminEntry struct {
	Action         string          `bson:"action" json:"action"`
	ActorID        string          `bson:"actor_id" json:"actor_id"`
	SignatoryID    string          `bson:"signatory_id" json:"signatory_id"`
	PreviousStatus SignatoryStatus `bson:"previous_status" json:"previous_status"`
	Reason         string          `bson:"reason" json:"reason"`
	At             time.Time       `bson:"at" json:"at"`
}

type Document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind           Kind               `bson:"kind" json:"kind"`
	Title          string             `bson:"title" json:"title"`
	CreatorID      string             `bson:"creator_id" json:"creator_id"`
	TemplateID     string             `bson:"template_id" json:"template_id"`
	CurrentVersion int                `bson:"current_version" json:"current_version"`
	Status         Status             `bson:"status" json:"status"`
	Phase          Phase              `bson:"phase" json:"phase"`
	SigningPolicy  SigningPolicy      `bson:"signing_policy,omitempty" json:"signing_policy,omitempty"`
	VariableValues map[string]any     `bson:"variable_values" json:"variable_values"`
	Assignments    map[string]string  `bson:"assignments" json:"assignments"`
	Template       *TemplateSnapshot  `bson:"template,omitempty" json:"template,omitempty"`
	Signatories    []Signatory        `bson:"signatories" json:"signatories"`
	EverSigned     bool               `bson:"ever_signed" json:"ever_signed"`
	Certificate    *Certificate       `bson:"certificate,omitempty" json:"certificate,omitempty"`
	CertClaim      *CertificateClaim  `bson:"certificate_claim,omitempty" json:"-"`
	AdminLog       []AdminEntry       `bson:"admin_log,omitempty" json:"admin_log,omitempty"`
	LockVersion    int64              `bson:"lock_version" json:"-"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
	SubmittedAt    *time.Time         `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
}

// NewDraft returns a document owned by creatorID in the draft state.
func NewDraft(kind Kind, title, creatorID, templateID string, values map[string]any, now time.Time) *Document {
	if values == nil {
		values = map[string]any{}
	}
	doc := &Document{
		ID:             primitive.NewObjectID(),
		Kind:           kind,
		Title:          title,
		CreatorID:      creatorID,
		TemplateID:     templateID,
		CurrentVersion: 1,
		Phase:          PhaseDraft,
		VariableValues: values,
		Assignments:    map[string]string{},
		Signatories:    []Signatory{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	doc.Recompute()
	return doc
}

// Recompute re-derives Status from the phase and the signatory set.
func (d *Document) Recompute() Status {
	switch d.Phase {
	case PhaseDraft:
		d.Status = StatusDraft
	case PhaseRevision:
		d.Status = StatusRevisionRequested
	default:
		d.Status = DeriveStatus(d.Signatories)
	}
	return d.Status
}

func (d *Document) Progress() Progress {
	return ProgressOf(d.Signatories)
}

func (d *Document) signatory(id primitive.ObjectID) (int, bool) {
	for i := range d.Signatories {
		if d.Signatories[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// SignatoryFor returns the pending signatory slot held by userID, if any.
func (d *Document) SignatoryFor(userID string) (*Signatory, bool) {
	for i := range d.Signatories {
		if d.Signatories[i].UserID == userID && d.Signatories[i].Status == SignatoryPending {
			return &d.Signatories[i], true
		}
	}
	return nil, false
}

// Actionable lists the pending signatories allowed to act right now under
// the document's signing policy.
func (d *Document) Actionable() []Signatory {
	if !d.Status.InReview() {
		return nil
	}
	var out []Signatory
	for _, s := range d.Signatories {
		if s.Status == SignatoryPending && d.orderSatisfied(s) {
			out = append(out, s)
		}
	}
	return out
}

func (d *Document) orderSatisfied(s Signatory) bool {
	if d.SigningPolicy != PolicySequential {
		return true
	}
	for _, other := range d.Signatories {
		if other.SignOrder < s.SignOrder && other.Status != SignatoryApproved {
			return false
		}
	}
	return true
}

// Clone returns a deep copy; transitions work on clones so a failed guard
// leaves the caller's document untouched.
func (d *Document) Clone() *Document {
	c := *d
	c.VariableValues = maps.Clone(d.VariableValues)
	c.Assignments = maps.Clone(d.Assignments)
	c.Signatories = slices.Clone(d.Signatories)
	for i := range c.Signatories {
		if t := c.Signatories[i].SignedAt; t != nil {
			tt := *t
			c.Signatories[i].SignedAt = &tt
		}
	}
	c.AdminLog = slices.Clone(d.AdminLog)
	if d.Template != nil {
		t := *d.Template
		t.Slots = slices.Clone(d.Template.Slots)
		t.Variables = slices.Clone(d.Template.Variables)
		c.Template = &t
	}
	if d.Certificate != nil {
		cert := *d.Certificate
		c.Certificate = &cert
	}
	if d.CertClaim != nil {
		claim := *d.CertClaim
		c.CertClaim = &claim
	}
	if d.SubmittedAt != nil {
		t := *d.SubmittedAt
		c.SubmittedAt = &t
	}
	return &c
}

// VisibleTo reports whether actor may read the document: administrators,
// the creator, and anyone assigned or materialized as a signatory.
func (d *Document) VisibleTo(actor Actor) bool {
	if actor.IsAdmin || actor.UserID == d.CreatorID {
		return true
	}
	for _, s := range d.Signatories {
		if s.UserID == actor.UserID {
			return true
		}
	}
	for _, userID := range d.Assignments {
		if userID == actor.UserID {
			return true
		}
	}
	return false
}

// Participants returns the creator and every signatory user without duplicates.
func (d *Document) Participants() []string {
	ids := []string{d.CreatorID}
	for _, s := range d.Signatories {
		ids = append(ids, s.UserID)
	}
	return uniqueUsers(ids)
}

func uniqueUsers(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
