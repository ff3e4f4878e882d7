package workflow

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Assign binds slotID to userID. Only the creator may assign, and only while
// the document is still a draft.
func Assign(doc *Document, actor Actor, slots []Slot, slotID, userID string, now time.Time) (*Outcome, error) {
	if doc.Status != StatusDraft {
		return nil, &ImmutableError{Status: doc.Status}
	}
	if actor.UserID != doc.CreatorID {
		return nil, forbidden("only the creator can assign signatories")
	}
	if userID == "" {
		return nil, invalid("user is required", "user_id")
	}
	if !slices.ContainsFunc(slots, func(s Slot) bool { return s.ID == slotID }) {
		return nil, invalid("unknown slot", "slots."+slotID)
	}

	next := doc.Clone()
	next.Assignments[slotID] = userID
	next.UpdatedAt = now
	next.Recompute()
	return &Outcome{Document: next, Previous: doc.Status}, nil
}

// UpdateDraft replaces template-bound fields. Allowed for the creator while
// the document is a draft or waiting for a revision.
func UpdateDraft(doc *Document, actor Actor, title string, values map[string]any, now time.Time) (*Outcome, error) {
	if doc.Status != StatusDraft && doc.Status != StatusRevisionRequested {
		return nil, &ImmutableError{Status: doc.Status}
	}
	if actor.UserID != doc.CreatorID {
		return nil, forbidden("only the creator can edit the document")
	}

	next := doc.Clone()
	if title != "" {
		next.Title = title
	}
	if values != nil {
		next.VariableValues = values
	}
	next.UpdatedAt = now
	next.Recompute()
	return &Outcome{Document: next, Previous: doc.Status}, nil
}

// Submit materializes signatories from the template snapshot and moves the
// draft into review.
func Submit(doc *Document, actor Actor, tpl TemplateSnapshot, defaultPolicy SigningPolicy, now time.Time) (*Outcome, error) {
	if doc.Status != StatusDraft {
		return nil, conflict("cannot submit a document that is %s", doc.Status)
	}
	if actor.UserID != doc.CreatorID {
		return nil, forbidden("only the creator can submit the document")
	}

	var missing []string
	if len(tpl.Slots) == 0 {
		missing = append(missing, "signatories")
	}
	for _, slot := range tpl.Slots {
		if doc.Assignments[slot.ID] == "" {
			missing = append(missing, "slots."+slot.ID)
		}
	}
	missing = append(missing, missingVariables(tpl.Variables, doc.VariableValues)...)
	if len(missing) > 0 {
		return nil, invalid("document is incomplete", missing...)
	}

	next := doc.Clone()
	snapshot := tpl
	snapshot.Slots = slices.Clone(tpl.Slots)
	snapshot.Variables = slices.Clone(tpl.Variables)
	next.Template = &snapshot
	next.Signatories = materialize(snapshot.Slots, next.Assignments)
	next.SigningPolicy = choosePolicy(tpl.SigningPolicy, defaultPolicy)
	next.Phase = PhaseReview
	next.SubmittedAt = &now
	next.UpdatedAt = now
	next.Recompute()

	out := &Outcome{Document: next, Previous: doc.Status}
	out.Revisions = append(out.Revisions, RevisionEntry{
		Version:   next.CurrentVersion,
		Type:      RevisionInitial,
		Notes:     "Initial submission",
		CreatorID: actor.UserID,
	})
	out.emit(EventSubmitted, actor.UserID, userIDs(next.Actionable()),
		"Signature requested",
		fmt.Sprintf("%q is waiting for your signature", next.Title))
	return out, nil
}

// Act records a signatory's approval or rejection.
func Act(doc *Document, signatoryID primitive.ObjectID, action Action, actor Actor, notes string, now time.Time) (*Outcome, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, invalid("unsupported action", "action")
	}
	idx, ok := doc.signatory(signatoryID)
	if !ok {
		return nil, NewNotFoundError("signatory", signatoryID.Hex())
	}
	current := doc.Signatories[idx]
	if actor.UserID != current.UserID {
		return nil, forbidden("signatory slot %s belongs to another user", current.SlotID)
	}
	if current.Status != SignatoryPending {
		return nil, &AlreadyDecidedError{SignatoryID: signatoryID.Hex(), Status: current.Status}
	}
	if !doc.Status.InReview() {
		return nil, conflict("document is %s; no further signatures are accepted", doc.Status)
	}
	if !doc.orderSatisfied(current) {
		return nil, conflict("signatories before order %d have not signed yet", current.SignOrder)
	}
	if action == ActionReject && notes == "" {
		return nil, invalid("a reason is required to reject", "notes")
	}

	next := doc.Clone()
	sig := &next.Signatories[idx]
	sig.Notes = notes
	sig.SignedAt = &now
	if action == ActionApprove {
		sig.Status = SignatoryApproved
		next.EverSigned = true
	} else {
		sig.Status = SignatoryRejected
	}
	resequence(next.Signatories)
	next.UpdatedAt = now
	next.Recompute()

	out := &Outcome{Document: next, Previous: doc.Status}
	switch next.Status {
	case StatusRejected:
		out.emit(EventRejected, actor.UserID, []string{next.CreatorID},
			"Document rejected",
			fmt.Sprintf("%q was rejected at %s: %s", next.Title, sig.Label, notes))
	case StatusFullySigned:
		out.emit(EventSigned, actor.UserID, []string{next.CreatorID},
			"Document signed",
			fmt.Sprintf("%q was signed at %s", next.Title, sig.Label))
		out.emit(EventFullySigned, actor.UserID, next.Participants(),
			"Document fully signed",
			fmt.Sprintf("%q has collected every signature", next.Title))
	default:
		out.emit(EventSigned, actor.UserID, []string{next.CreatorID},
			"Document signed",
			fmt.Sprintf("%q was signed at %s", next.Title, sig.Label))
		if next.SigningPolicy == PolicySequential {
			if newly := newlyActionable(doc, next); len(newly) > 0 {
				out.emit(EventAwaitingSignature, actor.UserID, newly,
					"Signature requested",
					fmt.Sprintf("%q is waiting for your signature", next.Title))
			}
		}
	}
	return out, nil
}

// RequestRevision sends the document back to its creator.
func RequestRevision(doc *Document, actor Actor, notes, requestedChanges string, now time.Time) (*Outcome, error) {
	if !doc.Status.InReview() {
		return nil, conflict("cannot request a revision on a document that is %s", doc.Status)
	}
	if !actor.CanRequestRevision {
		return nil, forbidden("actor is not allowed to request revisions")
	}
	if _, ok := doc.SignatoryFor(actor.UserID); !ok {
		return nil, forbidden("only a pending signatory can request a revision")
	}
	if notes == "" {
		return nil, invalid("revision notes are required", "notes")
	}

	next := doc.Clone()
	next.Phase = PhaseRevision
	next.UpdatedAt = now
	next.Recompute()

	out := &Outcome{Document: next, Previous: doc.Status}
	out.Revisions = append(out.Revisions, RevisionEntry{
		Version:          next.CurrentVersion,
		Type:             RevisionRequest,
		Notes:            notes,
		RequestedChanges: requestedChanges,
		CreatorID:        actor.UserID,
	})
	out.emit(EventRevisionRequested, actor.UserID, []string{next.CreatorID},
		"Revision requested",
		fmt.Sprintf("A revision of %q was requested: %s", next.Title, notes))
	return out, nil
}

// SubmitRevision bumps the version and restarts the signing round.
func SubmitRevision(doc *Document, actor Actor, notes string, values map[string]any, now time.Time) (*Outcome, error) {
	if doc.Status != StatusRevisionRequested {
		return nil, conflict("cannot submit a revision on a document that is %s", doc.Status)
	}
	if actor.UserID != doc.CreatorID {
		return nil, forbidden("only the creator can submit a revision")
	}

	next := doc.Clone()
	if values != nil {
		next.VariableValues = values
	}
	if next.Template != nil {
		if missing := missingVariables(next.Template.Variables, next.VariableValues); len(missing) > 0 {
			return nil, invalid("document is incomplete", missing...)
		}
	}
	next.CurrentVersion++
	for i := range next.Signatories {
		next.Signatories[i].Status = SignatoryPending
		next.Signatories[i].SignedAt = nil
		next.Signatories[i].Notes = ""
		next.Signatories[i].SignedSeq = 0
	}
	next.Phase = PhaseReview
	next.UpdatedAt = now
	next.Recompute()

	out := &Outcome{Document: next, Previous: doc.Status}
	out.Revisions = append(out.Revisions, RevisionEntry{
		Version:   next.CurrentVersion,
		Type:      RevisionSubmitted,
		Notes:     notes,
		CreatorID: actor.UserID,
	})
	out.emit(EventRevisionSubmitted, actor.UserID, userIDs(next.Actionable()),
		"Revised document awaiting signature",
		fmt.Sprintf("%q was revised (version %d) and needs your signature again", next.Title, next.CurrentVersion))
	return out, nil
}

// Revoke is an administrative reset of an approved signature back to pending.
// It is not a normal transition and always leaves an admin log entry.
func Revoke(doc *Document, signatoryID primitive.ObjectID, actor Actor, reason string, now time.Time) (*Outcome, error) {
	if !actor.IsAdmin {
		return nil, forbidden("only administrators can revoke a signature")
	}
	idx, ok := doc.signatory(signatoryID)
	if !ok {
		return nil, NewNotFoundError("signatory", signatoryID.Hex())
	}
	if !doc.Status.InReview() {
		return nil, conflict("cannot revoke a signature on a document that is %s", doc.Status)
	}
	current := doc.Signatories[idx]
	if current.Status != SignatoryApproved {
		return nil, conflict("signatory %s is %s; only approvals can be revoked", signatoryID.Hex(), current.Status)
	}
	if reason == "" {
		return nil, invalid("a reason is required to revoke", "reason")
	}

	next := doc.Clone()
	sig := &next.Signatories[idx]
	sig.Status = SignatoryPending
	sig.SignedAt = nil
	sig.Notes = ""
	sig.SignedSeq = 0
	resequence(next.Signatories)
	next.AdminLog = append(next.AdminLog, AdminEntry{
		Action:         "revoke",
		ActorID:        actor.UserID,
		SignatoryID:    signatoryID.Hex(),
		PreviousStatus: current.Status,
		Reason:         reason,
		At:             now,
	})
	next.UpdatedAt = now
	next.Recompute()

	out := &Outcome{Document: next, Previous: doc.Status}
	out.emit(EventSignatoryRevoked, actor.UserID, []string{sig.UserID, next.CreatorID},
		"Signature revoked",
		fmt.Sprintf("The signature at %s on %q was revoked: %s", sig.Label, next.Title, reason))
	return out, nil
}

// CheckDelete guards physical deletion. Once anyone has signed, the
// document is part of the record and can no longer be removed.
func CheckDelete(doc *Document, actor Actor) error {
	if actor.UserID != doc.CreatorID && !actor.IsAdmin {
		return forbidden("only the creator can delete the document")
	}
	if doc.EverSigned {
		return &ImmutableError{Status: doc.Status}
	}
	return nil
}

func materialize(slots []Slot, assignments map[string]string) []Signatory {
	ordered := slices.Clone(slots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	out := make([]Signatory, 0, len(ordered))
	for i, slot := range ordered {
		out = append(out, Signatory{
			ID:        primitive.NewObjectID(),
			SlotID:    slot.ID,
			Label:     slot.Label,
			Column:    slot.Column,
			UserID:    assignments[slot.ID],
			SignOrder: i + 1,
			Status:    SignatoryPending,
		})
	}
	return out
}

// resequence numbers approvals in the order they were given.
func resequence(signatories []Signatory) {
	var approved []int
	for i, s := range signatories {
		if s.Status == SignatoryApproved && s.SignedAt != nil {
			approved = append(approved, i)
		} else {
			signatories[i].SignedSeq = 0
		}
	}
	sort.SliceStable(approved, func(a, b int) bool {
		sa, sb := signatories[approved[a]], signatories[approved[b]]
		if !sa.SignedAt.Equal(*sb.SignedAt) {
			return sa.SignedAt.Before(*sb.SignedAt)
		}
		return sa.SignOrder < sb.SignOrder
	})
	for seq, i := range approved {
		signatories[i].SignedSeq = seq + 1
	}
}

func missingVariables(vars []Variable, values map[string]any) []string {
	var missing []string
	for _, v := range vars {
		if !v.Required {
			continue
		}
		val, ok := values[v.Key]
		if !ok || val == nil {
			missing = append(missing, "variables."+v.Key)
			continue
		}
		if s, isString := val.(string); isString && s == "" {
			missing = append(missing, "variables."+v.Key)
		}
	}
	return missing
}

func choosePolicy(templatePolicy, defaultPolicy SigningPolicy) SigningPolicy {
	if templatePolicy.Valid() {
		return templatePolicy
	}
	if defaultPolicy.Valid() {
		return defaultPolicy
	}
	return PolicyParallel
}

func newlyActionable(before, after *Document) []string {
	was := make(map[primitive.ObjectID]bool)
	for _, s := range before.Actionable() {
		was[s.ID] = true
	}
	var ids []string
	for _, s := range after.Actionable() {
		if !was[s.ID] {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

func userIDs(signatories []Signatory) []string {
	ids := make([]string, 0, len(signatories))
	for _, s := range signatories {
		ids = append(ids, s.UserID)
	}
	return ids
}
