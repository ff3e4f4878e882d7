package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/config"
	"go-letters/internal/features/revision"
	"go-letters/internal/features/template"
	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxAttempts bounds optimistic retries: one read-transition-write, plus one
// retry after a stale write.
const maxAttempts = 2

type DocumentService interface {
	Create(ctx context.Context, actor workflow.Actor, input CreateInput) (*workflow.Document, error)
	Get(ctx context.Context, id string, viewer workflow.Actor) (*workflow.Document, error)
	List(ctx context.Context, filter Filter, page common_models.PageQuery) ([]workflow.Document, int64, error)
	Update(ctx context.Context, id string, actor workflow.Actor, input UpdateInput) (*workflow.Document, error)
	Delete(ctx context.Context, id string, actor workflow.Actor) error

	Assign(ctx context.Context, id, slotID, userID string, actor workflow.Actor) (*workflow.Document, error)
	Submit(ctx context.Context, id string, actor workflow.Actor) (*workflow.Document, error)
	Sign(ctx context.Context, id, signatoryID string, actor workflow.Actor, notes string) (*workflow.Document, error)
	Reject(ctx context.Context, id, signatoryID string, actor workflow.Actor, notes string) (*workflow.Document, error)
	Revoke(ctx context.Context, id, signatoryID string, actor workflow.Actor, reason string) (*workflow.Document, error)
	RequestRevision(ctx context.Context, id string, actor workflow.Actor, notes, requestedChanges string) (*workflow.Document, error)
	SubmitRevision(ctx context.Context, id string, actor workflow.Actor, notes string, values map[string]any) (*workflow.Document, error)

	Progress(ctx context.Context, id string, viewer workflow.Actor) (workflow.Progress, error)
	History(ctx context.Context, id string, viewer workflow.Actor) ([]revision.Revision, error)
	ExportRegister(ctx context.Context, from, to time.Time) ([]byte, error)
}

type DocumentServiceImpl struct {
	repo       DocumentRepository
	templates  template.TemplateService
	revisions  revision.RevisionService
	dispatcher *Dispatcher
	policy     workflow.SigningPolicy
	logger     *zap.Logger
	now        func() time.Time
}

func NewDocumentService(
	repo DocumentRepository,
	templates template.TemplateService,
	revisions revision.RevisionService,
	dispatcher *Dispatcher,
	cfg *config.Config,
	logger *zap.Logger,
) DocumentService {
	return &DocumentServiceImpl{
		repo:       repo,
		templates:  templates,
		revisions:  revisions,
		dispatcher: dispatcher,
		policy:     workflow.SigningPolicy(cfg.SigningPolicy),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func parseID(resource, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, workflow.NewNotFoundError(resource, id)
	}
	return oid, nil
}

func (s *DocumentServiceImpl) load(ctx context.Context, oid primitive.ObjectID) (*workflow.Document, error) {
	doc, err := s.repo.Get(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, workflow.NewNotFoundError("document", oid.Hex())
	}
	return doc, nil
}

type transition func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error)

// apply runs one transition under optimistic concurrency: read, transition,
// compare-and-swap. Side effects run only after the swap commits.
func (s *DocumentServiceImpl) apply(ctx context.Context, id string, actorID string, action common_models.AuditAction, fn transition) (*workflow.Document, error) {
	oid, err := parseID("document", id)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		doc, err := s.load(ctx, oid)
		if err != nil {
			return nil, err
		}

		out, err := fn(doc, s.now())
		if err != nil {
			return nil, err
		}

		err = s.repo.CompareAndSwap(ctx, out.Document, doc.LockVersion)
		if errors.Is(err, ErrStaleDocument) {
			s.logger.Debug("stale document write, retrying",
				zap.String("document_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.dispatcher.Committed(ctx, action, actorID, out)
		return out.Document, nil
	}

	return nil, workflow.NewConflictError("document was modified concurrently, refresh and retry")
}

func (s *DocumentServiceImpl) Create(ctx context.Context, actor workflow.Actor, input CreateInput) (*workflow.Document, error) {
	tpl, err := s.templates.GetTemplate(ctx, input.TemplateID)
	if err != nil {
		if workflow.KindOf(err) == workflow.KindNotFound {
			return nil, workflow.NewValidationError("unknown template", "template_id")
		}
		return nil, err
	}
	if tpl.Kind != input.Kind {
		return nil, workflow.NewValidationError(
			fmt.Sprintf("template is for %s documents", tpl.Kind), "template_id")
	}
	if !tpl.Active {
		return nil, workflow.NewValidationError("template is not active", "template_id")
	}

	doc := workflow.NewDraft(input.Kind, input.Title, actor.UserID, input.TemplateID, input.VariableValues, s.now())
	if err := s.repo.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.dispatcher.Committed(ctx, common_models.AuditActionCreate, actor.UserID,
		&workflow.Outcome{Document: doc, Previous: doc.Status})
	return doc, nil
}

func (s *DocumentServiceImpl) Get(ctx context.Context, id string, viewer workflow.Actor) (*workflow.Document, error) {
	oid, err := parseID("document", id)
	if err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, oid)
	if err != nil {
		return nil, err
	}
	// Outsiders get the same answer as for a missing id.
	if !doc.VisibleTo(viewer) {
		return nil, workflow.NewNotFoundError("document", id)
	}
	return doc, nil
}

func (s *DocumentServiceImpl) List(ctx context.Context, filter Filter, page common_models.PageQuery) ([]workflow.Document, int64, error) {
	page = page.Normalize(20)
	docs, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	if docs == nil {
		docs = []workflow.Document{}
	}
	return docs, total, nil
}

func (s *DocumentServiceImpl) Update(ctx context.Context, id string, actor workflow.Actor, input UpdateInput) (*workflow.Document, error) {
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionUpdate, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		return workflow.UpdateDraft(doc, actor, input.Title, input.VariableValues, now)
	})
}

func (s *DocumentServiceImpl) Delete(ctx context.Context, id string, actor workflow.Actor) error {
	oid, err := parseID("document", id)
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		doc, err := s.load(ctx, oid)
		if err != nil {
			return err
		}
		if err := workflow.CheckDelete(doc, actor); err != nil {
			return err
		}

		err = s.repo.Delete(ctx, oid, doc.LockVersion)
		if errors.Is(err, ErrStaleDocument) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}

		if err := s.revisions.Purge(ctx, oid); err != nil {
			s.logger.Warn("failed to delete revisions", zap.String("document_id", id), zap.Error(err))
		}
		s.dispatcher.Committed(ctx, common_models.AuditActionDelete, actor.UserID,
			&workflow.Outcome{Document: doc, Previous: doc.Status})
		return nil
	}
	return workflow.NewConflictError("document was modified concurrently, refresh and retry")
}

func (s *DocumentServiceImpl) Assign(ctx context.Context, id, slotID, userID string, actor workflow.Actor) (*workflow.Document, error) {
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionUpdate, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		var slots []workflow.Slot
		if doc.Status == workflow.StatusDraft {
			tpl, err := s.templates.GetTemplate(ctx, doc.TemplateID)
			if err != nil {
				return nil, err
			}
			slots = tpl.Slots
		}
		return workflow.Assign(doc, actor, slots, slotID, userID, now)
	})
}

func (s *DocumentServiceImpl) Submit(ctx context.Context, id string, actor workflow.Actor) (*workflow.Document, error) {
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionApproval, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		if doc.Status != workflow.StatusDraft {
			return workflow.Submit(doc, actor, workflow.TemplateSnapshot{}, s.policy, now)
		}
		snapshot, err := s.templates.Snapshot(ctx, doc.TemplateID)
		if err != nil {
			return nil, err
		}
		return workflow.Submit(doc, actor, snapshot, s.policy, now)
	})
}

func (s *DocumentServiceImpl) act(ctx context.Context, id, signatoryID string, action workflow.Action, actor workflow.Actor, notes string) (*workflow.Document, error) {
	sid, err := parseID("signatory", signatoryID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionApproval, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		return workflow.Act(doc, sid, action, actor, notes, now)
	})
}

func (s *DocumentServiceImpl) Sign(ctx context.Context, id, signatoryID string, actor workflow.Actor, notes string) (*workflow.Document, error) {
	return s.act(ctx, id, signatoryID, workflow.ActionApprove, actor, notes)
}

func (s *DocumentServiceImpl) Reject(ctx context.Context, id, signatoryID string, actor workflow.Actor, notes string) (*workflow.Document, error) {
	return s.act(ctx, id, signatoryID, workflow.ActionReject, actor, notes)
}

func (s *DocumentServiceImpl) Revoke(ctx context.Context, id, signatoryID string, actor workflow.Actor, reason string) (*workflow.Document, error) {
	sid, err := parseID("signatory", signatoryID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionRevoke, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		return workflow.Revoke(doc, sid, actor, reason, now)
	})
}

func (s *DocumentServiceImpl) RequestRevision(ctx context.Context, id string, actor workflow.Actor, notes, requestedChanges string) (*workflow.Document, error) {
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionApproval, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		return workflow.RequestRevision(doc, actor, notes, requestedChanges, now)
	})
}

func (s *DocumentServiceImpl) SubmitRevision(ctx context.Context, id string, actor workflow.Actor, notes string, values map[string]any) (*workflow.Document, error) {
	return s.apply(ctx, id, actor.UserID, common_models.AuditActionApproval, func(doc *workflow.Document, now time.Time) (*workflow.Outcome, error) {
		return workflow.SubmitRevision(doc, actor, notes, values, now)
	})
}

func (s *DocumentServiceImpl) Progress(ctx context.Context, id string, viewer workflow.Actor) (workflow.Progress, error) {
	doc, err := s.Get(ctx, id, viewer)
	if err != nil {
		return workflow.Progress{}, err
	}
	return doc.Progress(), nil
}

func (s *DocumentServiceImpl) History(ctx context.Context, id string, viewer workflow.Actor) ([]revision.Revision, error) {
	doc, err := s.Get(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	history, err := s.revisions.History(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []revision.Revision{}
	}
	return history, nil
}
