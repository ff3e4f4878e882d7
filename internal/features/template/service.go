package template

import (
	"context"
	"fmt"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/common/response"
	"go-letters/internal/features/audit"
	"go-letters/internal/numbering"
	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type TemplateService interface {
	CreateTemplate(ctx context.Context, tpl *Template, actorID string) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context, kind string, activeOnly bool) ([]Template, error)
	UpdateTemplate(ctx context.Context, id string, tpl *Template, actorID string) (*Template, error)
	DeleteTemplate(ctx context.Context, id string, actorID string) error
	// Snapshot returns a by-value copy of an active template for submission.
	Snapshot(ctx context.Context, id string) (workflow.TemplateSnapshot, error)
}

type TemplateServiceImpl struct {
	Repo         TemplateRepository
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewTemplateService(repo TemplateRepository, auditService audit.AuditService, logger *zap.Logger) TemplateService {
	return &TemplateServiceImpl{
		Repo:         repo,
		AuditService: auditService,
		Logger:       logger,
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, workflow.NewNotFoundError("template", id)
	}
	return oid, nil
}

// validateTemplate checks what struct tags cannot: uniqueness and the
// number format script.
func validateTemplate(tpl *Template) error {
	if err := response.Struct(tpl); err != nil {
		return err
	}

	var fields []string
	seenSlots := map[string]bool{}
	for _, s := range tpl.Slots {
		if seenSlots[s.ID] {
			fields = append(fields, "slots."+s.ID)
		}
		seenSlots[s.ID] = true
	}
	seenVars := map[string]bool{}
	for _, v := range tpl.Variables {
		if seenVars[v.Key] {
			fields = append(fields, "variables."+v.Key)
		}
		seenVars[v.Key] = true
	}
	if len(fields) > 0 {
		return workflow.NewValidationError("duplicate template keys", fields...)
	}

	if err := numbering.Validate(tpl.NumberFormat); err != nil {
		return workflow.NewValidationError(err.Error(), "number_format")
	}
	return nil
}

func (s *TemplateServiceImpl) CreateTemplate(ctx context.Context, tpl *Template, actorID string) error {
	if err := validateTemplate(tpl); err != nil {
		return err
	}

	now := time.Now()
	tpl.ID = primitive.NewObjectID()
	tpl.CreatedBy = actorID
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	if err := s.Repo.Create(ctx, tpl); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	s.audit(ctx, common_models.AuditActionCreate, tpl.ID.Hex(), actorID, map[string]common_models.Change{
		"name": {Old: nil, New: tpl.Name},
	})
	return nil
}

func (s *TemplateServiceImpl) GetTemplate(ctx context.Context, id string) (*Template, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.Repo.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, workflow.NewNotFoundError("template", id)
	}
	return tpl, nil
}

func (s *TemplateServiceImpl) ListTemplates(ctx context.Context, kind string, activeOnly bool) ([]Template, error) {
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	if activeOnly {
		filter["active"] = true
	}
	templates, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []Template{}
	}
	return templates, nil
}

// UpdateTemplate replaces the template. Documents already submitted keep
// their own snapshot and are unaffected.
func (s *TemplateServiceImpl) UpdateTemplate(ctx context.Context, id string, tpl *Template, actorID string) (*Template, error) {
	existing, err := s.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}

	tpl.ID = existing.ID
	tpl.CreatedBy = existing.CreatedBy
	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = time.Now()
	if err := s.Repo.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	changes := map[string]common_models.Change{}
	if existing.Name != tpl.Name {
		changes["name"] = common_models.Change{Old: existing.Name, New: tpl.Name}
	}
	if len(existing.Slots) != len(tpl.Slots) {
		changes["slots"] = common_models.Change{Old: len(existing.Slots), New: len(tpl.Slots)}
	}
	if existing.Active != tpl.Active {
		changes["active"] = common_models.Change{Old: existing.Active, New: tpl.Active}
	}
	s.audit(ctx, common_models.AuditActionUpdate, tpl.ID.Hex(), actorID, changes)
	return tpl, nil
}

func (s *TemplateServiceImpl) DeleteTemplate(ctx context.Context, id string, actorID string) error {
	tpl, err := s.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, tpl.ID); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	s.audit(ctx, common_models.AuditActionDelete, tpl.ID.Hex(), actorID, nil)
	return nil
}

func (s *TemplateServiceImpl) Snapshot(ctx context.Context, id string) (workflow.TemplateSnapshot, error) {
	tpl, err := s.GetTemplate(ctx, id)
	if err != nil {
		return workflow.TemplateSnapshot{}, err
	}
	if !tpl.Active {
		return workflow.TemplateSnapshot{}, workflow.NewValidationError("template is not active", "template_id")
	}
	return tpl.Snapshot(), nil
}

func (s *TemplateServiceImpl) audit(ctx context.Context, action common_models.AuditAction, id, actorID string, changes map[string]common_models.Change) {
	if err := s.AuditService.LogChange(ctx, action, "templates", id, actorID, changes); err != nil {
		s.Logger.Warn("failed to write template audit log", zap.String("template_id", id), zap.Error(err))
	}
}
