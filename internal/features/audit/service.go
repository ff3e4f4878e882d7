package audit

import (
	"context"
	"time"

	common_models "go-letters/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditService interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, actorID string, changes map[string]common_models.Change) error
	ListLogs(ctx context.Context, filters map[string]interface{}, page common_models.PageQuery) ([]common_models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo AuditRepository
}

func NewAuditService(repo AuditRepository) AuditService {
	return &AuditServiceImpl{
		Repo: repo,
	}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, actorID string, changes map[string]common_models.Change) error {
	if actorID == "" {
		actorID = "system"
	}

	log := common_models.AuditLog{
		ID:        primitive.NewObjectID(),
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   actorID,
		Changes:   changes,
		Timestamp: time.Now(),
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, filters map[string]interface{}, page common_models.PageQuery) ([]common_models.AuditLog, error) {
	page = page.Normalize(20)
	logs, err := s.Repo.List(ctx, filters, page.Limit, page.Skip())
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []common_models.AuditLog{}
	}
	return logs, nil
}
