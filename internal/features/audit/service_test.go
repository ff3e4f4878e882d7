package audit

import (
	"context"
	"testing"

	common_models "go-letters/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAuditRepo struct {
	logs          []common_models.AuditLog
	limit, offset int64
}

func (m *MockAuditRepo) Create(_ context.Context, log common_models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditRepo) List(_ context.Context, _ map[string]interface{}, limit, offset int64) ([]common_models.AuditLog, error) {
	m.limit, m.offset = limit, offset
	return nil, nil
}

func TestLogChangeDefaultsActorToSystem(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo)

	err := svc.LogChange(context.Background(), common_models.AuditActionIssue, "documents", "doc-1", "",
		map[string]common_models.Change{"number": {New: "001/LETTER/X/2026"}})
	require.NoError(t, err)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, "system", repo.logs[0].ActorID)
	assert.Equal(t, "documents", repo.logs[0].Module)
	assert.False(t, repo.logs[0].ID.IsZero())
}

func TestListLogsPagesAndNeverReturnsNil(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo)

	logs, err := svc.ListLogs(context.Background(), nil, common_models.PageQuery{Page: 3, Limit: 500})
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Equal(t, int64(100), repo.limit)
	assert.Equal(t, int64(200), repo.offset)
}
