package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go-letters/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockNotificationRepo struct {
	rows []Notification
	err  error
}

func (m *MockNotificationRepo) CreateMany(_ context.Context, notifications []*Notification) error {
	if m.err != nil {
		return m.err
	}
	for _, n := range notifications {
		m.rows = append(m.rows, *n)
	}
	return nil
}

func (m *MockNotificationRepo) GetByUserID(_ context.Context, userID string, _, _ int64) ([]Notification, int64, error) {
	var out []Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *MockNotificationRepo) GetUnreadCount(_ context.Context, userID string) (int64, error) {
	var count int64
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MockNotificationRepo) MarkAsRead(_ context.Context, id primitive.ObjectID, userID string) (bool, error) {
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *MockNotificationRepo) MarkAllAsRead(_ context.Context, userID string) error {
	for i := range m.rows {
		if m.rows[i].UserID == userID {
			m.rows[i].IsRead = true
		}
	}
	return nil
}

func TestDispatchPersistsAndPushes(t *testing.T) {
	repo := &MockNotificationRepo{}
	hub := NewHub(zap.NewNop())
	svc := NewNotificationService(repo, hub, zap.NewNop())

	alice := hub.Register("alice")
	defer hub.Unregister(alice)

	svc.Dispatch(context.Background(), []string{"alice", "bob", "alice", ""}, "Signature requested", "please sign",
		map[string]any{"document_id": "abc"})

	require.Len(t, repo.rows, 2)
	assert.Equal(t, "/documents/abc", repo.rows[0].Link)

	select {
	case raw := <-alice.Send:
		var got Notification
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "Signature requested", got.Title)
	default:
		t.Fatal("expected a pushed notification")
	}

	count, err := svc.GetUnreadCount(context.Background(), "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDispatchSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewNotificationService(&MockNotificationRepo{err: errors.New("down")}, NewHub(zap.NewNop()), zap.New(core))

	svc.Dispatch(context.Background(), []string{"alice"}, "t", "m", nil)
	assert.Equal(t, 1, logs.Len())
}

func TestMarkAsReadScopedToOwner(t *testing.T) {
	repo := &MockNotificationRepo{}
	svc := NewNotificationService(repo, NewHub(zap.NewNop()), zap.NewNop())
	require.NoError(t, svc.Notify(context.Background(), []string{"alice"}, NotificationTypeInfo, "t", "m", nil))
	id := repo.rows[0].ID.Hex()

	err := svc.MarkAsRead(context.Background(), id, "mallory")
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))

	require.NoError(t, svc.MarkAsRead(context.Background(), id, "alice"))
	assert.True(t, repo.rows[0].IsRead)

	err = svc.MarkAsRead(context.Background(), "bogus", "alice")
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c1 := hub.Register("alice")
	c2 := hub.Register("alice")
	assert.Equal(t, 2, hub.Publish("alice", map[string]string{"k": "v"}))

	hub.Unregister(c1)
	hub.Unregister(c1)
	assert.True(t, hub.Online("alice"))
	<-c1.Send // buffered before close
	_, open := <-c1.Send
	assert.False(t, open)

	hub.Unregister(c2)
	assert.False(t, hub.Online("alice"))
	assert.Equal(t, 0, hub.Publish("alice", "x"))
}
