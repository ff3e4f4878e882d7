package revision

import (
	"context"
	"sort"
	"time"

	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type RevisionService interface {
	// Record never fails: persistence errors are logged and swallowed.
	Record(ctx context.Context, documentID primitive.ObjectID, entry workflow.RevisionEntry)
	History(ctx context.Context, documentID primitive.ObjectID) ([]Revision, error)
	// Purge drops the history of a deleted draft.
	Purge(ctx context.Context, documentID primitive.ObjectID) error
}

type RevisionServiceImpl struct {
	repo   RevisionRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewRevisionService(repo RevisionRepository, logger *zap.Logger) RevisionService {
	return &RevisionServiceImpl{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RevisionServiceImpl) Record(ctx context.Context, documentID primitive.ObjectID, entry workflow.RevisionEntry) {
	rev := &Revision{
		ID:               primitive.NewObjectID(),
		DocumentID:       documentID,
		Version:          entry.Version,
		Type:             entry.Type,
		RevisionNotes:    entry.Notes,
		RequestedChanges: entry.RequestedChanges,
		CreatorID:        entry.CreatorID,
		CreatedAt:        s.now(),
	}
	if err := s.repo.Insert(ctx, rev); err != nil {
		s.logger.Error("failed to record revision",
			zap.String("document_id", documentID.Hex()),
			zap.String("type", string(entry.Type)),
			zap.Int("version", entry.Version),
			zap.Error(err))
	}
}

// History returns a fresh, creation-ordered copy on every call.
func (s *RevisionServiceImpl) History(ctx context.Context, documentID primitive.ObjectID) ([]Revision, error) {
	revisions, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]Revision, len(revisions))
	copy(out, revisions)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (s *RevisionServiceImpl) Purge(ctx context.Context, documentID primitive.ObjectID) error {
	return s.repo.DeleteByDocument(ctx, documentID)
}
