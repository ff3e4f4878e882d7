package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-letters/internal/features/notification"
	"go-letters/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stubDocs struct {
	stalled     []workflow.Document
	uncertified []workflow.Document
	idleSince   time.Time
	err         error
}

func (s *stubDocs) ListStalled(_ context.Context, idleSince time.Time) ([]workflow.Document, error) {
	s.idleSince = idleSince
	return s.stalled, s.err
}

func (s *stubDocs) ListUncertified(context.Context) ([]workflow.Document, error) {
	return s.uncertified, nil
}

type stubIssuer struct {
	issued []primitive.ObjectID
}

func (s *stubIssuer) IssueCertificate(_ context.Context, doc *workflow.Document) {
	s.issued = append(s.issued, doc.ID)
}

type sent struct {
	userIDs []string
	kind    notification.NotificationType
	meta    map[string]any
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (s *stubNotifier) Notify(_ context.Context, userIDs []string, kind notification.NotificationType, _, _ string, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{userIDs: userIDs, kind: kind, meta: meta})
	return nil
}

type memRuns struct {
	runs []Run
}

func (m *memRuns) Create(_ context.Context, run *Run) error {
	run.ID = primitive.NewObjectID()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memRuns) Update(_ context.Context, run *Run) error {
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = *run
		}
	}
	return nil
}

func (m *memRuns) List(context.Context, int64) ([]Run, error) { return m.runs, nil }

var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func newTestService(docs *stubDocs) (*ReminderServiceImpl, *stubIssuer, *stubNotifier, *memRuns) {
	issuer, notifier, runs := &stubIssuer{}, &stubNotifier{}, &memRuns{}
	return &ReminderServiceImpl{
		docs:      docs,
		issuer:    issuer,
		notifier:  notifier,
		runs:      runs,
		schedule:  "0 8 * * *",
		idleAfter: 24 * time.Hour,
		logger:    zap.NewNop(),
		now:       func() time.Time { return now },
	}, issuer, notifier, runs
}

func sequentialDoc() workflow.Document {
	return workflow.Document{
		ID:            primitive.NewObjectID(),
		Title:         "Leave request",
		Status:        workflow.StatusPartiallySigned,
		Phase:         workflow.PhaseReview,
		SigningPolicy: workflow.PolicySequential,
		UpdatedAt:     now.Add(-30 * time.Hour),
		Signatories: []workflow.Signatory{
			{ID: primitive.NewObjectID(), UserID: "alice", SignOrder: 1, Status: workflow.SignatoryApproved},
			{ID: primitive.NewObjectID(), UserID: "bob", SignOrder: 2, Status: workflow.SignatoryPending},
			{ID: primitive.NewObjectID(), UserID: "carol", SignOrder: 3, Status: workflow.SignatoryPending},
		},
	}
}

func TestRunNowRemindsOnlyActionableSignatories(t *testing.T) {
	docs := &stubDocs{stalled: []workflow.Document{sequentialDoc()}}
	svc, _, notifier, runs := newTestService(docs)

	run, err := svc.RunNow(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, now.Add(-24*time.Hour), docs.idleSince)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, []string{"bob"}, notifier.sent[0].userIDs)
	assert.Equal(t, notification.NotificationTypeReminder, notifier.sent[0].kind)
	assert.Equal(t, docs.stalled[0].ID.Hex(), notifier.sent[0].meta["document_id"])

	assert.Equal(t, RunSuccess, run.Status)
	assert.Equal(t, 1, run.DocumentsStalled)
	assert.Equal(t, 1, run.RemindersSent)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, RunSuccess, runs.runs[0].Status)
}

func TestRunNowRetriesMissingCertificates(t *testing.T) {
	signed := workflow.Document{ID: primitive.NewObjectID(), Status: workflow.StatusFullySigned}
	svc, issuer, _, _ := newTestService(&stubDocs{uncertified: []workflow.Document{signed}})

	run, err := svc.RunNow(context.Background(), "schedule")
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{signed.ID}, issuer.issued)
	assert.Equal(t, 1, run.CertificatesRetry)
}

func TestRunNowRecordsFailure(t *testing.T) {
	svc, _, _, runs := newTestService(&stubDocs{err: errors.New("mongo down")})

	run, err := svc.RunNow(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "mongo down")
	assert.Equal(t, RunFailed, runs.runs[0].Status)
}

func TestRunNowRefusesOverlap(t *testing.T) {
	svc, _, _, _ := newTestService(&stubDocs{})
	svc.running.Lock()
	defer svc.running.Unlock()

	_, err := svc.RunNow(context.Background(), "manual")
	assert.Equal(t, workflow.KindConflict, workflow.KindOf(err))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc, _, _, _ := newTestService(&stubDocs{})
	svc.schedule = "every tuesday"

	assert.Error(t, svc.Start())
	svc.Stop()
}
