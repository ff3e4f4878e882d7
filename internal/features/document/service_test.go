package document

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	creator = workflow.Actor{UserID: "creator"}
	alice   = workflow.Actor{UserID: "alice"}
	bob     = workflow.Actor{UserID: "bob"}
	admin   = workflow.Actor{UserID: "root", Roles: []string{"admin"}, IsAdmin: true}
	// alice again, holding a role that may ask for revisions
	reviewer = workflow.Actor{UserID: "alice", Roles: []string{"reviewer"}, CanRequestRevision: true}
)

// submitted creates a letter, assigns head to alice and secretary to bob and
// submits it.
func submitted(t *testing.T, h *harness) *workflow.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := h.svc.Create(ctx, creator, CreateInput{
		Kind:           workflow.KindLetter,
		Title:          "Budget request",
		TemplateID:     h.tpl.ID.Hex(),
		VariableValues: map[string]any{"subject": "Q3 budget"},
	})
	require.NoError(t, err)
	id := doc.ID.Hex()

	_, err = h.svc.Assign(ctx, id, "head", alice.UserID, creator)
	require.NoError(t, err)
	_, err = h.svc.Assign(ctx, id, "secretary", bob.UserID, creator)
	require.NoError(t, err)

	doc, err = h.svc.Submit(ctx, id, creator)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingApproval, doc.Status)
	return doc
}

func signatoryOf(t *testing.T, doc *workflow.Document, userID string) string {
	t.Helper()
	s, ok := doc.SignatoryFor(userID)
	require.True(t, ok, "no signatory for %s", userID)
	return s.ID.Hex()
}

func TestCreateRejectsInactiveTemplate(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	h.tpl.Active = false

	_, err := h.svc.Create(context.Background(), creator, CreateInput{
		Kind: workflow.KindLetter, Title: "x", TemplateID: h.tpl.ID.Hex(),
	})
	assert.Equal(t, workflow.KindValidation, workflow.KindOf(err))
	assert.Contains(t, workflow.FieldsOf(err), "template_id")
}

func TestCreateRejectsKindMismatch(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)

	_, err := h.svc.Create(context.Background(), creator, CreateInput{
		Kind: workflow.KindLeave, Title: "x", TemplateID: h.tpl.ID.Hex(),
	})
	assert.Equal(t, workflow.KindValidation, workflow.KindOf(err))
}

func TestSigningToCompletionIssuesCertificate(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc := submitted(t, h)
	id := doc.ID.Hex()

	doc, err := h.svc.Sign(ctx, id, signatoryOf(t, doc, "alice"), alice, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPartiallySigned, doc.Status)
	assert.Equal(t, 0, h.certs.issued)

	doc, err = h.svc.Sign(ctx, id, signatoryOf(t, doc, "bob"), bob, "ok")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFullySigned, doc.Status)
	assert.Equal(t, workflow.Progress{Total: 2, Signed: 2}, doc.Progress())

	stored := h.repo.stored(doc.ID)
	require.NotNil(t, stored.Certificate)
	assert.Equal(t, 1, h.certs.issued)
	assert.Contains(t, h.audit.actions, common_models.AuditActionIssue)
	assert.Contains(t, h.webhooks.events, string(workflow.EventFullySigned))

	history, err := h.svc.History(ctx, id, creator)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.RevisionInitial, history[0].Type)
}

func TestConcurrentApprovalsBothCommit(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	doc := submitted(t, h)
	id := doc.ID.Hex()
	aliceSlot, bobSlot := signatoryOf(t, doc, "alice"), signatoryOf(t, doc, "bob")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, errs[0] = h.svc.Sign(context.Background(), id, aliceSlot, alice, "")
	}()
	go func() {
		defer wg.Done()
		<-start
		_, errs[1] = h.svc.Sign(context.Background(), id, bobSlot, bob, "")
	}()
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored := h.repo.stored(doc.ID)
	assert.Equal(t, workflow.StatusFullySigned, stored.Status)
	assert.Equal(t, 2, stored.Progress().Signed)
	assert.NotNil(t, stored.Certificate)
	assert.Equal(t, 1, h.certs.issued)
}

func TestConcurrentDoubleSignDecidesOnce(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	doc := submitted(t, h)
	id := doc.ID.Hex()
	slot := signatoryOf(t, doc, "alice")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Sign(context.Background(), id, slot, alice, "")
		}(i)
	}
	wg.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, workflow.KindAlreadyDecided, workflow.KindOf(failures[0]))
	assert.Equal(t, 1, h.repo.stored(doc.ID).Progress().Signed)
}

func TestStaleWriteIsRetriedOnce(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	doc := submitted(t, h)

	h.repo.forceStale = 1
	doc, err := h.svc.Sign(context.Background(), doc.ID.Hex(), signatoryOf(t, doc, "alice"), alice, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPartiallySigned, doc.Status)
}

func TestRepeatedStaleWritesSurfaceConflict(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	doc := submitted(t, h)
	before := len(h.notifier.sent)

	h.repo.forceStale = maxAttempts
	_, err := h.svc.Sign(context.Background(), doc.ID.Hex(), signatoryOf(t, doc, "alice"), alice, "")

	var conflict *workflow.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, workflow.StatusPendingApproval, h.repo.stored(doc.ID).Status)
	assert.Len(t, h.notifier.sent, before, "nothing is dispatched for an uncommitted transition")
}

func TestCertificateFailureDoesNotUndoSignature(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc := submitted(t, h)
	h.certs.err = errors.New("counter unavailable")

	_, err := h.svc.Sign(ctx, doc.ID.Hex(), signatoryOf(t, doc, "alice"), alice, "")
	require.NoError(t, err)
	doc, err = h.svc.Sign(ctx, doc.ID.Hex(), signatoryOf(t, doc, "bob"), bob, "")
	require.NoError(t, err)

	stored := h.repo.stored(doc.ID)
	assert.Equal(t, workflow.StatusFullySigned, stored.Status)
	assert.Nil(t, stored.Certificate)

	uncertified, err := h.repo.ListUncertified(ctx)
	require.NoError(t, err)
	assert.Len(t, uncertified, 1)
}

func TestRevisionRoundTrip(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc := submitted(t, h)
	id := doc.ID.Hex()

	_, err := h.svc.RequestRevision(ctx, id, alice, "fix the date", "")
	assert.Equal(t, workflow.KindAuthorization, workflow.KindOf(err))
	_, err = h.svc.RequestRevision(ctx, id, workflow.Actor{UserID: "outsider", CanRequestRevision: true}, "fix the date", "")
	assert.Equal(t, workflow.KindAuthorization, workflow.KindOf(err))

	doc, err = h.svc.RequestRevision(ctx, id, reviewer, "fix the date", "use ISO dates")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRevisionRequested, doc.Status)

	doc, err = h.svc.SubmitRevision(ctx, id, creator, "dates fixed", map[string]any{"subject": "Q3 budget v2"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingApproval, doc.Status)
	assert.Equal(t, 2, doc.CurrentVersion)

	history, err := h.svc.History(ctx, id, creator)
	require.NoError(t, err)
	types := make([]workflow.RevisionType, 0, len(history))
	for _, r := range history {
		types = append(types, r.Type)
	}
	assert.Equal(t, []workflow.RevisionType{
		workflow.RevisionInitial, workflow.RevisionRequest, workflow.RevisionSubmitted,
	}, types)
}

func TestAssignAfterSubmitIsImmutable(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	doc := submitted(t, h)

	_, err := h.svc.Assign(context.Background(), doc.ID.Hex(), "head", "carol", creator)
	assert.Equal(t, workflow.KindImmutable, workflow.KindOf(err))
}

func TestDeleteDraftPurgesRevisions(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc, err := h.svc.Create(ctx, creator, CreateInput{
		Kind: workflow.KindLetter, Title: "Scratch", TemplateID: h.tpl.ID.Hex(),
	})
	require.NoError(t, err)

	err = h.svc.Delete(ctx, doc.ID.Hex(), alice)
	assert.Equal(t, workflow.KindAuthorization, workflow.KindOf(err))

	require.NoError(t, h.svc.Delete(ctx, doc.ID.Hex(), creator))
	assert.Contains(t, h.revisions.purged, doc.ID)

	_, err = h.svc.Get(ctx, doc.ID.Hex(), creator)
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
}

func TestDeleteAfterSignatureIsImmutable(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc := submitted(t, h)
	_, err := h.svc.Sign(ctx, doc.ID.Hex(), signatoryOf(t, doc, "alice"), alice, "")
	require.NoError(t, err)

	err = h.svc.Delete(ctx, doc.ID.Hex(), admin)
	assert.Equal(t, workflow.KindImmutable, workflow.KindOf(err))
}

func TestGetHidesDocumentFromStrangers(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc := submitted(t, h)
	id := doc.ID.Hex()

	for _, viewer := range []workflow.Actor{creator, alice, bob, admin} {
		_, err := h.svc.Get(ctx, id, viewer)
		assert.NoError(t, err, viewer.UserID)
	}

	_, err := h.svc.Get(ctx, id, workflow.Actor{UserID: "mallory"})
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
	_, missing := h.svc.Get(ctx, primitive.NewObjectID().Hex(), workflow.Actor{UserID: "mallory"})
	assert.Equal(t, workflow.KindOf(missing), workflow.KindOf(err), "a hidden document looks like a missing one")
	_, err = h.svc.Progress(ctx, id, workflow.Actor{UserID: "mallory"})
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
	_, err = h.svc.History(ctx, id, workflow.Actor{UserID: "mallory"})
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
}

func TestMalformedIDIsNotFound(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)

	_, err := h.svc.Sign(context.Background(), "nope", "also-nope", alice, "")
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
}

func TestExportRegisterListsIssuedCertificates(t *testing.T) {
	h := newHarness(workflow.PolicyParallel)
	ctx := context.Background()
	doc := submitted(t, h)
	_, err := h.svc.Sign(ctx, doc.ID.Hex(), signatoryOf(t, doc, "alice"), alice, "")
	require.NoError(t, err)
	_, err = h.svc.Sign(ctx, doc.ID.Hex(), signatoryOf(t, doc, "bob"), bob, "")
	require.NoError(t, err)

	data, err := h.svc.ExportRegister(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Register")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "001/LETTER/X/2026")
	assert.Contains(t, rows[1], "Budget request")
}
