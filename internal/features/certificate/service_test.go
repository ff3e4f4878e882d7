package certificate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go-letters/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memCounters struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (m *memCounters) Next(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[key]++
	return m.seqs[key], nil
}

type memLookup struct {
	docs map[string]*workflow.Document
}

func (m *memLookup) FindByVerificationCode(_ context.Context, code string) (*workflow.Document, error) {
	return m.docs[code], nil
}

func signedDoc() *workflow.Document {
	at := time.Date(2026, 10, 2, 8, 30, 0, 123456789, time.UTC)
	return &workflow.Document{
		ID:             primitive.NewObjectID(),
		Kind:           workflow.KindLetter,
		Title:          "Invitation",
		CurrentVersion: 1,
		Phase:          workflow.PhaseReview,
		Status:         workflow.StatusFullySigned,
		Template:       &workflow.TemplateSnapshot{Name: "Outgoing"},
		Signatories: []workflow.Signatory{
			{ID: primitive.NewObjectID(), SlotID: "b", UserID: "bob", Status: workflow.SignatoryApproved, SignedAt: &at, SignedSeq: 2},
			{ID: primitive.NewObjectID(), SlotID: "a", UserID: "alice", Status: workflow.SignatoryApproved, SignedAt: &at, SignedSeq: 1},
		},
	}
}

var issuedAt = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newService(lookup DocumentLookup) *CertificateServiceImpl {
	return &CertificateServiceImpl{
		counters: &memCounters{seqs: map[string]int64{}},
		lookup:   lookup,
		baseURL:  "https://letters.example/api/verify",
	}
}

func issue(t *testing.T, svc *CertificateServiceImpl, doc *workflow.Document) *workflow.Certificate {
	t.Helper()
	seq, err := svc.Reserve(context.Background(), doc.Kind, issuedAt)
	require.NoError(t, err)
	cert, err := svc.Issue(context.Background(), doc, seq, issuedAt)
	require.NoError(t, err)
	return cert
}

func TestIssueNumbersPerKindAndYear(t *testing.T) {
	svc := newService(&memLookup{})

	first := issue(t, svc, signedDoc())
	second := issue(t, svc, signedDoc())

	leave := signedDoc()
	leave.Kind = workflow.KindLeave
	third := issue(t, svc, leave)

	assert.Equal(t, "001/LETTER/X/2026", first.Number)
	assert.Equal(t, "002/LETTER/X/2026", second.Number)
	assert.Equal(t, "001/LEAVE/X/2026", third.Number)

	_, err := uuid.Parse(first.VerificationCode)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(first.VerificationURL, "/"+first.VerificationCode))
	assert.Len(t, first.Fingerprint, 64)
}

func TestIssueDoesNotDrawNumbers(t *testing.T) {
	svc := newService(&memLookup{})
	doc := signedDoc()

	a, err := svc.Issue(context.Background(), doc, 7, issuedAt)
	require.NoError(t, err)
	b, err := svc.Issue(context.Background(), doc, 7, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, a.Number, b.Number)
	assert.Equal(t, "007/LETTER/X/2026", a.Number)
	assert.Empty(t, svc.counters.(*memCounters).seqs)

	_, err = svc.Issue(context.Background(), doc, 0, issuedAt)
	assert.Error(t, err)
}

func TestIssueRequiresFullySigned(t *testing.T) {
	doc := signedDoc()
	doc.Status = workflow.StatusPartiallySigned
	_, err := newService(&memLookup{}).Issue(context.Background(), doc, 1, issuedAt)
	assert.Equal(t, workflow.KindConflict, workflow.KindOf(err))
}

func TestIssueIsIdempotent(t *testing.T) {
	doc := signedDoc()
	doc.Certificate = &workflow.Certificate{Number: "existing"}
	cert, err := newService(&memLookup{}).Issue(context.Background(), doc, 1, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, "existing", cert.Number)
}

func TestFingerprintIsStable(t *testing.T) {
	doc := signedDoc()
	a, err := Fingerprint(doc, "001")
	require.NoError(t, err)

	// Slot order and sub-millisecond precision do not matter.
	reordered := doc.Clone()
	reordered.Signatories[0], reordered.Signatories[1] = reordered.Signatories[1], reordered.Signatories[0]
	trimmed := reordered.Signatories[0].SignedAt.Truncate(time.Millisecond)
	reordered.Signatories[0].SignedAt = &trimmed
	b, err := Fingerprint(reordered, "001")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	tampered := doc.Clone()
	tampered.Signatories[0].UserID = "mallory"
	c, err := Fingerprint(tampered, "001")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestVerify(t *testing.T) {
	lookup := &memLookup{docs: map[string]*workflow.Document{}}
	svc := newService(lookup)
	doc := signedDoc()
	cert := issue(t, svc, doc)
	doc.Certificate = cert
	lookup.docs[cert.VerificationCode] = doc

	v, err := svc.Verify(context.Background(), cert.VerificationCode)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, cert.Number, v.Number)
	assert.Len(t, v.Signatories, 2)

	doc.Signatories[1].UserID = "mallory"
	v, err = svc.Verify(context.Background(), cert.VerificationCode)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = svc.Verify(context.Background(), uuid.NewString())
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
	_, err = svc.Verify(context.Background(), "../../etc")
	assert.Equal(t, workflow.KindNotFound, workflow.KindOf(err))
}
