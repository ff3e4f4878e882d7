package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/features/certificate"
	"go-letters/internal/features/revision"
	"go-letters/internal/features/template"
	"go-letters/internal/features/webhook"
	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memRepo mimics the Mongo repository: every write is a whole-document swap
// guarded by lock_version.
type memRepo struct {
	mu         sync.Mutex
	docs       map[primitive.ObjectID]*workflow.Document
	forceStale int
	swaps      int
}

func newMemRepo() *memRepo {
	return &memRepo{docs: map[primitive.ObjectID]*workflow.Document{}}
}

func (r *memRepo) Insert(_ context.Context, doc *workflow.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.LockVersion = 1
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *memRepo) Get(_ context.Context, id primitive.ObjectID) (*workflow.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	c := doc.Clone()
	c.Recompute()
	return c, nil
}

func (r *memRepo) List(context.Context, Filter, common_models.PageQuery) ([]workflow.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []workflow.Document
	for _, d := range r.docs {
		out = append(out, *d.Clone())
	}
	return out, int64(len(out)), nil
}

func (r *memRepo) CompareAndSwap(_ context.Context, doc *workflow.Document, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceStale > 0 {
		r.forceStale--
		return ErrStaleDocument
	}
	stored, ok := r.docs[doc.ID]
	if !ok || stored.LockVersion != expected {
		return ErrStaleDocument
	}
	next := doc.Clone()
	next.LockVersion = expected + 1
	r.docs[doc.ID] = next
	doc.LockVersion = next.LockVersion
	r.swaps++
	return nil
}

func (r *memRepo) ClaimCertificate(_ context.Context, id primitive.ObjectID, token string, now, staleBefore time.Time) (*workflow.CertificateClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[id]
	if !ok || stored.Certificate != nil || stored.Status != workflow.StatusFullySigned {
		return nil, nil
	}
	if c := stored.CertClaim; c != nil && c.Token != "" && !c.ClaimedAt.Before(staleBefore) {
		return nil, nil
	}
	if stored.CertClaim == nil {
		stored.CertClaim = &workflow.CertificateClaim{}
	}
	stored.CertClaim.Token = token
	stored.CertClaim.ClaimedAt = now
	claim := *stored.CertClaim
	return &claim, nil
}

func (r *memRepo) ReserveCertificateSeq(_ context.Context, id primitive.ObjectID, token string, seq int64, issuedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[id]
	if !ok || stored.Certificate != nil || stored.CertClaim == nil || stored.CertClaim.Token != token {
		return false, nil
	}
	stored.CertClaim.Seq = seq
	stored.CertClaim.IssuedAt = issuedAt
	return true, nil
}

func (r *memRepo) ReleaseCertificateClaim(_ context.Context, id primitive.ObjectID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.docs[id]; ok && stored.CertClaim != nil && stored.CertClaim.Token == token {
		stored.CertClaim.Token = ""
	}
	return nil
}

func (r *memRepo) SetCertificate(_ context.Context, id primitive.ObjectID, token string, cert *workflow.Certificate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[id]
	if !ok || stored.Certificate != nil || stored.Status != workflow.StatusFullySigned {
		return false, nil
	}
	if stored.CertClaim == nil || stored.CertClaim.Token != token {
		return false, nil
	}
	c := *cert
	stored.Certificate = &c
	stored.CertClaim = nil
	stored.LockVersion++
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, id primitive.ObjectID, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[id]
	if !ok || stored.LockVersion != expected || stored.EverSigned {
		return ErrStaleDocument
	}
	delete(r.docs, id)
	return nil
}

func (r *memRepo) FindByVerificationCode(_ context.Context, code string) (*workflow.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.Certificate != nil && d.Certificate.VerificationCode == code {
			return d.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListStalled(_ context.Context, idleSince time.Time) ([]workflow.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []workflow.Document
	for _, d := range r.docs {
		if d.Status.InReview() && d.UpdatedAt.Before(idleSince) {
			out = append(out, *d.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) ListUncertified(context.Context) ([]workflow.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []workflow.Document
	for _, d := range r.docs {
		if d.Status == workflow.StatusFullySigned && d.Certificate == nil {
			out = append(out, *d.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) ListIssued(context.Context, time.Time, time.Time) ([]workflow.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []workflow.Document
	for _, d := range r.docs {
		if d.Certificate != nil {
			out = append(out, *d.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) EnsureIndexes(context.Context) error { return nil }

func (r *memRepo) stored(id primitive.ObjectID) *workflow.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id].Clone()
}

type fakeTemplates struct {
	tpl *template.Template
}

func (f *fakeTemplates) CreateTemplate(context.Context, *template.Template, string) error { return nil }

func (f *fakeTemplates) GetTemplate(_ context.Context, id string) (*template.Template, error) {
	if id != f.tpl.ID.Hex() {
		return nil, workflow.NewNotFoundError("template", id)
	}
	return f.tpl, nil
}

func (f *fakeTemplates) ListTemplates(context.Context, string, bool) ([]template.Template, error) {
	return []template.Template{*f.tpl}, nil
}

func (f *fakeTemplates) UpdateTemplate(context.Context, string, *template.Template, string) (*template.Template, error) {
	return f.tpl, nil
}

func (f *fakeTemplates) DeleteTemplate(context.Context, string, string) error { return nil }

func (f *fakeTemplates) Snapshot(ctx context.Context, id string) (workflow.TemplateSnapshot, error) {
	tpl, err := f.GetTemplate(ctx, id)
	if err != nil {
		return workflow.TemplateSnapshot{}, err
	}
	return tpl.Snapshot(), nil
}

type fakeRevisions struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID][]revision.Revision
	purged  []primitive.ObjectID
}

func (f *fakeRevisions) Record(_ context.Context, documentID primitive.ObjectID, entry workflow.RevisionEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[primitive.ObjectID][]revision.Revision{}
	}
	f.entries[documentID] = append(f.entries[documentID], revision.Revision{
		ID:            primitive.NewObjectID(),
		DocumentID:    documentID,
		Version:       entry.Version,
		Type:          entry.Type,
		RevisionNotes: entry.Notes,
		CreatorID:     entry.CreatorID,
	})
}

func (f *fakeRevisions) History(_ context.Context, documentID primitive.ObjectID) ([]revision.Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]revision.Revision(nil), f.entries[documentID]...), nil
}

func (f *fakeRevisions) Purge(_ context.Context, documentID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, documentID)
	f.purged = append(f.purged, documentID)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	actions []common_models.AuditAction
}

func (f *fakeAudit) LogChange(_ context.Context, action common_models.AuditAction, _ string, _ string, _ string, _ map[string]common_models.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeAudit) ListLogs(context.Context, map[string]interface{}, common_models.PageQuery) ([]common_models.AuditLog, error) {
	return nil, nil
}

type sentNotification struct {
	Recipients []string
	Title      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Dispatch(_ context.Context, userIDs []string, title, _ string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{Recipients: userIDs, Title: title})
}

type fakeWebhooks struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeWebhooks) Trigger(_ context.Context, payload webhook.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, payload.Event)
}

// fakeCerts numbers certificates straight from the reserved sequence.
type fakeCerts struct {
	mu       sync.Mutex
	reserved int
	issued   int
	err      error // fails Reserve
	issueErr error
}

func (f *fakeCerts) Reserve(context.Context, workflow.Kind, time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.reserved++
	return int64(f.reserved), nil
}

func (f *fakeCerts) Issue(_ context.Context, _ *workflow.Document, seq int64, issuedAt time.Time) (*workflow.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issued++
	return &workflow.Certificate{
		Number:           fmt.Sprintf("%03d/LETTER/X/2026", seq),
		VerificationCode: primitive.NewObjectID().Hex(),
		Fingerprint:      "fp",
		IssuedAt:         issuedAt,
	}, nil
}

func (f *fakeCerts) Verify(context.Context, string) (*certificate.Verification, error) {
	return nil, nil
}

type harness struct {
	svc       *DocumentServiceImpl
	repo      *memRepo
	revisions *fakeRevisions
	audit     *fakeAudit
	notifier  *fakeNotifier
	webhooks  *fakeWebhooks
	certs     *fakeCerts
	tpl       *template.Template
}

func newHarness(policy workflow.SigningPolicy) *harness {
	tpl := &template.Template{
		ID:     primitive.NewObjectID(),
		Name:   "Outgoing letter",
		Kind:   workflow.KindLetter,
		Active: true,
		Slots: []workflow.Slot{
			{ID: "head", Label: "Head", Order: 1},
			{ID: "secretary", Label: "Secretary", Order: 2},
		},
		Variables: []workflow.Variable{{Key: "subject", Required: true}},
	}
	h := &harness{
		repo:      newMemRepo(),
		revisions: &fakeRevisions{},
		audit:     &fakeAudit{},
		notifier:  &fakeNotifier{},
		webhooks:  &fakeWebhooks{},
		certs:     &fakeCerts{},
		tpl:       tpl,
	}
	dispatcher := &Dispatcher{
		repo:      h.repo,
		revisions: h.revisions,
		audit:     h.audit,
		notifier:  h.notifier,
		webhooks:  h.webhooks,
		certs:     h.certs,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	h.svc = &DocumentServiceImpl{
		repo:       h.repo,
		templates:  &fakeTemplates{tpl: tpl},
		revisions:  h.revisions,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	return h
}
