package document

import (
	"context"
	"time"

	common_models "go-letters/internal/common/models"
	"go-letters/internal/features/audit"
	"go-letters/internal/features/certificate"
	"go-letters/internal/features/notification"
	"go-letters/internal/features/revision"
	"go-letters/internal/features/webhook"
	"go-letters/internal/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type webhookTrigger interface {
	Trigger(ctx context.Context, payload webhook.Payload)
}

// Dispatcher runs the side effects of a committed transition. None of them
// can undo the transition; failures are logged and dropped.
type Dispatcher struct {
	repo      DocumentRepository
	revisions revision.RevisionService
	audit     audit.AuditService
	notifier  notification.Dispatcher
	webhooks  webhookTrigger
	certs     certificate.CertificateService
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(
	repo DocumentRepository,
	revisions revision.RevisionService,
	auditService audit.AuditService,
	notifier notification.NotificationService,
	webhooks webhook.WebhookService,
	certs certificate.CertificateService,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		revisions: revisions,
		audit:     auditService,
		notifier:  notifier,
		webhooks:  webhooks,
		certs:     certs,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Committed handles one committed outcome. It detaches from the request
// context so a client hanging up does not cut the side effects short.
func (d *Dispatcher) Committed(ctx context.Context, action common_models.AuditAction, actorID string, out *workflow.Outcome) {
	ctx = context.WithoutCancel(ctx)
	doc := out.Document
	log := d.logger.With(zap.String("document_id", doc.ID.Hex()), zap.String("user_id", actorID))

	for _, entry := range out.Revisions {
		d.revisions.Record(ctx, doc.ID, entry)
	}

	changes := map[string]common_models.Change{}
	if out.Previous != doc.Status {
		changes["status"] = common_models.Change{Old: out.Previous, New: doc.Status}
	}
	if err := d.audit.LogChange(ctx, action, "documents", doc.ID.Hex(), actorID, changes); err != nil {
		log.Warn("failed to write audit log", zap.Error(err))
	}

	if doc.Status == workflow.StatusFullySigned && doc.Certificate == nil {
		d.IssueCertificate(ctx, doc)
	}

	for _, evt := range out.Events {
		if len(evt.Recipients) > 0 {
			d.notifier.Dispatch(ctx, evt.Recipients, evt.Title, evt.Message, evt.Metadata)
		}
		d.webhooks.Trigger(ctx, webhook.PayloadFor(evt, doc))
	}
}

// claimTTL bounds how long a crashed issuer can keep others from issuing.
const claimTTL = 10 * time.Minute

// IssueCertificate issues and stores a certificate for a fully signed
// document. Only the issuer holding the document's claim draws a number, so
// losing a race never consumes one; a failed attempt releases the claim and
// leaves its number for the next attempt.
func (d *Dispatcher) IssueCertificate(ctx context.Context, doc *workflow.Document) {
	log := d.logger.With(zap.String("document_id", doc.ID.Hex()))
	now := d.now()

	claim, err := d.repo.ClaimCertificate(ctx, doc.ID, uuid.NewString(), now, now.Add(-claimTTL))
	if err != nil {
		log.Error("failed to claim certificate issuance", zap.Error(err))
		return
	}
	if claim == nil {
		log.Info("certificate already issued or being issued elsewhere")
		return
	}

	if claim.Seq == 0 {
		seq, err := d.certs.Reserve(ctx, doc.Kind, now)
		if err != nil {
			log.Error("failed to reserve certificate number", zap.Error(err))
			d.release(ctx, doc, claim.Token)
			return
		}
		ok, err := d.repo.ReserveCertificateSeq(ctx, doc.ID, claim.Token, seq, now)
		if err != nil || !ok {
			log.Error("reserved certificate number was not recorded",
				zap.Int64("seq", seq), zap.Bool("claim_lost", !ok), zap.Error(err))
			return
		}
		claim.Seq, claim.IssuedAt = seq, now
	}

	cert, err := d.certs.Issue(ctx, doc, claim.Seq, claim.IssuedAt)
	if err != nil {
		log.Error("failed to issue certificate", zap.Int64("seq", claim.Seq), zap.Error(err))
		d.release(ctx, doc, claim.Token)
		return
	}
	stored, err := d.repo.SetCertificate(ctx, doc.ID, claim.Token, cert)
	if err != nil {
		log.Error("failed to store certificate", zap.Error(err))
		d.release(ctx, doc, claim.Token)
		return
	}
	if !stored {
		log.Warn("certificate claim was taken over before the certificate was stored", zap.Int64("seq", claim.Seq))
		return
	}

	doc.Certificate = cert
	if err := d.audit.LogChange(ctx, common_models.AuditActionIssue, "documents", doc.ID.Hex(), "system",
		map[string]common_models.Change{"number": {Old: nil, New: cert.Number}}); err != nil {
		log.Warn("failed to write audit log", zap.Error(err))
	}
	log.Info("certificate issued", zap.String("number", cert.Number))
}

func (d *Dispatcher) release(ctx context.Context, doc *workflow.Document, token string) {
	if err := d.repo.ReleaseCertificateClaim(ctx, doc.ID, token); err != nil {
		d.logger.Warn("failed to release certificate claim", zap.String("document_id", doc.ID.Hex()), zap.Error(err))
	}
}
