package certificate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go-letters/internal/config"
	"go-letters/internal/numbering"
	"go-letters/internal/workflow"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

type CertificateService interface {
	// Reserve draws the next number in the kind's sequence for the year of at.
	// Callers must hold the document's issuance claim; a drawn number is
	// never handed out again.
	Reserve(ctx context.Context, kind workflow.Kind, at time.Time) (int64, error)
	// Issue renders the certificate of a fully signed document from a reserved
	// sequence number. It has no side effects and may be repeated.
	Issue(ctx context.Context, doc *workflow.Document, seq int64, issuedAt time.Time) (*workflow.Certificate, error)
	Verify(ctx context.Context, code string) (*Verification, error)
}

type CertificateServiceImpl struct {
	counters CounterRepository
	lookup   DocumentLookup
	baseURL  string
}

func NewCertificateService(counters CounterRepository, lookup DocumentLookup, cfg *config.Config) CertificateService {
	return &CertificateServiceImpl{
		counters: counters,
		lookup:   lookup,
		baseURL:  cfg.VerifyBaseURL,
	}
}

func counterKey(kind workflow.Kind, year int) string {
	return fmt.Sprintf("%s:%d", kind, year)
}

func (s *CertificateServiceImpl) Reserve(ctx context.Context, kind workflow.Kind, at time.Time) (int64, error) {
	return s.counters.Next(ctx, counterKey(kind, at.UTC().Year()))
}

func (s *CertificateServiceImpl) Issue(ctx context.Context, doc *workflow.Document, seq int64, issuedAt time.Time) (*workflow.Certificate, error) {
	if doc.Status != workflow.StatusFullySigned {
		return nil, workflow.NewConflictError(fmt.Sprintf("cannot issue a certificate for a %s document", doc.Status))
	}
	if doc.Certificate != nil {
		return doc.Certificate, nil
	}
	if seq <= 0 {
		return nil, fmt.Errorf("no sequence number reserved for document %s", doc.ID.Hex())
	}

	issuedAt = issuedAt.UTC()
	script, templateName := "", ""
	if doc.Template != nil {
		script, templateName = doc.Template.NumberFormat, doc.Template.Name
	}
	number, err := numbering.Format(ctx, script, numbering.Input{
		Seq:      seq,
		Kind:     string(doc.Kind),
		Template: templateName,
		IssuedAt: issuedAt,
	})
	if err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(doc, number)
	if err != nil {
		return nil, err
	}

	code := uuid.NewString()
	return &workflow.Certificate{
		Number:           number,
		VerificationCode: code,
		VerificationURL:  s.baseURL + "/" + code,
		Fingerprint:      fingerprint,
		IssuedAt:         issuedAt,
	}, nil
}

// Verify re-derives the fingerprint from the stored document; a mismatch
// means the signatures changed after issuance.
func (s *CertificateServiceImpl) Verify(ctx context.Context, code string) (*Verification, error) {
	if _, err := uuid.Parse(code); err != nil {
		return nil, workflow.NewNotFoundError("certificate", code)
	}
	doc, err := s.lookup.FindByVerificationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.Certificate == nil {
		return nil, workflow.NewNotFoundError("certificate", code)
	}

	fingerprint, err := Fingerprint(doc, doc.Certificate.Number)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		Valid:       fingerprint == doc.Certificate.Fingerprint && doc.Status == workflow.StatusFullySigned,
		Number:      doc.Certificate.Number,
		DocumentID:  doc.ID.Hex(),
		Kind:        doc.Kind,
		Title:       doc.Title,
		Version:     doc.CurrentVersion,
		IssuedAt:    doc.Certificate.IssuedAt,
		Fingerprint: doc.Certificate.Fingerprint,
	}
	for _, sig := range doc.Signatories {
		v.Signatories = append(v.Signatories, VerifiedSignatory{
			Label:    sig.Label,
			UserID:   sig.UserID,
			SignedAt: sig.SignedAt,
		})
	}
	return v, nil
}

// Fingerprint is the hex SHA-256 of the JCS-canonical SignedData. Times are
// truncated to the millisecond so the value survives a database round trip.
func Fingerprint(doc *workflow.Document, number string) (string, error) {
	data := SignedData{
		DocumentID: doc.ID.Hex(),
		Kind:       doc.Kind,
		Title:      doc.Title,
		Version:    doc.CurrentVersion,
		Number:     number,
	}
	for _, sig := range doc.Signatories {
		seat := SignedSeat{
			SlotID:    sig.SlotID,
			UserID:    sig.UserID,
			SignOrder: sig.SignOrder,
			SignedSeq: sig.SignedSeq,
		}
		if sig.SignedAt != nil {
			seat.SignedAt = sig.SignedAt.UTC().Truncate(time.Millisecond)
		}
		data.Signatories = append(data.Signatories, seat)
	}
	sort.Slice(data.Signatories, func(i, j int) bool {
		return data.Signatories[i].SlotID < data.Signatories[j].SlotID
	})

	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize signed data: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
