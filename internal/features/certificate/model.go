package certificate

import (
	"time"

	"go-letters/internal/workflow"
)

// SignedData is the canonical content a certificate fingerprint covers.
type SignedData struct {
	DocumentID  string        `json:"document_id"`
	Kind        workflow.Kind `json:"kind"`
	Title       string        `json:"title"`
	Version     int           `json:"version"`
	Number      string        `json:"number"`
	Signatories []SignedSeat  `json:"signatories"`
}

type SignedSeat struct {
	SlotID    string    `json:"slot_id"`
	UserID    string    `json:"user_id"`
	SignOrder int       `json:"sign_order"`
	SignedSeq int       `json:"signed_seq"`
	SignedAt  time.Time `json:"signed_at"`
}

// Verification is what the public verification endpoint returns
type Verification struct {
	Valid       bool                `json:"valid"`
	Number      string              `json:"number"`
	DocumentID  string              `json:"document_id"`
	Kind        workflow.Kind       `json:"kind"`
	Title       string              `json:"title"`
	Version     int                 `json:"version"`
	IssuedAt    time.Time           `json:"issued_at"`
	Fingerprint string              `json:"fingerprint"`
	Signatories []VerifiedSignatory `json:"signatories"`
}

type VerifiedSignatory struct {
	Label    string     `json:"label"`
	UserID   string     `json:"user_id"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}
