package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionApproval AuditAction = "APPROVAL"
	AuditActionRevoke   AuditAction = "REVOKE"
	AuditActionTemplate AuditAction = "TEMPLATE"
	AuditActionWebhook  AuditAction = "WEBHOOK"
	AuditActionIssue    AuditAction = "ISSUE"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`                       // Collection the record lives in
	RecordID  string             `bson:"record_id" json:"record_id"`                 // The ID of the record being modified
	ActorID   string             `bson:"actor_id" json:"actor_id"`                   // User ID who performed the action
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"` // field -> {old, new}
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// PageQuery is the page/limit pair shared by list endpoints
type PageQuery struct {
	Page  int64
	Limit int64
}

// Normalize clamps page and limit to sane values
func (p PageQuery) Normalize(defaultLimit int64) PageQuery {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p PageQuery) Skip() int64 {
	return (p.Page - 1) * p.Limit
}
