package reminder

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Run records a single pass of the reminder job
type Run struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Trigger           string             `json:"trigger" bson:"trigger"` // "schedule" or "manual"
	StartTime         time.Time          `json:"start_time" bson:"start_time"`
	EndTime           *time.Time         `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Status            RunStatus          `json:"status" bson:"status"`
	DocumentsStalled  int                `json:"documents_stalled" bson:"documents_stalled"`
	RemindersSent     int                `json:"reminders_sent" bson:"reminders_sent"`
	CertificatesRetry int                `json:"certificates_retried" bson:"certificates_retried"`
	Error             string             `json:"error,omitempty" bson:"error,omitempty"`
}
