package webhook

import (
	"time"

	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Webhook represents a URL subscription for workflow events
type Webhook struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	URL         string             `json:"url" bson:"url" validate:"required,url"`
	Secret      string             `json:"secret,omitempty" bson:"secret,omitempty"` // For HMAC signature
	Events      []string           `json:"events" bson:"events" validate:"required,min=1"`
	Kind        workflow.Kind      `json:"kind,omitempty" bson:"kind,omitempty" validate:"omitempty,oneof=letter leave"` // Optional: limit to one document kind
	Headers     map[string]string  `json:"headers,omitempty" bson:"headers,omitempty"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`

	CreatedBy string    `json:"created_by" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Payload is the JSON body posted to subscribers
type Payload struct {
	DeliveryID string            `json:"delivery_id"`
	Event      string            `json:"event"`
	DocumentID string            `json:"document_id"`
	Kind       workflow.Kind     `json:"kind"`
	Title      string            `json:"title"`
	Status     workflow.Status   `json:"status"`
	Version    int               `json:"version"`
	ActorID    string            `json:"actor_id"`
	Progress   workflow.Progress `json:"progress"`
	Number     string            `json:"number,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// WebhookLog represents a single delivery attempt
type WebhookLog struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	WebhookID  primitive.ObjectID `json:"webhook_id" bson:"webhook_id"`
	DeliveryID string             `json:"delivery_id" bson:"delivery_id"`
	URL        string             `json:"url" bson:"url"`
	Event      string             `json:"event" bson:"event"`
	Request    any                `json:"request" bson:"request"`
	Response   string             `json:"response,omitempty" bson:"response,omitempty"` // Body or error message
	StatusCode int                `json:"status_code" bson:"status_code"`
	Success    bool               `json:"success" bson:"success"`
	Duration   int64              `json:"duration" bson:"duration"` // Duration in milliseconds
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
