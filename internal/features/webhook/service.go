package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"go-letters/internal/common/models"
	"go-letters/internal/common/response"
	"go-letters/internal/features/audit"
	"go-letters/internal/workflow"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	HeaderEvent     = "X-Letters-Event"
	HeaderDelivery  = "X-Letters-Delivery"
	HeaderSignature = "X-Letters-Signature"
)

type WebhookService interface {
	CreateWebhook(ctx context.Context, webhook *Webhook, actorID string) error
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	GetWebhook(ctx context.Context, id string) (*Webhook, error)
	UpdateWebhook(ctx context.Context, id string, webhook *Webhook, actorID string) (*Webhook, error)
	DeleteWebhook(ctx context.Context, id string, actorID string) error
	ListLogs(ctx context.Context, id string) ([]WebhookLog, error)
	// Trigger fans payload out to every subscriber in the background.
	Trigger(ctx context.Context, payload Payload)
	// Wait blocks until in-flight deliveries finish.
	Wait()
}

type WebhookServiceImpl struct {
	Repo         WebhookRepository
	LogRepo      WebhookLogRepository
	AuditService audit.AuditService
	HttpClient   *http.Client
	Logger       *zap.Logger
	inflight     sync.WaitGroup
}

func NewWebhookService(repo WebhookRepository, logRepo WebhookLogRepository, auditService audit.AuditService, logger *zap.Logger) WebhookService {
	return &WebhookServiceImpl{
		Repo:         repo,
		LogRepo:      logRepo,
		AuditService: auditService,
		HttpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Logger: logger,
	}
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, workflow.NewNotFoundError("webhook", id)
	}
	return oid, nil
}

func validateEvents(events []string) error {
	known := map[string]bool{"*": true}
	for _, k := range workflow.EventKinds() {
		known[string(k)] = true
	}
	var bad []string
	for _, e := range events {
		if !known[e] {
			bad = append(bad, "events."+e)
		}
	}
	if len(bad) > 0 {
		return workflow.NewValidationError("unknown event", bad...)
	}
	return nil
}

func (s *WebhookServiceImpl) CreateWebhook(ctx context.Context, webhook *Webhook, actorID string) error {
	if err := response.Struct(webhook); err != nil {
		return err
	}
	if err := validateEvents(webhook.Events); err != nil {
		return err
	}

	webhook.CreatedBy = actorID
	webhook.IsActive = true
	if err := s.Repo.Create(ctx, webhook); err != nil {
		return err
	}
	s.audit(ctx, webhook.ID.Hex(), actorID, map[string]models.Change{
		"url": {New: webhook.URL},
	})
	return nil
}

func (s *WebhookServiceImpl) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	webhooks, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if webhooks == nil {
		webhooks = []Webhook{}
	}
	return webhooks, nil
}

func (s *WebhookServiceImpl) GetWebhook(ctx context.Context, id string) (*Webhook, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	webhook, err := s.Repo.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, workflow.NewNotFoundError("webhook", id)
	}
	return webhook, nil
}

func (s *WebhookServiceImpl) UpdateWebhook(ctx context.Context, id string, webhook *Webhook, actorID string) (*Webhook, error) {
	existing, err := s.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := response.Struct(webhook); err != nil {
		return nil, err
	}
	if err := validateEvents(webhook.Events); err != nil {
		return nil, err
	}

	webhook.ID = existing.ID
	webhook.CreatedBy = existing.CreatedBy
	webhook.CreatedAt = existing.CreatedAt
	if webhook.Secret == "" {
		webhook.Secret = existing.Secret
	}
	if err := s.Repo.Replace(ctx, webhook); err != nil {
		return nil, err
	}
	s.audit(ctx, id, actorID, map[string]models.Change{
		"url":       {Old: existing.URL, New: webhook.URL},
		"is_active": {Old: existing.IsActive, New: webhook.IsActive},
	})
	return webhook, nil
}

func (s *WebhookServiceImpl) DeleteWebhook(ctx context.Context, id string, actorID string) error {
	existing, err := s.GetWebhook(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, existing.ID); err != nil {
		return err
	}
	s.audit(ctx, id, actorID, map[string]models.Change{
		"url": {Old: existing.URL, New: "DELETED"},
	})
	return nil
}

func (s *WebhookServiceImpl) ListLogs(ctx context.Context, id string) ([]WebhookLog, error) {
	existing, err := s.GetWebhook(ctx, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.LogRepo.ListByWebhookID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []WebhookLog{}
	}
	return logs, nil
}

func (s *WebhookServiceImpl) Trigger(ctx context.Context, payload Payload) {
	webhooks, err := s.Repo.ListByEvent(ctx, payload.Event)
	if err != nil {
		s.Logger.Error("failed to load webhooks", zap.String("event", payload.Event), zap.Error(err))
		return
	}

	for _, wh := range webhooks {
		if wh.Kind != "" && wh.Kind != payload.Kind {
			continue
		}

		p := payload
		p.DeliveryID = uuid.NewString()
		s.inflight.Add(1)
		go func(wh Webhook) {
			defer s.inflight.Done()
			s.sendWebhook(wh, p)
		}(wh)
	}
}

func (s *WebhookServiceImpl) Wait() {
	s.inflight.Wait()
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookServiceImpl) sendWebhook(wh Webhook, payload Payload) {
	entry := &WebhookLog{
		WebhookID:  wh.ID,
		DeliveryID: payload.DeliveryID,
		URL:        wh.URL,
		Event:      payload.Event,
		Request:    payload,
	}
	start := time.Now()
	defer func() {
		entry.Duration = time.Since(start).Milliseconds()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.LogRepo.Create(ctx, entry); err != nil {
			s.Logger.Warn("failed to store webhook log", zap.String("webhook_id", wh.ID.Hex()), zap.Error(err))
		}
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		entry.Response = err.Error()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.HttpClient.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		entry.Response = err.Error()
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Go-Letters-Webhook")
	req.Header.Set(HeaderEvent, payload.Event)
	req.Header.Set(HeaderDelivery, payload.DeliveryID)
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}
	if wh.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(wh.Secret, body))
	}

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		entry.Response = err.Error()
		s.Logger.Warn("webhook delivery failed",
			zap.String("url", wh.URL), zap.String("event", payload.Event), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	entry.StatusCode = resp.StatusCode
	entry.Response = string(respBody)
	entry.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !entry.Success {
		s.Logger.Warn("webhook rejected",
			zap.String("url", wh.URL), zap.Int("status", resp.StatusCode), zap.String("event", payload.Event))
	}
}

func (s *WebhookServiceImpl) audit(ctx context.Context, id, actorID string, changes map[string]models.Change) {
	if err := s.AuditService.LogChange(ctx, models.AuditActionWebhook, "webhooks", id, actorID, changes); err != nil {
		s.Logger.Warn("failed to write webhook audit log", zap.String("webhook_id", id), zap.Error(err))
	}
}

// PayloadFor builds the delivery body of a committed workflow event.
func PayloadFor(evt workflow.Event, doc *workflow.Document) Payload {
	p := Payload{
		Event:      string(evt.Kind),
		DocumentID: doc.ID.Hex(),
		Kind:       doc.Kind,
		Title:      doc.Title,
		Status:     doc.Status,
		Version:    doc.CurrentVersion,
		ActorID:    evt.ActorID,
		Progress:   doc.Progress(),
		Timestamp:  time.Now().UTC(),
	}
	if doc.Certificate != nil {
		p.Number = doc.Certificate.Number
	}
	return p
}
