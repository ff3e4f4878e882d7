package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-letters/internal/config"
	"go-letters/internal/features/document"
	"go-letters/internal/features/notification"
	"go-letters/internal/workflow"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type ReminderService interface {
	// RunNow nudges signatories of stalled documents and retries missing
	// certificates. Only one run executes at a time.
	RunNow(ctx context.Context, trigger string) (*Run, error)
	ListRuns(ctx context.Context, limit int64) ([]Run, error)
	Start() error
	Stop()
}

type documentSource interface {
	ListStalled(ctx context.Context, idleSince time.Time) ([]workflow.Document, error)
	ListUncertified(ctx context.Context) ([]workflow.Document, error)
}

type certificateIssuer interface {
	IssueCertificate(ctx context.Context, doc *workflow.Document)
}

type notifier interface {
	Notify(ctx context.Context, userIDs []string, notifType notification.NotificationType, title, message string, metadata map[string]any) error
}

type ReminderServiceImpl struct {
	docs      documentSource
	issuer    certificateIssuer
	notifier  notifier
	runs      RunRepository
	schedule  string
	idleAfter time.Duration
	logger    *zap.Logger
	now       func() time.Time

	scheduler *cron.Cron
	running   sync.Mutex
}

func NewReminderService(
	docs document.DocumentRepository,
	dispatcher *document.Dispatcher,
	notifications notification.NotificationService,
	runs RunRepository,
	cfg *config.Config,
	logger *zap.Logger,
) ReminderService {
	return &ReminderServiceImpl{
		docs:      docs,
		issuer:    dispatcher,
		notifier:  notifications,
		runs:      runs,
		schedule:  cfg.ReminderSchedule,
		idleAfter: time.Duration(cfg.ReminderAfterHours) * time.Hour,
		logger:    logger.Named("reminder"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReminderServiceImpl) RunNow(ctx context.Context, trigger string) (*Run, error) {
	if !s.running.TryLock() {
		return nil, workflow.NewConflictError("a reminder run is already in progress")
	}
	defer s.running.Unlock()

	run := &Run{Trigger: trigger, StartTime: s.now(), Status: RunRunning}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Warn("failed to record reminder run", zap.Error(err))
	}

	remindErr := s.remindStalled(ctx, run)
	backfillErr := s.backfillCertificates(ctx, run)

	end := s.now()
	run.EndTime = &end
	run.Status = RunSuccess
	if err := errors.Join(remindErr, backfillErr); err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	}
	if err := s.runs.Update(ctx, run); err != nil {
		s.logger.Warn("failed to update reminder run", zap.Error(err))
	}

	s.logger.Info("reminder run finished",
		zap.String("status", string(run.Status)),
		zap.Int("stalled", run.DocumentsStalled),
		zap.Int("sent", run.RemindersSent),
		zap.Int("certificates_retried", run.CertificatesRetry))
	return run, nil
}

func (s *ReminderServiceImpl) remindStalled(ctx context.Context, run *Run) error {
	docs, err := s.docs.ListStalled(ctx, s.now().Add(-s.idleAfter))
	if err != nil {
		return fmt.Errorf("failed to list stalled documents: %w", err)
	}
	run.DocumentsStalled = len(docs)

	for i := range docs {
		doc := &docs[i]
		var recipients []string
		for _, sig := range doc.Actionable() {
			recipients = append(recipients, sig.UserID)
		}
		if len(recipients) == 0 {
			continue
		}

		waiting := s.now().Sub(doc.UpdatedAt).Truncate(time.Hour)
		err := s.notifier.Notify(ctx, recipients, notification.NotificationTypeReminder,
			"Signature reminder",
			fmt.Sprintf("%q has been waiting for your signature for %s", doc.Title, waiting),
			map[string]any{"document_id": doc.ID.Hex(), "version": doc.CurrentVersion})
		if err != nil {
			s.logger.Warn("failed to send reminder", zap.String("document_id", doc.ID.Hex()), zap.Error(err))
			continue
		}
		run.RemindersSent += len(recipients)
	}
	return nil
}

func (s *ReminderServiceImpl) backfillCertificates(ctx context.Context, run *Run) error {
	docs, err := s.docs.ListUncertified(ctx)
	if err != nil {
		return fmt.Errorf("failed to list uncertified documents: %w", err)
	}
	for i := range docs {
		s.issuer.IssueCertificate(ctx, &docs[i])
		run.CertificatesRetry++
	}
	return nil
}

func (s *ReminderServiceImpl) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []Run{}
	}
	return runs, nil
}

func (s *ReminderServiceImpl) Start() error {
	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.schedule, func() {
		if _, err := s.RunNow(context.Background(), "schedule"); err != nil {
			s.logger.Info("skipped scheduled reminder run", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.schedule, err)
	}
	s.scheduler.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", s.schedule))
	return nil
}

func (s *ReminderServiceImpl) Stop() {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
}
