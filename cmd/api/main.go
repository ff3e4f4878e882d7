package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_api "go-letters/internal/common/api"
	"go-letters/internal/common/response"
	"go-letters/internal/config"
	"go-letters/internal/database"
	"go-letters/internal/features/audit"
	"go-letters/internal/features/certificate"
	"go-letters/internal/features/document"
	"go-letters/internal/features/notification"
	"go-letters/internal/features/reminder"
	"go-letters/internal/features/revision"
	"go-letters/internal/features/system"
	"go-letters/internal/features/template"
	"go-letters/internal/features/webhook"
	"go-letters/internal/logger"
	"go-letters/internal/middleware"
	"go-letters/internal/ratelimit"
	"go-letters/pkg/utils"

	_ "go-letters/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(response.ErrorBody{
					Error: response.ErrorDetail{Kind: "http_error", Message: e.Message},
				})
			}
			log.Error("unhandled error",
				zap.String("path", c.Path()),
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.Error(err))
			return response.Error(c, err)
		},
	})

	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, log *zap.Logger) {
	log.Info("registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		log.Debug("setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, log *zap.Logger, shutdowner fx.Shutdowner) {
	utils.SetSecret(cfg.JWTSecret)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				log.Info("listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					log.Error("server failed to start", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, documentRepo document.DocumentRepository, revisionRepo revision.RevisionRepository, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				// Use a background context with timeout for index creation
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := documentRepo.EnsureIndexes(ctx); err != nil {
					log.Error("failed to ensure document indexes", zap.Error(err))
				}
				if err := revisionRepo.EnsureIndexes(ctx); err != nil {
					log.Error("failed to ensure revision indexes", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

// RunReminders starts the reminder scheduler and drains webhook deliveries
// on shutdown.
func RunReminders(lc fx.Lifecycle, reminders reminder.ReminderService, webhooks webhook.WebhookService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return reminders.Start()
		},
		OnStop: func(ctx context.Context) error {
			reminders.Stop()
			webhooks.Wait()
			return nil
		},
	})
}

// @title           Letters API
// @version         1.0
// @description     Document signing workflow: templates, drafts, signatures, revisions and verifiable certificates.

// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,
			ratelimit.NewLimiter,
			notification.NewHub,

			// Initialize Repository
			audit.NewAuditRepository,
			template.NewTemplateRepository,
			document.NewDocumentRepository,
			revision.NewRevisionRepository,
			certificate.NewCounterRepository,
			notification.NewNotificationRepository,
			webhook.NewWebhookRepository,
			webhook.NewWebhookLogRepository,
			reminder.NewRunRepository,

			audit.NewAuditService,
			template.NewTemplateService,
			revision.NewRevisionService,
			certificate.NewCertificateService,
			notification.NewNotificationService,
			webhook.NewWebhookService,
			document.NewDispatcher,
			document.NewDocumentService,
			reminder.NewReminderService,

			// Interface Adapters to satisfy Fx
			func(r document.DocumentRepository) certificate.DocumentLookup { return r },

			// Initialize Controller
			audit.NewAuditController,
			template.NewTemplateController,
			document.NewDocumentController,
			certificate.NewCertificateController,
			notification.NewNotificationController,
			webhook.NewWebhookController,
			reminder.NewReminderController,
			system.NewHealthController,
			system.NewSessionController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(template.NewTemplateApi),
			AsRoute(document.NewDocumentApi),
			AsRoute(certificate.NewCertificateApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(webhook.NewWebhookApi),
			AsRoute(reminder.NewReminderApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSessionApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			InitializeIndexes,
			RunReminders,
		),
	)

	app.Run()
}
