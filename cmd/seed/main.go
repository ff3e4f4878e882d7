package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go-letters/internal/config"
	"go-letters/internal/database"
	"go-letters/internal/features/audit"
	"go-letters/internal/features/template"
	"go-letters/internal/logger"
	"go-letters/pkg/utils"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type seedUser struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

// Seed loads the starter templates and prints development tokens
func Seed(
	lc fx.Lifecycle,
	cfg *config.Config,
	templates template.TemplateService,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()

				// Helper to read JSON
				readJSON := func(path string, v interface{}) error {
					b, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					return json.Unmarshal(b, v)
				}

				// Data Paths (Assuming running from repository root)
				templatesPath := "cmd/seed/data/templates.json"
				usersPath := "cmd/seed/data/users.json"

				var tpls []template.Template
				if err := readJSON(templatesPath, &tpls); err != nil {
					logger.Error("Failed to read templates.json", zap.Error(err))
					return
				}

				existing, err := templates.ListTemplates(ctx, "", false)
				if err != nil {
					logger.Error("Failed to list templates", zap.Error(err))
					return
				}
				byName := make(map[string]bool, len(existing))
				for _, t := range existing {
					byName[t.Name] = true
				}

				for i := range tpls {
					tpl := &tpls[i]
					if byName[tpl.Name] {
						logger.Info("Template exists, skipping", zap.String("template", tpl.Name))
						continue
					}
					if err := templates.CreateTemplate(ctx, tpl, "seed"); err != nil {
						logger.Error("Failed to create template", zap.String("template", tpl.Name), zap.Error(err))
						continue
					}
					logger.Info("Template created", zap.String("template", tpl.Name), zap.String("id", tpl.ID.Hex()))
				}

				var users []seedUser
				if err := readJSON(usersPath, &users); err != nil {
					logger.Warn("Failed to read users.json, skipping tokens", zap.Error(err))
					return
				}
				utils.SetSecret(cfg.JWTSecret)
				for _, u := range users {
					token, err := utils.GenerateToken(u.UserID, u.Name, u.Roles, 30*24*time.Hour)
					if err != nil {
						logger.Error("Failed to sign token", zap.String("user_id", u.UserID), zap.Error(err))
						continue
					}
					fmt.Printf("%-10s %-28s %s\n", u.UserID, fmt.Sprint(u.Roles), token)
				}

				logger.Info("Seeding complete")
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			audit.NewAuditRepository,
			audit.NewAuditService,
			template.NewTemplateRepository,
			template.NewTemplateService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
