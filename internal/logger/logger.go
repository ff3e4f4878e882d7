package logger

import (
	"go-letters/internal/config"
	"go-letters/internal/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger builds the console logger and tees every entry into the logs collection.
func NewLogger(lc fx.Lifecycle, cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Caller function names are persisted with each entry
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	dbWriter := NewDBLogWriter(mongodb.DB.Collection("logs"), cfg.AppId)
	lc.Append(fx.StopHook(func() {
		dbWriter.Close()
		_ = baseLogger.Sync()
	}))

	finalCore := NewDBCore(baseLogger.Core(), dbWriter)
	return zap.New(finalCore, zap.AddCaller()), nil
}
