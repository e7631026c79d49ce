// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down workers, stores, and DB connections in the
// reverse order of ConnectDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Restorer != nil {
		logger.Info("stopping session restore worker")
		deps.Restorer.Stop()
	}

	if deps.Auth != nil {
		deps.Auth.Close()
	}

	if deps.Tokens != nil {
		logger.Info("closing session token store")
		if err := deps.Tokens.Close(); err != nil {
			logger.Error("session token store close failed", zap.Error(err))
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting CivicWatch MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
