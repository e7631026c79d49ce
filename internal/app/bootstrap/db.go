// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	reportstore "github.com/civicwatch/civicwatch/internal/app/store/reports"
	"github.com/civicwatch/civicwatch/internal/app/store/sessiontoken"
	userstore "github.com/civicwatch/civicwatch/internal/app/store/users"
	"github.com/civicwatch/civicwatch/internal/app/system/auth"
	"github.com/civicwatch/civicwatch/internal/app/system/identity"
	"github.com/civicwatch/civicwatch/internal/app/system/indexes"
	"github.com/civicwatch/civicwatch/internal/app/system/live"
	"github.com/civicwatch/civicwatch/internal/app/system/uploads"
	"github.com/civicwatch/civicwatch/internal/app/system/workers"
)

// ConnectDB builds every backend dependency: the Mongo connection,
// the local token store, the identity provider client, the stores,
// and the session manager on top of them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(appCfg.MongoDatabase)

	var blockKey []byte
	if appCfg.TokenBlockKey != "" {
		blockKey = []byte(appCfg.TokenBlockKey)
	}
	tokens, err := sessiontoken.Open(appCfg.TokenDBPath, []byte(appCfg.TokenHashKey), blockKey, logger)
	if err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("open session token store: %w", err)
	}

	provider := identity.NewClient(identity.Config{
		TokenURL:     appCfg.IdentityTokenURL,
		RegisterURL:  appCfg.IdentityRegisterURL,
		RevokeURL:    appCfg.IdentityRevokeURL,
		ClientID:     appCfg.IdentityClientID,
		ClientSecret: appCfg.IdentityClientSecret,
	}, logger)

	users := userstore.New(db)
	reports := reportstore.New(db)

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Tokens:        tokens,
		Identity:      provider,
		Uploads:       uploads.New(uploads.NewLocalDir(appCfg.StorageLocalPath, appCfg.StorageLocalURL)),
		Users:         users,
		Reports:       reports,
		Auth:          auth.New(provider, users, tokens, logger),
		Hub:           live.NewHub(db, logger),
	}
	deps.Restorer = workers.NewSessionRestore(deps.Auth, logger, appCfg.RestoreInterval)

	logger.Info("backends connected",
		zap.String("database", appCfg.MongoDatabase),
		zap.String("token_db", appCfg.TokenDBPath))
	return deps, nil
}

// EnsureSchema reconciles the index sets at startup. It is idempotent
// and fails fast so a misconfigured database is caught before traffic.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return indexes.EnsureAll(ctx, deps.MongoDatabase)
}
