// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CivicWatch.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, token_db_path, etc.
//   - Environment variables: CIVICWATCH_MONGO_URI, CIVICWATCH_TOKEN_DB_PATH, etc.
//   - Command-line flags: --mongo_uri, --token_db_path, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "civicwatch", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Local session-token store
	{Name: "token_db_path", Default: "./data/session", Desc: "Directory for the persisted session token database"},
	{Name: "token_hash_key", Default: "dev-only-change-me-0123456789ABCDEF", Desc: "HMAC key sealing the stored session token (must be strong in production)"},
	{Name: "token_block_key", Default: "", Desc: "Optional encryption key for the stored session token (16/24/32 bytes)"},

	// Identity provider
	{Name: "identity_token_url", Default: "", Desc: "Identity provider OAuth2 token endpoint"},
	{Name: "identity_register_url", Default: "", Desc: "Identity provider account creation endpoint"},
	{Name: "identity_revoke_url", Default: "", Desc: "Identity provider token revocation endpoint"},
	{Name: "identity_client_id", Default: "", Desc: "Identity provider OAuth2 client ID"},
	{Name: "identity_client_secret", Default: "", Desc: "Identity provider OAuth2 client secret"},

	// Session restore worker
	{Name: "restore_interval", Default: "30m", Desc: "How often the session token is refreshed (e.g., 30m, 1h)"},

	// Report image storage
	{Name: "storage_local_path", Default: "./uploads/reports", Desc: "Local storage path for report images"},
	{Name: "storage_local_url", Default: "/files/reports", Desc: "URL prefix for serving stored report images"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// CIVICWATCH_* environment variables, and command-line flags with
// precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CIVICWATCH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		TokenDBPath:   appValues.String("token_db_path"),
		TokenHashKey:  appValues.String("token_hash_key"),
		TokenBlockKey: appValues.String("token_block_key"),

		IdentityTokenURL:     appValues.String("identity_token_url"),
		IdentityRegisterURL:  appValues.String("identity_register_url"),
		IdentityRevokeURL:    appValues.String("identity_revoke_url"),
		IdentityClientID:     appValues.String("identity_client_id"),
		IdentityClientSecret: appValues.String("identity_client_secret"),

		RestoreInterval: appValues.Duration("restore_interval", 30*time.Minute),

		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// CivicWatch validates the MongoDB URI format and the identity
// endpoints to catch configuration errors before connecting anywhere.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.IdentityTokenURL == "" {
		return fmt.Errorf("identity_token_url is required")
	}

	switch len(appCfg.TokenBlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("token_block_key must be empty or 16/24/32 bytes, got %d", len(appCfg.TokenBlockKey))
	}

	return nil
}
