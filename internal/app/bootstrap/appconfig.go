// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP ports,
// TLS, logging level, and request limits. AppConfig is everything
// specific to this application.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Local session-token store (badger)
	TokenDBPath   string // Directory for the persisted session token database
	TokenHashKey  string // HMAC key for sealing the stored token (32 or 64 bytes)
	TokenBlockKey string // Encryption key for sealing the stored token (16/24/32 bytes)

	// Identity provider endpoints
	IdentityTokenURL     string // OAuth2 token endpoint (password + refresh grants)
	IdentityRegisterURL  string // Account creation endpoint
	IdentityRevokeURL    string // Token revocation endpoint
	IdentityClientID     string
	IdentityClientSecret string

	// Session restore worker
	RestoreInterval time.Duration // How often the session token is refreshed

	// Report image storage
	StorageLocalPath string // Local storage path (e.g., "./uploads/reports")
	StorageLocalURL  string // URL prefix for serving stored files
}
