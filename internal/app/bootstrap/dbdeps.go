// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"

	userstore "github.com/civicwatch/civicwatch/internal/app/store/users"
	reportstore "github.com/civicwatch/civicwatch/internal/app/store/reports"
	"github.com/civicwatch/civicwatch/internal/app/store/sessiontoken"
	"github.com/civicwatch/civicwatch/internal/app/system/auth"
	"github.com/civicwatch/civicwatch/internal/app/system/identity"
	"github.com/civicwatch/civicwatch/internal/app/system/live"
	"github.com/civicwatch/civicwatch/internal/app/system/uploads"
	"github.com/civicwatch/civicwatch/internal/app/system/workers"
)

// DBDeps holds database/back-end dependencies for the app.
// Everything is built in ConnectDB and torn down in Shutdown.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Tokens   *sessiontoken.Store
	Identity *identity.Client
	Uploads  *uploads.Uploader

	Users   *userstore.Store
	Reports *reportstore.Store

	Auth     *auth.Manager
	Hub      *live.Hub
	Restorer *workers.SessionRestore
}
