// internal/app/system/workers/sessionrestore.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicwatch/civicwatch/internal/app/system/auth"
	"github.com/civicwatch/civicwatch/internal/app/system/timeouts"
)

// SessionRestore is a background worker that revives the persisted
// session at startup and keeps the provider token fresh afterwards.
// All outcomes flow through the auth manager's own state machine; the
// worker never touches session state directly.
type SessionRestore struct {
	mgr      *auth.Manager
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSessionRestore creates a session restore worker.
//
// Parameters:
//   - mgr: the auth session manager
//   - logger: zap logger for logging
//   - interval: how often to re-run restore to refresh the token
//     (e.g., 30 minutes)
func NewSessionRestore(mgr *auth.Manager, logger *zap.Logger, interval time.Duration) *SessionRestore {
	return &SessionRestore{
		mgr:      mgr,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one restore immediately (cold-start session revival)
// and then begins the periodic refresh loop.
func (w *SessionRestore) Start() {
	w.restore()

	w.wg.Add(1)
	go w.run()
	w.log.Info("session restore worker started",
		zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *SessionRestore) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("session restore worker stopped")
}

func (w *SessionRestore) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			// Only refresh a live session; an anonymous client stays
			// anonymous until it logs in again.
			if w.mgr.CurrentState().IsAuthenticated {
				w.restore()
			}
		}
	}
}

func (w *SessionRestore) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()
	w.mgr.Restore(ctx)
}
