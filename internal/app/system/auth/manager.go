// Package auth owns the client session. A single Manager per process
// holds the one AuthState, and every mutation — whether it comes from
// an explicit Login/Register/Logout call or from an asynchronous
// provider notification — flows through one serialized reducer, so
// the two event sources can never corrupt the state between them.
package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/civicwatch/civicwatch/internal/app/system/identity"
	"github.com/civicwatch/civicwatch/internal/app/system/inputval"
	"github.com/civicwatch/civicwatch/internal/app/system/normalize"
	"github.com/civicwatch/civicwatch/internal/app/system/timeouts"
	"github.com/civicwatch/civicwatch/internal/domain/cerr"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// Directory is the slice of the user directory the session manager
// needs. GetByEmail returns (nil, nil) when no profile exists.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
}

// TokenStore caches the provider session token across restarts.
type TokenStore interface {
	Save(token string) error
	Load() (token string, ok bool, err error)
	Clear() error
}

// Credentials is what Login needs.
type Credentials struct {
	Email    string
	Password string
}

// Registration is what Register needs. The role is always citizen;
// privileged roles are created administratively, never by self-signup.
type Registration struct {
	Email       string
	Password    string
	Name        string
	LastName    string
	PhoneNumber string
}

// Manager is the session state machine. Construct exactly one per
// process with New and close it on shutdown.
type Manager struct {
	provider identity.Provider
	dir      Directory
	tokens   TokenStore
	log      *zap.Logger

	actions chan action
	done    chan struct{}

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int

	// inflight counts Login/Register/Restore calls that are awaiting
	// the provider. While one is in flight its own result governs, and
	// provider notifications are ignored as stale residuals.
	inflight atomic.Int32

	// epoch advances on every explicit invocation. Provider-sourced
	// actions are stamped with the epoch current when the notification
	// arrived and are dropped at apply time if an explicit call has
	// advanced it since, so a slow directory lookup for a notification
	// can never undo a Logout that completed in the meantime.
	epoch atomic.Int64

	unsubscribe func()
	closeOnce   sync.Once
}

// New builds the Manager and starts its reducer. The initial state is
// uninitialized (loading) until Restore resolves the cold start.
func New(provider identity.Provider, dir Directory, tokens TokenStore, logger *zap.Logger) *Manager {
	m := &Manager{
		provider: provider,
		dir:      dir,
		tokens:   tokens,
		log:      logger,
		actions:  make(chan action, 16),
		done:     make(chan struct{}),
		state:    State{IsLoading: true},
		subs:     make(map[int]func(State)),
	}
	go m.loop()
	m.unsubscribe = provider.Subscribe(m.handleEvent)
	return m
}

// CurrentState returns a copy of the session state.
func (m *Manager) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers fn to receive every state snapshot after it is
// applied. fn runs on the reducer goroutine and must not block.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Close stops the reducer and detaches from the provider.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.unsubscribe()
		close(m.done)
	})
}

// Login authenticates credentials against the provider, verifies the
// matching directory profile, caches the session token, and
// transitions to authenticated. Any failure leaves the session
// anonymous with the error recorded in the state; the returned error
// carries the same condition for inline feedback, but the state is
// authoritative.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	email := normalize.Email(creds.Email)

	// Shape checks happen before the provider round trip so typos get
	// immediate feedback without a network call.
	if !inputval.IsValidEmail(email) {
		de := cerr.ErrInvalidEmail
		m.dispatch(actionSignedOut{err: de})
		return de
	}

	m.epoch.Add(1)
	m.inflight.Add(1)
	defer m.inflight.Add(-1)
	m.dispatch(actionLoading{})

	sess, err := m.provider.SignIn(ctx, email, creds.Password)
	if err != nil {
		de := asDomain(err)
		m.dispatch(actionSignedOut{err: de})
		return de
	}

	u, derr := m.verifyProfile(ctx, email)
	if derr != nil {
		// Authenticated with the provider but no usable local profile.
		// A user must never be presented as authenticated without one,
		// so undo the provider session as well.
		m.forceSignOut(ctx, derr)
		return derr
	}

	m.saveToken(sess.PersistentToken())
	m.dispatch(actionAuthenticated{user: u})
	return nil
}

// Register creates a provider account and the matching citizen
// directory profile, then signs the session in. A duplicate email
// surfaces as cerr.ErrDuplicateAccount.
func (m *Manager) Register(ctx context.Context, reg Registration) error {
	email := normalize.Email(reg.Email)

	if !inputval.IsValidEmail(email) {
		de := cerr.ErrInvalidEmail
		m.dispatch(actionSignedOut{err: de})
		return de
	}
	if !inputval.IsValidPassword(reg.Password) {
		de := cerr.ErrWeakPassword
		m.dispatch(actionSignedOut{err: de})
		return de
	}

	m.epoch.Add(1)
	m.inflight.Add(1)
	defer m.inflight.Add(-1)
	m.dispatch(actionLoading{})

	sess, err := m.provider.SignUp(ctx, email, reg.Password)
	if err != nil {
		de := asDomain(err)
		m.dispatch(actionSignedOut{err: de})
		return de
	}

	u, err := m.dir.Create(ctx, models.User{
		Email:       email,
		Name:        normalize.Name(reg.Name),
		LastName:    normalize.Name(reg.LastName),
		PhoneNumber: normalize.Phone(reg.PhoneNumber),
		Role:        models.RoleCitizen,
		IsActive:    true,
	})
	if err != nil {
		// Provider account exists but the profile could not be written;
		// do not leave a remote session with no directory record.
		de := asDomain(err)
		m.forceSignOut(ctx, de)
		return de
	}

	m.saveToken(sess.PersistentToken())
	m.dispatch(actionAuthenticated{user: &u})
	return nil
}

// Logout ends the session. It is unconditionally effective on the
// client: the provider call and the token-cache clear are best-effort
// and the state transitions to anonymous regardless.
func (m *Manager) Logout(ctx context.Context) {
	m.epoch.Add(1)
	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	if err := m.provider.SignOut(ctx); err != nil {
		m.log.Warn("auth: provider sign-out failed, continuing local logout", zap.Error(err))
	}
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn("auth: clearing cached session token failed", zap.Error(err))
	}
	m.dispatch(actionSignedOut{})
}

// ClearError drops the recorded error without touching the session.
func (m *Manager) ClearError() {
	m.dispatch(actionClearError{})
}

// Restore resolves the cold start: if a session token survived the
// last run, try to turn it back into a live session; otherwise settle
// into anonymous. Callers run this once at startup.
func (m *Manager) Restore(ctx context.Context) {
	token, ok, err := m.tokens.Load()
	if err != nil {
		m.log.Warn("auth: loading cached session token failed", zap.Error(err))
	}
	if !ok {
		m.dispatch(actionResolved{})
		return
	}

	m.epoch.Add(1)
	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	sess, err := m.provider.Restore(ctx, token)
	if err != nil {
		// A stale token is the normal case after a long absence; settle
		// into anonymous without surfacing an error.
		m.log.Info("auth: cached session token no longer valid", zap.Error(err))
		if clearErr := m.tokens.Clear(); clearErr != nil {
			m.log.Warn("auth: clearing stale session token failed", zap.Error(clearErr))
		}
		m.dispatch(actionSignedOut{})
		return
	}

	u, derr := m.verifyProfile(ctx, sess.Email)
	if derr != nil {
		m.forceSignOut(ctx, derr)
		return
	}

	// The provider may rotate the token on restore.
	if rotated := sess.PersistentToken(); rotated != "" && rotated != token {
		m.saveToken(rotated)
	}
	m.dispatch(actionAuthenticated{user: u})
}

// handleEvent receives provider notifications. The provider is the
// source of truth for whether a remote session exists, except while a
// Login/Register/Restore call is in flight: then the call's own
// result governs, because the notification may be a stale residual of
// a previous session.
func (m *Manager) handleEvent(ev identity.Event) {
	// First staleness check at delivery time, on the provider's
	// goroutine: a notification fired during an in-flight call can
	// never be applied after that call settles.
	if m.inflight.Load() > 0 {
		m.log.Debug("auth: ignoring provider notification during in-flight call",
			zap.Bool("signed_in", ev.SignedIn))
		return
	}

	// Every action derived from this notification carries the epoch
	// current now. An explicit call that starts later advances the
	// epoch and the reducer drops the stamped action on arrival.
	epoch := m.epoch.Load()

	if !ev.SignedIn {
		m.dispatch(providerAction{epoch: epoch, inner: actionSignedOut{}})
		return
	}

	// The directory lookup is remote; do it off the provider's goroutine.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
		defer cancel()

		u, derr := m.verifyProfile(ctx, ev.Email)

		// An explicit call ran while the lookup was out. Its result
		// owns the session now; applying ours would re-authenticate
		// after a completed Logout. Side effects are skipped too: the
		// newer call already settled the provider session.
		if m.epoch.Load() != epoch {
			m.log.Debug("auth: dropping notification outcome, session changed during lookup",
				zap.String("email", ev.Email))
			return
		}

		if derr != nil {
			m.forceSignOutAt(ctx, derr, epoch)
			return
		}
		m.dispatch(providerAction{epoch: epoch, inner: actionAuthenticated{user: u}})
	}()
}

// verifyProfile checks that a provider-authenticated principal has a
// usable directory profile.
func (m *Manager) verifyProfile(ctx context.Context, email string) (*models.User, *cerr.Error) {
	u, err := m.dir.GetByEmail(ctx, email)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeNetwork, err)
	}
	if u == nil {
		return nil, cerr.ErrProfileNotFound
	}
	if !u.IsActive {
		return nil, cerr.ErrAccountDisabled
	}
	return u, nil
}

// forceSignOut undoes a provider session the client cannot honor and
// settles into anonymous with the given error.
func (m *Manager) forceSignOut(ctx context.Context, derr *cerr.Error) {
	m.dispatch(m.undoProviderSession(ctx, derr))
}

// forceSignOutAt is forceSignOut for notification-sourced flows: the
// settling action is epoch-stamped so it cannot clobber a session an
// explicit call established in the meantime.
func (m *Manager) forceSignOutAt(ctx context.Context, derr *cerr.Error, epoch int64) {
	m.dispatch(providerAction{epoch: epoch, inner: m.undoProviderSession(ctx, derr)})
}

func (m *Manager) undoProviderSession(ctx context.Context, derr *cerr.Error) action {
	if err := m.provider.SignOut(ctx); err != nil {
		m.log.Warn("auth: forced provider sign-out failed", zap.Error(err))
	}
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn("auth: clearing cached session token failed", zap.Error(err))
	}
	return actionSignedOut{err: derr}
}

func (m *Manager) saveToken(token string) {
	if token == "" {
		return
	}
	if err := m.tokens.Save(token); err != nil {
		// Losing the cache only costs a re-login after restart.
		m.log.Warn("auth: caching session token failed", zap.Error(err))
	}
}

func (m *Manager) dispatch(a action) {
	select {
	case m.actions <- a:
	case <-m.done:
	}
}

func (m *Manager) loop() {
	for {
		select {
		case a := <-m.actions:
			m.apply(a)
		case <-m.done:
			return
		}
	}
}

// providerAction wraps an action derived from a provider notification
// together with the epoch observed when the notification arrived.
type providerAction struct {
	epoch int64
	inner action
}

func (providerAction) isAction() {}

func (m *Manager) apply(a action) {
	// Second staleness check at apply time: a provider-sourced action
	// whose epoch predates the latest explicit invocation is dropped,
	// even if it was dispatched after that invocation settled.
	if pa, ok := a.(providerAction); ok {
		if pa.epoch != m.epoch.Load() {
			m.log.Debug("auth: dropping stale provider action")
			return
		}
		a = pa.inner
	}

	m.mu.Lock()
	m.state = reduce(m.state, a)
	next := m.state
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// asDomain coerces err into a domain error, defaulting to a network
// error so no remote shape leaks to callers.
func asDomain(err error) *cerr.Error {
	var de *cerr.Error
	if errors.As(err, &de) {
		return de
	}
	return cerr.Wrap(cerr.CodeNetwork, err)
}
