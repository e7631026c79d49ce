package testutil

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/civicwatch/civicwatch/internal/app/system/identity"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// FakeProvider is a scriptable identity provider for tests that need
// a full auth manager without a network.
type FakeProvider struct {
	identity.Broadcaster

	mu         sync.Mutex
	SignInErr  error
	SignUpErr  error
	SignOutErr error
	RestoreErr error

	// RestoredEmail is the principal Restore reports.
	RestoredEmail string

	signOutCalls int
	restoreCalls int
}

func (f *FakeProvider) session(email string) *identity.Session {
	return &identity.Session{
		Email: email,
		Token: &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"},
	}
}

func (f *FakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	f.mu.Lock()
	err := f.SignInErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.session(email), nil
}

func (f *FakeProvider) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	f.mu.Lock()
	err := f.SignUpErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.session(email), nil
}

func (f *FakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.SignOutErr
}

func (f *FakeProvider) Restore(ctx context.Context, token string) (*identity.Session, error) {
	f.mu.Lock()
	f.restoreCalls++
	err := f.RestoreErr
	email := f.RestoredEmail
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = "restored@example.com"
	}
	return f.session(email), nil
}

// SignOuts returns how many times SignOut has been called.
func (f *FakeProvider) SignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutCalls
}

// Restores returns how many times Restore has been called.
func (f *FakeProvider) Restores() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restoreCalls
}

// FakeDirectory is an in-memory user directory keyed by email.
type FakeDirectory struct {
	mu    sync.Mutex
	users map[string]*models.User
	Err   error
}

// Put seeds a profile.
func (d *FakeDirectory) Put(u *models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.users == nil {
		d.users = make(map[string]*models.User)
	}
	cp := *u
	d.users[u.Email] = &cp
}

func (d *FakeDirectory) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	u, ok := d.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (d *FakeDirectory) Create(ctx context.Context, u models.User) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return models.User{}, d.Err
	}
	if d.users == nil {
		d.users = make(map[string]*models.User)
	}
	cp := u
	d.users[u.Email] = &cp
	return u, nil
}

// MemTokens is an in-memory persistent-session store.
type MemTokens struct {
	mu    sync.Mutex
	token string
	has   bool
}

func (s *MemTokens) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.has = token, true
	return nil
}

func (s *MemTokens) Load() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.has, nil
}

func (s *MemTokens) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.has = "", false
	return nil
}

// Stored reports the currently saved token, if any.
func (s *MemTokens) Stored() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.has
}
