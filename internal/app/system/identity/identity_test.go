package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/civicwatch/civicwatch/internal/domain/cerr"
)

// fakeProviderServer stands in for the remote identity service.
type fakeProviderServer struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]string // email -> password
	revoked  int
}

func newFakeProviderServer(t *testing.T) *fakeProviderServer {
	t.Helper()
	f := &fakeProviderServer{accounts: map[string]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/register", f.handleRegister)
	mux.HandleFunc("/revoke", f.handleRevoke)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeProviderServer) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Form.Get("grant_type") {
	case "password":
		email := r.Form.Get("username")
		pass, ok := f.accounts[email]
		if !ok {
			writeOAuthError(w, "user-not-found")
			return
		}
		if pass != r.Form.Get("password") {
			writeOAuthError(w, "invalid_grant")
			return
		}
		writeToken(w, email)
	case "refresh_token":
		if r.Form.Get("refresh_token") != "refresh-good" {
			writeOAuthError(w, "invalid_grant")
			return
		}
		writeToken(w, "restored@example.com")
	default:
		writeOAuthError(w, "unsupported_grant_type")
	}
}

func (f *fakeProviderServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.accounts[req.Email]; exists {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(providerError{Code: "email-already-in-use"})
		return
	}
	f.accounts[req.Email] = req.Password
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeProviderServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.revoked++
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func writeToken(w http.ResponseWriter, email string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-xyz",
		"token_type":    "bearer",
		"refresh_token": "refresh-good",
		"expires_in":    3600,
		"email":         email,
	})
}

func writeOAuthError(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

func newTestClient(t *testing.T, f *fakeProviderServer) *Client {
	t.Helper()
	return NewClient(Config{
		TokenURL:     f.URL + "/token",
		RegisterURL:  f.URL + "/register",
		RevokeURL:    f.URL + "/revoke",
		ClientID:     "civicwatch",
		ClientSecret: "secret",
	}, zap.NewNop())
}

func TestClient_SignIn(t *testing.T) {
	f := newFakeProviderServer(t)
	f.accounts["ana@example.com"] = "abc123"
	c := newTestClient(t, f)

	var events []Event
	cancel := c.Subscribe(func(ev Event) { events = append(events, ev) })
	defer cancel()

	sess, err := c.SignIn(context.Background(), "ana@example.com", "abc123")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if sess.Email != "ana@example.com" {
		t.Errorf("session email = %q", sess.Email)
	}
	if sess.PersistentToken() == "" {
		t.Error("expected a persistent token")
	}
	if len(events) != 1 || !events[0].SignedIn || events[0].Email != "ana@example.com" {
		t.Errorf("events = %+v, want one signed-in event", events)
	}
}

func TestClient_SignIn_WrongPassword(t *testing.T) {
	f := newFakeProviderServer(t)
	f.accounts["ana@example.com"] = "abc123"
	c := newTestClient(t, f)

	_, err := c.SignIn(context.Background(), "ana@example.com", "nope")
	if !errors.Is(err, cerr.ErrWrongPassword) {
		t.Errorf("err = %v, want wrong-password", err)
	}
}

func TestClient_SignIn_UnknownAccount(t *testing.T) {
	f := newFakeProviderServer(t)
	c := newTestClient(t, f)

	_, err := c.SignIn(context.Background(), "ghost@example.com", "abc123")
	if !errors.Is(err, cerr.ErrProfileNotFound) {
		t.Errorf("err = %v, want user-not-found", err)
	}
}

func TestClient_SignUp(t *testing.T) {
	f := newFakeProviderServer(t)
	c := newTestClient(t, f)

	sess, err := c.SignUp(context.Background(), "new@example.com", "abc123")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if sess.Email != "new@example.com" {
		t.Errorf("session email = %q", sess.Email)
	}
}

func TestClient_SignUp_Duplicate(t *testing.T) {
	f := newFakeProviderServer(t)
	f.accounts["taken@example.com"] = "abc123"
	c := newTestClient(t, f)

	_, err := c.SignUp(context.Background(), "taken@example.com", "abc123")
	if !errors.Is(err, cerr.ErrDuplicateAccount) {
		t.Errorf("err = %v, want email-already-in-use", err)
	}
}

func TestClient_SignOut_NotifiesEvenWithoutSession(t *testing.T) {
	f := newFakeProviderServer(t)
	c := newTestClient(t, f)

	var events []Event
	cancel := c.Subscribe(func(ev Event) { events = append(events, ev) })
	defer cancel()

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if len(events) != 1 || events[0].SignedIn {
		t.Errorf("events = %+v, want one signed-out event", events)
	}
}

func TestClient_SignOut_RevokesCurrentSession(t *testing.T) {
	f := newFakeProviderServer(t)
	f.accounts["ana@example.com"] = "abc123"
	c := newTestClient(t, f)

	if _, err := c.SignIn(context.Background(), "ana@example.com", "abc123"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	f.mu.Lock()
	revoked := f.revoked
	f.mu.Unlock()
	if revoked != 1 {
		t.Errorf("revoked = %d, want 1", revoked)
	}
}

func TestClient_Restore(t *testing.T) {
	f := newFakeProviderServer(t)
	c := newTestClient(t, f)

	var events []Event
	cancel := c.Subscribe(func(ev Event) { events = append(events, ev) })
	defer cancel()

	sess, err := c.Restore(context.Background(), "refresh-good")
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if sess.Email != "restored@example.com" {
		t.Errorf("session email = %q", sess.Email)
	}
	if len(events) != 1 || !events[0].SignedIn {
		t.Errorf("events = %+v, want one signed-in event", events)
	}
}

func TestClient_Restore_StaleToken(t *testing.T) {
	f := newFakeProviderServer(t)
	c := newTestClient(t, f)

	_, err := c.Restore(context.Background(), "refresh-stale")
	if err == nil {
		t.Fatal("expected an error for a stale token")
	}

	var de *cerr.Error
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want a domain error", err)
	}
}

func TestBroadcaster_CancelStopsDelivery(t *testing.T) {
	var b Broadcaster

	var got int
	cancel := b.Subscribe(func(Event) { got++ })

	b.Emit(Event{SignedIn: true})
	cancel()
	b.Emit(Event{SignedIn: false})

	if got != 1 {
		t.Errorf("deliveries = %d, want 1", got)
	}
}
