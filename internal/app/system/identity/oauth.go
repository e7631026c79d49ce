// internal/app/system/identity/oauth.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/civicwatch/civicwatch/internal/domain/cerr"
)

// Config points the client at the provider's endpoints.
type Config struct {
	TokenURL     string // OAuth2 token endpoint (password + refresh grants)
	RegisterURL  string // account creation endpoint
	RevokeURL    string // token revocation endpoint
	ClientID     string
	ClientSecret string
}

// Client is the oauth2-backed Provider implementation.
type Client struct {
	Broadcaster

	oauth       oauth2.Config
	registerURL string
	revokeURL   string
	httpc       *http.Client
	log         *zap.Logger

	mu      sync.Mutex
	current *Session
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		registerURL: cfg.RegisterURL,
		revokeURL:   cfg.RevokeURL,
		httpc:       http.DefaultClient,
		log:         logger,
	}
}

// SignIn exchanges credentials for a session. On success the provider
// also notifies subscribers, mirroring how the remote service reports
// sign-in as a side effect of the call.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	tok, err := c.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, mapTokenError(err)
	}

	sess := &Session{Email: email, Token: tok}
	c.setCurrent(sess)
	c.Emit(Event{SignedIn: true, Email: email})
	return sess, nil
}

// registerRequest is the account-creation wire format.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// providerError is the provider's error body on any endpoint.
type providerError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// SignUp creates an account and signs it in. A duplicate email
// surfaces as cerr.ErrDuplicateAccount.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(registerRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("identity: encode register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.registerURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe providerError
		_ = json.NewDecoder(resp.Body).Decode(&pe)
		return nil, cerr.FromProviderCode(pe.Code, fmt.Errorf("identity: register: %s (%d)", pe.Code, resp.StatusCode))
	}

	c.log.Info("identity: account created", zap.String("email", email))

	// The account exists; the password grant yields the session.
	return c.SignIn(ctx, email, password)
}

// SignOut revokes the current session. The local session is dropped
// and subscribers are notified even when revocation fails remotely.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.takeCurrent()
	defer c.Emit(Event{SignedIn: false})

	if sess == nil || sess.PersistentToken() == "" || c.revokeURL == "" {
		return nil
	}

	form := []byte("token=" + sess.PersistentToken())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, bytes.NewReader(form))
	if err != nil {
		return fmt.Errorf("identity: build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.oauth.ClientID, c.oauth.ClientSecret)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return cerr.Wrap(cerr.CodeNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: revoke: status %d", resp.StatusCode)
	}
	return nil
}

// Restore exchanges a cached refresh token for a fresh session. This
// is the cold-start path: the cached token is advisory and only a
// successful exchange produces a signed-in notification.
func (c *Client) Restore(ctx context.Context, token string) (*Session, error) {
	ts := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: token})
	tok, err := ts.Token()
	if err != nil {
		return nil, mapTokenError(err)
	}

	email, _ := tok.Extra("email").(string)
	sess := &Session{Email: email, Token: tok}
	c.setCurrent(sess)
	c.Emit(Event{SignedIn: true, Email: email})
	return sess, nil
}

func (c *Client) setCurrent(s *Session) {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
}

func (c *Client) takeCurrent() *Session {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()
	return s
}

// mapTokenError converts a token-endpoint failure into a domain
// error. The provider reports its own codes in the OAuth2 error
// field; anything unrecognized degrades to a network error.
func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return cerr.Wrap(cerr.CodeNetwork, err)
	}

	switch re.ErrorCode {
	case "invalid_grant":
		return cerr.Wrap(cerr.CodeWrongPassword, err)
	default:
		return cerr.FromProviderCode(re.ErrorCode, err)
	}
}
