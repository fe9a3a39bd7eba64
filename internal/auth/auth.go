// Package auth owns the OAuth2 credential used to talk to Google Drive. It
// loads the persisted token, refreshes it when expired, and falls back to an
// interactive authorization flow when nothing usable is on disk. Every
// mutation is written back to the token file.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/thegrumpylion/gdocs-mcp/internal/logging"
)

// Credential is the persisted form of the OAuth token. The field names match
// Google's authorized-user JSON so token files written by other Google
// client libraries load unchanged.
type Credential struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenURI     string    `json:"token_uri,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// OAuthToken converts the credential into an oauth2.Token.
func (c *Credential) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.Token,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}
}

// Expired reports whether the access token can no longer be used.
func (c *Credential) Expired() bool {
	return !c.OAuthToken().Valid()
}

// Authorizer runs an interactive authorization for cfg and returns the
// resulting token.
type Authorizer func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPrompt sets where the interactive flow prints its instructions.
// The default is os.Stderr.
func WithPrompt(w io.Writer) Option {
	return func(s *Store) { s.prompt = w }
}

// WithAuthorizer replaces the interactive authorization step.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Store) { s.authorize = a }
}

// Store loads, refreshes and persists the single credential of this process.
type Store struct {
	mu              sync.Mutex
	tokenPath       string
	credentialsPath string
	scopes          []string
	cred            *Credential
	authorize       Authorizer
	prompt          io.Writer
	logger          *slog.Logger
}

// NewStore creates a credential store. Nothing is read until Obtain is called.
func NewStore(tokenPath, credentialsPath string, scopes []string, opts ...Option) *Store {
	s := &Store{
		tokenPath:       tokenPath,
		credentialsPath: credentialsPath,
		scopes:          scopes,
		prompt:          os.Stderr,
		logger:          logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.authorize == nil {
		s.authorize = s.loopbackFlow
	}
	return s
}

// TokenPath returns the path of the persisted token.
func (s *Store) TokenPath() string {
	return s.tokenPath
}

// CredentialsPath returns the path of the OAuth client-secret file.
func (s *Store) CredentialsPath() string {
	return s.credentialsPath
}

// Obtain returns a non-expired token. It loads the token file on first use,
// refreshes an expired token that carries a refresh token, and otherwise
// runs the interactive flow. Failures are logged and returned as an *Error
// matching ErrNoCredential.
func (s *Store) Obtain(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		cred, err := s.load()
		if err != nil {
			s.logger.Error("error loading credentials", logging.Path(s.tokenPath), logging.Err(err))
		}
		s.cred = cred
	}

	if s.cred != nil && !s.cred.Expired() {
		s.logger.Debug("using stored credentials", slog.String("token", logging.SanitizeToken(s.cred.Token)))
		return s.cred.OAuthToken(), nil
	}

	if s.cred != nil && s.cred.RefreshToken != "" {
		s.logger.Info("credentials expired, refreshing")
		tok, err := s.refresh(ctx)
		if err == nil {
			s.logger.Info("credentials refreshed", slog.String("token", logging.SanitizeToken(tok.AccessToken)))
			return tok, nil
		}
		s.logger.Error("refreshing credentials failed", logging.Err(err))
	}

	s.logger.Info("no valid credentials found, initiating OAuth flow")
	tok, err := s.login(ctx)
	if err != nil {
		s.logger.Error("authentication failed", logging.Err(err))
		return nil, err
	}
	return tok, nil
}

// Login forces the interactive flow and persists the result, replacing any
// stored credential.
func (s *Store) Login(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login(ctx)
}

// Peek returns the persisted credential without refreshing or prompting.
// It returns (nil, nil) when no token file exists.
func (s *Store) Peek() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred != nil {
		c := *s.cred
		return &c, nil
	}
	return s.load()
}

// Logout forgets the in-memory credential and deletes the token file.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	err := os.Remove(s.tokenPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// load reads the token file. A missing file yields (nil, nil).
func (s *Store) load() (*Credential, error) {
	data, err := os.ReadFile(s.tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if cred.Token == "" && cred.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds neither an access nor a refresh token", s.tokenPath)
	}
	return &cred, nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(s.cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.WriteFile(s.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	s.logger.Info("token saved", logging.Path(s.tokenPath))
	return nil
}

// refresh exchanges the refresh token for a new access token and persists it.
func (s *Store) refresh(ctx context.Context) (*oauth2.Token, error) {
	cfg, err := s.refreshConfig()
	if err != nil {
		return nil, &Error{Op: "refresh", Err: err}
	}

	tok, err := cfg.TokenSource(ctx, s.cred.OAuthToken()).Token()
	if err != nil {
		return nil, &Error{Op: "refresh", Err: err}
	}

	s.update(tok, cfg)
	if err := s.save(); err != nil {
		return nil, &Error{Op: "refresh", Err: err}
	}
	return s.cred.OAuthToken(), nil
}

// refreshConfig prefers the client details stored alongside the token and
// only reads the client-secret file when they are missing.
func (s *Store) refreshConfig() (*oauth2.Config, error) {
	if s.cred.ClientID != "" && s.cred.TokenURI != "" {
		return &oauth2.Config{
			ClientID:     s.cred.ClientID,
			ClientSecret: s.cred.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: s.cred.TokenURI},
			Scopes:       s.scopes,
		}, nil
	}
	return s.oauthConfig()
}

func (s *Store) login(ctx context.Context) (*oauth2.Token, error) {
	cfg, err := s.oauthConfig()
	if err != nil {
		return nil, &Error{Op: "authorize", Err: err}
	}

	tok, err := s.authorize(ctx, cfg)
	if err != nil {
		return nil, &Error{Op: "authorize", Err: err}
	}

	s.cred = &Credential{}
	s.update(tok, cfg)
	if err := s.save(); err != nil {
		return nil, &Error{Op: "authorize", Err: err}
	}
	s.logger.Info("successfully authenticated with Google Drive API")
	return s.cred.OAuthToken(), nil
}

// update copies tok into the held credential. The oauth2 package keeps the
// previous refresh token when the server does not issue a new one.
func (s *Store) update(tok *oauth2.Token, cfg *oauth2.Config) {
	s.cred.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		s.cred.RefreshToken = tok.RefreshToken
	}
	s.cred.Expiry = tok.Expiry
	s.cred.ClientID = cfg.ClientID
	s.cred.ClientSecret = cfg.ClientSecret
	s.cred.TokenURI = cfg.Endpoint.TokenURL
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		s.cred.Scopes = strings.Fields(granted)
	} else if len(s.cred.Scopes) == 0 {
		s.cred.Scopes = append([]string(nil), s.scopes...)
	}
}

// oauthConfig reads the client-secret file and builds an oauth2.Config.
func (s *Store) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(s.credentialsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credentials file not found at %s\n\nDownload OAuth credentials from https://console.cloud.google.com/apis/credentials and place them there, or use --credentials to specify a different path", s.credentialsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, s.scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	return cfg, nil
}
