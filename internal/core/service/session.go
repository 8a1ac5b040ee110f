package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/storage"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
	"github.com/yndnr/mbaas-go/internal/telemetry/metric"
	sesstoken "github.com/yndnr/mbaas-go/pkg/token"
)

const (
	// SessionTokenKey is the store key holding the session token.
	SessionTokenKey = "sessionToken"

	// VerifySessionPath is the backend endpoint that checks a session token.
	VerifySessionPath = "/box/srv/1.1/admin/authpolicy/verifysession"

	// RevokeSessionPath is the backend endpoint that revokes a session token.
	RevokeSessionPath = "/box/srv/1.1/admin/authpolicy/revokesession"
)

// TokenStore is the durable key/value storage the session token lives in.
// A missing key must be reported as storage.ErrKeyNotFound.
type TokenStore interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
}

// Transport sends a JSON POST request to the backend.
//
// Implementations return a non-nil Response whenever the request reached the
// server, and an error for transport failures and non-2xx statuses.
type Transport interface {
	Post(ctx context.Context, path string, body any, useAuth bool) (*domain.Response, error)
}

// Option configures an AuthSession.
type Option func(*AuthSession)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *AuthSession) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records session metrics on r.
func WithMetrics(r *metric.Registry) Option {
	return func(s *AuthSession) {
		s.metrics = r
	}
}

// AuthSession manages the locally stored session token.
//
// The cached token mirrors the SessionTokenKey entry of the store. The mutex
// guards the cache and store mutations only; it is never held across a
// network request.
type AuthSession struct {
	store     TokenStore
	transport Transport
	logger    logger.Logger
	metrics   *metric.Registry

	mu    sync.Mutex
	token string

	pending sync.WaitGroup
}

// NewAuthSession creates a session backed by store and transport, loading any
// previously saved token.
func NewAuthSession(ctx context.Context, store TokenStore, transport Transport, opts ...Option) (*AuthSession, error) {
	if store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("store is required")
	}
	if transport == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("transport is required")
	}

	s := &AuthSession{
		store:     store,
		transport: transport,
		logger:    logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "auth_session")

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the token from the store, replacing the cached value.
func (s *AuthSession) Reload(ctx context.Context) error {
	value, err := s.store.Get(ctx, []byte(SessionTokenKey))
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return storageError("load session token", err)
	}

	s.mu.Lock()
	s.token = string(value)
	s.mu.Unlock()

	s.updatePresence()
	return nil
}

// Exists reports whether a session token is stored.
func (s *AuthSession) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Token returns the stored session token and whether one is present.
func (s *AuthSession) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Save persists token as the current session token.
func (s *AuthSession) Save(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidArgument.WithDetails("session token is empty")
	}

	s.mu.Lock()
	err := s.store.Set(ctx, []byte(SessionTokenKey), []byte(token))
	if err == nil {
		s.token = token
	}
	s.mu.Unlock()

	if err != nil {
		s.recordOp("save", "error")
		return storageError("save session token", err)
	}

	s.recordOp("save", "saved")
	s.updatePresence()
	s.logger.Debug("session saved", "session", sesstoken.Fingerprint(token))
	return nil
}

// Verify asks the backend whether the stored token is still valid.
//
// Without a stored token it returns false without contacting the backend.
// Local state is never changed.
func (s *AuthSession) Verify(ctx context.Context, useAuth bool) (bool, error) {
	valid, _, err := s.verify(ctx, useAuth)
	return valid, err
}

// Clear revokes the stored token with the backend and, once the backend
// accepts, removes it locally. On failure the token is kept.
//
// Without a stored token it succeeds without contacting the backend.
func (s *AuthSession) Clear(ctx context.Context, useAuth bool) error {
	_, err := s.clear(ctx, useAuth)
	return err
}

// Wait blocks until all asynchronous operations started on this session have
// delivered their result.
func (s *AuthSession) Wait() {
	s.pending.Wait()
}

type sessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

type verifyResponse struct {
	Status  *string `json:"status"`
	IsValid *bool   `json:"isValid"`
	Message string  `json:"message"`
}

func (s *AuthSession) verify(ctx context.Context, useAuth bool) (bool, *domain.Response, error) {
	token, ok := s.Token()
	if !ok {
		s.recordOp("verify", "skipped")
		s.logger.Debug("verify skipped, no session")
		return false, nil, nil
	}

	log := logger.L(ctx).With("component", "auth_session", "session", sesstoken.Fingerprint(token))

	resp, err := s.transport.Post(ctx, VerifySessionPath, sessionRequest{SessionToken: token}, useAuth)
	if err != nil {
		s.recordOp("verify", "error")
		log.Warn("verify session failed", "error", err)
		return false, resp, fmt.Errorf("verify session: %w", err)
	}

	valid, err := decodeVerify(resp)
	if err != nil {
		s.recordOp("verify", "error")
		log.Warn("verify session failed", "error", err)
		return false, resp, fmt.Errorf("verify session: %w", err)
	}

	if valid {
		s.recordOp("verify", "valid")
	} else {
		s.recordOp("verify", "invalid")
	}
	log.Debug("session verified", "valid", valid)
	return valid, resp, nil
}

// decodeVerify extracts isValid from a verify response. A status other than
// "ok" is a failure even on a 2xx response.
func decodeVerify(resp *domain.Response) (bool, error) {
	var body verifyResponse
	if err := resp.Decode(&body); err != nil {
		return false, domain.WrapResponse(resp, err)
	}
	if body.Status != nil && *body.Status != "ok" {
		details := fmt.Sprintf("status %q", *body.Status)
		if body.Message != "" {
			details += ": " + body.Message
		}
		return false, domain.WrapResponse(resp, domain.ErrRequestFailed.WithDetails(details))
	}
	if body.IsValid == nil {
		return false, domain.WrapResponse(resp, domain.ErrMalformedResponse.WithDetails("missing isValid"))
	}
	return *body.IsValid, nil
}

func (s *AuthSession) clear(ctx context.Context, useAuth bool) (*domain.Response, error) {
	token, ok := s.Token()
	if !ok {
		s.recordOp("clear", "skipped")
		s.logger.Debug("clear skipped, no session")
		return nil, nil
	}

	log := logger.L(ctx).With("component", "auth_session", "session", sesstoken.Fingerprint(token))

	resp, err := s.transport.Post(ctx, RevokeSessionPath, sessionRequest{SessionToken: token}, useAuth)
	if err != nil {
		s.recordOp("clear", "error")
		log.Warn("revoke session failed, keeping local session", "error", err)
		return resp, fmt.Errorf("revoke session: %w", err)
	}

	s.mu.Lock()
	if !sesstoken.Equal(s.token, token) {
		s.mu.Unlock()
		s.recordOp("clear", "replaced")
		log.Info("session replaced during revoke, keeping new session")
		return resp, nil
	}
	err = s.store.Delete(ctx, []byte(SessionTokenKey))
	if err == nil || errors.Is(err, storage.ErrKeyNotFound) {
		err = nil
		s.token = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.recordOp("clear", "error")
		return resp, storageError("delete session token", err)
	}

	s.recordOp("clear", "revoked")
	s.updatePresence()
	log.Info("session revoked")
	return resp, nil
}

func (s *AuthSession) recordOp(op, result string) {
	if s.metrics != nil {
		s.metrics.RecordSessionOperation(op, result)
	}
}

func (s *AuthSession) updatePresence() {
	if s.metrics != nil {
		s.metrics.SetSessionPresent(s.Exists())
	}
}

// storageError maps store failures onto domain errors.
func storageError(op string, err error) error {
	if errors.Is(err, storage.ErrUnsealFailed) || errors.Is(err, storage.ErrWrongPassphrase) {
		return domain.ErrSealFailed.WithDetails(op).WithCause(err)
	}
	return domain.ErrStorage.WithDetails(op).WithCause(err)
}
