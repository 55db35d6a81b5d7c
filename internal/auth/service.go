package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service orchestrates the session pipeline: login, logout and per-request
// identity resolution. It is stateless between requests; the token and the
// revocation ledger are the only things shared across them.
type Service struct {
	store  DirectoryStore
	tokens *TokenService
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the session service.
func NewService(store DirectoryStore, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: directory store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	s := &Service{store: store, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

// EnsureBuiltins makes sure the predefined management permissions exist.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// Register creates a new account. Duplicate username or email yields
// ErrConflict with a field-specific message.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	users := s.store.Users(ctx)
	if _, err := users.FindByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(input.Phone),
		DateOfBirth:  input.DateOfBirth,
		IsActive:     true,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates a username/password pair and issues an access token.
// Unknown username and wrong password are reported identically as
// ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", time.Time{}, ErrAuthenticationFailed
	}
	user, err := s.store.Users(ctx).FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return "", time.Time{}, ErrAuthenticationFailed
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return "", time.Time{}, ErrAuthenticationFailed
	}
	return s.tokens.Issue(user.ID, user.Username)
}

// Logout records the presented token in the revocation ledger, keyed to its
// natural expiry. A token whose claims cannot be decoded or that lacks an
// expiry yields ErrInvalidTokenPayload. Revoking an already-revoked token
// is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return ErrInvalidTokenPayload
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidTokenPayload
	}
	return s.store.Revocations(ctx).Insert(ctx, token, claims.ExpiresAt.Time)
}

// PurgeRevoked drops ledger entries whose natural expiry has passed. This
// only bounds storage; correctness never depends on it, because an expired
// token is rejected by Decode regardless of the ledger.
func (s *Service) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.store.Revocations(ctx).PurgeExpired(ctx, s.now().UTC())
}

// Authenticate resolves the identity behind a presented token. It walks the
// per-request state machine in order: presence, revocation, signature and
// structure, claim shape, directory lookup, active flag. Revocation is
// checked before the identity is ever treated as trusted; a structurally
// valid but revoked token never authorizes. The inactive check runs only
// after a successful decode and lookup so that invalid tokens and unknown
// accounts are indistinguishable from the outside.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	revoked, err := s.store.Revocations(ctx).Exists(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", ErrUnauthenticated)
	}

	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrUnauthenticated
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("%w: invalid token type", ErrUnauthenticated)
	}

	user, err := s.store.Users(ctx).Find(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}
