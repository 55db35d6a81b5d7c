package auth

import "errors"

var (
	// ErrNotFound indicates a referenced user, role or permission is absent.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict indicates a unique field collision on create or rename.
	ErrConflict = errors.New("auth: already exists")
	// ErrInvalidInput indicates the caller supplied malformed or missing fields.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrAuthenticationFailed covers both unknown username and wrong password.
	// The two cases are deliberately indistinguishable to prevent account
	// enumeration.
	ErrAuthenticationFailed = errors.New("auth: incorrect username or password")
	// ErrUnauthenticated indicates a missing, invalid, expired or revoked token.
	ErrUnauthenticated = errors.New("auth: could not validate credentials")
	// ErrInactiveUser indicates a valid token for a deactivated account.
	ErrInactiveUser = errors.New("auth: inactive user")
	// ErrForbidden indicates a valid identity with insufficient roles or
	// permissions.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidToken indicates the token failed signature or structural
	// validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidTokenPayload indicates a logout request with unparseable claims.
	ErrInvalidTokenPayload = errors.New("auth: invalid token payload")
)
