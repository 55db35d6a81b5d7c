package auth

import (
	"context"
	"time"
)

// DirectoryStore describes the persistence operations the auth core
// consumes. Implementations must enforce uniqueness (username, email,
// phone, role name, permission name, revoked token string and the two join
// pairs) at the storage layer; concurrent duplicate inserts are resolved by
// the store rejecting or ignoring the duplicate, never by locking here.
type DirectoryStore interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
	Revocations(ctx context.Context) RevocationStore
}

// UserStore manages user records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	Delete(ctx context.Context, id string) error
}

// RoleStore manages roles and user memberships. AssignUsers is idempotent:
// an existing (user, role) pair is skipped, not an error.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context, offset, limit int) ([]*Role, error)
	Update(ctx context.Context, id string, upd RoleUpdate) (*Role, error)
	Delete(ctx context.Context, id string) error
	AssignUsers(ctx context.Context, roleID string, userIDs []string) error
	RemoveUsers(ctx context.Context, roleID string, userIDs []string) error
	UsersOf(ctx context.Context, roleID string) ([]*User, error)
	OfUser(ctx context.Context, userID string) ([]Role, error)
}

// PermissionStore manages permissions and role grants. GrantToRole is
// idempotent the same way AssignUsers is.
type PermissionStore interface {
	Create(ctx context.Context, perm *Permission) error
	Ensure(ctx context.Context, perms []Permission) error
	Find(ctx context.Context, id string) (*Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	List(ctx context.Context, offset, limit int) ([]Permission, error)
	Update(ctx context.Context, id string, upd PermissionUpdate) (*Permission, error)
	Delete(ctx context.Context, id string) error
	GrantToRole(ctx context.Context, roleID string, permissionIDs []string) error
	RevokeFromRole(ctx context.Context, roleID string, permissionIDs []string) error
	OfRole(ctx context.Context, roleID string) ([]Permission, error)
}

// RevocationStore is the revocation ledger. Insert is idempotent on the
// token string. A stale entry for an already-expired token is harmless; it
// only ever answers "do not trust this", which stays true past expiry.
type RevocationStore interface {
	Insert(ctx context.Context, token string, expiresAt time.Time) error
	Exists(ctx context.Context, token string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
