package auth

import "time"

// User represents a registered account in the directory.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Phone        string     `json:"phone,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Role is a named grouping of permissions assignable to users.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is a named capability grantable to roles.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership links a user to a role.
type Membership struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Grant links a role to a permission.
type Grant struct {
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// RevokedToken records a token invalidated before its natural expiry.
// Entries past ExpiresAt are dead weight and may be purged; an entry is
// never required for an expired token to be rejected.
type RevokedToken struct {
	Token     string    `json:"-"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Phone       string
	DateOfBirth *time.Time
}

// UserUpdate describes a partial user mutation. Nil fields are untouched.
type UserUpdate struct {
	Username    *string
	Email       *string
	Password    *string
	Phone       *string
	DateOfBirth *time.Time
	IsActive    *bool
}

// RoleUpdate describes a partial role mutation.
type RoleUpdate struct {
	Name      *string
	IsDefault *bool
}

// PermissionUpdate describes a partial permission mutation.
type PermissionUpdate struct {
	Name        *string
	Description *string
}
