package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"idgate.org/internal/auth"
)

func seedUser(t *testing.T, s *Store, username string) *auth.User {
	t.Helper()
	u := &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		IsActive:     true,
	}
	if err := s.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return u
}

func TestUserCreateEnforcesUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedUser(t, s, "alice")

	err := s.Users(ctx).Create(ctx, &auth.User{Username: "alice", Email: "x@example.com"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate username: got %v", err)
	}
	err = s.Users(ctx).Create(ctx, &auth.User{Username: "alice2", Email: "alice@example.com"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestUserFindAndUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "alice")

	found, err := s.Users(ctx).Find(ctx, u.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	// Returned records are clones; mutating one never leaks into the store.
	found.Username = "mutated"
	again, err := s.Users(ctx).FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find by username after mutation: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("unexpected id %s", again.ID)
	}

	phone := "+7700123"
	updated, err := s.Users(ctx).Update(ctx, u.ID, auth.UserUpdate{Phone: &phone})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != phone {
		t.Fatalf("phone = %q, want %q", updated.Phone, phone)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) && !updated.UpdatedAt.Equal(updated.CreatedAt) {
		t.Fatal("updated_at must not precede created_at")
	}

	if _, err := s.Users(ctx).Update(ctx, "missing", auth.UserUpdate{Phone: &phone}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("update missing: got %v", err)
	}
}

func TestUserUpdateConflictLeavesRecordUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	seedUser(t, s, "bob")

	// Username is free but the email belongs to bob. The whole update must
	// be rejected without the username change sticking.
	newName := "alicia"
	takenEmail := "bob@example.com"
	_, err := s.Users(ctx).Update(ctx, alice.ID, auth.UserUpdate{Username: &newName, Email: &takenEmail})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("conflicting update: got %v", err)
	}

	stored, err := s.Users(ctx).Find(ctx, alice.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Username != "alice" {
		t.Fatalf("username = %q after rejected update, want %q", stored.Username, "alice")
	}
	if stored.Email != "alice@example.com" {
		t.Fatalf("email = %q after rejected update, want %q", stored.Email, "alice@example.com")
	}
	if !stored.UpdatedAt.Equal(alice.UpdatedAt) {
		t.Fatal("updated_at changed after rejected update")
	}
}

func TestRoleUpdateConflictLeavesRecordUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	editors := &auth.Role{Name: "editors"}
	viewers := &auth.Role{Name: "viewers", IsDefault: false}
	for _, role := range []*auth.Role{editors, viewers} {
		if err := s.Roles(ctx).Create(ctx, role); err != nil {
			t.Fatalf("create role %s: %v", role.Name, err)
		}
	}

	taken := "editors"
	makeDefault := true
	_, err := s.Roles(ctx).Update(ctx, viewers.ID, auth.RoleUpdate{IsDefault: &makeDefault, Name: &taken})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("conflicting update: got %v", err)
	}

	stored, err := s.Roles(ctx).Find(ctx, viewers.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Name != "viewers" || stored.IsDefault {
		t.Fatalf("role mutated by rejected update: name=%q is_default=%v", stored.Name, stored.IsDefault)
	}
}

func TestUserListPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seedUser(t, s, fmt.Sprintf("user%d", i))
	}

	page, err := s.Users(ctx).List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}

	rest, err := s.Users(ctx).List(ctx, 4, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("tail size = %d, want 1", len(rest))
	}

	empty, err := s.Users(ctx).List(ctx, 100, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("out-of-range offset returned %d rows", len(empty))
	}
}

func TestRoleMembershipLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	role := &auth.Role{Name: "editors"}
	if err := s.Roles(ctx).Create(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}

	if err := s.Roles(ctx).AssignUsers(ctx, role.ID, []string{alice.ID, bob.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// Idempotent re-assign.
	if err := s.Roles(ctx).AssignUsers(ctx, role.ID, []string{alice.ID}); err != nil {
		t.Fatalf("re-assign: %v", err)
	}

	users, err := s.Roles(ctx).UsersOf(ctx, role.ID)
	if err != nil {
		t.Fatalf("users of: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d members, want 2", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("unexpected member order: %s, %s", users[0].Username, users[1].Username)
	}

	if err := s.Roles(ctx).RemoveUsers(ctx, role.ID, []string{alice.ID}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	roles, err := s.Roles(ctx).OfUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("of user: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("alice still holds %d roles", len(roles))
	}

	if err := s.Roles(ctx).AssignUsers(ctx, "missing-role", []string{alice.ID}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("assign to missing role: got %v", err)
	}
}

func TestDeleteUserCascadesMemberships(t *testing.T) {
	s := New()
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	role := &auth.Role{Name: "editors"}
	if err := s.Roles(ctx).Create(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := s.Roles(ctx).AssignUsers(ctx, role.ID, []string{alice.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := s.Users(ctx).Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	users, err := s.Roles(ctx).UsersOf(ctx, role.ID)
	if err != nil {
		t.Fatalf("users of: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("membership survived user deletion")
	}
}

func TestPermissionEnsureAndGrants(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Permissions(ctx).Ensure(ctx, auth.BuiltinPermissions); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.Permissions(ctx).Ensure(ctx, auth.BuiltinPermissions); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	all, err := s.Permissions(ctx).List(ctx, 0, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(auth.BuiltinPermissions) {
		t.Fatalf("got %d permissions, want %d", len(all), len(auth.BuiltinPermissions))
	}

	role := &auth.Role{Name: "managers"}
	if err := s.Roles(ctx).Create(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := s.Permissions(ctx).GrantToRole(ctx, role.ID, []string{all[0].ID, all[1].ID}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	granted, err := s.Permissions(ctx).OfRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("of role: %v", err)
	}
	if len(granted) != 2 {
		t.Fatalf("got %d grants, want 2", len(granted))
	}

	if err := s.Permissions(ctx).RevokeFromRole(ctx, role.ID, []string{all[0].ID}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	granted, err = s.Permissions(ctx).OfRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("of role: %v", err)
	}
	if len(granted) != 1 || granted[0].ID != all[1].ID {
		t.Fatalf("revocation removed the wrong grant")
	}
}

func TestRevocationLedger(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Revocations(ctx).Insert(ctx, "tok-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Idempotent on the token string.
	if err := s.Revocations(ctx).Insert(ctx, "tok-1", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if err := s.Revocations(ctx).Insert(ctx, "  ", now); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("blank token: got %v", err)
	}

	ok, err := s.Revocations(ctx).Exists(ctx, "tok-1")
	if err != nil || !ok {
		t.Fatalf("exists: ok=%v err=%v", ok, err)
	}
	ok, err = s.Revocations(ctx).Exists(ctx, "tok-2")
	if err != nil || ok {
		t.Fatalf("missing token exists: ok=%v err=%v", ok, err)
	}

	if err := s.Revocations(ctx).Insert(ctx, "tok-old", now.Add(-time.Hour)); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	purged, err := s.Revocations(ctx).PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged %d, want 1", purged)
	}
	ok, _ = s.Revocations(ctx).Exists(ctx, "tok-1")
	if !ok {
		t.Fatal("unexpired entry was purged")
	}
}
