package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"idgate.org/internal/auth"
)

const userCols = "id, username, email, password_hash, phone, date_of_birth, is_active, created_at, updated_at"

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestUserFind(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "phone", "date_of_birth", "is_active", "created_at", "updated_at",
	}).AddRow("u1", "alice", "alice@example.com", "hash", nil, nil, true, now, now)
	mock.ExpectQuery("select " + userCols + " from users where id").
		WithArgs("u1").
		WillReturnRows(rows)

	u, err := store.Users(context.Background()).Find(context.Background(), "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.Username != "alice" || u.Phone != "" || u.DateOfBirth != nil {
		t.Fatalf("unexpected user: %+v", u)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select " + userCols + " from users where id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).Find(context.Background(), "missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := store.Users(context.Background()).Create(context.Background(), &auth.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

func TestUserUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update users set username").
		WithArgs("bob", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	name := "bob"
	_, err := store.Users(context.Background()).Update(context.Background(), "missing", auth.UserUpdate{Username: &name})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAssignUsersMapsForeignKeyViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into user_roles").
		WithArgs("ghost-user", "r1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "user_roles_user_id_fkey"})

	err := store.Roles(context.Background()).AssignUsers(context.Background(), "r1", []string{"ghost-user"})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAssignUsersSkipsExistingPairs(t *testing.T) {
	store, mock := newMockStore(t)

	// Conflict clause swallows the duplicate: zero rows affected, no error.
	mock.ExpectExec("insert into user_roles").
		WithArgs("u1", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Roles(context.Background()).AssignUsers(context.Background(), "r1", []string{"u1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleCreateReturnsTimestamps(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("insert into roles").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	role := &auth.Role{Name: "editors"}
	if err := store.Roles(context.Background()).Create(context.Background(), role); err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.ID == "" {
		t.Fatal("expected a generated id")
	}
	if !role.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", role.CreatedAt, now)
	}
}

func TestRoleDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from roles where id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Roles(context.Background()).Delete(context.Background(), "missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRevocationLedgerQueries(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec("insert into revoked_tokens").
		WithArgs("tok-1", now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Revocations(ctx).Insert(ctx, "tok-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	mock.ExpectQuery("select exists").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := store.Revocations(ctx).Exists(ctx, "tok-1")
	if err != nil || !ok {
		t.Fatalf("exists: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("delete from revoked_tokens where expires_at").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	purged, err := store.Revocations(ctx).PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 3 {
		t.Fatalf("purged = %d, want 3", purged)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionEnsureUsesConflictClause(t *testing.T) {
	store, mock := newMockStore(t)

	for range auth.BuiltinPermissions {
		mock.ExpectExec("insert into permissions").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := store.Permissions(context.Background()).Ensure(context.Background(), auth.BuiltinPermissions); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
