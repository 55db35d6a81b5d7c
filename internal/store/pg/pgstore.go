// Package pg implements the directory store on PostgreSQL through
// database/sql with the pgx stdlib driver. Uniqueness and referential
// integrity live in the schema (ops/migrations/sql); this layer only maps
// driver errors onto the domain error taxonomy.
package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"idgate.org/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements auth.DirectoryStore using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ auth.DirectoryStore = (*Store)(nil)

func (s *Store) Users(ctx context.Context) auth.UserStore {
	return &userStore{db: s.db}
}

func (s *Store) Roles(ctx context.Context) auth.RoleStore {
	return &roleStore{db: s.db}
}

func (s *Store) Permissions(ctx context.Context) auth.PermissionStore {
	return &permissionStore{db: s.db}
}

func (s *Store) Revocations(ctx context.Context) auth.RevocationStore {
	return &revocationStore{db: s.db}
}

// mapConstraintErr translates unique and foreign-key violations into the
// domain taxonomy; anything else propagates as an internal failure.
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}
