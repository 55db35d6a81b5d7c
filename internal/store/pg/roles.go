package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"idgate.org/internal/auth"
	"idgate.org/internal/ids"
)

const roleColumns = `id, name, is_default, created_at, updated_at`

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, is_default)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, role.ID, role.Name, role.IsDefault)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id).
		Scan(&role.ID, &role.Name, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where name = $1`, name).
		Scan(&role.ID, &role.Name, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) List(ctx context.Context, offset, limit int) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+` from roles
		order by name
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Update(ctx context.Context, id string, upd auth.RoleUpdate) (*auth.Role, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.IsDefault != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_default = $%d", idx))
		args = append(args, *upd.IsDefault)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, mapConstraintErr(err)
		}
		if aff, err := res.RowsAffected(); err == nil && aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

// Delete removes the role; the schema cascades user_roles and
// role_permissions rows, nothing else.
func (s *roleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// AssignUsers inserts membership rows one by one; existing pairs are
// skipped by the conflict clause, so a partially applied batch can be
// retried safely.
func (s *roleStore) AssignUsers(ctx context.Context, roleID string, userIDs []string) error {
	for _, userID := range userIDs {
		_, err := s.db.ExecContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
			on conflict do nothing
		`, userID, roleID)
		if err != nil {
			return mapConstraintErr(err)
		}
	}
	return nil
}

func (s *roleStore) RemoveUsers(ctx context.Context, roleID string, userIDs []string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where role_id = $1 and user_id = any($2)
	`, roleID, userIDs)
	return err
}

func (s *roleStore) UsersOf(ctx context.Context, roleID string) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.username, u.email, u.password_hash, u.phone, u.date_of_birth, u.is_active, u.created_at, u.updated_at
		from users u
		join user_roles ur on ur.user_id = u.id
		where ur.role_id = $1
		order by u.username
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *roleStore) OfUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.is_default, r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
