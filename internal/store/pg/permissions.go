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

const permissionColumns = `id, name, description, created_at, updated_at`

type permissionStore struct{ db *sql.DB }

func scanPermission(row interface{ Scan(...any) error }) (auth.Permission, error) {
	var (
		p    auth.Permission
		desc sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &desc, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return auth.Permission{}, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	return p, nil
}

func (s *permissionStore) Create(ctx context.Context, perm *auth.Permission) error {
	if perm.ID == "" {
		perm.ID = ids.New()
	}
	var desc any
	if perm.Description != "" {
		desc = perm.Description
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (id, name, description)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, perm.ID, perm.Name, desc)
	if err := row.Scan(&perm.CreatedAt, &perm.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		id := p.ID
		if id == "" {
			id = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into permissions (id, name, description)
			values ($1, $2, $3)
			on conflict (name) do nothing
		`, id, p.Name, p.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) Find(ctx context.Context, id string) (*auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+permissionColumns+` from permissions where id = $1`, id)
	p, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *permissionStore) FindByName(ctx context.Context, name string) (*auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+permissionColumns+` from permissions where name = $1`, name)
	p, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *permissionStore) List(ctx context.Context, offset, limit int) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+permissionColumns+` from permissions
		order by name
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) Update(ctx context.Context, id string, upd auth.PermissionUpdate) (*auth.Permission, error) {
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
	if upd.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update permissions set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
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

// Delete removes the permission; the schema cascades role_permissions rows.
func (s *permissionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from permissions where id = $1`, id)
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

func (s *permissionStore) GrantToRole(ctx context.Context, roleID string, permissionIDs []string) error {
	for _, permID := range permissionIDs {
		_, err := s.db.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
			on conflict do nothing
		`, roleID, permID)
		if err != nil {
			return mapConstraintErr(err)
		}
	}
	return nil
}

func (s *permissionStore) RevokeFromRole(ctx context.Context, roleID string, permissionIDs []string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from role_permissions
		where role_id = $1 and permission_id = any($2)
	`, roleID, permissionIDs)
	return err
}

func (s *permissionStore) OfRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.description, p.created_at, p.updated_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
