package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Directory CRUD operations. These validate input and delegate to the
// store; they perform no gating themselves — authorization decisions belong
// to the transport layer's gates.

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Find(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, offset, limit int) ([]*User, error) {
	return s.store.Users(ctx).List(ctx, offset, limit)
}

func (s *Service) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		upd.Username = &name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return nil, err
		}
		upd.Password = &hash
	}
	return s.store.Users(ctx).Update(ctx, userID, upd)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Delete(ctx, userID)
}

func (s *Service) CreateRole(ctx context.Context, name string, isDefault bool) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{Name: name, IsDefault: isDefault}
	if err := s.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Find(ctx, roleID)
}

func (s *Service) ListRoles(ctx context.Context, offset, limit int) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx, offset, limit)
}

func (s *Service) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.store.Roles(ctx).Update(ctx, roleID, upd)
}

// DeleteRole removes the role and cascades its membership and grant links.
// Users and permissions themselves are never touched.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Delete(ctx, roleID)
}

// AssignUsersToRole links each listed user to the role. Every referenced
// user must exist; pairs that already exist are skipped silently. The bulk
// operation is not atomic as a whole — a partially applied batch can simply
// be retried.
func (s *Service) AssignUsersToRole(ctx context.Context, roleID string, userIDs []string) error {
	roleID = strings.TrimSpace(roleID)
	ids := dedupeStrings(userIDs)
	if roleID == "" || len(ids) == 0 {
		return fmt.Errorf("%w: role_id and user_ids are required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return err
	}
	users := s.store.Users(ctx)
	for _, id := range ids {
		if _, err := users.Find(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: user %s", ErrNotFound, id)
			}
			return err
		}
	}
	return s.store.Roles(ctx).AssignUsers(ctx, roleID, ids)
}

// RemoveUsersFromRole deletes exactly the listed membership links;
// removing a link that does not exist is a no-op.
func (s *Service) RemoveUsersFromRole(ctx context.Context, roleID string, userIDs []string) error {
	roleID = strings.TrimSpace(roleID)
	ids := dedupeStrings(userIDs)
	if roleID == "" || len(ids) == 0 {
		return fmt.Errorf("%w: role_id and user_ids are required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return err
	}
	return s.store.Roles(ctx).RemoveUsers(ctx, roleID, ids)
}

func (s *Service) UsersOfRole(ctx context.Context, roleID string) ([]*User, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.Roles(ctx).UsersOf(ctx, roleID)
}

func (s *Service) RolesOfUser(ctx context.Context, userID string) ([]Role, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if _, err := s.store.Users(ctx).Find(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Roles(ctx).OfUser(ctx, userID)
}

func (s *Service) CreatePermission(ctx context.Context, name, description string) (*Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	perm := &Permission{Name: name, Description: strings.TrimSpace(description)}
	if err := s.store.Permissions(ctx).Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *Service) GetPermission(ctx context.Context, permissionID string) (*Permission, error) {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return nil, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).Find(ctx, permissionID)
}

func (s *Service) ListPermissions(ctx context.Context, offset, limit int) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx, offset, limit)
}

func (s *Service) UpdatePermission(ctx context.Context, permissionID string, upd PermissionUpdate) (*Permission, error) {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return nil, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return s.store.Permissions(ctx).Update(ctx, permissionID, upd)
}

// DeletePermission removes the permission and cascades its grant links only.
func (s *Service) DeletePermission(ctx context.Context, permissionID string) error {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).Delete(ctx, permissionID)
}

// GrantPermissionsToRole links each listed permission to the role,
// skipping pairs that already exist.
func (s *Service) GrantPermissionsToRole(ctx context.Context, roleID string, permissionIDs []string) error {
	roleID = strings.TrimSpace(roleID)
	ids := dedupeStrings(permissionIDs)
	if roleID == "" || len(ids) == 0 {
		return fmt.Errorf("%w: role_id and permission_ids are required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return err
	}
	perms := s.store.Permissions(ctx)
	for _, id := range ids {
		if _, err := perms.Find(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: permission %s", ErrNotFound, id)
			}
			return err
		}
	}
	return perms.GrantToRole(ctx, roleID, ids)
}

// RevokePermissionsFromRole deletes exactly the listed grant links.
func (s *Service) RevokePermissionsFromRole(ctx context.Context, roleID string, permissionIDs []string) error {
	roleID = strings.TrimSpace(roleID)
	ids := dedupeStrings(permissionIDs)
	if roleID == "" || len(ids) == 0 {
		return fmt.Errorf("%w: role_id and permission_ids are required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return err
	}
	return s.store.Permissions(ctx).RevokeFromRole(ctx, roleID, ids)
}

func (s *Service) PermissionsOfRole(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.Permissions(ctx).OfRole(ctx, roleID)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
