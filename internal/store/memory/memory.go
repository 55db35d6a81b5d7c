// Package memory implements the directory store in process memory. It backs
// the handler tests and the dev mode of cmd/api; production deployments use
// the PostgreSQL store.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"idgate.org/internal/auth"
	"idgate.org/internal/ids"
)

// Store keeps all directory state behind one mutex. Uniqueness checks run
// under the same lock that performs the insert, mirroring the constraint
// behavior of the SQL store.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*auth.User
	roles       map[string]*auth.Role
	permissions map[string]*auth.Permission
	memberships map[[2]string]auth.Membership // (userID, roleID)
	grants      map[[2]string]auth.Grant      // (roleID, permissionID)
	revocations map[string]auth.RevokedToken
	now         func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:       make(map[string]*auth.User),
		roles:       make(map[string]*auth.Role),
		permissions: make(map[string]*auth.Permission),
		memberships: make(map[[2]string]auth.Membership),
		grants:      make(map[[2]string]auth.Grant),
		revocations: make(map[string]auth.RevokedToken),
		now:         time.Now,
	}
}

var _ auth.DirectoryStore = (*Store)(nil)

func (s *Store) Users(context.Context) auth.UserStore             { return (*userStore)(s) }
func (s *Store) Roles(context.Context) auth.RoleStore             { return (*roleStore)(s) }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return (*permissionStore)(s) }
func (s *Store) Revocations(context.Context) auth.RevocationStore { return (*revocationStore)(s) }

// User store ---------------------------------------------------------------

type userStore Store

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return auth.ErrConflict
		}
		if u.Phone != "" && existing.Phone == u.Phone {
			return auth.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) List(ctx context.Context, offset, limit int) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		clone := *u
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, offset, limit), nil
}

func (s *userStore) Update(ctx context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	// Stage into a copy so a conflict on a later field leaves the stored
	// record untouched, like the SQL store's single-statement update.
	staged := *u
	if upd.Username != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Username == *upd.Username {
				return nil, auth.ErrConflict
			}
		}
		staged.Username = *upd.Username
	}
	if upd.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *upd.Email {
				return nil, auth.ErrConflict
			}
		}
		staged.Email = *upd.Email
	}
	if upd.Password != nil {
		staged.PasswordHash = *upd.Password
	}
	if upd.Phone != nil {
		staged.Phone = *upd.Phone
	}
	if upd.DateOfBirth != nil {
		dob := *upd.DateOfBirth
		staged.DateOfBirth = &dob
	}
	if upd.IsActive != nil {
		staged.IsActive = *upd.IsActive
	}
	staged.UpdatedAt = s.now().UTC()
	s.users[id] = &staged
	clone := staged
	return &clone, nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	for key := range s.memberships {
		if key[0] == id {
			delete(s.memberships, key)
		}
	}
	return nil
}

// Role store ---------------------------------------------------------------

type roleStore Store

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return auth.ErrConflict
		}
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	now := s.now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	clone := *role
	s.roles[role.ID] = &clone
	return nil
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *role
	return &clone, nil
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.Name == name {
			clone := *role
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *roleStore) List(ctx context.Context, offset, limit int) ([]*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*auth.Role, 0, len(s.roles))
	for _, role := range s.roles {
		clone := *role
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, offset, limit), nil
}

func (s *roleStore) Update(ctx context.Context, id string, upd auth.RoleUpdate) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	staged := *role
	if upd.Name != nil {
		for otherID, other := range s.roles {
			if otherID != id && other.Name == *upd.Name {
				return nil, auth.ErrConflict
			}
		}
		staged.Name = *upd.Name
	}
	if upd.IsDefault != nil {
		staged.IsDefault = *upd.IsDefault
	}
	staged.UpdatedAt = s.now().UTC()
	s.roles[id] = &staged
	clone := staged
	return &clone, nil
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.roles, id)
	for key := range s.memberships {
		if key[1] == id {
			delete(s.memberships, key)
		}
	}
	for key := range s.grants {
		if key[0] == id {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *roleStore) AssignUsers(ctx context.Context, roleID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	now := s.now().UTC()
	for _, userID := range userIDs {
		key := [2]string{userID, roleID}
		if _, ok := s.memberships[key]; ok {
			continue
		}
		s.memberships[key] = auth.Membership{UserID: userID, RoleID: roleID, AssignedAt: now}
	}
	return nil
}

func (s *roleStore) RemoveUsers(ctx context.Context, roleID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, userID := range userIDs {
		delete(s.memberships, [2]string{userID, roleID})
	}
	return nil
}

func (s *roleStore) UsersOf(ctx context.Context, roleID string) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*auth.User
	for key := range s.memberships {
		if key[1] != roleID {
			continue
		}
		if u, ok := s.users[key[0]]; ok {
			clone := *u
			users = append(users, &clone)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *roleStore) OfUser(ctx context.Context, userID string) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []auth.Role
	for key := range s.memberships {
		if key[0] != userID {
			continue
		}
		if role, ok := s.roles[key[1]]; ok {
			roles = append(roles, *role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// Permission store ---------------------------------------------------------

type permissionStore Store

func (s *permissionStore) Create(ctx context.Context, perm *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(perm)
}

func (s *permissionStore) insert(perm *auth.Permission) error {
	for _, existing := range s.permissions {
		if existing.Name == perm.Name {
			return auth.ErrConflict
		}
	}
	if perm.ID == "" {
		perm.ID = ids.New()
	}
	now := s.now().UTC()
	perm.CreatedAt = now
	perm.UpdatedAt = now
	clone := *perm
	s.permissions[perm.ID] = &clone
	return nil
}

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		perm := p
		if err := s.insert(&perm); err != nil && !errors.Is(err, auth.ErrConflict) {
			return err
		}
	}
	return nil
}

func (s *permissionStore) Find(ctx context.Context, id string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perm, ok := s.permissions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *perm
	return &clone, nil
}

func (s *permissionStore) FindByName(ctx context.Context, name string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, perm := range s.permissions {
		if perm.Name == name {
			clone := *perm
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *permissionStore) List(ctx context.Context, offset, limit int) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]auth.Permission, 0, len(s.permissions))
	for _, perm := range s.permissions {
		all = append(all, *perm)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, offset, limit), nil
}

func (s *permissionStore) Update(ctx context.Context, id string, upd auth.PermissionUpdate) (*auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perm, ok := s.permissions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	staged := *perm
	if upd.Name != nil {
		for otherID, other := range s.permissions {
			if otherID != id && other.Name == *upd.Name {
				return nil, auth.ErrConflict
			}
		}
		staged.Name = *upd.Name
	}
	if upd.Description != nil {
		staged.Description = *upd.Description
	}
	staged.UpdatedAt = s.now().UTC()
	s.permissions[id] = &staged
	clone := staged
	return &clone, nil
}

func (s *permissionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.permissions, id)
	for key := range s.grants {
		if key[1] == id {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *permissionStore) GrantToRole(ctx context.Context, roleID string, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	now := s.now().UTC()
	for _, permID := range permissionIDs {
		key := [2]string{roleID, permID}
		if _, ok := s.grants[key]; ok {
			continue
		}
		s.grants[key] = auth.Grant{RoleID: roleID, PermissionID: permID, AssignedAt: now}
	}
	return nil
}

func (s *permissionStore) RevokeFromRole(ctx context.Context, roleID string, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, permID := range permissionIDs {
		delete(s.grants, [2]string{roleID, permID})
	}
	return nil
}

func (s *permissionStore) OfRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var perms []auth.Permission
	for key := range s.grants {
		if key[0] != roleID {
			continue
		}
		if perm, ok := s.permissions[key[1]]; ok {
			perms = append(perms, *perm)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

// Revocation ledger --------------------------------------------------------

type revocationStore Store

func (s *revocationStore) Insert(ctx context.Context, token string, expiresAt time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revocations[token]; ok {
		return nil
	}
	s.revocations[token] = auth.RevokedToken{
		Token:     token,
		RevokedAt: s.now().UTC(),
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *revocationStore) Exists(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revocations[token]
	return ok, nil
}

func (s *revocationStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for token, entry := range s.revocations {
		if entry.ExpiresAt.Before(now) {
			delete(s.revocations, token)
			purged++
		}
	}
	return purged, nil
}

func paginate[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
