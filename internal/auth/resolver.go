package auth

import (
	"context"
	"fmt"
	"strings"
)

// EffectiveRoles returns the set of role names directly assigned to the
// user. Role names are unique, so the set view loses nothing.
func (s *Service) EffectiveRoles(ctx context.Context, userID string) (map[string]struct{}, error) {
	roles, err := s.store.Roles(ctx).OfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role.Name] = struct{}{}
	}
	return set, nil
}

// EffectivePermissions returns the union, over all of the user's roles, of
// each role's granted permission names. The fan-out (user -> roles ->
// permissions) is computed fresh on every call; there is no cached or
// denormalized permission set anywhere, so the result always reflects the
// membership and grant links as they stand right now.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) (map[string]struct{}, error) {
	roles := s.store.Roles(ctx)
	perms := s.store.Permissions(ctx)

	assigned, err := roles.OfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, role := range assigned {
		granted, err := perms.OfRole(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range granted {
			set[p.Name] = struct{}{}
		}
	}
	return set, nil
}

// HasAnyRole reports whether the user holds at least one of the required
// role names. An empty requirement yields false: no role can satisfy an
// empty requirement, and the vacuous-truth reading would turn a
// misconfigured gate into an open door.
func (s *Service) HasAnyRole(ctx context.Context, userID string, required []string) (bool, error) {
	if len(required) == 0 {
		return false, nil
	}
	held, err := s.EffectiveRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	return intersects(held, required), nil
}

// HasAnyPermission reports whether the user's effective permission set
// intersects the required permission names. Empty requirements yield false,
// same as HasAnyRole.
func (s *Service) HasAnyPermission(ctx context.Context, userID string, required []string) (bool, error) {
	if len(required) == 0 {
		return false, nil
	}
	held, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return intersects(held, required), nil
}

// RequireAnyRole is HasAnyRole with a decision: a false predicate becomes
// ErrForbidden naming the acceptable roles.
func (s *Service) RequireAnyRole(ctx context.Context, userID string, required []string) error {
	ok, err := s.HasAnyRole(ctx, userID, required)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: requires one of roles [%s]", ErrForbidden, strings.Join(required, ", "))
	}
	return nil
}

// RequireAnyPermission is HasAnyPermission with a decision.
func (s *Service) RequireAnyPermission(ctx context.Context, userID string, required []string) error {
	ok, err := s.HasAnyPermission(ctx, userID, required)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: requires one of permissions [%s]", ErrForbidden, strings.Join(required, ", "))
	}
	return nil
}

func intersects(held map[string]struct{}, required []string) bool {
	for _, name := range required {
		if _, ok := held[name]; ok {
			return true
		}
	}
	return false
}
