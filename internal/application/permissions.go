package application

import (
	"context"
	"strings"
)

// HasPermission evaluates a RESOURCE:ACTION key against the live graph for
// the given role. Keys are case-sensitive and must be exactly two non-empty
// colon-separated segments; anything else is false, never an error, so a
// typo in a permission check fails closed instead of failing open. Lookups
// always hit the repository, which is why role or permission changes take
// effect without re-login.
func (s *Service) HasPermission(ctx context.Context, roleName, key string) (bool, error) {
	resource, action, ok := splitPermissionKey(key)
	if !ok {
		return false, nil
	}

	perms, err := s.roles.PermissionsForRole(ctx, roleName)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func splitPermissionKey(key string) (resource, action string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
