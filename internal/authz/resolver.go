// Package authz computes authorization decisions for a loaded user: effective
// permission codes, effective role tokens and yes/no checks. Every function is
// a pure computation over the user's current associations — nothing is cached
// or written, so a group reassignment is reflected by the very next call.
package authz

import (
	"sort"
	"strings"

	"backend/internal/model"
)

// RoleUser is the baseline role token every user holds.
const RoleUser = model.RolePrefix + "USER"

// RoleAdmin is the role token derived from the system group.
const RoleAdmin = model.RolePrefix + model.AdminGroupName

// IsAllowed resolves whether the user may perform action on the named resource.
// Resolution order: system-group membership, direct grants, group grants.
func IsAllowed(u *model.User, resourceName, action string) bool {
	if u == nil {
		return false
	}
	if u.Group != nil && u.Group.IsSystem {
		return true
	}
	resourceName = strings.ToUpper(strings.TrimSpace(resourceName))
	action = strings.ToUpper(strings.TrimSpace(action))
	for _, p := range u.Permissions {
		if p.Resource != nil && p.Resource.Name == resourceName && p.Action == action {
			return true
		}
	}
	if u.Group != nil {
		return u.Group.HasPermission(resourceName, action)
	}
	return false
}

// PermissionCodes returns the union of the user's direct permission codes and
// the assigned group's permission codes, deduplicated and sorted.
func PermissionCodes(u *model.User) []string {
	if u == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, p := range u.Permissions {
		if code := p.Code(); code != "" {
			seen[code] = struct{}{}
		}
	}
	if u.Group != nil {
		for _, p := range u.Group.Permissions {
			if code := p.Code(); code != "" {
				seen[code] = struct{}{}
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Roles returns the user's effective role tokens: the ROLE_USER baseline,
// any stored supplementary tokens, and the assigned group's derived token.
// Duplicates collapse; the result is sorted.
func Roles(u *model.User) []string {
	if u == nil {
		return nil
	}
	seen := map[string]struct{}{RoleUser: {}}
	for _, role := range u.Roles {
		if role = strings.TrimSpace(role); role != "" {
			seen[role] = struct{}{}
		}
	}
	if u.Group != nil {
		seen[u.Group.Role()] = struct{}{}
	}
	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// IsAdmin reports whether the user's effective role set contains ROLE_ADMIN.
func IsAdmin(u *model.User) bool {
	for _, role := range Roles(u) {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}
