package auth

import (
	"context"
	"fmt"
	"slices"

	"connectrpc.com/connect"
)

// Role is a helpdesk role carried in the roles claim.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Permission represents an authorized action
type Permission string

const (
	PermAccountsRead     Permission = "accounts:read"
	PermAccountsWrite    Permission = "accounts:write"
	PermAccountsReassign Permission = "accounts:reassign"
	PermAccountsSeed     Permission = "accounts:seed"
)

// RolePermissions maps roles to allowed permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermAccountsRead,
		PermAccountsWrite,
		PermAccountsReassign,
		PermAccountsSeed,
	},
	RoleOperator: {
		PermAccountsRead,
		PermAccountsWrite,
		PermAccountsReassign,
	},
	RoleViewer: {
		PermAccountsRead,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}

// Allowed reports whether any of the principal's roles grants perm.
func (p *Principal) Allowed(perm Permission) bool {
	for _, role := range p.Roles {
		if HasPermission(role, perm) {
			return true
		}
	}
	return false
}

// RequirePermission checks authorization and returns an error if not authorized
func RequirePermission(ctx context.Context, perm Permission) error {
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("not authenticated"))
	}

	if !principal.Allowed(perm) {
		return connect.NewError(
			connect.CodePermissionDenied,
			fmt.Errorf("permission denied: %v requires %s", principal.Roles, perm),
		)
	}

	return nil
}
