package auth

import "github.com/spec-kit/portal-auth/internal/domain"

// Permission is a fine-grained capability tag.
type Permission string

const (
	PermManageStaff     Permission = "manage_staff"
	PermManageClients   Permission = "manage_clients"
	PermManageSchedules Permission = "manage_schedules"
	PermManageBlog      Permission = "manage_blog"
	PermViewReports     Permission = "view_reports"
	PermViewClients     Permission = "view_clients"
	PermViewSchedule    Permission = "view_schedule"
	PermLogTime         Permission = "log_time"
)

// rolePermissions is fixed for the process lifetime and never merged with
// per-user overrides.
var rolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermManageStaff,
		PermManageClients,
		PermManageSchedules,
		PermManageBlog,
		PermViewReports,
		PermViewClients,
		PermViewSchedule,
		PermLogTime,
	},
	domain.RoleStaff: {
		PermViewClients,
		PermViewSchedule,
		PermLogTime,
	},
}

// PermissionsFor returns a copy of the ordered capability list for role.
func PermissionsFor(role domain.Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether role grants permission. Unknown roles grant nothing.
func HasPermission(role domain.Role, permission Permission) bool {
	for _, granted := range rolePermissions[role] {
		if granted == permission {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether role grants at least one of permissions.
func HasAnyPermission(role domain.Role, permissions ...Permission) bool {
	for _, permission := range permissions {
		if HasPermission(role, permission) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role grants every one of permissions.
func HasAllPermissions(role domain.Role, permissions ...Permission) bool {
	if _, known := rolePermissions[role]; !known {
		return false
	}
	for _, permission := range permissions {
		if !HasPermission(role, permission) {
			return false
		}
	}
	return true
}
