package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/portal-auth/internal/domain"
)

var allPermissions = []Permission{
	PermManageStaff,
	PermManageClients,
	PermManageSchedules,
	PermManageBlog,
	PermViewReports,
	PermViewClients,
	PermViewSchedule,
	PermLogTime,
}

func TestUnknownRolesFailClosed(t *testing.T) {
	for _, role := range []domain.Role{"", "guest", "ADMIN", "root"} {
		for _, perm := range allPermissions {
			assert.False(t, HasPermission(role, perm), "role %q perm %q", role, perm)
		}
		assert.False(t, HasAnyPermission(role, allPermissions...))
		assert.False(t, HasAllPermissions(role, PermLogTime))
		assert.False(t, HasAllPermissions(role))
		assert.Nil(t, PermissionsFor(role))
	}
}

func TestAdminHoldsEveryPermission(t *testing.T) {
	assert.True(t, HasAllPermissions(domain.RoleAdmin, allPermissions...))
	assert.Equal(t, allPermissions, PermissionsFor(domain.RoleAdmin))
}

func TestStaffPermissions(t *testing.T) {
	assert.True(t, HasPermission(domain.RoleStaff, PermLogTime))
	assert.False(t, HasPermission(domain.RoleStaff, PermManageStaff))
	assert.True(t, HasAnyPermission(domain.RoleStaff, PermManageStaff, PermViewClients))
	assert.False(t, HasAllPermissions(domain.RoleStaff, PermManageStaff, PermViewClients))
	assert.True(t, HasAllPermissions(domain.RoleStaff))
	assert.False(t, HasAnyPermission(domain.RoleStaff))
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(domain.RoleStaff)
	perms[0] = PermManageStaff

	assert.False(t, HasPermission(domain.RoleStaff, PermManageStaff))
	assert.Equal(t, PermViewClients, PermissionsFor(domain.RoleStaff)[0])
}
