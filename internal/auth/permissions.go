package auth

// Builtin permission names gating the management endpoints.
const (
	PermManageUsers       = "users.manage"
	PermManageRoles       = "roles.manage"
	PermManagePermissions = "permissions.manage"
)

// BuiltinPermissions are ensured at startup so that a freshly migrated
// store can gate its own management surface.
var BuiltinPermissions = []Permission{
	{Name: PermManageUsers, Description: "Create, update and delete users"},
	{Name: PermManageRoles, Description: "Manage roles and their memberships"},
	{Name: PermManagePermissions, Description: "Manage permissions and role grants"},
}
