package rbac

// Role names carried in access tokens. They are part of the API contract.
const (
	RoleRecruiter  = "recruiter"
	RoleAdmin      = "admin"
	RoleViewer     = "viewer"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// Known reports whether role is one screenctl may issue.
func Known(role string) bool {
	switch role {
	case RoleRecruiter, RoleAdmin, RoleViewer, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
