package rbac

import "github.com/spec-kit/clinic-portal/internal/domain"

// LandingRouteFor maps a role to its default route. Unknown or empty roles
// land on the login path; the mapping never fails.
func (g *Gate) LandingRouteFor(role domain.Role) string {
	switch domain.NormalizeRole(string(role)) {
	case domain.RoleAdmin:
		return g.paths.AdminLanding
	case domain.RoleEmployee:
		return g.paths.EmployeeLanding
	default:
		return g.paths.Login
	}
}

// LandingRouteFor uses the default route table.
func LandingRouteFor(role domain.Role) string {
	return defaultGate.LandingRouteFor(role)
}

// LandingRouteForIdentity is LandingRouteFor with a nil-safe identity.
func (g *Gate) LandingRouteForIdentity(identity *domain.Identity) string {
	if identity == nil {
		return g.paths.Login
	}
	return g.LandingRouteFor(identity.Role)
}
