// Package rbac decides which role areas an identity may enter and where it
// lands after signing in. Every function here is pure: no I/O, no caching.
package rbac

import (
	"github.com/spec-kit/clinic-portal/internal/domain"
)

// Default route paths.
const (
	DefaultLoginPath           = "/auth/login"
	DefaultForbiddenPath       = "/error/403"
	DefaultAdminLandingPath    = "/admin/dashboard"
	DefaultEmployeeLandingPath = "/employee/dashboard"
)

// Paths are the routes the gate and redirector hand to the router.
type Paths struct {
	Login           string
	Forbidden       string
	AdminLanding    string
	EmployeeLanding string
}

// DefaultPaths returns the stock route table.
func DefaultPaths() Paths {
	return Paths{
		Login:           DefaultLoginPath,
		Forbidden:       DefaultForbiddenPath,
		AdminLanding:    DefaultAdminLandingPath,
		EmployeeLanding: DefaultEmployeeLandingPath,
	}
}

func (p Paths) withDefaults() Paths {
	def := DefaultPaths()
	if p.Login == "" {
		p.Login = def.Login
	}
	if p.Forbidden == "" {
		p.Forbidden = def.Forbidden
	}
	if p.AdminLanding == "" {
		p.AdminLanding = def.AdminLanding
	}
	if p.EmployeeLanding == "" {
		p.EmployeeLanding = def.EmployeeLanding
	}
	return p
}

// DecisionKind says whether navigation proceeds.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a gate check. Path is set for redirects only.
type Decision struct {
	Kind DecisionKind
	Path string
}

// Allowed reports whether the decision lets navigation through.
func (d Decision) Allowed() bool {
	return d.Kind == Allow
}

// AllowDecision lets navigation through.
func AllowDecision() Decision { return Decision{Kind: Allow} }

// RedirectTo sends navigation to path.
func RedirectTo(path string) Decision { return Decision{Kind: Redirect, Path: path} }

// Option adjusts a single Authorize call.
type Option func(*authorizeOptions)

type authorizeOptions struct {
	forbiddenPath string
}

// WithForbiddenPath overrides where a role mismatch is sent for one call site.
func WithForbiddenPath(path string) Option {
	return func(o *authorizeOptions) {
		if path != "" {
			o.forbiddenPath = path
		}
	}
}

// Gate evaluates allow-lists against an identity.
type Gate struct {
	paths Paths
}

// NewGate builds a gate; empty paths fall back to the defaults.
func NewGate(paths Paths) *Gate {
	return &Gate{paths: paths.withDefaults()}
}

// Paths returns the gate's route table.
func (g *Gate) Paths() Paths {
	return g.paths
}

// Authorize permits the identity when its role is in allowed. A nil identity
// is always sent to the login path, whatever the allow-list says.
func (g *Gate) Authorize(identity *domain.Identity, allowed []domain.Role, opts ...Option) Decision {
	if identity == nil {
		return RedirectTo(g.paths.Login)
	}

	o := authorizeOptions{forbiddenPath: g.paths.Forbidden}
	for _, opt := range opts {
		opt(&o)
	}

	role := domain.NormalizeRole(string(identity.Role))
	if role == "" {
		return RedirectTo(o.forbiddenPath)
	}
	for _, candidate := range allowed {
		if domain.NormalizeRole(string(candidate)) == role {
			return AllowDecision()
		}
	}
	return RedirectTo(o.forbiddenPath)
}

var defaultGate = NewGate(DefaultPaths())

// Authorize runs the default gate.
func Authorize(identity *domain.Identity, allowed []domain.Role, opts ...Option) Decision {
	return defaultGate.Authorize(identity, allowed, opts...)
}
