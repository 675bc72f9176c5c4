package domain

import dErrors "civicdesk/pkg/domain-errors"

// ActorRole is the authorization class of whoever requests a protocol
// transition. The transition matrix keys on it.
//
// Usage: construct via ParseActorRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ActorRole string

const (
	RoleCitizen    ActorRole = "CITIZEN"
	RoleStaff      ActorRole = "STAFF"
	RoleAdmin      ActorRole = "ADMIN"
	RoleSuperAdmin ActorRole = "SUPER_ADMIN"
)

// validActorRoles is the single source of truth for supported roles.
var validActorRoles = map[ActorRole]bool{
	RoleCitizen:    true,
	RoleStaff:      true,
	RoleAdmin:      true,
	RoleSuperAdmin: true,
}

// IsValid reports whether the role is one of the supported values.
func (r ActorRole) IsValid() bool { return validActorRoles[r] }

// IsAdministrative reports whether the role bypasses matrix and
// terminal-state restrictions.
func (r ActorRole) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ParseActorRole constructs an ActorRole from external input.
//
// Errors: CodeBadRequest when the value is empty or unsupported.
func ParseActorRole(s string) (ActorRole, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "actor role cannot be empty")
	}
	r := ActorRole(s)
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unsupported actor role: %q", s)
	}
	return r, nil
}
