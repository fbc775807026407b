// Package rbac holds the role vocabularies and the project membership checker.
//
// Organization roles and project roles are independent: an organization
// MEMBER can own a project, and an organization ADMIN has no project role
// unless a membership row grants one.
package rbac

import "strings"

type OrgRole string

const (
	OrgAdmin  OrgRole = "ADMIN"
	OrgPM     OrgRole = "PM"
	OrgMember OrgRole = "MEMBER"
)

func ParseOrgRole(s string) (OrgRole, bool) {
	switch r := OrgRole(strings.ToUpper(strings.TrimSpace(s))); r {
	case OrgAdmin, OrgPM, OrgMember:
		return r, true
	}
	return "", false
}

type GlobalRole string

const (
	GlobalAdmin          GlobalRole = "ADMIN"
	GlobalProjectManager GlobalRole = "PROJECT_MANAGER"
	GlobalTeamMember     GlobalRole = "TEAM_MEMBER"

	// Legacy value still present in older tokens and rows.
	globalSuperAdmin = "SUPER_ADMIN"
)

// ParseGlobalRole normalizes a stored global role. SUPER_ADMIN collapses to ADMIN.
func ParseGlobalRole(s string) (GlobalRole, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == globalSuperAdmin {
		return GlobalAdmin, true
	}
	switch r := GlobalRole(s); r {
	case GlobalAdmin, GlobalProjectManager, GlobalTeamMember:
		return r, true
	}
	return "", false
}

// GlobalFromOrg maps an organization role onto the global role space.
func GlobalFromOrg(role OrgRole) GlobalRole {
	switch role {
	case OrgAdmin:
		return GlobalAdmin
	case OrgPM:
		return GlobalProjectManager
	case OrgMember:
		return GlobalTeamMember
	}
	return ""
}

// EffectiveGlobalRole is the stored global role when it parses, otherwise the
// organization role mapped through GlobalFromOrg. Organizations that never set
// a global role still authorize through the fallback.
func EffectiveGlobalRole(global, org string) GlobalRole {
	if g, ok := ParseGlobalRole(global); ok {
		return g
	}
	if o, ok := ParseOrgRole(org); ok {
		return GlobalFromOrg(o)
	}
	return ""
}

type ProjectRole string

const (
	ProjectOwner  ProjectRole = "OWNER"
	ProjectEditor ProjectRole = "EDITOR"
	ProjectViewer ProjectRole = "VIEWER"
)

func ParseProjectRole(s string) (ProjectRole, bool) {
	switch r := ProjectRole(strings.ToUpper(strings.TrimSpace(s))); r {
	case ProjectOwner, ProjectEditor, ProjectViewer:
		return r, true
	}
	return "", false
}

// Convenience sets used by routes.
var (
	AnyProjectRole = []ProjectRole{ProjectOwner, ProjectEditor, ProjectViewer}
	ProjectWriters = []ProjectRole{ProjectOwner, ProjectEditor}
)

func containsRole[T ~string](roles []T, r T) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}

func OrgRoleAllowed(r OrgRole, allowed ...OrgRole) bool {
	return containsRole(allowed, r)
}

func GlobalRoleAllowed(r GlobalRole, allowed ...GlobalRole) bool {
	return containsRole(allowed, r)
}

func ProjectRoleAllowed(r ProjectRole, allowed ...ProjectRole) bool {
	return containsRole(allowed, r)
}
