package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/rbac"
)

// RequireRole passes when the caller's organization role is one of roles.
func RequireRole(roles ...rbac.OrgRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == uuid.Nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			role, ok := rbac.ParseOrgRole(GetUserRole(r.Context()))
			if !ok || !rbac.OrgRoleAllowed(role, roles...) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGlobalRole checks the effective global role, which falls back to the
// organization role when no global role is set.
func RequireGlobalRole(roles ...rbac.GlobalRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserID(r.Context()) == uuid.Nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			effective := rbac.EffectiveGlobalRole(GetGlobalRole(r.Context()), GetUserRole(r.Context()))
			if !rbac.GlobalRoleAllowed(effective, roles...) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type projectRoleKey struct{}

// RequireProjectRole looks up the caller's membership on the project named by
// the {id} (or {projectId}) URL parameter.
func RequireProjectRole(checker *rbac.Checker, roles ...rbac.ProjectRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, "id")
			if raw == "" {
				raw = chi.URLParam(r, "projectId")
			}
			projectID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid project ID")
				return
			}

			role, err := checker.RequireProjectRole(r.Context(), GetUserID(r.Context()), projectID, roles...)
			if err != nil {
				var appErr *apperr.Error
				if errors.As(err, &appErr) {
					writeError(w, appErr.Status, appErr.Message)
					return
				}
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), projectRoleKey{}, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProjectRole returns the role resolved by RequireProjectRole.
func GetProjectRole(ctx context.Context) rbac.ProjectRole {
	if role, ok := ctx.Value(projectRoleKey{}).(rbac.ProjectRole); ok {
		return role
	}
	return ""
}
