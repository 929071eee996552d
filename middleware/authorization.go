package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"p9e.in/siteqa/config"
	"p9e.in/siteqa/models"
	"p9e.in/siteqa/workflow"
)

// OrgMembership resolves the caller's membership in the organization named
// by the {orgId} path variable and stashes it in the request context. A
// non-member gets 403 - records in other organizations do not exist as far
// as the caller is concerned.
func OrgMembership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		if claims == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orgID, err := uuid.Parse(mux.Vars(r)["orgId"])
		if err != nil {
			http.Error(w, "invalid organization ID", http.StatusBadRequest)
			return
		}

		var member models.OrganizationMember
		if err := config.DB.
			Preload("Contractor").
			Where("organization_id = ? AND user_id = ? AND is_active = ?", orgID, claims.UserID, true).
			First(&member).Error; err != nil {
			log.Printf("⛔️ Membership check failed: user=%s org=%s", claims.UserID, orgID)
			http.Error(w, "not a member of this organization", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), memberKey, &member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetMember pulls the resolved membership out of the request context (or nil)
func GetMember(r *http.Request) *models.OrganizationMember {
	if m, ok := r.Context().Value(memberKey).(*models.OrganizationMember); ok {
		return m
	}
	return nil
}

// RequirePermission middleware checks the caller's organization role against
// the required permission using the role catalog.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := GetMember(r)
			if member == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !workflow.RoleAllows(member.Role, permission) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission checks if the caller's role grants any of the
// provided permissions
func RequireAnyPermission(permissions []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := GetMember(r)
			if member == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			for _, permission := range permissions {
				if workflow.RoleAllows(member.Role, permission) {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "insufficient permissions", http.StatusForbidden)
		})
	}
}

// ActorFromRequest builds the state machine's view of the caller.
func ActorFromRequest(r *http.Request) workflow.Actor {
	actor := workflow.Actor{UserID: GetUserID(r)}
	if member := GetMember(r); member != nil {
		actor.Role = member.Role
		if member.ContractorID != nil {
			actor.ContractorID = member.ContractorID.String()
		}
	}
	return actor
}
