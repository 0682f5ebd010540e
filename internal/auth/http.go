// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the principal to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/store"
)

// UserStore defines what the middleware needs from storage.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetRole(ctx context.Context, id string) (*store.Role, error)
	ListRolePermissions(ctx context.Context, roleID string) ([]string, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// BuildAuthContext resolves a user into the typed principal handed to
// handlers, loading the role name and permission set.
func BuildAuthContext(ctx context.Context, users UserStore, user *store.User) *AuthContext {
	authCtx := &AuthContext{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}
	if user.RoleID == "" {
		return authCtx
	}
	if role, err := users.GetRole(ctx, user.RoleID); err == nil {
		authCtx.Role = role.Name
	}
	if perms, err := users.ListRolePermissions(ctx, user.RoleID); err == nil {
		authCtx.Permissions = perms
	}
	return authCtx
}

// Middleware creates an HTTP middleware that extracts and validates JWT
// tokens. It looks up the user and adds AuthContext to the request context
// using the WithAuth/FromContext pattern.
func Middleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				http.Error(w, `{"error":"user not found"}`, http.StatusUnauthorized)
				return
			}

			if !user.IsActive {
				http.Error(w, `{"error":"account disabled"}`, http.StatusForbidden)
				return
			}

			authCtx := BuildAuthContext(r.Context(), users, user)
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// RequirePermission creates an HTTP middleware that requires a specific
// permission. Must be used after Middleware.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			if !authCtx.HasPermission(perm) {
				http.Error(w, `{"error":"permission required: `+perm+`"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin creates an HTTP middleware that requires the admin role.
// Must be used after Middleware.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}

			if !authCtx.IsAdmin() {
				http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
