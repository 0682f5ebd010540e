// ABOUTME: Package documentation for the auth package
// ABOUTME: Describes JWT sessions, the principal model, and middleware composition

// Package auth provides authentication and authorization for parley's API.
//
// # Sessions
//
// Logins exchange email/password credentials for an HS256-signed JWT whose
// "sub" claim carries the user ID. Password verification uses bcrypt, with a
// dummy comparison on the missing-user path so login timing stays constant.
//
// # Principal
//
// The middleware resolves each bearer token into an AuthContext: user
// identity plus the role name and permission set loaded from storage. The
// AuthContext is attached to the request context and is the only way
// handlers learn who is calling; there is no ambient or thread-local
// identity.
//
// # Composition
//
//	r.Use(auth.Middleware(store, verifier))
//	r.With(auth.RequirePermission(store.PermUsersRead)).Get("/admin/users", h)
//
// RequirePermission and RequireAdmin must be mounted after Middleware.
package auth
