// ABOUTME: Authentication context for tracking caller identity through request handling
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// Authentication methods recorded on an AuthContext.
const (
	MethodAPIKey = "api_key"
	MethodJWT    = "jwt"
	MethodNone   = "none" // gate disabled
	MethodLocal  = "local"
)

// AnonymousPrincipal is the principal used when authentication is disabled.
const AnonymousPrincipal = "anonymous"

// AuthContext holds the authenticated identity for one request.
type AuthContext struct {
	PrincipalID string // "api-key", a JWT subject, or AnonymousPrincipal
	Method      string // MethodAPIKey | MethodJWT | MethodNone | MethodLocal
	Source      string // remote address for HTTP, "stdio" for the stream transport
}

// LocalContext is the identity of the trusted stream-transport client.
func LocalContext() *AuthContext {
	return &AuthContext{
		PrincipalID: "local",
		Method:      MethodLocal,
		Source:      "stdio",
	}
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
