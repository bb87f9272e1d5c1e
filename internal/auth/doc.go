// Package auth guards the HTTP transport of the compliance gateway.
//
// # Credentials
//
// Two credentials are accepted in the Authorization header, either as
// "Bearer <credential>" or bare:
//
//   - A static API key (auth.api_key), compared in constant time.
//     The principal is "api-key".
//   - An HS256 JWT signed with auth.jwt_secret and issued by
//     "compliance-gateway". The token subject becomes the principal.
//
// # Development mode
//
// A Gate with no credential refuses to start unless auth.disabled is set.
// A disabled gate admits every request as principal "anonymous" and logs a
// warning once at construction.
//
// The stream transport is trusted by construction and never passes through
// the gate; it runs with LocalContext.
//
// The authenticated identity travels in the request context:
//
//	ctx = auth.WithAuth(ctx, ac)
//	ac := auth.FromContext(ctx)
package auth
