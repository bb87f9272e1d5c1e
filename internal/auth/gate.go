// ABOUTME: Credential gate for the HTTP transport: static API key or HS256 JWT
// ABOUTME: Produces an AuthContext per request or ErrUnauthorized with a reason

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when a request carries no acceptable credential.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoCredential is returned by NewGate when no credential is configured
// and authentication has not been disabled explicitly.
var ErrNoCredential = errors.New("no API key or JWT secret configured and auth not disabled")

// APIKeyPrincipal is the principal recorded for static API key callers.
const APIKeyPrincipal = "api-key"

// GateConfig configures a Gate.
type GateConfig struct {
	APIKey    string
	JWTSecret string
	// Disabled lets every request through as AnonymousPrincipal.
	Disabled bool
	Logger   *slog.Logger
}

// Gate authenticates inbound HTTP requests.
type Gate struct {
	apiKey   []byte
	verifier TokenVerifier
	disabled bool
	logger   *slog.Logger
}

// NewGate builds a Gate. It refuses to run open unless Disabled is set.
func NewGate(cfg GateConfig) (*Gate, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	if cfg.APIKey == "" && cfg.JWTSecret == "" && !cfg.Disabled {
		return nil, ErrNoCredential
	}

	g := &Gate{
		disabled: cfg.Disabled,
		logger:   logger,
	}
	if cfg.APIKey != "" {
		g.apiKey = []byte(cfg.APIKey)
	}
	if cfg.JWTSecret != "" {
		g.verifier = NewJWTVerifier([]byte(cfg.JWTSecret))
	}

	if g.disabled {
		logger.Warn("authentication DISABLED: every request is accepted as anonymous")
		if ignored := configuredCredentials(cfg); len(ignored) > 0 {
			logger.Warn("configured credentials are ignored while auth is disabled", "ignored", ignored)
		}
	}
	return g, nil
}

func configuredCredentials(cfg GateConfig) []string {
	var names []string
	if cfg.APIKey != "" {
		names = append(names, "api_key")
	}
	if cfg.JWTSecret != "" {
		names = append(names, "jwt_secret")
	}
	return names
}

// Enabled reports whether the gate checks credentials.
func (g *Gate) Enabled() bool {
	return !g.disabled
}

// Authenticate checks the Authorization header of r. The returned error wraps
// ErrUnauthorized and names the reason; it is safe to log but not to echo.
func (g *Gate) Authenticate(r *http.Request) (*AuthContext, error) {
	source := r.RemoteAddr
	if g.disabled {
		return &AuthContext{PrincipalID: AnonymousPrincipal, Method: MethodNone, Source: source}, nil
	}

	credential, reason := extractCredential(r.Header.Get("Authorization"))
	if reason != "" {
		return nil, g.reject(source, reason)
	}

	if g.apiKey != nil && subtle.ConstantTimeCompare([]byte(credential), g.apiKey) == 1 {
		return &AuthContext{PrincipalID: APIKeyPrincipal, Method: MethodAPIKey, Source: source}, nil
	}

	if g.verifier != nil && looksLikeJWT(credential) {
		subject, err := g.verifier.Verify(credential)
		if err != nil {
			return nil, g.reject(source, err.Error())
		}
		return &AuthContext{PrincipalID: subject, Method: MethodJWT, Source: source}, nil
	}

	return nil, g.reject(source, "credential mismatch")
}

func (g *Gate) reject(source, reason string) error {
	g.logger.Warn("authentication failed", "source", source, "reason", reason)
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

// extractCredential accepts "Bearer <credential>" or a bare credential.
// Returns the credential and an error message (empty if successful).
func extractCredential(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "missing authorization header"
	}
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		header = strings.TrimSpace(rest)
	}
	if header == "" {
		return "", "empty credential"
	}
	return header, ""
}

func looksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}
