// Package middleware provides HTTP middleware for the servers in this module:
// the local ops endpoint and the in-process API fake used by tests.
package middleware

import (
	"context"
	"net/http"

	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/internal/tokens"
)

// AuthMiddleware validates the HS256 session token sent in the "token" header.
type AuthMiddleware struct {
	secret    []byte
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(secret []byte, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		secret:    secret,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		raw := r.Header.Get(httputil.TokenHeader)
		if raw == "" {
			m.respondError(w, r, errors.Unauthorized("No Authorization header provided"))
			return
		}

		claims, err := tokens.Parse(m.secret, raw)
		if err != nil {
			m.respondError(w, r, errors.InvalidToken(err))
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.UID)
		if claims.UserType != "" {
			ctx = logging.WithRole(ctx, claims.UserType)
		}

		m.logger.WithContext(ctx).WithField("email", claims.Email).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	httputil.WriteError(w, serviceErr.HTTPStatus, serviceErr.Message)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts user role from context
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// RequireRole rejects requests whose token does not carry role.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserRole(r.Context()) != role {
			httputil.WriteError(w, http.StatusBadRequest, "Unauthorized to access this resource")
			return
		}
		next.ServeHTTP(w, r)
	})
}
