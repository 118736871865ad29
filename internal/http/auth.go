package http

import (
	"context"
	"errors"
	"net/http"

	"cashboxes/internal/auth"
	"cashboxes/internal/core"
	applog "cashboxes/internal/log"
)

type contextKey string

const userContextKey contextKey = "user"

// userHandler serves a request on behalf of an authenticated user.
type userHandler func(w http.ResponseWriter, r *http.Request, user core.User)

// WithUser returns ctx carrying the authenticated user.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user of the request.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	return u, ok
}

// requireUser authenticates the request with HTTP Basic credentials. Failed
// attempts are counted per client IP; a client over the limit is refused
// before its credentials are checked.
func (s *Server) requireUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			next(w, r, u)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			s.challenge(w)
			return
		}

		logger := applog.FromContext(r.Context())
		clientIP := s.clientIP.Extract(r)
		if s.authLimit.Blocked(clientIP) {
			s.tooManyLogins(w, logger, clientIP)
			return
		}

		u, err := s.auth.Authenticate(r.Context(), username, password)
		if err != nil {
			if !s.authLimit.Allow(clientIP) {
				s.tooManyLogins(w, logger, clientIP)
				return
			}
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				logger.Info("Rejected credentials", applog.FieldUser, username, applog.FieldClientIP, clientIP)
				s.challenge(w)
			case errors.Is(err, core.ErrInactiveUser):
				logger.Info("Rejected inactive user", applog.FieldUser, username)
				http.Error(w, "This account is inactive.", http.StatusForbidden)
			default:
				logger.Error("Authentication failed", applog.FieldError, err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		r = r.WithContext(WithUser(r.Context(), u))
		next(w, r, u)
	})
}

func (s *Server) tooManyLogins(w http.ResponseWriter, logger *applog.Logger, clientIP string) {
	logger.Warn("Too many failed logins", applog.FieldClientIP, clientIP)
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Too many failed login attempts. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+s.realm+`", charset="UTF-8"`)
	http.Error(w, "Authentication required", http.StatusUnauthorized)
}
