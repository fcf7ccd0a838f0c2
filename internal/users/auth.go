package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tempora-app/tempora/internal/security"
)

// Authenticator resolves the acting user from request credentials and stores
// the security snapshot on the context. Requests without credentials pass
// through unauthenticated; guards downstream decide whether that matters.
type Authenticator struct {
	service *Service
	logger  *slog.Logger
}

// NewAuthenticator constructs the middleware.
func NewAuthenticator(service *Service, logger *slog.Logger) *Authenticator {
	return &Authenticator{service: service, logger: logger}
}

// Middleware performs HTTP Basic authentication against the stored bcrypt
// hash. Disabled accounts never authenticate.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		u, err := a.service.GetByUsername(r.Context(), username)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				a.logger.Error("authenticate user", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !u.Enabled || !a.service.VerifyPassword(u, password) {
			a.logger.Warn("authentication failed", slog.String("username", username))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		ctx := security.ContextWithActor(r.Context(), u.Snapshot())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
