package security

import (
	"log/slog"
	"net/http"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireGranted ensures the acting user passes the resolver for the given
// attribute against a kind token. Instance-level checks happen in the
// handlers once the subject is loaded; this guard covers list and create
// endpoints where no instance exists.
func (m Middleware) RequireGranted(attr Attribute, kind EntityKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !m.Resolver.Decide(actor, attr, kind) {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.String("attribute", string(attr)),
						slog.String("kind", string(kind)),
						slog.Int64("user_id", actor.ID))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActor ensures a user is attached to the request context.
func (m Middleware) RequireActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorFromContext(r.Context()) == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
