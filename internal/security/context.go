package security

import "context"

type contextKey struct{}

var actorKey contextKey

// ContextWithActor stores the acting user on the context. Handlers resolve the
// actor once per request and pass it down explicitly from there.
func ContextWithActor(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, actorKey, user)
}

// ActorFromContext returns the acting user, or nil when unauthenticated.
func ActorFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(actorKey).(*User)
	return user
}
