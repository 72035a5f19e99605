package shared

import "context"

// Actor identifies the authenticated caller as resolved by the upstream
// authentication and tenancy layer. The core trusts these values and uses
// SchoolID only to scope queries, never to authorize.
type Actor struct {
	SchoolID int64
	UserID   int64
	Role     string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor is
// returned when the tenancy middleware did not run.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
