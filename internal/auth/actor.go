package auth

import (
	"context"

	"github.com/noirepd/precinct/internal/shared/types"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID    types.ID `json:"id"`
	Roles RoleSet  `json:"-"`
}

// NewActor builds an Actor.
func NewActor(id types.ID, roles RoleSet) Actor {
	return Actor{ID: id, Roles: roles}
}

type actorKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored in the context.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
