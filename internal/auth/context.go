package auth

import (
	"context"

	"cleanops/internal/models"
)

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}
