package context

import (
	"context"

	"github.com/mkrupp/itemcatalog/internal/domain"
)

const contextKeyActor = contextKey("actor")

// ActorFromContext returns the signed-in user of the current request.
func ActorFromContext(ctx context.Context) (*domain.User, bool) {
	actor, ok := ctx.Value(contextKeyActor).(*domain.User)

	return actor, ok && actor != nil
}

// WithActor stores the signed-in user in ctx. Handlers and loggers read it back
// with ActorFromContext.
func WithActor(ctx context.Context, actor *domain.User) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}
