package http

import (
	"errors"
	"net/http"

	"github.com/mkrupp/itemcatalog/internal/domain"
	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
)

// SessionResolver resolves the signed-in user of a request.
type SessionResolver interface {
	// Authenticate returns domain.ErrSessionNotFound for anonymous requests.
	Authenticate(r *http.Request) (*domain.User, error)
}

// AuthenticatingMiddleware creates middleware that resolves the request's session.
// Anonymous requests pass through unchanged. On success, the user is added to
// the request context as the actor.
func AuthenticatingMiddleware(
	next http.Handler,
	resolver SessionResolver,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := resolver.Authenticate(r)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				log.ErrorContext(r.Context(), "authenticate failed", "error", err)
			}

			next.ServeHTTP(w, r)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithActor(r.Context(), actor)))
	})
}
