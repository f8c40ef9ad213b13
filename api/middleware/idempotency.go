package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lodgetix/reconcile/api/responses"
	pkgerrors "github.com/lodgetix/reconcile/pkg/errors"
	"github.com/lodgetix/reconcile/pkg/logger"
)

const (
	idempotencyHeader = "X-Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// IdempotencyStore is the slice of the Redis client the guard uses.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Idempotency rejects a repeat of a manual trigger that carries an
// X-Idempotency-Key already seen within the retention window. Requests
// without the header pass through untouched.
func Idempotency(store IdempotencyStore, scope string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := store.SetNX(r.Context(), store.IdempotencyKey(scope, key), 1, idempotencyTTL)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check failed"))
				return
			}
			if !ok {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key was already accepted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
