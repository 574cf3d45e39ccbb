package middleware

import (
	"net/http"

	"github.com/angelmondragon/gomarketplace/internal/cart"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
)

// CartScope opens a cart scope around every request so handlers can reach the
// store through cart.FromContext. A nil store leaves requests unscoped.
func CartScope(store *cart.Store, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := cart.WithStore(r.Context(), store)
			if logg != nil {
				ctx = logg.WithCartKey(ctx, store.Key())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
