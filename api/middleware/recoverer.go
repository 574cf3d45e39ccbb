package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/gomarketplace/api/responses"
	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
)

// Recoverer turns a handler panic into a typed error response. A panic
// carrying a typed error keeps its code, so a missing cart scope surfaces as
// ACCESS_OUTSIDE_SCOPE instead of a bare 500.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				var err error
				if typed := asTypedPanic(rec); typed != nil {
					err = typed
				} else {
					err = pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("panic: %v", rec), "panic")
				}
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"panic": fmt.Sprint(rec)})
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, nil, w, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func asTypedPanic(rec any) *pkgerrors.Error {
	err, ok := rec.(error)
	if !ok {
		return nil
	}
	return pkgerrors.As(err)
}
