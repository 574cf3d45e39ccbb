package cart

import (
	"context"

	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
)

type scopeKey struct{}

// WithStore opens a cart scope: code running under the returned context can
// reach the store through FromContext.
func WithStore(ctx context.Context, s *Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the store of the enclosing cart scope, or an
// ACCESS_OUTSIDE_SCOPE error when there is none.
func FromContext(ctx context.Context) (*Store, error) {
	if ctx != nil {
		if s, ok := ctx.Value(scopeKey{}).(*Store); ok && s != nil {
			return s, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeOutsideScope, "cart store must be used within a cart scope")
}

// MustFromContext is FromContext for callers where a missing scope is a
// wiring bug; it panics with the ACCESS_OUTSIDE_SCOPE error.
func MustFromContext(ctx context.Context) *Store {
	s, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return s
}
