// Package kv defines the key-value persistence surface the cart mirrors its
// state into. Backends live in sub-packages (memory, sqlkv) and pkg/redis.
package kv

import "context"

// Store is a string key-value slot store.
//
// Get reports ok=false when the key is absent; that is not an error.
// Clear removes every key the store owns, not only the cart key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

// Pinger exposes the health-check surface of backends that have one.
type Pinger interface {
	Ping(ctx context.Context) error
}
