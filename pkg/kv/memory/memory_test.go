package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gomarketplace/pkg/kv"
)

var _ kv.Store = (*Store)(nil)

func TestStoreSetGetClear(t *testing.T) {
	ctx := context.Background()
	s := New(WithSeed(map[string]string{"other": "x"}))

	_, ok, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "cart", "[]"))
	v, ok, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)
	assert.Equal(t, 1, s.Writes())
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	s := New()

	s.FailSet(boom)
	assert.ErrorIs(t, s.Set(ctx, "cart", "[]"), boom)
	assert.Equal(t, 0, s.Writes())

	s.FailSet(nil)
	require.NoError(t, s.Set(ctx, "cart", "[]"))

	s.FailGet(boom)
	_, _, err := s.Get(ctx, "cart")
	assert.ErrorIs(t, err, boom)

	s.FailClear(boom)
	assert.ErrorIs(t, s.Clear(ctx), boom)
}

func TestStoreSetHookAndCanceledContext(t *testing.T) {
	var seen []string
	s := New(WithSetHook(func(key, value string) { seen = append(seen, key+"="+value) }))

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	assert.Equal(t, []string{"k=v"}, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "k", "w"), context.Canceled)
}
