package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
	"github.com/angelmondragon/gomarketplace/pkg/kv/memory"
)

func TestNewStoreRequiresKV(t *testing.T) {
	_, err := NewStore(StoreParams{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddToCartDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s, kvStore := newReadyStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddToCart(ctx, Product{ID: fmt.Sprintf("p%d", i), Title: "T", Price: decimal.NewFromInt(int64(i))}))
	}

	items := s.Products()
	require.Len(t, items, 5)
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("p%d", i), item.ID, "insertion order must be preserved")
		assert.Equal(t, 1, item.Quantity)
	}

	require.NoError(t, s.Flush(ctx))
	assertItemsEqual(t, items, persisted(t, kvStore))
}

func TestAddToCartSameIDKeepsFirstFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newReadyStore(t)

	require.NoError(t, s.AddToCart(ctx, shirt()))
	require.NoError(t, s.AddToCart(ctx, Product{ID: "a", Title: "Renamed", ImageURL: "other", Price: decimal.NewFromInt(99)}))

	items := s.Products()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "Shirt", items[0].Title)
	assert.Equal(t, "u", items[0].ImageURL)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(10)))
}

func TestAddToCartRejectsBlankID(t *testing.T) {
	s, _ := newReadyStore(t)

	for _, id := range []string{"", "   "} {
		err := s.AddToCart(context.Background(), Product{ID: id, Title: "x"})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
	assert.Empty(t, s.Products())
}

func TestIncrementUnknownIDLeavesCartButStillPersists(t *testing.T) {
	ctx := context.Background()
	s, kvStore := newReadyStore(t)
	require.NoError(t, s.AddToCart(ctx, shirt()))
	require.NoError(t, s.Flush(ctx))
	before := s.Products()
	writes := kvStore.Writes()

	s.Increment(ctx, "missing")
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, before, s.Products())
	assert.Equal(t, writes+1, kvStore.Writes(), "no-op mutation should still rewrite the snapshot")
}

func TestDecrementAtZeroStaysAndIsNotRemoved(t *testing.T) {
	ctx := context.Background()
	s, _ := newReadyStore(t)
	require.NoError(t, s.AddToCart(ctx, shirt()))

	s.Decrement(ctx, "a")
	s.Decrement(ctx, "a")
	s.Decrement(ctx, "a")

	items := s.Products()
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Quantity)
}

func TestDecrementFromN(t *testing.T) {
	ctx := context.Background()
	s, _ := newReadyStore(t)
	require.NoError(t, s.AddToCart(ctx, shirt()))
	for i := 0; i < 4; i++ {
		s.Increment(ctx, "a")
	}
	require.Equal(t, 5, s.Products()[0].Quantity)

	s.Decrement(ctx, "a")
	assert.Equal(t, 4, s.Products()[0].Quantity)

	s.Decrement(ctx, "missing")
	assert.Equal(t, 4, s.Products()[0].Quantity)
}

func TestShirtScenario(t *testing.T) {
	ctx := context.Background()
	s, kvStore := newReadyStore(t)
	assert.Empty(t, s.Products())

	require.NoError(t, s.AddToCart(ctx, shirt()))
	want := []LineItem{{ID: "a", Title: "Shirt", ImageURL: "u", Price: decimal.NewFromInt(10), Quantity: 1}}
	assert.Equal(t, want, s.Products())

	s.Increment(ctx, "a")
	assert.Equal(t, 2, s.Products()[0].Quantity)

	s.Decrement(ctx, "a")
	assert.Equal(t, 1, s.Products()[0].Quantity)

	s.Decrement(ctx, "a")
	s.Decrement(ctx, "a")
	items := s.Products()
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Quantity)

	require.NoError(t, s.Flush(ctx))
	want[0].Quantity = 0
	assertItemsEqual(t, want, persisted(t, kvStore))
}

func TestInitializeLoadsPersistedSnapshot(t *testing.T) {
	ctx := context.Background()
	kvStore := memory.New(memory.WithSeed(map[string]string{
		StorageKey: `[{"id":"a","title":"Shirt","image_url":"u","price":10,"quantity":3}]`,
	}))
	s := newTestStore(t, kvStore, nil)

	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, PhaseReady, s.Phase())
	assertItemsEqual(t, []LineItem{{ID: "a", Title: "Shirt", ImageURL: "u", Price: decimal.NewFromInt(10), Quantity: 3}}, s.Products())
	assert.Equal(t, 0, kvStore.Writes(), "loading alone must not rewrite the snapshot")
}

func TestInitializeWithClearOnLoadAlwaysYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()
	kvStore := memory.New(memory.WithSeed(map[string]string{
		StorageKey: `[{"id":"a","title":"Shirt","image_url":"u","price":10,"quantity":3}]`,
		"other":    "x",
	}))
	s := newTestStore(t, kvStore, func(p *StoreParams) { p.ClearOnLoad = true })

	require.NoError(t, s.Initialize(ctx))
	assert.Empty(t, s.Products())
	assert.Equal(t, 0, kvStore.Len(), "clear wipes the whole kv store")
}

func TestInitializeClearFailureIsNotFatal(t *testing.T) {
	kvStore := memory.New()
	kvStore.FailClear(errors.New("locked"))
	s := newTestStore(t, kvStore, func(p *StoreParams) { p.ClearOnLoad = true })

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, PhaseReady, s.Phase())
}

func TestInitializeMalformedSnapshotIsFatal(t *testing.T) {
	kvStore := memory.New(memory.WithSeed(map[string]string{StorageKey: `{not json`}))
	s := newTestStore(t, kvStore, nil)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMalformedState))
	assert.Equal(t, PhaseUninitialized, s.Phase())
	select {
	case <-s.Ready():
		t.Fatal("store must not become ready on a malformed snapshot")
	default:
	}
}

func TestInitializeReadFailureCanBeRetried(t *testing.T) {
	kvStore := memory.New()
	kvStore.FailGet(errors.New("io"))
	s := newTestStore(t, kvStore, nil)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	kvStore.FailGet(nil)
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, PhaseReady, s.Phase())
}

func TestInitializeTwiceIsAConflict(t *testing.T) {
	s, _ := newReadyStore(t)
	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestMutationsBeforeReadyAreReplayedOnLoadedSnapshot(t *testing.T) {
	ctx := context.Background()
	kvStore := memory.New(memory.WithSeed(map[string]string{
		StorageKey: `[{"id":"a","title":"Shirt","image_url":"u","price":"10","quantity":3}]`,
	}))
	s := newTestStore(t, kvStore, nil)

	require.NoError(t, s.AddToCart(ctx, Product{ID: "b", Title: "Hat", ImageURL: "h", Price: decimal.NewFromInt(5)}))
	s.Increment(ctx, "a")
	require.NoError(t, s.AddToCart(ctx, Product{ID: "a", Title: "Ignored", Price: decimal.NewFromInt(1)}))

	// the pre-load view only knows about what was mutated so far
	pre := s.Products()
	require.Len(t, pre, 2)
	assert.Equal(t, "b", pre[0].ID)
	assert.Equal(t, 0, kvStore.Writes(), "nothing is persisted before the store is ready")

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Flush(ctx))

	want := []LineItem{
		{ID: "a", Title: "Shirt", ImageURL: "u", Price: decimal.NewFromInt(10), Quantity: 5},
		{ID: "b", Title: "Hat", ImageURL: "h", Price: decimal.NewFromInt(5), Quantity: 1},
	}
	assertItemsEqual(t, want, s.Products())
	assertItemsEqual(t, want, persisted(t, kvStore))
	assert.Equal(t, 1, kvStore.Writes(), "replayed mutations are persisted once")
}

func TestInitializeAsyncClosesReady(t *testing.T) {
	kvStore := memory.New()
	s := newTestStore(t, kvStore, nil)

	errCh := s.InitializeAsync(context.Background())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("async initialize did not finish")
	}
	select {
	case <-s.Ready():
	default:
		t.Fatal("ready channel should be closed")
	}
}

func TestSubscribersSeeEveryUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), nil)

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	require.NoError(t, s.AddToCart(ctx, shirt()))
	require.NoError(t, s.Initialize(ctx))
	s.Increment(ctx, "a")

	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Items[0].Quantity)
	assert.Equal(t, 1, got[1].Items[0].Quantity, "load publishes the replayed state")
	assert.Equal(t, 2, got[2].Items[0].Quantity)
	assert.Less(t, got[0].Version, got[1].Version)
	assert.Less(t, got[1].Version, got[2].Version)

	// snapshots handed to subscribers are copies
	got[2].Items[0].Quantity = 100
	assert.Equal(t, 2, s.Products()[0].Quantity)

	unsubscribe()
	unsubscribe()
	s.Increment(ctx, "a")
	assert.Len(t, got, 3)
}

func TestSubscriberMayReadAndMutateStore(t *testing.T) {
	ctx := context.Background()
	s, _ := newReadyStore(t)

	var seen []int
	s.Subscribe(func(snap Snapshot) {
		seen = append(seen, len(s.Products()))
		if len(seen) == 1 {
			s.Increment(ctx, "a")
		}
	})

	require.NoError(t, s.AddToCart(ctx, shirt()))
	assert.Equal(t, []int{1, 1}, seen)
	assert.Equal(t, 2, s.Products()[0].Quantity)
}

func TestPersistFailureKeepsMemoryAndSurfacesOnFlush(t *testing.T) {
	ctx := context.Background()
	kvStore := memory.New()
	var mu sync.Mutex
	var failedVersions []uint64
	s := newTestStore(t, kvStore, func(p *StoreParams) {
		p.OnPersistError = func(version uint64, err error) {
			mu.Lock()
			defer mu.Unlock()
			failedVersions = append(failedVersions, version)
		}
	})
	require.NoError(t, s.Initialize(ctx))

	kvStore.FailSet(errors.New("disk full"))
	require.NoError(t, s.AddToCart(ctx, shirt()))

	err := s.Flush(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.Len(t, s.Products(), 1, "in-memory state survives a failed write")

	mu.Lock()
	assert.Len(t, failedVersions, 1)
	mu.Unlock()

	kvStore.FailSet(nil)
	s.Increment(ctx, "a")
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 2, persisted(t, kvStore)[0].Quantity)
}

func TestFlushWaitsForReady(t *testing.T) {
	s := newTestStore(t, memory.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
}

func TestConcurrentMutationsPersistLatestVersion(t *testing.T) {
	ctx := context.Background()
	s, kvStore := newReadyStore(t)
	require.NoError(t, s.AddToCart(ctx, shirt()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Increment(ctx, "a")
		}()
	}
	wg.Wait()
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 51, s.Products()[0].Quantity)
	assert.Equal(t, 51, persisted(t, kvStore)[0].Quantity)
}

func TestCloseWritesPendingSnapshot(t *testing.T) {
	ctx := context.Background()
	kvStore := memory.New()
	s, err := NewStore(StoreParams{KV: kvStore})
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.AddToCart(ctx, shirt()))

	require.NoError(t, s.Close(ctx))
	assert.Len(t, persisted(t, kvStore), 1)

	// after close, mutations stay in memory only
	s.Increment(ctx, "a")
	assert.Equal(t, 2, s.Products()[0].Quantity)
	assert.Equal(t, 1, persisted(t, kvStore)[0].Quantity)
	require.NoError(t, s.Close(ctx))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "uninitialized", PhaseUninitialized.String())
	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
