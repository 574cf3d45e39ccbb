// Package cart holds the shopping-cart state container: an ordered list of
// line items kept in memory, mirrored to a kv slot on every mutation and
// loaded once at startup.
package cart

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
	"github.com/angelmondragon/gomarketplace/pkg/kv"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
	"github.com/angelmondragon/gomarketplace/pkg/metrics"
)

// Phase is the store lifecycle phase.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// Snapshot is one published cart state. Version grows with every in-memory
// update, so subscribers fed from several goroutines can drop stale ones.
type Snapshot struct {
	Version uint64
	Items   []LineItem
}

// StoreParams wires a Store.
type StoreParams struct {
	KV kv.Store
	// Key overrides StorageKey.
	Key string
	// ClearOnLoad wipes the whole kv store before reading the snapshot, which
	// always yields an empty cart. Kept for parity with the legacy app.
	ClearOnLoad    bool
	PersistTimeout time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.CartMetrics
	// OnPersistError is called from the writer goroutine after a failed write.
	OnPersistError func(version uint64, err error)
}

type mutation struct {
	op    string
	apply func([]LineItem) []LineItem
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Store owns the canonical cart state.
//
// Mutations issued before Initialize completes are applied to the in-memory
// view right away and replayed on top of the loaded snapshot once it arrives.
// Nothing is written to the kv store until the store is ready.
type Store struct {
	key         string
	kv          kv.Store
	clearOnLoad bool
	logg        *logger.Logger
	metrics     *metrics.CartMetrics
	writer      *persister

	mu          sync.Mutex
	items       []LineItem
	phase       Phase
	version     uint64
	initRunning bool
	pending     []mutation
	subs        []subscriber
	nextSubID   int

	ready chan struct{}
}

// NewStore builds a store around the given kv backend and starts its writer.
func NewStore(params StoreParams) (*Store, error) {
	if params.KV == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart kv store required")
	}
	key := params.Key
	if key == "" {
		key = StorageKey
	}
	s := &Store{
		key:         key,
		kv:          params.KV,
		clearOnLoad: params.ClearOnLoad,
		logg:        params.Logger,
		metrics:     params.Metrics,
		items:       []LineItem{},
		ready:       make(chan struct{}),
	}
	s.writer = newPersister(params.KV, key, params.PersistTimeout, params.Logger, params.Metrics, params.OnPersistError)
	return s, nil
}

// Initialize loads the persisted snapshot. A malformed snapshot is returned
// as a MALFORMED_PERSISTED_STATE error and the store stays uninitialized.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseReady || s.initRunning {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart store already initialized")
	}
	s.initRunning = true
	s.mu.Unlock()

	loaded, err := s.load(ctx)
	if err != nil {
		s.mu.Lock()
		s.initRunning = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	items := loaded
	for _, m := range s.pending {
		items = m.apply(items)
	}
	replayed := len(s.pending)
	s.pending = nil
	s.items = items
	s.phase = PhaseReady
	s.initRunning = false
	s.version++
	snap := Snapshot{Version: s.version, Items: cloneItems(items)}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	close(s.ready)
	if replayed > 0 {
		s.writer.enqueue(snap.Version, snap.Items)
	}
	s.metrics.SetLineItems(len(snap.Items))
	notify(subs, snap)

	if s.logg != nil {
		ctx = s.logg.WithFields(s.logg.WithCartKey(ctx, s.key), map[string]any{
			"items":    len(snap.Items),
			"replayed": replayed,
		})
		s.logg.Info(ctx, "cart.ready")
	}
	return nil
}

// InitializeAsync runs Initialize on its own goroutine. The channel receives
// exactly one value.
func (s *Store) InitializeAsync(ctx context.Context) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- s.Initialize(ctx)
	}()
	return out
}

func (s *Store) load(ctx context.Context) ([]LineItem, error) {
	if s.clearOnLoad {
		if err := s.kv.Clear(ctx); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithFields(s.logg.WithCartKey(ctx, s.key), pkgerrors.Dump(err).Fields()), "cart.clear_failed")
		}
	}

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart snapshot")
	}
	if !ok {
		return []LineItem{}, nil
	}
	return DecodeItems(raw)
}

// Ready is closed once the store reaches PhaseReady.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Phase reports the current lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Key is the kv slot the store persists into.
func (s *Store) Key() string {
	return s.key
}

// Products returns a copy of the current cart.
func (s *Store) Products() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Snapshot returns the current cart with its version.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Version: s.version, Items: cloneItems(s.items)}
}

// AddToCart bumps the quantity of an item already in the cart, keeping its
// stored title, image and price, or appends the product with quantity 1.
func (s *Store) AddToCart(ctx context.Context, p Product) error {
	if err := p.validate(); err != nil {
		return err
	}
	s.mutate(ctx, mutation{op: "add", apply: func(items []LineItem) []LineItem {
		return addProduct(items, p)
	}})
	return nil
}

// Increment adds one to the matching item. Unknown ids leave the cart as is,
// but the snapshot is still rewritten.
func (s *Store) Increment(ctx context.Context, id string) {
	s.mutate(ctx, mutation{op: "increment", apply: func(items []LineItem) []LineItem {
		return incrementItem(items, id)
	}})
}

// Decrement removes one from the matching item without going below zero.
// Items at zero stay in the cart.
func (s *Store) Decrement(ctx context.Context, id string) {
	s.mutate(ctx, mutation{op: "decrement", apply: func(items []LineItem) []LineItem {
		return decrementItem(items, id)
	}})
}

func (s *Store) mutate(ctx context.Context, m mutation) {
	s.mu.Lock()
	s.items = m.apply(s.items)
	s.version++
	snap := Snapshot{Version: s.version, Items: cloneItems(s.items)}
	phase := s.phase
	persist := phase == PhaseReady
	if !persist {
		s.pending = append(s.pending, m)
	}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.metrics.IncMutation(m.op)
	s.metrics.SetLineItems(len(snap.Items))

	if persist && !s.writer.enqueue(snap.Version, snap.Items) && s.logg != nil {
		s.logg.Warn(s.logg.WithCartKey(ctx, s.key), "cart.persist_skipped")
	}
	notify(subs, snap)

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"op":      m.op,
			"version": snap.Version,
			"phase":   phase.String(),
		})
		s.logg.Debug(ctx, "cart.mutated")
	}
}

// Subscribe registers fn to be called synchronously, on the mutating
// goroutine, after every in-memory update. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) subscribersLocked() []subscriber {
	out := make([]subscriber, len(s.subs))
	copy(out, s.subs)
	return out
}

func notify(subs []subscriber, snap Snapshot) {
	for _, sub := range subs {
		sub.fn(Snapshot{Version: snap.Version, Items: cloneItems(snap.Items)})
	}
}

// Flush waits for the store to become ready and for the newest snapshot to be
// written. It returns the PERSISTENCE_WRITE_FAILED error of that write, if any.
func (s *Store) Flush(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.writer.flush(ctx)
}

// Close writes the pending snapshot and stops the writer. Mutations after
// Close only update memory.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}
