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

const defaultPersistTimeout = 5 * time.Second

var errPersisterClosed = pkgerrors.New(pkgerrors.CodeStateConflict, "cart persister closed")

type snapshotJob struct {
	version uint64
	items   []LineItem
}

type flushWaiter struct {
	version uint64
	ch      chan error
}

// persister is the single writer for the cart slot. Snapshots are ordered by
// logical version; an older version is never written after a newer one and
// pending snapshots collapse into the newest.
type persister struct {
	kv      kv.Store
	key     string
	timeout time.Duration
	logg    *logger.Logger
	metrics *metrics.CartMetrics
	onError func(version uint64, err error)

	mu        sync.Mutex
	pending   *snapshotJob
	enqueued  uint64
	attempted uint64
	lastErr   error
	waiters   []flushWaiter
	closed    bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newPersister(store kv.Store, key string, timeout time.Duration, logg *logger.Logger, m *metrics.CartMetrics, onError func(uint64, error)) *persister {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	p := &persister{
		kv:      store,
		key:     key,
		timeout: timeout,
		logg:    logg,
		metrics: m,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue hands a snapshot to the writer. Versions at or below the newest one
// already seen are dropped.
func (p *persister) enqueue(version uint64, items []LineItem) bool {
	p.mu.Lock()
	if p.closed || version <= p.enqueued {
		p.mu.Unlock()
		return false
	}
	p.enqueued = version
	p.pending = &snapshotJob{version: version, items: items}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// flush blocks until the newest snapshot enqueued before the call has been
// written, or a later one that supersedes it. It returns that write's error.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.enqueued
	if target <= p.attempted {
		err := p.lastErr
		p.mu.Unlock()
		return err
	}
	if p.closed && p.isDone() {
		p.mu.Unlock()
		return errPersisterClosed
	}
	ch := make(chan error, 1)
	p.waiters = append(p.waiters, flushWaiter{version: target, ch: ch})
	p.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) isDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// close writes whatever is pending and stops the worker.
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) run() {
	defer p.finish()
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		job := p.pending
		p.pending = nil
		p.mu.Unlock()
		if job == nil {
			return
		}
		p.write(job)
	}
}

func (p *persister) write(job *snapshotJob) {
	start := time.Now()
	raw, err := EncodeItems(job.items)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err = p.kv.Set(ctx, p.key, raw)
		cancel()
	}
	p.metrics.ObservePersist(time.Since(start), err)

	if err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodePersistence, err, "write cart snapshot")
		if p.logg != nil {
			ctx := p.logg.WithFields(context.Background(), map[string]any{
				"cart_key": p.key,
				"version":  job.version,
				"items":    len(job.items),
			})
			p.logg.Error(ctx, "cart.persist_failed", err)
		}
		if p.onError != nil {
			p.onError(job.version, err)
		}
	}

	p.mu.Lock()
	p.attempted = job.version
	p.lastErr = err
	remaining := p.waiters[:0]
	for _, w := range p.waiters {
		if w.version <= job.version {
			w.ch <- err
			continue
		}
		remaining = append(remaining, w)
	}
	p.waiters = remaining
	p.mu.Unlock()
}

// finish releases waiters whose snapshot can no longer be written.
func (p *persister) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.waiters {
		w.ch <- errPersisterClosed
	}
	p.waiters = nil
	close(p.done)
}
