package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/savefood/backoffice_core/config"
	"github.com/savefood/backoffice_core/models"
)

const (
	defaultFreshness  = 30 * time.Second
	defaultRetention  = 5 * time.Minute
	defaultMaxEntries = 128
)

// Fetcher loads one page from the backend. The api package provides the
// real implementation; tests use a FetcherFunc.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, key QueryKey) (models.PaginatedResponse[T], error)
}

type FetcherFunc[T any] func(ctx context.Context, key QueryKey) (models.PaginatedResponse[T], error)

func (f FetcherFunc[T]) FetchPage(ctx context.Context, key QueryKey) (models.PaginatedResponse[T], error) {
	return f(ctx, key)
}

// Config tunes a Cache. Zero values fall back to defaults. The windows are
// product-configured constants with no deeper rationale, so they stay
// injectable rather than hard-coded.
type Config struct {
	// Freshness is how long a fetched page is served without a refetch.
	Freshness time.Duration
	// Retention is the idle window after which an unused entry is evicted.
	Retention time.Duration
	// MaxEntries bounds the number of cached pages per resource.
	MaxEntries int
}

func DefaultConfig() Config {
	return Config{
		Freshness:  defaultFreshness,
		Retention:  defaultRetention,
		MaxEntries: defaultMaxEntries,
	}
}

type entry[T any] struct {
	key       QueryKey
	data      models.PaginatedResponse[T]
	fetchedAt time.Time
}

// Cache memoizes paginated list results for one resource and makes
// list-mutating actions feel instantaneous: Mutate applies the new value to
// every cached page before the network call resolves, and restores every
// snapshot verbatim if it fails.
//
// Cached pages are treated as immutable; readers must not modify the
// returned Content slice.
type Cache[T any] struct {
	resource string
	fetcher  Fetcher[T]
	idOf     func(T) string
	cfg      Config

	mu         sync.Mutex
	entries    *expirable.LRU[string, entry[T]]
	suspended  int               // >0 while a mutation is settling
	generation uint64            // bumped per mutation; stale refetches discard
	inflight   map[string]bool   // background refetches by key
	last       *Mutation

	// serializes mutations on this resource so overlapping rollbacks
	// cannot clobber each other's optimistic values
	mutateMu sync.Mutex

	now func() time.Time
}

func New[T any](resource string, fetcher Fetcher[T], idOf func(T) string, cfg Config) *Cache[T] {
	if cfg.Freshness <= 0 {
		cfg.Freshness = defaultFreshness
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	return &Cache[T]{
		resource: resource,
		fetcher:  fetcher,
		idOf:     idOf,
		cfg:      cfg,
		entries:  expirable.NewLRU[string, entry[T]](cfg.MaxEntries, nil, cfg.Retention),
		inflight: make(map[string]bool),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (c *Cache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the page for key. Within the freshness window the cached copy
// is returned with no network call. A stale entry is still returned
// immediately so the view never blocks, but a background refetch is kicked
// off. A miss fetches synchronously.
func (c *Cache[T]) Get(ctx context.Context, key QueryKey) (models.PaginatedResponse[T], error) {
	ks := key.String()

	c.mu.Lock()
	if e, ok := c.entries.Get(ks); ok {
		// re-add so the idle-retention window restarts on use
		c.entries.Add(ks, e)
		if c.now().Sub(e.fetchedAt) >= c.cfg.Freshness {
			c.refetchLocked(key)
		}
		c.mu.Unlock()
		return e.data, nil
	}
	c.mu.Unlock()

	data, err := c.fetcher.FetchPage(ctx, key)
	if err != nil {
		return models.PaginatedResponse[T]{}, err
	}
	c.mu.Lock()
	c.entries.Add(ks, entry[T]{key: key, data: data, fetchedAt: c.now()})
	c.mu.Unlock()
	return data, nil
}

// Invalidate marks key stale and, if still cached, refetches in background.
func (c *Cache[T]) Invalidate(key QueryKey) {
	ks := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(ks); ok {
		e.fetchedAt = time.Time{}
		c.entries.Add(ks, e)
		c.refetchLocked(key)
	}
}

// InvalidateAll marks every cached page stale. Used by the non-optimistic
// rollout path after a confirmed write.
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ks := range c.entries.Keys() {
		if e, ok := c.entries.Peek(ks); ok {
			e.fetchedAt = time.Time{}
			c.entries.Add(ks, e)
			c.refetchLocked(e.key)
		}
	}
}

// Mutate applies an optimistic update for entityID across every cached page,
// runs call, and reconciles: on failure every snapshot is restored verbatim,
// all-or-nothing, and the error is returned to the caller. Either way the
// touched pages are marked stale and refetched in the background, so the
// cache converges on server state even after a rejected write. The cache
// layer never retries.
func (c *Cache[T]) Mutate(ctx context.Context, entityID string, apply func(T) T, call func(context.Context) error) error {
	if !config.OptimisticUpdatesFor(c.resource) {
		if err := call(ctx); err != nil {
			return err
		}
		c.InvalidateAll()
		return nil
	}

	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	m := &Mutation{
		ID:        uuid.NewString(),
		EntityId:  entityID,
		Status:    MutationInFlight,
		StartedAt: c.now(),
	}

	// suspend background refetching and apply the optimistic value
	c.mu.Lock()
	c.suspended++
	c.generation++
	snapshots := make(map[string]entry[T])
	for _, ks := range c.entries.Keys() {
		e, ok := c.entries.Peek(ks)
		if !ok {
			continue
		}
		updated, touched := c.applyToPage(e, entityID, apply)
		if !touched {
			continue
		}
		snapshots[ks] = e
		c.entries.Add(ks, updated)
		m.AffectedKeys = append(m.AffectedKeys, e.key)
	}
	c.mu.Unlock()

	err := call(ctx)

	c.mu.Lock()
	if err != nil {
		// restore the pre-mutation data but not its freshness: the server
		// rejected the write for a reason the cached page may not show
		for ks, snap := range snapshots {
			snap.fetchedAt = time.Time{}
			c.entries.Add(ks, snap)
		}
		m.Status = MutationRolledBack
	} else {
		for ks := range snapshots {
			if e, ok := c.entries.Peek(ks); ok {
				e.fetchedAt = time.Time{}
				c.entries.Add(ks, e)
			}
		}
		m.Status = MutationCommitted
	}
	m.SettledAt = c.now()
	c.last = m
	c.suspended--
	// reconcile with authoritative server state
	for _, key := range m.AffectedKeys {
		c.refetchLocked(key)
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%s mutation failed: %w", c.resource, err)
	}
	return nil
}

// applyToPage returns a copy of e with apply run on every entity matching
// entityID. The original page is never modified in place, so the snapshot
// taken before the call stays byte-for-byte intact for rollback.
func (c *Cache[T]) applyToPage(e entry[T], entityID string, apply func(T) T) (entry[T], bool) {
	touched := false
	for _, item := range e.data.Content {
		if c.idOf(item) == entityID {
			touched = true
			break
		}
	}
	if !touched {
		return e, false
	}
	content := make([]T, len(e.data.Content))
	copy(content, e.data.Content)
	for i, item := range content {
		if c.idOf(item) == entityID {
			content[i] = apply(item)
		}
	}
	updated := e
	updated.data.Content = content
	return updated, true
}

// refetchLocked starts a background refetch for key unless one is already
// running or refetching is suspended. Caller holds c.mu.
func (c *Cache[T]) refetchLocked(key QueryKey) {
	ks := key.String()
	if c.suspended > 0 || c.inflight[ks] {
		return
	}
	c.inflight[ks] = true
	gen := c.generation

	go func() {
		data, err := c.fetcher.FetchPage(context.Background(), key)

		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.inflight, ks)
		if err != nil {
			config.LogWarn(config.GetLogger(), "querycache", "refetch", ks, err)
			return
		}
		// a mutation landed while this response was in flight; its
		// optimistic state must not be overwritten by a stale read
		if c.suspended > 0 || gen != c.generation {
			return
		}
		c.entries.Add(ks, entry[T]{key: key, data: data, fetchedAt: c.now()})
	}()
}

// LastMutation returns the most recently settled mutation record, if any.
func (c *Cache[T]) LastMutation() *Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Len reports how many pages are currently cached.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
