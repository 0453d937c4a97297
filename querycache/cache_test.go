package querycache_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/querycache"
)

type fakeBackend struct {
	mu     sync.Mutex
	orders map[string]models.Order
	calls  int32

	// when set, FetchPage blocks until released
	gate chan struct{}
}

func newFakeBackend(orders ...models.Order) *fakeBackend {
	b := &fakeBackend{orders: make(map[string]models.Order)}
	for _, o := range orders {
		b.orders[o.ID] = o
	}
	return b
}

func (b *fakeBackend) setGate(gate chan struct{}) {
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()
}

func (b *fakeBackend) FetchPage(_ context.Context, key querycache.QueryKey) (models.PaginatedResponse[models.Order], error) {
	atomic.AddInt32(&b.calls, 1)
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var content []models.Order
	for _, o := range b.orders {
		content = append(content, o)
	}
	return models.PaginatedResponse[models.Order]{
		Content:       content,
		TotalPages:    1,
		TotalElements: len(content),
	}, nil
}

func (b *fakeBackend) fetchCount() int {
	return int(atomic.LoadInt32(&b.calls))
}

func orderCache(b *fakeBackend, cfg querycache.Config) *querycache.Cache[models.Order] {
	return querycache.New("orders", b, func(o models.Order) string { return o.ID }, cfg)
}

func statusOf(t *testing.T, page models.PaginatedResponse[models.Order], id string) models.OrderStatus {
	t.Helper()
	for _, o := range page.Content {
		if o.ID == id {
			return o.Status
		}
	}
	t.Fatalf("order %s not in page", id)
	return ""
}

func setStatus(status models.OrderStatus) func(models.Order) models.Order {
	return func(o models.Order) models.Order {
		o.Status = status
		return o
	}
}

func TestFreshReadServedFromCache(t *testing.T) {
	backend := newFakeBackend(models.Order{ID: "123", Status: models.OrderStatusPending})
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})

	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}
	if got := backend.fetchCount(); got != 1 {
		t.Fatalf("fresh read must not refetch; %d fetches", got)
	}
}

func TestStaleReadReturnsImmediatelyAndRefetches(t *testing.T) {
	backend := newFakeBackend(models.Order{ID: "123", Status: models.OrderStatusPending})
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})

	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	cache.SetClock(func() time.Time { return now.Add(2 * time.Minute) })

	page, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Content) != 1 {
		t.Fatal("stale read must still return the cached page")
	}

	// background refetch lands eventually
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.fetchCount() >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("stale read never triggered a refetch")
}

func TestOptimisticMutateThenRollback(t *testing.T) {
	backend := newFakeBackend(models.Order{ID: "123", Status: models.OrderStatusPending})
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})

	before, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}

	failure := errors.New("server rejected transition")
	mutateErr := cache.Mutate(ctx, "123", setStatus(models.OrderStatusConfirmed), func(ctx context.Context) error {
		// mid-flight: every view shows the optimistic value already
		page, err := cache.Get(ctx, key)
		if err != nil {
			return err
		}
		if got := statusOf(t, page, "123"); got != models.OrderStatusConfirmed {
			t.Fatalf("expected optimistic CONFIRMED mid-flight, got %s", got)
		}
		return failure
	})
	if !errors.Is(mutateErr, failure) {
		t.Fatalf("mutation error must surface to the caller, got %v", mutateErr)
	}

	after, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got := statusOf(t, after, "123"); got != models.OrderStatusPending {
		t.Fatalf("rollback must restore PENDING, got %s", got)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rollback must be verbatim: before %+v after %+v", before, after)
	}

	if m := cache.LastMutation(); m == nil || m.Status != querycache.MutationRolledBack {
		t.Fatalf("expected rolled-back mutation record, got %+v", m)
	}
}

func TestMutateUpdatesAndRollsBackAllViews(t *testing.T) {
	backend := newFakeBackend(
		models.Order{ID: "123", Status: models.OrderStatusPending},
		models.Order{ID: "456", Status: models.OrderStatusShipped},
	)
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()

	// the same entity appears in two differently-filtered views
	keyAll := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})
	keyFiltered := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10, Filter: "recent"})
	if _, err := cache.Get(ctx, keyAll); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, keyFiltered); err != nil {
		t.Fatal(err)
	}

	err := cache.Mutate(ctx, "123", setStatus(models.OrderStatusConfirmed), func(ctx context.Context) error {
		for _, key := range []querycache.QueryKey{keyAll, keyFiltered} {
			page, err := cache.Get(ctx, key)
			if err != nil {
				return err
			}
			if got := statusOf(t, page, "123"); got != models.OrderStatusConfirmed {
				t.Fatalf("view %s not updated optimistically: %s", key, got)
			}
			// sibling entities are untouched
			if got := statusOf(t, page, "456"); got != models.OrderStatusShipped {
				t.Fatalf("sibling entity modified in %s: %s", key, got)
			}
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected mutation failure")
	}

	// all-or-nothing rollback across both views
	for _, key := range []querycache.QueryKey{keyAll, keyFiltered} {
		page, getErr := cache.Get(ctx, key)
		if getErr != nil {
			t.Fatal(getErr)
		}
		if got := statusOf(t, page, "123"); got != models.OrderStatusPending {
			t.Fatalf("view %s not rolled back: %s", key, got)
		}
	}
}

func TestSuccessfulMutateRefetches(t *testing.T) {
	backend := newFakeBackend(models.Order{ID: "123", Status: models.OrderStatusPending})
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})

	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}
	fetchesBefore := backend.fetchCount()

	err := cache.Mutate(ctx, "123", setStatus(models.OrderStatusConfirmed), func(ctx context.Context) error {
		// the "server" applies the change
		backend.mu.Lock()
		o := backend.orders["123"]
		o.Status = models.OrderStatusConfirmed
		backend.orders["123"] = o
		backend.mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if m := cache.LastMutation(); m == nil || m.Status != querycache.MutationCommitted {
		t.Fatalf("expected committed mutation record, got %+v", m)
	}

	// reconciling refetch lands in the background
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.fetchCount() > fetchesBefore {
			page, err := cache.Get(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if statusOf(t, page, "123") == models.OrderStatusConfirmed {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("successful mutation never reconciled with the server")
}

func TestFailedMutateMarksStaleAndRefetches(t *testing.T) {
	backend := newFakeBackend(models.Order{ID: "123", Status: models.OrderStatusPending})
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})

	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}
	fetchesBefore := backend.fetchCount()

	err := cache.Mutate(ctx, "123", setStatus(models.OrderStatusConfirmed), func(context.Context) error {
		return errors.New("server rejected transition")
	})
	if err == nil {
		t.Fatal("expected mutation failure")
	}

	// a rejected write may mean the cached page is out of date; the rollback
	// must not leave it looking fresh
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if backend.fetchCount() > fetchesBefore {
			page, getErr := cache.Get(ctx, key)
			if getErr != nil {
				t.Fatal(getErr)
			}
			if got := statusOf(t, page, "123"); got != models.OrderStatusPending {
				t.Fatalf("rollback must restore PENDING, got %s", got)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("failed mutation never triggered a reconciling refetch")
}

func TestStaleRefetchCannotClobberMutation(t *testing.T) {
	backend := newFakeBackend(models.Order{ID: "123", Status: models.OrderStatusPending})
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})

	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}

	// arm a stale read whose background refetch blocks mid-flight
	gate := make(chan struct{})
	backend.setGate(gate)
	now := time.Now()
	cache.SetClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}

	// a mutation settles while the refetch response is still in flight
	err := cache.Mutate(ctx, "123", setStatus(models.OrderStatusConfirmed), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// release the pre-mutation refetch; its payload predates the mutation
	// and must be discarded
	close(gate)
	backend.setGate(nil)
	time.Sleep(50 * time.Millisecond)

	page, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got := statusOf(t, page, "123"); got != models.OrderStatusConfirmed {
		t.Fatalf("stale refetch overwrote the optimistic value: %s", got)
	}
}

func TestOverlappingMutationsSerialize(t *testing.T) {
	backend := newFakeBackend(
		models.Order{ID: "123", Status: models.OrderStatusPending},
		models.Order{ID: "456", Status: models.OrderStatusPending},
	)
	cache := orderCache(backend, querycache.Config{Freshness: time.Minute})
	ctx := context.Background()
	key := querycache.NewQueryKey("orders", models.PageRequest{Page: 1, Size: 10})
	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatal(err)
	}

	// first mutation fails slowly; second succeeds. Serialization means
	// the first's rollback cannot erase the second's optimistic value.
	firstStarted := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = cache.Mutate(ctx, "123", setStatus(models.OrderStatusConfirmed), func(context.Context) error {
			close(firstStarted)
			time.Sleep(50 * time.Millisecond)
			return errors.New("boom")
		})
	}()
	go func() {
		defer wg.Done()
		<-firstStarted
		_ = cache.Mutate(ctx, "456", setStatus(models.OrderStatusCancelled), func(context.Context) error {
			backend.mu.Lock()
			o := backend.orders["456"]
			o.Status = models.OrderStatusCancelled
			backend.orders["456"] = o
			backend.mu.Unlock()
			return nil
		})
	}()
	wg.Wait()

	page, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got := statusOf(t, page, "123"); got != models.OrderStatusPending {
		t.Fatalf("failed mutation must roll back: %s", got)
	}
	if got := statusOf(t, page, "456"); got != models.OrderStatusCancelled {
		t.Fatalf("second mutation lost to the first's rollback: %s", got)
	}
}
