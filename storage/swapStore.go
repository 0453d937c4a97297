package storage

import (
	"context"
	"sync/atomic"
	"time"
)

// SwapStore delegates to a replaceable backend. The draft-sync service
// boots on the memory store and swaps the shared backend in once it is
// connected, without restarting the draft service.
type SwapStore struct {
	current atomic.Value // Store
}

func NewSwapStore(initial Store) *SwapStore {
	s := &SwapStore{}
	s.current.Store(&initial)
	return s
}

func (s *SwapStore) Swap(next Store) {
	s.current.Store(&next)
}

func (s *SwapStore) get() Store {
	return *s.current.Load().(*Store)
}

func (s *SwapStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.get().Get(ctx, key)
}

func (s *SwapStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.get().Set(ctx, key, value, ttl)
}

func (s *SwapStore) Delete(ctx context.Context, keys ...string) error {
	return s.get().Delete(ctx, keys...)
}

func (s *SwapStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.get().Keys(ctx, prefix)
}
