package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore keeps a family in process memory. Writers build a new map and swap it in,
// so readers never observe half a batch.
type MemoryStore[T Entity] struct {
	mu    sync.RWMutex
	items map[string]T
	hub   *hub[T]
}

// NewMemoryStore returns an empty in-memory family.
func NewMemoryStore[T Entity](family string, logger *zap.Logger) *MemoryStore[T] {
	return &MemoryStore[T]{items: make(map[string]T), hub: newHub[T](family, logger)}
}

func (s *MemoryStore[T]) Get(_ context.Context, id string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok, nil
}

func (s *MemoryStore[T]) GetAll(_ context.Context) ([]T, error) {
	s.mu.RLock()
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	s.mu.RUnlock()
	sortByKey(out)
	return out, nil
}

func (s *MemoryStore[T]) Upsert(ctx context.Context, items ...T) error {
	if len(items) == 0 {
		return ctx.Err()
	}
	return s.write(ctx, none[T], items)
}

func (s *MemoryStore[T]) ReplaceScope(ctx context.Context, inScope Filter[T], items []T) error {
	return s.write(ctx, inScope.match, items)
}

func (s *MemoryStore[T]) write(ctx context.Context, drop func(T) bool, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	next := make(map[string]T, len(s.items)+len(items))
	for id, item := range s.items {
		if drop(item) {
			continue
		}
		next[id] = item
	}
	for _, item := range items {
		next[item.CacheKey()] = item
	}
	s.items = next
	s.mu.Unlock()

	s.hub.notify()
	return nil
}

func (s *MemoryStore[T]) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	next := make(map[string]T, len(s.items))
	for id, item := range s.items {
		next[id] = item
	}
	for _, id := range ids {
		delete(next, id)
	}
	s.items = next
	s.mu.Unlock()

	s.hub.notify()
	return nil
}

func (s *MemoryStore[T]) Subscribe(ctx context.Context, filter Filter[T]) <-chan []T {
	return s.hub.subscribe(ctx, filter, s.GetAll)
}
