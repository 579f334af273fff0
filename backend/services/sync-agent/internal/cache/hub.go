package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// hub fans change notifications out to subscribers. A subscriber that is slow to drain
// sees bursts coalesced into one notification and then reads the latest snapshot.
type hub[T Entity] struct {
	family string
	logger *zap.Logger

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newHub[T Entity](family string, logger *zap.Logger) *hub[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &hub[T]{family: family, logger: logger, subs: make(map[chan struct{}]struct{})}
}

func (h *hub[T]) notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *hub[T]) subscribe(ctx context.Context, filter Filter[T], snapshot func(context.Context) ([]T, error)) <-chan []T {
	out := make(chan []T)
	wake := make(chan struct{}, 1)
	wake <- struct{}{}

	h.mu.Lock()
	h.subs[wake] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			h.mu.Lock()
			delete(h.subs, wake)
			h.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			items, err := snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				h.logger.Warn("cache snapshot failed", zap.String("family", h.family), zap.Error(err))
				continue
			}
			select {
			case out <- Select(items, filter):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
