package mesh

import (
	"context"
	"sync"
	"time"
)

// LocalBus delivers events in-process. Handlers run on their own goroutines, so a slow
// subscriber never holds up the publisher.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string]map[int]Handler
	next     int
	wg       sync.WaitGroup
}

func NewLocalBus() *LocalBus { return &LocalBus{handlers: map[string]map[int]Handler{}} }

func (b *LocalBus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[e.Topic]))
	for _, h := range b.handlers[e.Topic] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	// handlers outlive the request that published the event
	hctx := context.WithoutCancel(ctx)
	for _, h := range hs {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			h(hctx, e)
		}(h)
	}
	return nil
}

func (b *LocalBus) Subscribe(topic string, h Handler) (func(), error) {
	b.mu.Lock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = map[int]Handler{}
	}
	id := b.next
	b.next++
	b.handlers[topic][id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
	}, nil
}

// Close waits for in-flight handlers to return.
func (b *LocalBus) Close() error {
	b.wg.Wait()
	return nil
}
