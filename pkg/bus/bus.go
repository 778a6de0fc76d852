// Package bus implements a small keyed publish/subscribe bus used to fan
// out device and backend events. Subscriptions are scoped to a context:
// cancelling the context releases the subscription and closes its channel.
package bus

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type Message[K comparable, M any] struct {
	Key     K
	Message M
}

type Publisher[M any] func(ctx context.Context, msg M)
type Subscriber[K comparable, M any] func(ctx context.Context) <-chan Message[K, M]

// subscription pairs the delivery channel with a done signal so that the
// channel is never closed while the delivery worker may be sending into
// it. The worker sends under mu; release closes done first, which
// unblocks any in-flight send, then closes the channel under the same mu.
type subscription[K comparable, M any] struct {
	mu   sync.Mutex
	ch   chan Message[K, M]
	done chan struct{}
}

func newSubscription[K comparable, M any]() *subscription[K, M] {
	return &subscription[K, M]{
		ch:   make(chan Message[K, M]),
		done: make(chan struct{}),
	}
}

func (s *subscription[K, M]) send(ctx context.Context, msg Message[K, M]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case <-ctx.Done():
	case <-s.done:
	case s.ch <- msg:
	}
}

func (s *subscription[K, M]) release() {
	close(s.done)
	s.mu.Lock()
	close(s.ch)
	s.mu.Unlock()
}

type Bus[K comparable, M any] struct {
	log   *zap.Logger
	ready chan struct{}

	ch         chan Message[K, M]
	keySubs    *xsync.MapOf[K, map[*subscription[K, M]]struct{}]
	globalSubs *xsync.MapOf[*subscription[K, M], struct{}]
}

func NewBus[K comparable, M any](logger *zap.Logger) *Bus[K, M] {
	return &Bus[K, M]{
		log:        logger,
		ready:      make(chan struct{}),
		ch:         make(chan Message[K, M]),
		keySubs:    xsync.NewMapOf[K, map[*subscription[K, M]]struct{}](),
		globalSubs: xsync.NewMapOf[*subscription[K, M], struct{}](),
	}
}

// Start launches the delivery worker.
func (b *Bus[K, M]) Start(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-b.ch:
				b.deliver(ctx, msg)
			}
		}
	}()
	close(b.ready)
	return nil
}

func (b *Bus[K, M]) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bus[K, M]) Publish(ctx context.Context, key K, msg M) {
	select {
	case <-ctx.Done():
		return
	case b.ch <- Message[K, M]{key, msg}:
	}
}

func (b *Bus[K, M]) CreatePublisher(key K) Publisher[M] {
	return func(ctx context.Context, msg M) {
		b.Publish(ctx, key, msg)
	}
}

func (b *Bus[K, M]) CreateSubscriber(key ...K) Subscriber[K, M] {
	return func(ctx context.Context) <-chan Message[K, M] {
		return b.Subscribe(ctx, key...)
	}
}

func (b *Bus[K, M]) deliver(ctx context.Context, msg Message[K, M]) {
	b.globalSubs.Range(func(sub *subscription[K, M], _ struct{}) bool {
		sub.send(ctx, msg)
		return ctx.Err() == nil
	})
	subs, ok := b.keySubs.Load(msg.Key)
	if !ok {
		return
	}
	for sub := range subs {
		if ctx.Err() != nil {
			return
		}
		sub.send(ctx, msg)
	}
}

// Subscribe returns a channel receiving messages for the given keys, or
// all messages when no key is given. The channel is closed when ctx is
// cancelled; that is the only way to unsubscribe.
func (b *Bus[K, M]) Subscribe(ctx context.Context, key ...K) <-chan Message[K, M] {
	sub := newSubscription[K, M]()
	if len(key) == 0 {
		b.globalSubs.Store(sub, struct{}{})
		go func() {
			<-ctx.Done()
			b.globalSubs.Delete(sub)
			sub.release()
		}()
		return sub.ch
	}
	// Subscriber sets are replaced wholesale so that deliver can range
	// over a loaded set without holding any lock.
	for _, k := range key {
		b.keySubs.Compute(k, func(val map[*subscription[K, M]]struct{}, ok bool) (map[*subscription[K, M]]struct{}, bool) {
			next := make(map[*subscription[K, M]]struct{}, len(val)+1)
			for s := range val {
				next[s] = struct{}{}
			}
			next[sub] = struct{}{}
			return next, false
		})
	}
	go func() {
		<-ctx.Done()
		for _, k := range key {
			b.keySubs.Compute(k, func(val map[*subscription[K, M]]struct{}, ok bool) (map[*subscription[K, M]]struct{}, bool) {
				next := make(map[*subscription[K, M]]struct{}, len(val))
				for s := range val {
					if s != sub {
						next[s] = struct{}{}
					}
				}
				return next, len(next) == 0
			})
		}
		sub.release()
	}()
	return sub.ch
}
