// Package bus provides a small generic pub/sub bus. Messages are fanned out
// to key-scoped and global subscribers by a single worker, so subscribers of
// one key observe messages in publish order.
package bus

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type Message[K comparable, M any] struct {
	Key     K
	Message M
}

type Publisher[M any] func(ctx context.Context, msg M)
type Subscriber[K comparable, M any] func(ctx context.Context) <-chan Message[K, M]

// subscriberSet maps a subscriber channel to its cancellation signal. Sets
// are replaced wholesale on registration changes, never mutated in place,
// so the worker can range over a loaded set while registrations change.
type subscriberSet[K comparable, M any] map[chan Message[K, M]]<-chan struct{}

type unsubscribe[K comparable, M any] struct {
	ch   chan Message[K, M]
	keys []K
}

type Bus[K comparable, M any] struct {
	log   *zap.Logger
	ready chan struct{}

	ch         chan Message[K, M]
	unsub      chan unsubscribe[K, M]
	stopped    chan struct{}
	keySubs    *xsync.MapOf[K, subscriberSet[K, M]]
	globalSubs *xsync.MapOf[chan Message[K, M], <-chan struct{}]
}

func NewBus[K comparable, M any](logger *zap.Logger) *Bus[K, M] {
	return &Bus[K, M]{
		log:        logger,
		ready:      make(chan struct{}),
		ch:         make(chan Message[K, M]),
		unsub:      make(chan unsubscribe[K, M]),
		stopped:    make(chan struct{}),
		keySubs:    xsync.NewMapOf[K, subscriberSet[K, M]](),
		globalSubs: xsync.NewMapOf[chan Message[K, M], <-chan struct{}](),
	}
}

func (b *Bus[K, M]) Start(ctx context.Context) error {
	go func() {
		defer close(b.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-b.ch:
				b.process(ctx, msg)
			case req := <-b.unsub:
				b.remove(req)
				// The worker is the only sender and has already dropped
				// the channel from the sets, so closing here cannot race
				// a delivery.
				close(req.ch)
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

func (b *Bus[K, M]) process(ctx context.Context, msg Message[K, M]) {
	b.globalSubs.Range(func(sub chan Message[K, M], done <-chan struct{}) bool {
		select {
		case <-ctx.Done():
			return false
		case <-done:
		case sub <- msg:
		}
		return true
	})
	subs, ok := b.keySubs.Load(msg.Key)
	if !ok {
		return
	}
	for sub, done := range subs {
		select {
		case <-ctx.Done():
			return
		case <-done:
		case sub <- msg:
		}
	}
}

func (b *Bus[K, M]) remove(req unsubscribe[K, M]) {
	if len(req.keys) == 0 {
		b.globalSubs.Delete(req.ch)
		return
	}
	for _, k := range req.keys {
		b.keySubs.Compute(k, func(val subscriberSet[K, M], ok bool) (subscriberSet[K, M], bool) {
			if !ok {
				return nil, true
			}
			next := make(subscriberSet[K, M], len(val))
			for c, d := range val {
				if c != req.ch {
					next[c] = d
				}
			}
			if len(next) == 0 {
				return nil, true
			}
			return next, false
		})
	}
}

// Subscribe returns a channel receiving messages published for the given
// keys, or for all keys when none are given. The channel is closed after
// ctx is cancelled; removal is handed to the worker so an in-flight
// delivery never hits a closed channel.
func (b *Bus[K, M]) Subscribe(ctx context.Context, key ...K) <-chan Message[K, M] {
	ch := make(chan Message[K, M])
	done := ctx.Done()
	if len(key) == 0 {
		b.globalSubs.Store(ch, done)
	}
	for _, k := range key {
		b.keySubs.Compute(k, func(val subscriberSet[K, M], ok bool) (subscriberSet[K, M], bool) {
			next := make(subscriberSet[K, M], len(val)+1)
			for c, d := range val {
				next[c] = d
			}
			next[ch] = done
			return next, false
		})
	}
	go func() {
		<-ctx.Done()
		select {
		case b.unsub <- unsubscribe[K, M]{ch: ch, keys: key}:
		case <-b.stopped:
			// The worker is gone and will never deliver again.
			close(ch)
		}
	}()
	return ch
}
