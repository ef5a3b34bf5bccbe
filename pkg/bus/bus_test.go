package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startBus[K comparable, M any](t *testing.T) (*Bus[K, M], context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := NewBus[K, M](zap.NewNop())
	require.NoError(t, b.Start(ctx))
	<-b.Ready()
	return b, ctx
}

func TestKeySubscriberReceivesInOrder(t *testing.T) {
	b, ctx := startBus[string, int](t)
	ch := b.Subscribe(ctx, "a")

	go func() {
		for i := 0; i < 3; i++ {
			b.Publish(ctx, "a", i)
		}
		b.Publish(ctx, "b", 99)
	}()

	for i := 0; i < 3; i++ {
		select {
		case msg := <-ch:
			require.Equal(t, "a", msg.Key)
			require.Equal(t, i, msg.Message)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestGlobalSubscriberSeesAllKeys(t *testing.T) {
	b, ctx := startBus[string, int](t)
	all := b.Subscribe(ctx)

	go func() {
		b.Publish(ctx, "a", 1)
		b.Publish(ctx, "b", 2)
	}()

	keys := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-all:
			keys[msg.Key] = msg.Message
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
	require.Equal(t, map[string]int{"a": 1, "b": 2}, keys)
}

func TestSubscriberChurnDuringPublish(t *testing.T) {
	b, ctx := startBus[string, int](t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			b.Publish(ctx, "a", i)
		}
	}()

	// Subscribers join and leave mid-delivery; a cancelled subscriber must
	// be skipped, never sent to after its channel closes.
	for i := 0; i < 50; i++ {
		subCtx, cancel := context.WithCancel(ctx)
		ch := b.Subscribe(subCtx, "a")
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("subscriber starved")
		}
		cancel()
		for range ch {
		}
	}
	close(stop)
	wg.Wait()
}

func TestSubscribeChannelClosesOnCancel(t *testing.T) {
	b, busCtx := startBus[string, int](t)
	_ = busCtx

	subCtx, subCancel := context.WithCancel(context.Background())
	ch := b.Subscribe(subCtx, "a")
	subCancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
