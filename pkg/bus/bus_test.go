package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startBus(t *testing.T) (*Bus[string, int], context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := NewBus[string, int](zap.NewNop())
	require.NoError(t, b.Start(ctx))
	<-b.Ready()
	return b, ctx
}

func TestKeyedDelivery(t *testing.T) {
	b, ctx := startBus(t)

	aCtx, aCancel := context.WithCancel(ctx)
	defer aCancel()
	a := b.Subscribe(aCtx, "a")
	other := b.Subscribe(aCtx, "b")

	go b.Publish(ctx, "a", 42)

	select {
	case msg := <-a:
		assert.Equal(t, "a", msg.Key)
		assert.Equal(t, 42, msg.Message)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
	select {
	case msg := <-other:
		t.Fatalf("unexpected delivery: %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestGlobalSubscriberSeesAllKeys(t *testing.T) {
	b, ctx := startBus(t)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	all := b.Subscribe(subCtx)

	go b.Publish(ctx, "x", 1)
	go b.Publish(ctx, "y", 2)

	got := map[string]int{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-all:
			got[msg.Key] = msg.Message
		case <-time.After(time.Second):
			t.Fatal("missing delivery")
		}
	}
	assert.Equal(t, map[string]int{"x": 1, "y": 2}, got)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b, ctx := startBus(t)

	subCtx, cancel := context.WithCancel(ctx)
	ch := b.Subscribe(subCtx, "a")
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSubscribeCancelUnderPublishLoad(t *testing.T) {
	b, ctx := startBus(t)

	pubCtx, pubCancel := context.WithCancel(ctx)
	defer pubCancel()
	go func() {
		for i := 0; pubCtx.Err() == nil; i++ {
			b.Publish(pubCtx, "pad", i)
		}
	}()

	// Churn subscriptions on the published key. An unsubscribe that
	// closes the channel while the delivery worker still holds it would
	// panic the worker with a send on a closed channel.
	for i := 0; i < 5000; i++ {
		subCtx, subCancel := context.WithCancel(ctx)
		ch := b.Subscribe(subCtx, "pad")
		if i%2 == 0 {
			select {
			case <-ch:
			case <-time.After(time.Millisecond):
			}
		}
		subCancel()
		for range ch {
		}
	}

	// The worker must still be alive and delivering.
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()
	ch := b.Subscribe(subCtx, "pad")
	select {
	case msg := <-ch:
		assert.Equal(t, "pad", msg.Key)
	case <-time.After(time.Second):
		t.Fatal("worker stopped delivering")
	}
}

func TestPublisherSubscriberHelpers(t *testing.T) {
	b, ctx := startBus(t)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := b.CreateSubscriber("dev")(subCtx)
	publish := b.CreatePublisher("dev")

	go publish(ctx, 7)

	select {
	case msg := <-ch:
		assert.Equal(t, 7, msg.Message)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}
