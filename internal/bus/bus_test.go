package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 1)

	sub, err := b.Subscribe("wasmbus.evt.default.host_started", func(_ context.Context, msg Message) {
		mu.Lock()
		got = append(got, string(msg.Data))
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish(context.Background(), "wasmbus.evt.default.host_started", []byte("hello"), nil))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hello"}, got)
}

func TestWildcardSubscription(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	matched := make(chan string, 4)
	sub, err := b.Subscribe("wasmbus.ctl.v1.default.host.*.stop", func(_ context.Context, msg Message) {
		matched <- msg.Subject
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish(context.Background(), "wasmbus.ctl.v1.default.host.N1.stop", nil, nil))
	require.NoError(t, b.Publish(context.Background(), "wasmbus.ctl.v1.default.host.N1.label.put", nil, nil))

	select {
	case subj := <-matched:
		assert.Equal(t, "wasmbus.ctl.v1.default.host.N1.stop", subj)
	case <-time.After(time.Second):
		t.Fatal("expected wildcard match")
	}

	select {
	case subj := <-matched:
		t.Fatalf("unexpected extra delivery: %s", subj)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestReply(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	sub, err := b.Subscribe("svc.echo", func(ctx context.Context, msg Message) {
		_ = b.Publish(ctx, msg.Reply, msg.Data, nil)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	resp, err := b.Request(context.Background(), "svc.echo", []byte("ping"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(resp.Data))
}

func TestRequestTimeoutWhenNoResponder(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	_, err := b.Request(context.Background(), "svc.nobody", []byte("ping"), 50*time.Millisecond)
	require.Error(t, err)
}

func TestAuctionCollectsUntilWindowElapses(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	for _, id := range []string{"A", "B"} {
		hostID := id
		sub, err := b.Subscribe("svc.auction", func(ctx context.Context, msg Message) {
			_ = b.Publish(ctx, msg.Reply, []byte(hostID), nil)
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()
	}

	collector, err := b.Auction(context.Background(), "svc.auction", []byte("req"), 100*time.Millisecond)
	require.NoError(t, err)

	var acks []string
	for msg := range collector.Messages {
		acks = append(acks, string(msg.Data))
	}
	assert.ElementsMatch(t, []string{"A", "B"}, acks)
}

func TestAuctionWithNoRespondersReturnsEmpty(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	collector, err := b.Auction(context.Background(), "svc.nobody.auction", []byte("req"), 30*time.Millisecond)
	require.NoError(t, err)

	var acks []Message
	for msg := range collector.Messages {
		acks = append(acks, msg)
	}
	assert.Empty(t, acks)
}

func TestAuctionStopsEarlyOnEmptySentinel(t *testing.T) {
	b := NewInProc()
	defer b.Close()

	sub, err := b.Subscribe("svc.sentinel.auction", func(ctx context.Context, msg Message) {
		_ = b.Publish(ctx, msg.Reply, nil, nil)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	start := time.Now()
	collector, err := b.Auction(context.Background(), "svc.sentinel.auction", []byte("req"), 2*time.Second)
	require.NoError(t, err)

	for range collector.Messages {
		t.Fatal("sentinel message must not be surfaced to the caller")
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestMatchSubject(t *testing.T) {
	assert.True(t, matchSubject("a.b.c", "a.b.c"))
	assert.False(t, matchSubject("a.b.c", "a.b"))
	assert.True(t, matchSubject("a.*.c", "a.x.c"))
	assert.False(t, matchSubject("a.*.c", "a.x.y.c"))
	assert.True(t, matchSubject("a.>", "a.x.y.z"))
	assert.True(t, matchSubject("a.>", "a.x"))
	assert.False(t, matchSubject("a.>", "b.x"))
}
