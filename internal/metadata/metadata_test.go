package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkKey(t *testing.T) {
	assert.Equal(t, "C1/wasi/http/default", LinkKey("C1", "wasi", "http", "default"))
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, BucketConfig, "cfg1", []byte(`{"k":"v"}`)))
		v, ok, err := s.Get(ctx, BucketConfig, "cfg1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"k":"v"}`, string(v))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Delete(ctx, BucketLinks, "missing"))
		require.NoError(t, s.Delete(ctx, BucketLinks, "missing"))
	})

	t.Run("put twice with same value is stable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, BucketConfig, "c", []byte("m1")))
		require.NoError(t, s.Put(ctx, BucketConfig, "c", []byte("m1")))
		v, ok, err := s.Get(ctx, BucketConfig, "c")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "m1", string(v))
	})

	t.Run("list snapshot", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, BucketRegistry, "ghcr.io", []byte("cred1")))
		require.NoError(t, s.Put(ctx, BucketRegistry, "docker.io", []byte("cred2")))
		all, err := s.List(ctx, BucketRegistry)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, "cred1", string(all["ghcr.io"]))
	})

	t.Run("watch observes put and delete", func(t *testing.T) {
		s := newStore(t)
		ctx, cancelCtx := context.WithCancel(context.Background())
		defer cancelCtx()

		changes, cancel, err := s.Watch(ctx, BucketLinks)
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, s.Put(ctx, BucketLinks, "k1", []byte("v1")))
		require.NoError(t, s.Delete(ctx, BucketLinks, "k1"))

		var seen []Change
		for len(seen) < 2 {
			select {
			case c := <-changes:
				seen = append(seen, c)
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for watch events")
			}
		}
		assert.Equal(t, OpPut, seen[0].Op)
		assert.Equal(t, OpDelete, seen[1].Op)
	})
}

func TestMemStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s := NewMemStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemStoreSnapshotRestore(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, BucketConfig, "a", []byte("1")))

	data, err := s.Snapshot()
	require.NoError(t, err)

	restored := NewMemStore()
	require.NoError(t, restored.Restore(data))

	v, ok, err := restored.Get(ctx, BucketConfig, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))
}

func newMiniredisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test")
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, newMiniredisStore)
}
