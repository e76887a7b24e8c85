package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store: one hash per bucket
// (lattice:<prefix>:meta:<bucket>) plus a Pub/Sub channel per bucket
// (lattice:<prefix>:meta:changes:<bucket>) that Put/Delete publish to once the hash
// write has committed. This is simpler and more portable across real Redis
// and the miniredis fake used in tests than relying on Redis keyspace
// notifications, while still meeting the "publish an on-change
// notification after the write commits" contract of spec.md §4.3 with a
// real pub/sub mechanism rather than polling.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing *redis.Client. prefix namespaces all keys
// this store touches (typically the lattice name), so multiple lattices
// can share one Redis instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) hashKey(bucket Bucket) string {
	return fmt.Sprintf("lattice:%s:meta:%s", r.prefix, bucket)
}

func (r *RedisStore) channelKey(bucket Bucket) string {
	return fmt.Sprintf("lattice:%s:meta:changes:%s", r.prefix, bucket)
}

// Put overwrites key's value in bucket's hash and publishes the change.
func (r *RedisStore) Put(ctx context.Context, bucket Bucket, key string, value []byte) error {
	if err := r.client.HSet(ctx, r.hashKey(bucket), key, value).Err(); err != nil {
		return fmt.Errorf("metadata: redis put %s/%s: %w", bucket, key, err)
	}
	return r.publishChange(ctx, Change{Bucket: bucket, Key: key, Value: value, Op: OpPut})
}

// Get returns the current value for key, or ok=false if absent.
func (r *RedisStore) Get(ctx context.Context, bucket Bucket, key string) ([]byte, bool, error) {
	val, err := r.client.HGet(ctx, r.hashKey(bucket), key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metadata: redis get %s/%s: %w", bucket, key, err)
	}
	return val, true, nil
}

// Delete removes key from bucket's hash. Deleting an absent key is a
// no-op success, and still publishes the change, per spec.md §4.3.
func (r *RedisStore) Delete(ctx context.Context, bucket Bucket, key string) error {
	if err := r.client.HDel(ctx, r.hashKey(bucket), key).Err(); err != nil {
		return fmt.Errorf("metadata: redis delete %s/%s: %w", bucket, key, err)
	}
	return r.publishChange(ctx, Change{Bucket: bucket, Key: key, Op: OpDelete})
}

// List returns a snapshot of bucket's contents.
func (r *RedisStore) List(ctx context.Context, bucket Bucket) (map[string][]byte, error) {
	raw, err := r.client.HGetAll(ctx, r.hashKey(bucket)).Result()
	if err != nil {
		return nil, fmt.Errorf("metadata: redis list %s: %w", bucket, err)
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}

// wireChange is the JSON envelope published on a bucket's change channel.
type wireChange struct {
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
	Op    Op     `json:"op"`
}

func (r *RedisStore) publishChange(ctx context.Context, c Change) error {
	payload, err := json.Marshal(wireChange{Key: c.Key, Value: c.Value, Op: c.Op})
	if err != nil {
		return fmt.Errorf("metadata: marshal change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channelKey(c.Bucket), payload).Err(); err != nil {
		return fmt.Errorf("metadata: publish change: %w", err)
	}
	return nil
}

// Watch subscribes to bucket's change channel.
func (r *RedisStore) Watch(ctx context.Context, bucket Bucket) (<-chan Change, func(), error) {
	pubsub := r.client.Subscribe(ctx, r.channelKey(bucket))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("metadata: redis subscribe %s: %w", bucket, err)
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var wc wireChange
				if err := json.Unmarshal([]byte(msg.Payload), &wc); err != nil {
					continue
				}
				select {
				case out <- Change{Bucket: bucket, Key: wc.Key, Value: wc.Value, Op: wc.Op}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

// Close releases the underlying Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
