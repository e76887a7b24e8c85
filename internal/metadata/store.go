// Package metadata implements the lattice-wide keyed store of spec.md
// §4.3: links, named configs, and registry credentials, with put/get/delete
// semantics and change notification. Storage is pluggable behind the Store
// interface.
package metadata

import "context"

// Bucket names the three logical collections the store holds.
type Bucket string

const (
	BucketLinks    Bucket = "LINKS"
	BucketConfig   Bucket = "CONFIG"
	BucketRegistry Bucket = "REGISTRY"
)

// Op names the kind of change a Watch event carries.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change is a single committed mutation, delivered to watchers in per-key
// commit order (spec.md §4.3, §5). Value is nil for OpDelete.
type Change struct {
	Bucket Bucket
	Key    string
	Value  []byte
	Op     Op
}

// Store is the pluggable contract behind the metadata service. Every
// method's consistency requirement is as described in spec.md §4.3:
// single-writer-at-a-time per key is sufficient, cross-key atomicity is not
// required, deletes are idempotent.
type Store interface {
	// Put overwrites key in bucket and publishes an on-change notification
	// after the write commits.
	Put(ctx context.Context, bucket Bucket, key string, value []byte) error

	// Get returns the current value for key in bucket, or ok=false if
	// absent.
	Get(ctx context.Context, bucket Bucket, key string) (value []byte, ok bool, err error)

	// Delete removes key from bucket. Deleting an absent key succeeds and
	// still publishes an on-change notification.
	Delete(ctx context.Context, bucket Bucket, key string) error

	// List returns a point-in-time snapshot of every key/value in bucket.
	List(ctx context.Context, bucket Bucket) (map[string][]byte, error)

	// Watch streams committed changes to bucket. The returned cancel func
	// stops delivery and must be called to release resources.
	Watch(ctx context.Context, bucket Bucket) (changes <-chan Change, cancel func(), err error)

	// Close releases store resources.
	Close() error
}

// LinkKey builds the LINKS bucket key for a link definition, per spec.md
// §4.3: source_id/wit_namespace/wit_package/link_name.
func LinkKey(sourceID, namespace, pkg, linkName string) string {
	return sourceID + "/" + namespace + "/" + pkg + "/" + linkName
}
