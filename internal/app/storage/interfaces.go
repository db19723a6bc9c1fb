// Package storage defines the persistence capabilities required by packmint
// services.
package storage

import "context"

// KeyValueStore is the minimal durable capability backing the inventory.
// Values are opaque byte payloads; implementations must return exactly the
// bytes that were written. Get reports found=false for missing keys without
// an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}
