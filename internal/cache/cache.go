// Package cache provides byte-oriented caches for fetched price history.
package cache

import (
	"context"
	"time"
)

// BytesCache stores opaque payloads with an expiry. A miss is (nil, false, nil).
type BytesCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
