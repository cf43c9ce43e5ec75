package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache defines the interface for caching operations
type Cache interface {
	// Get retrieves a value and whether the key was found
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value. An expiration of 0 uses the cache default.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// Add stores a value only if the key is absent or expired and reports
	// whether it did.
	Add(ctx context.Context, key string, value interface{}, expiration time.Duration) bool

	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes all keys with the given prefix
	DeleteByPrefix(ctx context.Context, prefix string)

	Flush(ctx context.Context)
}

// Key prefixes
const (
	PrefixUser     = "user:v1:"
	PrefixDebounce = "debounce:v1:"
)

// GenerateKey joins a prefix and parameters with colons
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = strings.TrimSuffix(prefix, ":")

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}
