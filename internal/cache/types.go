// Package cache stores results of read-only procedures for a bounded time.
package cache

// Cache defines the interface for procedure result caching
type Cache interface {
	// Get retrieves a cached result by key
	// Returns the cached data and true if found, nil and false otherwise
	Get(key string) ([]byte, bool)

	// Set stores a result in the cache with the given key
	Set(key string, value []byte)

	// Close releases any resources held by the cache
	Close()
}
