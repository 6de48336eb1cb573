// Package cache provides byte caching for expensive pipeline stages.
//
// The only cross-run state the viewer keeps is the aligned-overlay cache:
// reprojecting an NLCD or CDL raster onto the DEM grid is by far the slowest
// step, and its result depends only on the two input files and the resampling
// method. Everything else is rebuilt per run.
//
// Three backends are provided: a file cache under the XDG cache directory
// (the default), a redis cache for shared setups, and a null cache for
// --no-cache runs and tests.
package cache

import (
	"context"
	"time"
)

// TTLAlign is the retention for cached aligned overlays. The cache key
// includes file size and mtime, so stale entries are never served; the TTL
// just bounds disk usage.
const TTLAlign = 30 * 24 * time.Hour

// Cache is the interface implemented by all cache backends.
type Cache interface {
	// Get retrieves a value. The second return value reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
