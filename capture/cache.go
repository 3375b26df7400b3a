package capture

import (
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// cacheEntry pins a digest to the file stat fields that would change if
// the file's content changed, so a stale entry is self-evident.
type cacheEntry struct {
	Size    int64 `msgpack:"size"`
	ModUnix int64 `msgpack:"modUnix"`
	Digest  string `msgpack:"digest"`
}

// DigestCache is an on-disk, msgpack-encoded cache mapping absolute file
// paths to their last-seen digest, keyed additionally by size and mtime
// so a changed file never returns a stale digest. Capture does not open
// or consult a DigestCache; every capture hashes each file it records.
type DigestCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]cacheEntry
	dirty   bool
}

// OpenDigestCache loads a cache file if present, or starts an empty one.
// A corrupt or missing cache file is never fatal; it degrades to a full
// rehash.
func OpenDigestCache(path string) *DigestCache {
	c := &DigestCache{path: path, entries: make(map[string]cacheEntry)}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var loaded map[string]cacheEntry
	if err := msgpack.Unmarshal(data, &loaded); err != nil {
		return c
	}
	c.entries = loaded
	return c
}

// Lookup returns the cached digest for path if size and modUnix match.
func (c *DigestCache) Lookup(path string, size, modUnix int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.Size != size || e.ModUnix != modUnix {
		return "", false
	}
	return e.Digest, true
}

// Put records a freshly computed digest.
func (c *DigestCache) Put(path string, size, modUnix int64, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{Size: size, ModUnix: modUnix, Digest: digest}
	c.dirty = true
}

// Flush persists the cache to disk via stage-then-rename, matching the
// atomic write protocol used for finalized output elsewhere in this
// module. A flush failure is non-fatal to the caller; the cache simply
// reverts to cold on the next run.
func (c *DigestCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := msgpack.Marshal(c.entries)
	if err != nil {
		return err
	}
	stage := c.path + ".stage"
	if err := os.WriteFile(stage, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(stage, c.path); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
