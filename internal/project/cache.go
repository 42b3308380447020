package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiskCache is the local project cache: one file per document under
// <root>/<domain>/<uuid>, written atomically. Misses observed from the
// server are remembered in a short-lived negative cache so repeated lookups
// for an absent document do not hammer the network.
type DiskCache struct {
	root        string
	notFoundTTL time.Duration

	mu       sync.Mutex
	notFound map[string]time.Time // domain/uuid -> expiry
	now      func() time.Time
}

// NewDiskCache creates a cache rooted at root. notFoundTTL bounds the
// lifetime of negative entries.
func NewDiskCache(root string, notFoundTTL time.Duration) *DiskCache {
	return &DiskCache{
		root:        root,
		notFoundTTL: notFoundTTL,
		notFound:    make(map[string]time.Time),
		now:         time.Now,
	}
}

// Get returns the cached document, or ok=false on a miss. A live negative
// entry also reports a miss.
func (c *DiskCache) Get(domain, uuid string) ([]byte, bool) {
	if c.isNotFound(domain, uuid) {
		return nil, false
	}
	data, err := os.ReadFile(c.path(domain, uuid))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put writes a document into the cache, atomically, clearing any negative
// entry for it.
func (c *DiskCache) Put(domain, uuid string, xml []byte) error {
	dir := filepath.Join(c.root, domain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, uuid+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	if _, err := tmp.Write(xml); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(domain, uuid)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing cache entry: %w", err)
	}

	c.mu.Lock()
	delete(c.notFound, c.key(domain, uuid))
	c.mu.Unlock()
	return nil
}

// MarkNotFound records that the server has no such document. The entry
// expires after the configured TTL.
func (c *DiskCache) MarkNotFound(domain, uuid string) {
	c.mu.Lock()
	c.notFound[c.key(domain, uuid)] = c.now().Add(c.notFoundTTL)
	c.mu.Unlock()
}

// isNotFound reports whether a live negative entry exists, dropping it when
// expired.
func (c *DiskCache) isNotFound(domain, uuid string) bool {
	key := c.key(domain, uuid)
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.notFound[key]
	if !ok {
		return false
	}
	if c.now().After(expiry) {
		delete(c.notFound, key)
		return false
	}
	return true
}

func (c *DiskCache) path(domain, uuid string) string {
	return filepath.Join(c.root, domain, uuid)
}

func (c *DiskCache) key(domain, uuid string) string {
	return domain + "/" + uuid
}
