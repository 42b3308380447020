package project

import (
	"context"
	"fmt"
	"sync"
)

// maxBufferItems bounds both in-flight buffers; a buffer that reaches the
// bound is flushed immediately.
const maxBufferItems = 50

// Ref addresses one document.
type Ref struct {
	Domain string
	UUID   string
}

// LazyObject is the client-side handle for a document. It starts empty and
// is filled in when its read completes; until then Loaded is false and the
// caller holds a proxy.
type LazyObject struct {
	Domain   string
	UUID     string
	Loaded   bool
	Modified bool

	// Data is the parsed representation, owned by the codec.
	Data any
}

// Storage resolves a document for the codec while it parses. The batch
// wrapper answers from memory; the connection schedules a network read and
// reports a miss.
type Storage interface {
	Retrieve(domain, uuid string, existing *LazyObject) ([]byte, bool)
}

// Codec parses and serialises document XML. Parse may call back into
// storage for children it encounters, which is how a load can span several
// round trips.
type Codec interface {
	Parse(obj *LazyObject, xml []byte, storage Storage) error
	Serialize(obj *LazyObject) ([]byte, error)
}

// Remote is the slice of the store's slot surface the connection uses.
type Remote interface {
	LoadItems(ctx context.Context, domain string, refs []LoadRef) ([]LoadedItem, error)
	SaveItems(ctx context.Context, items []SaveItem) ([]SaveResult, error)
	ListDomains(ctx context.Context) ([]string, error)
	ListItems(ctx context.Context, domain string, itemTypes []string) ([]ItemInfo, error)
}

// Connection presents synchronous-looking reads and writes over the
// batched, asynchronous store surface.
//
// Reads that miss the local cache are buffered and answered later; the
// caller keeps a LazyObject proxy that is filled in when the batch
// completes. Writes are buffered the same way. Whenever the union of the
// two waiter maps transitions between empty and non-empty, the busy
// callback fires.
type Connection struct {
	remote Remote
	cache  *DiskCache
	codec  Codec
	logger Logger

	// ignoreLocalCache sends reads straight to the network.
	ignoreLocalCache bool

	mu              sync.Mutex
	readBuffer      []Ref
	writeBuffer     []SaveItem
	waitingForRead  map[string]*LazyObject
	waitingForWrite map[string]*LazyObject

	onBusy       func(processing bool)
	onDomains    func(domains []string)
	onItems      func(domain string, items []ItemInfo)
	onWriteError func(uuid, reason string)
}

// NewConnection creates a connection over a remote store and a local cache.
func NewConnection(remote Remote, cache *DiskCache, codec Codec) *Connection {
	return &Connection{
		remote:          remote,
		cache:           cache,
		codec:           codec,
		logger:          noopLogger{},
		waitingForRead:  make(map[string]*LazyObject),
		waitingForWrite: make(map[string]*LazyObject),
	}
}

// SetLogger sets the logger for the connection.
func (c *Connection) SetLogger(logger Logger) { c.logger = logger }

// SetIgnoreLocalCache controls whether reads consult the local cache first.
func (c *Connection) SetIgnoreLocalCache(ignore bool) { c.ignoreLocalCache = ignore }

// SetOnBusy registers the busy-transition callback.
func (c *Connection) SetOnBusy(fn func(processing bool)) { c.onBusy = fn }

// SetOnDomains registers the domain-listing callback.
func (c *Connection) SetOnDomains(fn func(domains []string)) { c.onDomains = fn }

// SetOnItems registers the item-listing callback.
func (c *Connection) SetOnItems(fn func(domain string, items []ItemInfo)) { c.onItems = fn }

// SetOnWriteError registers the per-item write failure callback.
func (c *Connection) SetOnWriteError(fn func(uuid, reason string)) { c.onWriteError = fn }

// Retrieve returns the document from the local cache, or schedules a
// network read and returns ok=false. In the latter case existing is parked
// in the read waiter map and filled in when the batch completes.
//
// Connection implements Storage with this method, so a codec resolving
// child references during a batch falls back here for anything the batch
// does not carry.
func (c *Connection) Retrieve(domain, uuid string, existing *LazyObject) ([]byte, bool) {
	if !c.ignoreLocalCache {
		if data, ok := c.cache.Get(domain, uuid); ok {
			return data, true
		}
	}

	c.mu.Lock()
	wasIdle := c.idleLocked()
	c.waitingForRead[uuid] = existing
	c.readBuffer = append(c.readBuffer, Ref{Domain: domain, UUID: uuid})
	full := len(c.readBuffer) >= maxBufferItems
	nowIdle := c.idleLocked()
	c.mu.Unlock()

	c.signalBusy(wasIdle, nowIdle)
	if full {
		c.Flush(context.Background())
	}
	return nil, false
}

// Store serialises obj and buffers it for writing. The object stays in the
// write waiter map until its result arrives.
func (c *Connection) Store(domain, uuid string, obj *LazyObject) error {
	xml, err := c.codec.Serialize(obj)
	if err != nil {
		return fmt.Errorf("project: serialising %s: %w", uuid, err)
	}

	c.mu.Lock()
	wasIdle := c.idleLocked()
	c.waitingForWrite[uuid] = obj
	c.writeBuffer = append(c.writeBuffer, SaveItem{
		Domain:    domain,
		UUID:      uuid,
		XML:       string(xml),
		Overwrite: true,
	})
	full := len(c.writeBuffer) >= maxBufferItems
	nowIdle := c.idleLocked()
	c.mu.Unlock()

	c.signalBusy(wasIdle, nowIdle)
	if full {
		c.Flush(context.Background())
	}
	return nil
}

// RequestDomains asks the store for its domain list and delivers the reply
// to the domains callback. Failures are logged and otherwise dropped.
func (c *Connection) RequestDomains(ctx context.Context) {
	domains, err := c.remote.ListDomains(ctx)
	if err != nil {
		c.logger.Warn("domain listing failed", "error", err)
		return
	}
	if c.onDomains != nil {
		c.onDomains(domains)
	}
}

// RequestItems asks the store for a domain's items of one type and delivers
// the reply to the items callback.
func (c *Connection) RequestItems(ctx context.Context, domain, itemType string) {
	var filter []string
	if itemType != "" {
		filter = []string{itemType}
	}
	items, err := c.remote.ListItems(ctx, domain, filter)
	if err != nil {
		c.logger.Warn("item listing failed", "domain", domain, "error", err)
		return
	}
	if c.onItems != nil {
		c.onItems(domain, items)
	}
}

// Flush transmits both buffers. Empty buffers are a no-op. Reads queued by
// the completion handlers of this flush (children discovered while parsing)
// are flushed again before returning.
func (c *Connection) Flush(ctx context.Context) {
	for {
		c.mu.Lock()
		reads := c.readBuffer
		writes := c.writeBuffer
		c.readBuffer = nil
		c.writeBuffer = nil
		c.mu.Unlock()

		if len(reads) == 0 && len(writes) == 0 {
			return
		}
		if len(writes) > 0 {
			c.flushWrites(ctx, writes)
		}
		if len(reads) > 0 {
			c.flushReads(ctx, reads)
		}
	}
}

// flushReads loads one batch and runs the read completion protocol: cache
// everything first, then resolve each waiter against the batch so that
// cross-references between batch members never touch the network.
func (c *Connection) flushReads(ctx context.Context, refs []Ref) {
	byDomain := make(map[string][]LoadRef)
	for _, ref := range refs {
		byDomain[ref.Domain] = append(byDomain[ref.Domain], LoadRef{UUID: ref.UUID, Revision: -1})
	}

	for domain, domainRefs := range byDomain {
		items, err := c.remote.LoadItems(ctx, domain, domainRefs)
		if err != nil {
			c.logger.Warn("batch load failed", "domain", domain, "error", err)
			c.dropReadWaiters(domainRefs)
			continue
		}

		batch := make(map[string][]byte, len(items))
		for _, item := range items {
			if item.XML == "" {
				c.cache.MarkNotFound(item.Domain, item.UUID)
				continue
			}
			batch[item.UUID] = []byte(item.XML)
			if err := c.cache.Put(item.Domain, item.UUID, []byte(item.XML)); err != nil {
				c.logger.Warn("cache write failed", "uuid", item.UUID, "error", err)
			}
		}

		storage := &MemCacheWrapper{batch: batch, fallback: c}
		for _, item := range items {
			c.mu.Lock()
			existing, waiting := c.waitingForRead[item.UUID]
			delete(c.waitingForRead, item.UUID)
			nowIdle := c.idleLocked()
			c.mu.Unlock()
			if !waiting {
				continue
			}
			c.signalBusy(false, nowIdle)
			if item.XML == "" {
				// Document absent; the proxy stays in its empty state.
				continue
			}
			readLazyObject(item.Domain, item.UUID, storage, c.codec, existing, c.logger)
		}
	}
}

// dropReadWaiters clears waiters for a failed batch; the proxies stay in
// their empty initial state.
func (c *Connection) dropReadWaiters(refs []LoadRef) {
	c.mu.Lock()
	wasIdle := c.idleLocked()
	for _, ref := range refs {
		delete(c.waitingForRead, ref.UUID)
	}
	nowIdle := c.idleLocked()
	c.mu.Unlock()
	c.signalBusy(wasIdle, nowIdle)
}

// flushWrites saves one batch and applies per-item outcomes: success clears
// the object's modified flag and refreshes the cache; failure surfaces a
// notice and drops the waiter.
func (c *Connection) flushWrites(ctx context.Context, items []SaveItem) {
	byUUID := make(map[string]SaveItem, len(items))
	for _, item := range items {
		byUUID[item.UUID] = item
	}

	results, err := c.remote.SaveItems(ctx, items)
	if err != nil {
		c.logger.Warn("batch save failed", "error", err)
		results = nil
		for _, item := range items {
			results = append(results, SaveResult{UUID: item.UUID, Reason: err.Error()})
		}
	}

	for _, res := range results {
		c.mu.Lock()
		obj, waiting := c.waitingForWrite[res.UUID]
		delete(c.waitingForWrite, res.UUID)
		nowIdle := c.idleLocked()
		c.mu.Unlock()

		if waiting {
			c.signalBusy(false, nowIdle)
		}
		if waiting && res.Success {
			obj.Modified = false
			item := byUUID[res.UUID]
			if err := c.cache.Put(item.Domain, item.UUID, []byte(item.XML)); err != nil {
				c.logger.Warn("cache write failed", "uuid", item.UUID, "error", err)
			}
		}
		if !res.Success && c.onWriteError != nil {
			c.onWriteError(res.UUID, res.Reason)
		}
	}
}

// idleLocked reports whether both waiter maps are empty. Caller holds mu.
func (c *Connection) idleLocked() bool {
	return len(c.waitingForRead) == 0 && len(c.waitingForWrite) == 0
}

// signalBusy fires the busy callback on an idle transition.
func (c *Connection) signalBusy(wasIdle, nowIdle bool) {
	if c.onBusy == nil || wasIdle == nowIdle {
		return
	}
	c.onBusy(!nowIdle)
}

// MemCacheWrapper answers Retrieve from one loaded batch and falls back to
// the connection for anything else, so resolving references between batch
// members needs no further round trip.
type MemCacheWrapper struct {
	batch    map[string][]byte
	fallback Storage
}

// Retrieve implements Storage.
func (m *MemCacheWrapper) Retrieve(domain, uuid string, existing *LazyObject) ([]byte, bool) {
	if data, ok := m.batch[uuid]; ok {
		return data, true
	}
	return m.fallback.Retrieve(domain, uuid, existing)
}

// readLazyObject fills in a proxy from storage. A miss leaves the proxy
// lazy with a read scheduled; a parse error leaves it in its empty initial
// state.
func readLazyObject(domain, uuid string, storage Storage, codec Codec, existing *LazyObject, logger Logger) *LazyObject {
	if existing == nil {
		existing = &LazyObject{Domain: domain, UUID: uuid}
	}
	data, ok := storage.Retrieve(domain, uuid, existing)
	if !ok {
		return existing
	}
	if err := codec.Parse(existing, data, storage); err != nil {
		logger.Warn("parsing document failed", "uuid", uuid, "error", err)
		return existing
	}
	existing.Loaded = true
	return existing
}
