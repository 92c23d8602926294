// Package rescache implements the reference-counted, name-keyed,
// one-instance-per-key resource cache from spec.md §4.5: at most one Asset
// exists per (kind, filename), load-on-miss performs a synchronous header
// decode followed by an asynchronous body decode, and the cache lock is
// never held across file I/O or loader submission.
package rescache

import (
	"sync/atomic"
	"time"

	"github.com/godlikepanos/respipe/asyncloader"
	"github.com/godlikepanos/respipe/resourcefs"
	esync "github.com/godlikepanos/respipe/sync"
)

// LoadState is a point in an Asset's lifecycle, per spec.md §4.5's state
// machine: Header -> Decoding -> Ready|Failed -> Destroyed.
type LoadState int32

const (
	StateHeader LoadState = iota
	StateDecoding
	StateReady
	StateFailed
)

// Decoder is the narrow capability contract an asset kind implements,
// replacing the source's C++ virtual-dispatch base class per SPEC_FULL.md's
// design notes.
type Decoder[T any] interface {
	// DecodeHeader runs synchronously on the caller's goroutine during
	// Load: it opens enough of f to populate metadata and pre-allocate any
	// GPU/physics slots the asset will need, returning the not-yet-ready
	// payload.
	DecodeHeader(f resourcefs.ResourceFile) (T, error)
	// DecodeBody runs on the async loader's worker; it finishes populating
	// payload from f.
	DecodeBody(f resourcefs.ResourceFile, payload *T) error
	// Destroy releases whatever GPU/physics resources payload holds. It
	// runs on whichever goroutine dropped the last handle.
	Destroy(payload *T)
}

// Asset is one cached, name-keyed instance of a resource kind.
type Asset[T any] struct {
	Name     string
	refcount int32
	state    int32 // LoadState
	payload  T
	loadErr  error
	cache    *ResourceCache[T]
}

// State returns the asset's current point in the Header -> Decoding ->
// Ready|Failed lifecycle.
func (a *Asset[T]) State() LoadState {
	return LoadState(atomic.LoadInt32(&a.state))
}

// ResourceHandle is a refcounted reference to an Asset. Cloning bumps the
// count; Drop decrements it, and the goroutine that drops the last handle
// triggers cache eviction and destruction.
type ResourceHandle[T any] struct {
	asset *Asset[T]
}

// Clone returns a new handle to the same Asset, incrementing its refcount.
func (h *ResourceHandle[T]) Clone() *ResourceHandle[T] {
	atomic.AddInt32(&h.asset.refcount, 1)
	return &ResourceHandle[T]{asset: h.asset}
}

// Drop releases this handle. If it was the last live handle, the owning
// cache evicts and destroys the Asset on this goroutine.
func (h *ResourceHandle[T]) Drop() {
	if atomic.AddInt32(&h.asset.refcount, -1) == 0 {
		h.asset.cache.handleReleased(h.asset)
	}
}

// IsReady reports whether the underlying Asset has finished decoding
// successfully.
func (h *ResourceHandle[T]) IsReady() bool {
	return h.asset.State() == StateReady
}

// IsFailed reports whether the underlying Asset's decode failed.
func (h *ResourceHandle[T]) IsFailed() bool {
	return h.asset.State() == StateFailed
}

// Err returns the decode error if IsFailed, nil otherwise.
func (h *ResourceHandle[T]) Err() error {
	return h.asset.loadErr
}

// Payload returns the asset's payload. It is only meaningful once IsReady
// returns true; callers must check state before consuming it, per
// spec.md §5 ("Resource load order is not guaranteed; callers must use
// is_ready before consuming payload").
func (h *ResourceHandle[T]) Payload() T {
	return h.asset.payload
}

// Asset exposes the underlying Asset, primarily so tests can assert
// pointer identity across two Load calls for the same name.
func (h *ResourceHandle[T]) Asset() *Asset[T] {
	return h.asset
}

// ResourceCache deduplicates instances of one asset kind by filename. The
// zero value is not valid; use New.
type ResourceCache[T any] struct {
	lock    *esync.Lock
	entries map[string]*Asset[T]
	fs      *resourcefs.ResourceFilesystem
	loader  *asyncloader.AsyncLoader
	decoder Decoder[T]
}

// New returns an empty ResourceCache for one asset kind. The cache lock is
// the deadlock-mitigating esync.Lock rather than a bare mutex, per
// SPEC_FULL.md §5: a decode callback that hangs must not be able to wedge
// every other caller of the same cache.
func New[T any](fs *resourcefs.ResourceFilesystem, loader *asyncloader.AsyncLoader, decoder Decoder[T]) *ResourceCache[T] {
	return &ResourceCache[T]{
		lock:    esync.New(30*time.Second, 3),
		entries: make(map[string]*Asset[T]),
		fs:      fs,
		loader:  loader,
		decoder: decoder,
	}
}

// Load returns a handle to the Asset for name, creating it on a cache miss.
// On a hit, the refcount is bumped and a fresh handle returned immediately.
// On a miss, a placeholder Asset is inserted, the header is decoded
// synchronously, and a body-decode task is submitted to the loader; the
// returned handle may observe any subsequent state via IsReady/IsFailed.
func (c *ResourceCache[T]) Load(name string) (*ResourceHandle[T], error) {
	id := c.lock.Lock()
	if asset, ok := c.entries[name]; ok {
		atomic.AddInt32(&asset.refcount, 1)
		c.lock.Unlock(id)
		return &ResourceHandle[T]{asset: asset}, nil
	}
	asset := &Asset[T]{Name: name, refcount: 1, cache: c}
	atomic.StoreInt32(&asset.state, int32(StateHeader))
	c.entries[name] = asset
	c.lock.Unlock(id)

	// Header decode happens synchronously, and always outside the cache
	// lock: it performs real I/O.
	f, err := c.fs.Open(name)
	if err != nil {
		c.removeFailedPlaceholder(name)
		return nil, err
	}
	payload, err := c.decoder.DecodeHeader(f)
	f.Close()
	if err != nil {
		c.removeFailedPlaceholder(name)
		return nil, err
	}

	asset.payload = payload
	atomic.StoreInt32(&asset.state, int32(StateDecoding))

	handle := &ResourceHandle[T]{asset: asset}
	c.submitBodyDecode(name, asset)
	return handle, nil
}

func (c *ResourceCache[T]) removeFailedPlaceholder(name string) {
	id := c.lock.Lock()
	delete(c.entries, name)
	c.lock.Unlock(id)
}

func (c *ResourceCache[T]) submitBodyDecode(name string, asset *Asset[T]) {
	task := asyncloader.TaskFunc(func(ctx *asyncloader.TaskContext) error {
		f, err := c.fs.Open(name)
		if err != nil {
			asset.loadErr = err
			atomic.StoreInt32(&asset.state, int32(StateFailed))
			return err
		}
		defer f.Close()

		if err := c.decoder.DecodeBody(f, &asset.payload); err != nil {
			asset.loadErr = err
			atomic.StoreInt32(&asset.state, int32(StateFailed))
			return err
		}
		atomic.StoreInt32(&asset.state, int32(StateReady))
		return nil
	})
	if err := c.loader.Submit(task, asyncloader.PriorityNormal); err != nil {
		asset.loadErr = err
		atomic.StoreInt32(&asset.state, int32(StateFailed))
	}
}

// handleReleased is called by ResourceHandle.Drop when an Asset's refcount
// reaches zero. It re-checks the refcount under the cache lock before
// evicting, because a concurrent Load racing the drop may have already
// bumped the count back up to 1.
func (c *ResourceCache[T]) handleReleased(asset *Asset[T]) {
	id := c.lock.Lock()
	defer c.lock.Unlock(id)
	if atomic.LoadInt32(&asset.refcount) != 0 {
		return
	}
	if c.entries[asset.Name] != asset {
		return
	}
	delete(c.entries, asset.Name)
	c.decoder.Destroy(&asset.payload)
}

// Len reports the number of live entries, for tests and diagnostics.
func (c *ResourceCache[T]) Len() int {
	id := c.lock.RLock()
	defer c.lock.RUnlock(id)
	return len(c.entries)
}
