// Package resourcemanager is the facade from spec.md §4.5: it owns one
// ResourceCache per asset kind plus the shared ResourceFilesystem and
// AsyncLoader, and exposes a type-keyed Load[T] entry point. It holds no
// manual allocator of its own — DESIGN.md treats the source's stack/chain
// allocators as an optional optimisation, and Go's garbage collector
// already gives every Asset[T] payload the "shared allocator" role the
// source assigns to a bespoke pool.
package resourcemanager

import (
	"time"

	"github.com/godlikepanos/respipe/asyncloader"
	"github.com/godlikepanos/respipe/build"
	"github.com/godlikepanos/respipe/persist"
	"github.com/godlikepanos/respipe/rescache"
	"github.com/godlikepanos/respipe/resourcefs"
	esync "github.com/godlikepanos/respipe/sync"
)

// statsTimeout bounds how long Stats will wait on a contended registry
// before giving up and returning its last snapshot; Stats is a diagnostic
// call (e.g. an in-engine memory HUD) and must never stall behind a
// RegisterKind/Load that is wedged.
const statsTimeout = 25 * time.Millisecond

// ResourceManager composes the resource filesystem, the async loader, and
// one ResourceCache per registered asset kind, per spec.md §4.5.
type ResourceManager struct {
	Settings ResourceManagerConfig

	fs     *resourcefs.ResourceFilesystem
	loader *asyncloader.AsyncLoader
	logger *persist.Logger

	mu           esync.TryMutex
	caches       map[string]any
	stats        map[string]*kindStats
	lastSnapshot ResourceManagerStats
}

// New returns a ResourceManager over an already-frozen ResourceFilesystem,
// starting its own AsyncLoader worker. logger may be nil.
func New(settings ResourceManagerConfig, fs *resourcefs.ResourceFilesystem, logger *persist.Logger) *ResourceManager {
	return &ResourceManager{
		Settings: settings,
		fs:       fs,
		loader:   asyncloader.New(logger),
		logger:   logger,
		caches:   make(map[string]any),
		stats:    make(map[string]*kindStats),
	}
}

// Filesystem returns the manager's ResourceFilesystem, for callers that
// need to open a file outside the typed cache facade (e.g. loading a
// manifest).
func (rm *ResourceManager) Filesystem() *resourcefs.ResourceFilesystem {
	return rm.fs
}

// Loader returns the manager's AsyncLoader, for callers that submit their
// own tasks alongside cache body-decodes (e.g. a background prefetch
// scanner).
func (rm *ResourceManager) Loader() *asyncloader.AsyncLoader {
	return rm.loader
}

// Close stops the AsyncLoader, waiting for any task in flight to finish,
// and closes the log file if one was given to New.
func (rm *ResourceManager) Close() error {
	loaderErr := build.ExtendErr("resourcemanager: stopping async loader", rm.loader.Stop())
	var logErr error
	if rm.logger != nil {
		logErr = build.ExtendErr("resourcemanager: closing log", rm.logger.Close())
	}
	return build.ComposeErrors(loaderErr, logErr)
}

// RegisterKind creates and registers the ResourceCache for one asset kind,
// keyed by a caller-chosen name (e.g. "texture", "mesh"). It must be called
// once per kind before the first Load for that kind. Registering the same
// kind twice is a programmer error caught by build.Critical, matching the
// teacher's use of Critical for violated invariants rather than a bare
// panic.
func RegisterKind[T any](rm *ResourceManager, kind string, dec rescache.Decoder[T]) *rescache.ResourceCache[T] {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.caches[kind]; exists {
		build.Critical("resourcemanager: kind", kind, "registered twice")
	}

	ks := &kindStats{}
	rm.stats[kind] = ks
	cache := rescache.New[T](rm.fs, rm.loader, newStatsDecoder[T](dec, ks))
	rm.caches[kind] = cache
	return cache
}

// Load resolves name against the ResourceCache registered for kind,
// returning ErrUnknownKind if RegisterKind[T] was never called for it.
func Load[T any](rm *ResourceManager, kind string, name string) (*rescache.ResourceHandle[T], error) {
	rm.mu.Lock()
	untyped, ok := rm.caches[kind]
	rm.mu.Unlock()
	if !ok {
		return nil, ErrUnknownKind
	}

	cache, ok := untyped.(*rescache.ResourceCache[T])
	if !ok {
		// A kind registered with one payload type and loaded with another
		// is a programmer error, not a runtime condition callers should
		// branch on.
		build.Critical("resourcemanager: kind", kind, "loaded with the wrong payload type")
		return nil, ErrUnknownKind
	}
	return cache.Load(name)
}

// Stats returns a point-in-time snapshot of every registered kind's loaded
// count and approximate decoded byte total, per SPEC_FULL.md §4's
// supplemented memory-HUD bookkeeping. If the registry is contended for
// longer than statsTimeout, Stats gives up and returns the last snapshot it
// managed to take instead of blocking the caller (typically a HUD/overlay
// thread) indefinitely.
func (rm *ResourceManager) Stats() ResourceManagerStats {
	if !rm.mu.TryLockTimed(statsTimeout) {
		return rm.lastSnapshot
	}
	defer rm.mu.Unlock()

	out := ResourceManagerStats{Kinds: make(map[string]KindStats, len(rm.stats))}
	for kind, ks := range rm.stats {
		out.Kinds[kind] = ks.snapshot()
	}
	rm.lastSnapshot = out
	return out
}
