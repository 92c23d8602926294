package resourcemanager

import (
	"sync"
	"sync/atomic"

	"github.com/godlikepanos/respipe/rescache"
	"github.com/godlikepanos/respipe/resourcefs"
)

// kindStats is the running total of loaded instances and decoded bytes for
// one registered asset kind, per the original engine's in-engine memory HUD
// (see SPEC_FULL.md §4): a count and an approximate byte total, updated when
// a body decode succeeds and when the asset is destroyed, rather than sampled.
type kindStats struct {
	count int64
	bytes int64
}

func (k *kindStats) onLoad(size int64) {
	atomic.AddInt64(&k.count, 1)
	atomic.AddInt64(&k.bytes, size)
}

func (k *kindStats) onEvict(size int64) {
	atomic.AddInt64(&k.count, -1)
	atomic.AddInt64(&k.bytes, -size)
}

func (k *kindStats) snapshot() KindStats {
	return KindStats{
		Count: int(atomic.LoadInt64(&k.count)),
		Bytes: atomic.LoadInt64(&k.bytes),
	}
}

// KindStats is a point-in-time snapshot of one asset kind's bookkeeping.
type KindStats struct {
	Count int
	Bytes int64
}

// ResourceManagerStats is a point-in-time snapshot across every kind
// registered with a ResourceManager.
type ResourceManagerStats struct {
	Kinds map[string]KindStats
}

// statsDecoder wraps a caller-supplied rescache.Decoder so that every
// successful body decode and every destroy updates a kind's running totals,
// without requiring the decoder itself to know about ResourceManager. It
// relies on rescache always invoking DecodeBody and Destroy with the same
// *T pointer (the address of the Asset's payload field), so the byte count
// recorded at decode time can be looked up again at eviction.
type statsDecoder[T any] struct {
	inner rescache.Decoder[T]
	kind  *kindStats

	mu    sync.Mutex
	sizes map[*T]int64
}

func newStatsDecoder[T any](inner rescache.Decoder[T], kind *kindStats) *statsDecoder[T] {
	return &statsDecoder[T]{
		inner: inner,
		kind:  kind,
		sizes: make(map[*T]int64),
	}
}

// DecodeHeader delegates unchanged; a header-only asset that never reaches
// Ready has not yet consumed its decoded bytes, so it is not counted until
// DecodeBody succeeds.
func (d *statsDecoder[T]) DecodeHeader(f resourcefs.ResourceFile) (T, error) {
	return d.inner.DecodeHeader(f)
}

func (d *statsDecoder[T]) DecodeBody(f resourcefs.ResourceFile, payload *T) error {
	if err := d.inner.DecodeBody(f, payload); err != nil {
		return err
	}
	size := f.Length()
	d.mu.Lock()
	d.sizes[payload] = size
	d.mu.Unlock()
	d.kind.onLoad(size)
	return nil
}

func (d *statsDecoder[T]) Destroy(payload *T) {
	d.mu.Lock()
	size, tracked := d.sizes[payload]
	delete(d.sizes, payload)
	d.mu.Unlock()

	d.inner.Destroy(payload)
	if tracked {
		d.kind.onEvict(size)
	}
}
