// Package storage implements the MVCC key-value engine that backs batched
// Arbors on a memory-mapped file (spec §3.6, §4.6).
package storage

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	charmlog "charm.land/log/v2"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/codec"
	"github.com/arbors/arbors/schema"
)

// Engine is an MVCC key-value store keyed by (arbor_name, generation,
// batch_index), backed by a single memory-mapped append-only file (spec
// §6.2). Reads take only read locks; writes are serialized through
// writeMu, which readers never take.
type Engine struct {
	opts   EngineOptions
	logger *charmlog.Logger
	stats  engineStats
	cache  *batchCache

	file     *os.File
	mapped   mmap.MMap
	retired  []mmap.MMap
	used     int64
	capacity int64
	mapMu    sync.RWMutex
	writeMu  sync.Mutex

	arborsMu sync.RWMutex
	arbors   map[string]*arborEntry
}

// arborEntry tracks every committed generation for one arbor_name. The
// interner and schema registry are shared across all of that name's
// generations and batches (see DESIGN.md "interner persistence" decision):
// a commit replaces them wholesale, it never merges.
type arborEntry struct {
	mu       sync.RWMutex
	latest   uint64
	gens     map[uint64][]storedBatch
	interner *arbors.Interner
	schema   *schema.Registry
}

type storedBatch struct {
	frame PinnedBytes
}

// NewEngine opens (creating if absent) the backing file at path and memory
// maps it. logger may be nil, in which case a discard logger is used (spec
// SPEC_FULL §A.2 "nil-safe, defaulting to a discard logger"). The
// arbor_name → generation table, with each arbor's interner and schema,
// is held in memory only: opening an existing file maps its bytes but
// registers no arbors, so batches committed by an earlier Engine are not
// readable through the new one.
func NewEngine(path string, opts EngineOptions, logger *charmlog.Logger) (*Engine, error) {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", arbors.ErrStorage, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", arbors.ErrStorage, path, err)
	}

	e := &Engine{
		opts:   opts,
		logger: logger,
		cache:  newBatchCache(opts.CacheCapacity),
		file:   f,
		used:   info.Size(),
		arbors: make(map[string]*arborEntry),
	}
	if info.Size() == 0 {
		if err := e.growLocked(opts.MmapGrowIncrement); err != nil {
			f.Close()
			return nil, err
		}
	} else if err := e.mapLocked(); err != nil {
		f.Close()
		return nil, err
	}
	e.logger.Info("storage engine opened", "path", path, "size", info.Size())
	return e, nil
}

// Close unmaps every mapping this engine ever created — the live one and
// any retired-by-grow ones still holding PinnedBytes readers — and closes
// the backing file. Callers must ensure no ReadTxn/WriteTxn is still in
// use across Close.
func (e *Engine) Close() error {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	if e.mapped != nil {
		if err := e.mapped.Unmap(); err != nil {
			return fmt.Errorf("%w: unmap: %v", arbors.ErrStorage, err)
		}
		e.mapped = nil
	}
	for i, m := range e.retired {
		if err := m.Unmap(); err != nil {
			return fmt.Errorf("%w: unmap retired mapping %d: %v", arbors.ErrStorage, i, err)
		}
	}
	e.retired = nil
	return e.file.Close()
}

func (e *Engine) mapLocked() error {
	m, err := mmap.Map(e.file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: mmap: %v", arbors.ErrStorage, err)
	}
	e.mapped = m
	e.capacity = int64(len(m))
	return nil
}

// growLocked extends the backing file by at least extra bytes and maps a
// fresh, larger mapping over it. Callers must hold mapMu for writing.
//
// It deliberately does NOT unmap the current mapping before growing.
// PinnedBytes handed out of earlier appendLocked calls — and already
// committed into a generation's storedBatch.frame, or wrapped by
// NewArrowBuffer/NewTypedBuffer and held by a live ReadTxn — are Go slices
// over that mapping's backing array. Truncating a file to a larger size
// never invalidates an existing mmap of it, but re-mmap-ing is not
// guaranteed to return the same address; unmapping the old region while
// those slices are still reachable would make them dangling pointers into
// unmapped memory (a future munmap could even hand the address range back
// to an unrelated allocation). So superseded mappings are parked in
// e.retired and only unmapped at Close, once no ReadTxn can still be
// dereferencing them.
func (e *Engine) growLocked(extra int64) error {
	oldCapacity := e.capacity
	newSize := oldCapacity + extra
	if newSize < e.used+extra {
		newSize = e.used + extra
	}
	if err := e.file.Truncate(newSize); err != nil {
		return fmt.Errorf("%w: truncate to %d: %v", arbors.ErrStorage, newSize, err)
	}
	if e.mapped != nil {
		e.retired = append(e.retired, e.mapped)
		e.mapped = nil
	}
	return e.mapLocked()
}

// appendLocked copies b into the mapped region, growing it first if
// needed, and returns a PinnedBytes view of the written bytes. Callers
// must hold writeMu; appendLocked takes mapMu itself.
func (e *Engine) appendLocked(b []byte) (PinnedBytes, error) {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	needed := e.used + int64(len(b))
	if needed > e.capacity {
		grow := e.opts.MmapGrowIncrement
		if shortfall := needed - e.capacity; grow < shortfall {
			grow = shortfall
		}
		if err := e.growLocked(grow); err != nil {
			return PinnedBytes{}, err
		}
	}
	start := e.used
	copy(e.mapped[start:], b)
	e.used += int64(len(b))
	return PinnedBytes{data: e.mapped[start:e.used]}, nil
}

// BeginWrite acquires the engine's exclusive write lock and returns a
// WriteTxn bound to it (spec §4.6 "A write transaction is exclusive
// process-wide; it does not block readers (MVCC)").
func (e *Engine) BeginWrite() *WriteTxn {
	e.writeMu.Lock()
	return &WriteTxn{engine: e}
}

// BeginRead pins the current latest generation of every known arbor_name,
// returning a ReadTxn that observes a consistent snapshot even if later
// writes commit new generations (spec §4.6 "reads see a consistent
// snapshot").
func (e *Engine) BeginRead() *ReadTxn {
	e.arborsMu.RLock()
	defer e.arborsMu.RUnlock()
	pins := make(map[string]uint64, len(e.arbors))
	for name, ent := range e.arbors {
		ent.mu.RLock()
		pins[name] = ent.latest
		ent.mu.RUnlock()
	}
	return &ReadTxn{engine: e, pins: pins}
}

// encodeAndAppend materializes the v2 frame bytes for one Arbor batch and
// appends it to the backing file, without installing it into any
// generation (that happens at Commit).
func (e *Engine) encodeAndAppend(sub *arbors.Arbor) (storedBatch, error) {
	frame, err := codec.Encode(sub)
	if err != nil {
		return storedBatch{}, err
	}
	pinned, err := e.appendLocked(frame)
	if err != nil {
		return storedBatch{}, err
	}
	return storedBatch{frame: pinned}, nil
}
