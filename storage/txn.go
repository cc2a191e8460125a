package storage

import (
	"fmt"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/codec"
	"github.com/arbors/arbors/schema"
)

// WriteTxn is an exclusive write transaction. Put stages batches in
// memory and on the backing file; Commit installs a new generation for
// name atomically. A WriteTxn must be committed or aborted exactly once.
type WriteTxn struct {
	engine *Engine
	done   bool

	name     string
	interner *arbors.Interner
	schema   *schema.Registry
	batches  []storedBatch
}

// Put chunks a into BatchSize-tree batches, encodes and appends each to
// the backing file, and stages them for the next Commit under name. Put
// may be called at most once per WriteTxn (one WriteTxn installs one
// arbor_name's new generation).
func (wt *WriteTxn) Put(name string, a *arbors.Arbor) error {
	if wt.done {
		return fmt.Errorf("%w: write transaction already committed or aborted", arbors.ErrStorage)
	}
	if wt.name != "" {
		return fmt.Errorf("%w: write transaction already staged a put for %q", arbors.ErrStorage, wt.name)
	}

	batchSize := wt.engine.opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEngineOptions().BatchSize
	}
	var staged []storedBatch
	for lo := 0; lo < a.Len(); lo += batchSize {
		hi := lo + batchSize
		if hi > a.Len() {
			hi = a.Len()
		}
		sub := sliceBatch(a, lo, hi)
		sb, err := wt.engine.encodeAndAppend(sub)
		if err != nil {
			return err
		}
		staged = append(staged, sb)
	}

	wt.name = name
	wt.interner = a.Interner
	wt.schema = a.Schema
	wt.batches = staged
	return nil
}

// Commit installs the staged put as a new generation for its arbor_name,
// atomically from the perspective of any ReadTxn (spec §4.6 "commit()
// installs atomically or aborts").
func (wt *WriteTxn) Commit() error {
	if wt.done {
		return fmt.Errorf("%w: write transaction already committed or aborted", arbors.ErrStorage)
	}
	wt.done = true
	defer wt.engine.writeMu.Unlock()

	if wt.name == "" {
		return nil
	}

	wt.engine.arborsMu.Lock()
	ent, ok := wt.engine.arbors[wt.name]
	if !ok {
		ent = &arborEntry{gens: make(map[uint64][]storedBatch)}
		wt.engine.arbors[wt.name] = ent
	}
	wt.engine.arborsMu.Unlock()

	ent.mu.Lock()
	newGen := ent.latest + 1
	if ent.gens == nil {
		ent.gens = make(map[uint64][]storedBatch)
	}
	ent.gens[newGen] = wt.batches
	ent.latest = newGen
	ent.interner = wt.interner
	ent.schema = wt.schema
	ent.mu.Unlock()

	wt.engine.cache.invalidateName(wt.name)
	wt.engine.logger.Info("committed generation", "arbor_name", wt.name, "generation", newGen, "batches", len(wt.batches))
	return nil
}

// Abort releases the write lock without installing any generation. The
// bytes Put already appended to the backing file remain, as dead space —
// matching a log-structured store's append-only write path, where an
// aborted write is simply never referenced by any generation pointer.
func (wt *WriteTxn) Abort() {
	if wt.done {
		return
	}
	wt.done = true
	wt.engine.writeMu.Unlock()
}

// ReadTxn pins a generation per arbor_name as of BeginRead, so every
// GetBatched call within the same ReadTxn observes one consistent snapshot
// even if later writes commit (spec §4.6 "reads see a consistent
// snapshot").
type ReadTxn struct {
	engine *Engine
	pins   map[string]uint64
}

// GetBatched exposes per-batch access to name's pinned generation. Returns
// false if name was never committed before this ReadTxn began.
func (rt *ReadTxn) GetBatched(name string) (*BatchedArbor, bool) {
	gen, ok := rt.pins[name]
	if !ok {
		return nil, false
	}
	rt.engine.arborsMu.RLock()
	ent, ok := rt.engine.arbors[name]
	rt.engine.arborsMu.RUnlock()
	if !ok {
		return nil, false
	}

	ent.mu.RLock()
	batches := ent.gens[gen]
	interner := ent.interner
	sch := ent.schema
	ent.mu.RUnlock()

	return &BatchedArbor{
		engine:     rt.engine,
		name:       name,
		generation: gen,
		batches:    batches,
		interner:   interner,
		schema:     sch,
	}, true
}

// BatchedArbor exposes per-batch decode access to one pinned generation of
// one arbor_name (spec §4.6 "get_batched(name) -> Option<BatchedArbor>").
type BatchedArbor struct {
	engine     *Engine
	name       string
	generation uint64
	batches    []storedBatch
	interner   *arbors.Interner
	schema     *schema.Registry
}

// Len returns the number of batches in this generation.
func (b *BatchedArbor) Len() int { return len(b.batches) }

// Schema returns the schema this generation was written with, or nil if
// it was committed without one. Used by the query executor to resolve
// projection pools before decoding.
func (b *BatchedArbor) Schema() *schema.Registry { return b.schema }

// Batch fully decodes batch i (DecodePlanAll), using the batch cache.
func (b *BatchedArbor) Batch(i int) (*arbors.Arbor, error) {
	return b.BatchWithPlan(i, arbors.DecodePlanAll)
}

// BatchWithPlan decodes batch i under plan. Only DecodePlanAll requests
// consult or populate the batch cache (spec §4.6 "full decodes only");
// narrower plans always decode directly.
func (b *BatchedArbor) BatchWithPlan(i int, plan arbors.DecodePlan) (*arbors.Arbor, error) {
	if i < 0 || i >= len(b.batches) {
		return nil, fmt.Errorf("%w: batch index %d (len %d)", arbors.ErrIndexOutOfBounds, i, len(b.batches))
	}

	key := cacheKey{name: b.name, generation: b.generation, batchIndex: i}
	if plan.IsAll() {
		if a, ok := b.engine.cache.get(key); ok {
			b.engine.stats.cacheHits.Add(1)
			return a, nil
		}
	}

	view, err := codec.DecodeWithPlan(b.batches[i].frame.Bytes(), plan)
	if err != nil {
		return nil, err
	}
	b.engine.stats.recordDecode(plan)

	a, err := view.ToArbor(b.interner, b.schema)
	if err != nil {
		return nil, err
	}

	if plan.IsAll() {
		b.engine.stats.cacheMisses.Add(1)
		b.engine.cache.put(key, a)
	}
	return a, nil
}
