package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/parser"
	"github.com/arbors/arbors/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Compile(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer"},
		},
		"required": []any{"name"},
	})
	require.NoError(t, err)
	return reg
}

func testArbor(t *testing.T, reg *schema.Registry, docs ...string) *arbors.Arbor {
	t.Helper()
	raw := make([][]byte, len(docs))
	for i, doc := range docs {
		raw[i] = []byte(doc)
	}
	a, err := parser.ParseDocuments(raw, reg)
	require.NoError(t, err)
	return a
}

func openEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	opts := DefaultEngineOptions()
	opts.BatchSize = 2
	e, err := NewEngine(filepath.Join(dir, "arbors.db"), opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestPutCommitGetBatchedRoundTrip(t *testing.T) {
	e := openEngine(t)
	reg := testRegistry(t)
	a := testArbor(t, reg, `{"name":"ada","age":36}`, `{"name":"lin","age":40}`, `{"name":"grace","age":45}`)

	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	ba, ok := rt.GetBatched("people")
	require.True(t, ok)
	require.Equal(t, 2, ba.Len())

	b0, err := ba.Batch(0)
	require.NoError(t, err)
	require.Equal(t, 2, b0.Len())

	b1, err := ba.Batch(1)
	require.NoError(t, err)
	require.Equal(t, 1, b1.Len())
}

func TestOldGenerationSurvivesMmapGrowth(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultEngineOptions()
	opts.BatchSize = 1
	opts.MmapGrowIncrement = 64 // force a grow on nearly every commit
	e, err := NewEngine(filepath.Join(dir, "arbors.db"), opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })

	reg := testRegistry(t)

	first := testArbor(t, reg, `{"name":"ada","age":36}`)
	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", first))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	ba, ok := rt.GetBatched("people")
	require.True(t, ok)

	// Commit many more generations, each large enough on its own to force
	// growLocked to run repeatedly, while rt still pins the first
	// generation. Before the mmap-retention fix this read the unmapped
	// memory behind an earlier mapping once growLocked replaced it.
	for i := 0; i < 64; i++ {
		sub := testArbor(t, reg, `{"name":"grace","age":45}`, `{"name":"lin","age":40}`)
		wt := e.BeginWrite()
		require.NoError(t, wt.Put("people", sub))
		require.NoError(t, wt.Commit())
	}

	b0, err := ba.Batch(0)
	require.NoError(t, err)
	require.Equal(t, 1, b0.Len())
	root, err := b0.Get(0)
	require.NoError(t, err)
	id, ok := b0.GetField(root, "name")
	require.True(t, ok)
	require.Equal(t, "ada", b0.GetString(id))
}

func TestGetBatchedUnknownName(t *testing.T) {
	e := openEngine(t)
	rt := e.BeginRead()
	_, ok := rt.GetBatched("nope")
	require.False(t, ok)
}

func TestAbortDoesNotInstallGeneration(t *testing.T) {
	e := openEngine(t)
	reg := testRegistry(t)
	a := testArbor(t, reg, `{"name":"ada","age":36}`)

	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	wt.Abort()

	rt := e.BeginRead()
	_, ok := rt.GetBatched("people")
	require.False(t, ok)
}

func TestBatchCacheHitsOnlyOnFullDecode(t *testing.T) {
	e := openEngine(t)
	reg := testRegistry(t)
	a := testArbor(t, reg, `{"name":"ada","age":36}`)

	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	ba, ok := rt.GetBatched("people")
	require.True(t, ok)

	_, err := ba.Batch(0)
	require.NoError(t, err)
	before := e.Stats()
	require.Equal(t, uint64(0), before.BatchCacheHits)

	_, err = ba.Batch(0)
	require.NoError(t, err)
	after := e.Stats()
	require.Equal(t, before.BatchCacheMisses, after.BatchCacheMisses)
	require.Equal(t, uint64(1), after.BatchCacheHits)
}

func TestNarrowPlanBypassesCacheAndDoesNotPoison(t *testing.T) {
	e := openEngine(t)
	reg := testRegistry(t)
	a := testArbor(t, reg, `{"name":"ada","age":36}`)

	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	ba, ok := rt.GetBatched("people")
	require.True(t, ok)

	narrow := arbors.DecodePlanNone.With(arbors.PoolString)
	view, err := ba.BatchWithPlan(0, narrow)
	require.NoError(t, err)
	require.NotNil(t, view)

	before := e.Stats()
	full, err := ba.Batch(0)
	require.NoError(t, err)
	require.NotNil(t, full)
	after := e.Stats()
	require.Equal(t, before.BatchCacheMisses+1, after.BatchCacheMisses)
	require.Greater(t, after.PoolsDecoded, before.PoolsDecoded)
}

func TestBatchWithPlanOutOfRange(t *testing.T) {
	e := openEngine(t)
	reg := testRegistry(t)
	a := testArbor(t, reg, `{"name":"ada","age":36}`)

	wt := e.BeginWrite()
	require.NoError(t, wt.Put("people", a))
	require.NoError(t, wt.Commit())

	rt := e.BeginRead()
	ba, ok := rt.GetBatched("people")
	require.True(t, ok)

	_, err := ba.Batch(5)
	require.ErrorIs(t, err, arbors.ErrIndexOutOfBounds)
}

func TestReadTxnPinsGenerationAcrossLaterCommit(t *testing.T) {
	e := openEngine(t)
	reg := testRegistry(t)
	a1 := testArbor(t, reg, `{"name":"ada","age":36}`)
	a2 := testArbor(t, reg, `{"name":"ada","age":36}`, `{"name":"lin","age":40}`)

	wt1 := e.BeginWrite()
	require.NoError(t, wt1.Put("people", a1))
	require.NoError(t, wt1.Commit())

	rt := e.BeginRead()

	wt2 := e.BeginWrite()
	require.NoError(t, wt2.Put("people", a2))
	require.NoError(t, wt2.Commit())

	ba, ok := rt.GetBatched("people")
	require.True(t, ok)
	require.Equal(t, 1, ba.Len())

	rt2 := e.BeginRead()
	ba2, ok := rt2.GetBatched("people")
	require.True(t, ok)
	require.Equal(t, 1, ba2.Len())
	b0, err := ba2.Batch(0)
	require.NoError(t, err)
	require.Equal(t, 2, b0.Len())
}

func TestOptionsTOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	content := "batch_size = 500\nmmap_grow_increment = 1048576\ncache_capacity = 16\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts, err := LoadOptionsTOML(path)
	require.NoError(t, err)
	require.Equal(t, 500, opts.BatchSize)
	require.Equal(t, int64(1048576), opts.MmapGrowIncrement)
	require.Equal(t, 16, opts.CacheCapacity)
}

func TestOptionsYAMLRoundTrip(t *testing.T) {
	content := []byte("batch_size: 250\nmmap_grow_increment: 2097152\ncache_capacity: 8\n")
	opts, err := LoadOptionsYAML(content)
	require.NoError(t, err)
	require.Equal(t, 250, opts.BatchSize)
	require.Equal(t, int64(2097152), opts.MmapGrowIncrement)
	require.Equal(t, 8, opts.CacheCapacity)
}
