package storage

import (
	"fmt"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arbors/arbors"
)

// PinnedBytes is a byte slice over a memory-mapped region (spec §4.6
// "Zero-copy buffer ownership"). Unlike ordinary heap memory, reachability
// alone does not keep this backing array valid: the region stays mapped
// only because the Engine that produced it (see growLocked) never unmaps a
// mapping while any generation committed against it can still be read —
// superseded mappings are parked until Close, not munmap'd out from under
// a live slice. release, if set, is called when the last consumer is done
// with the region; it exists for callers that want an explicit, eager
// signal (e.g. a batch cache evicting an entry), not to control the
// mapping's lifetime.
type PinnedBytes struct {
	data    []byte
	release func()
}

// Bytes returns the pinned byte slice. Must not be mutated.
func (p PinnedBytes) Bytes() []byte { return p.data }

// Release runs the pin's release callback, if any. It is advisory only —
// the underlying mapping is reclaimed by the Engine at Close, not here.
func (p PinnedBytes) Release() {
	if p.release != nil {
		p.release()
	}
}

// NewArrowBuffer wraps p as an Arrow-compatible memory.Buffer without
// copying: the allocation owner is p itself (held by the returned Buffer's
// closure over the Go slice), mirroring the Arc<PinnedBytes> ownership
// spec §4.6/§9 describe, adapted to Go's GC-backed lifetime model rather
// than Rust's explicit reference counting.
func NewArrowBuffer(p PinnedBytes) *memory.Buffer {
	return memory.NewBufferBytes(p.data)
}

// NewTypedBuffer validates that p's byte region is usable as a buffer of
// elemSize-byte elements — aligned and evenly divisible — before wrapping
// it, mirroring the typed ScalarBuffer<T> constructor's validation (spec
// §4.6 "additionally validate alignment... and length divisibility").
func NewTypedBuffer(p PinnedBytes, elemSize int) (*memory.Buffer, error) {
	if elemSize <= 0 {
		return nil, fmt.Errorf("%w: element size %d is not positive", arbors.ErrBufferLimitExceeded, elemSize)
	}
	if len(p.data)%elemSize != 0 {
		return nil, fmt.Errorf("%w: buffer of %d bytes is not divisible by element size %d", arbors.ErrBufferLimitExceeded, len(p.data), elemSize)
	}
	if len(p.data) > 0 && uintptr(unsafe.Pointer(&p.data[0]))%uintptr(elemSize) != 0 {
		return nil, fmt.Errorf("%w: buffer start is not aligned to element size %d", arbors.ErrBufferLimitExceeded, elemSize)
	}
	return NewArrowBuffer(p), nil
}
