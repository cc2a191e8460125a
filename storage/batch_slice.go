package storage

import (
	"math"

	"github.com/arbors/arbors"
)

// sliceBatch carves the roots in [rootLo, rootHi) out of a, rebasing node
// references and pool indices so the result is a self-contained Arbor
// (spec §3.6 "A stored Arbor is chunked into batches"). This is possible
// without copying the whole tree twice because reserve-then-fill parsing
// (spec §4.4) guarantees two invariants this function leans on: a root's
// entire subtree occupies a contiguous Nodes range, and the pool entries
// its subtree appended occupy a contiguous range of each pool's columns,
// since one root's subtree is always fully constructed before the next
// root's parsing begins.
func sliceBatch(a *arbors.Arbor, rootLo, rootHi int) *arbors.Arbor {
	if rootLo >= rootHi {
		return arbors.NewArbor()
	}
	nodesStart := int32(a.Roots[rootLo])
	var nodesEnd int32
	if rootHi < len(a.Roots) {
		nodesEnd = int32(a.Roots[rootHi])
	} else {
		nodesEnd = int32(len(a.Nodes))
	}

	var lo, hi [8]int32
	var seen [8]bool
	for i := range lo {
		lo[i] = math.MaxInt32
	}

	newNodes := make([]arbors.Node, nodesEnd-nodesStart)
	for i := nodesStart; i < nodesEnd; i++ {
		n := a.Nodes[i]
		if n.Parent != arbors.NoNode {
			n.Parent = arbors.NodeID(int32(n.Parent) - nodesStart)
		}
		if n.Type.IsContainer() && n.ChildrenCount > 0 {
			n.ChildrenStart -= nodesStart
		}
		if n.Type.HasPool() {
			pt, _ := arbors.PoolTypeFor(n.Type)
			idx := int(pt)
			if n.PoolIndex < lo[idx] {
				lo[idx] = n.PoolIndex
			}
			if n.PoolIndex > hi[idx] {
				hi[idx] = n.PoolIndex
			}
			seen[idx] = true
		}
		newNodes[i-nodesStart] = n
	}
	for i := range newNodes {
		n := &newNodes[i]
		if n.Type.HasPool() {
			pt, _ := arbors.PoolTypeFor(n.Type)
			n.PoolIndex -= lo[int(pt)]
		}
	}

	newRoots := make([]arbors.NodeID, rootHi-rootLo)
	for i := rootLo; i < rootHi; i++ {
		newRoots[i-rootLo] = arbors.NodeID(int32(a.Roots[i]) - nodesStart)
	}

	return &arbors.Arbor{
		Nodes:    newNodes,
		Roots:    newRoots,
		Interner: a.Interner,
		Pools:    slicePools(a.Pools, seen, lo, hi),
		Schema:   a.Schema,
	}
}

func slicePools(p *arbors.Pools, seen [8]bool, lo, hi [8]int32) *arbors.Pools {
	return &arbors.Pools{
		Bools:     sliceFixed(p.Bools, seen[arbors.PoolBool], lo[arbors.PoolBool], hi[arbors.PoolBool]),
		Int64s:    sliceFixed(p.Int64s, seen[arbors.PoolInt64], lo[arbors.PoolInt64], hi[arbors.PoolInt64]),
		Float64s:  sliceFixed(p.Float64s, seen[arbors.PoolFloat64], lo[arbors.PoolFloat64], hi[arbors.PoolFloat64]),
		Strings:   sliceVariable(p.Strings, seen[arbors.PoolString], lo[arbors.PoolString], hi[arbors.PoolString]),
		Dates:     sliceFixed(p.Dates, seen[arbors.PoolDate], lo[arbors.PoolDate], hi[arbors.PoolDate]),
		DateTimes: sliceFixed(p.DateTimes, seen[arbors.PoolDateTime], lo[arbors.PoolDateTime], hi[arbors.PoolDateTime]),
		Durations: sliceFixed(p.Durations, seen[arbors.PoolDuration], lo[arbors.PoolDuration], hi[arbors.PoolDuration]),
		Binaries:  sliceVariable(p.Binaries, seen[arbors.PoolBinary], lo[arbors.PoolBinary], hi[arbors.PoolBinary]),
	}
}

func sliceFixed[T any](p *arbors.FixedPool[T], present bool, lo, hi int32) *arbors.FixedPool[T] {
	if !present {
		return arbors.NewFixedPool[T]()
	}
	vals := append([]T(nil), p.Values()[lo:hi+1]...)
	return arbors.NewFixedPoolFromRaw(vals, p.Validity().Slice(int(lo), int(hi)+1))
}

func sliceVariable(p *arbors.VariablePool, present bool, lo, hi int32) *arbors.VariablePool {
	if !present {
		return arbors.NewVariablePool()
	}
	offs := p.Offsets()
	base := offs[lo]
	n := int(hi-lo) + 1
	newOffsets := make([]int32, n+1)
	for i := 0; i <= n; i++ {
		newOffsets[i] = offs[int(lo)+i] - base
	}
	values := append([]byte(nil), p.Values()[base:offs[hi+1]]...)
	return arbors.NewVariablePoolFromRaw(newOffsets, values, p.Validity().Slice(int(lo), int(hi)+1))
}
