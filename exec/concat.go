package exec

import "github.com/arbors/arbors"

// concatArbors merges a sequence of Arbors sharing one interner (as every
// batch of one stored generation does, per storage.Engine's per-
// arbor_name interner) into a single queryable Arbor, rebasing node
// references and pool indices. This is the query-side inverse of
// storage.sliceBatch: that function carves one combined Arbor into
// self-contained batches; this one reassembles them so the executor can
// address every tree by a single root index, as spec §4.8 assumes a
// plan has one addressable root.
func concatArbors(list []*arbors.Arbor) *arbors.Arbor {
	if len(list) == 0 {
		return arbors.NewArbor()
	}
	if len(list) == 1 {
		return list[0]
	}

	out := &arbors.Arbor{Interner: list[0].Interner, Schema: list[0].Schema, Pools: arbors.NewPools()}
	for _, a := range list {
		nodeOffset := int32(len(out.Nodes))

		var base [8]int32
		base[arbors.PoolBool] = appendFixed(out.Pools.Bools, a.Pools.Bools)
		base[arbors.PoolInt64] = appendFixed(out.Pools.Int64s, a.Pools.Int64s)
		base[arbors.PoolFloat64] = appendFixed(out.Pools.Float64s, a.Pools.Float64s)
		base[arbors.PoolString] = appendVariable(out.Pools.Strings, a.Pools.Strings)
		base[arbors.PoolDate] = appendFixed(out.Pools.Dates, a.Pools.Dates)
		base[arbors.PoolDateTime] = appendFixed(out.Pools.DateTimes, a.Pools.DateTimes)
		base[arbors.PoolDuration] = appendFixed(out.Pools.Durations, a.Pools.Durations)
		base[arbors.PoolBinary] = appendVariable(out.Pools.Binaries, a.Pools.Binaries)

		for _, n := range a.Nodes {
			nn := n
			if nn.Parent != arbors.NoNode {
				nn.Parent = arbors.NodeID(int32(nn.Parent) + nodeOffset)
			}
			if nn.Type.IsContainer() && nn.ChildrenCount > 0 {
				nn.ChildrenStart += nodeOffset
			}
			if nn.Type.HasPool() {
				pt, _ := arbors.PoolTypeFor(nn.Type)
				nn.PoolIndex += base[pt]
			}
			out.Nodes = append(out.Nodes, nn)
		}
		for _, r := range a.Roots {
			out.Roots = append(out.Roots, arbors.NodeID(int32(r)+nodeOffset))
		}
	}
	return out
}

func appendFixed[T any](dst *arbors.FixedPool[T], src *arbors.FixedPool[T]) int32 {
	base := int32(dst.Len())
	for i := 0; i < src.Len(); i++ {
		v, ok := src.Get(i)
		if ok {
			dst.Append(v)
		} else {
			dst.AppendNull()
		}
	}
	return base
}

func appendVariable(dst *arbors.VariablePool, src *arbors.VariablePool) int32 {
	base := int32(dst.Len())
	for i := 0; i < src.Len(); i++ {
		v, ok := src.Get(i)
		if ok {
			dst.Append(v)
		} else {
			dst.AppendNull()
		}
	}
	return base
}

// sliceByIndices builds a fresh, self-contained Arbor containing exactly
// the roots named by indices, in that order (spec §4.8 "Materialization
// ... slices arbor by indices"). Indices may repeat or be out of their
// original ascending order (e.g. after Sort/Shuffle), unlike
// storage.sliceBatch's contiguous-range assumption, so this walks each
// root's subtree independently via a small recursive copy instead of a
// single linear scan.
func sliceByIndices(a *arbors.Arbor, indices []int) *arbors.Arbor {
	out := &arbors.Arbor{Interner: a.Interner, Schema: a.Schema, Pools: arbors.NewPools()}
	for _, idx := range indices {
		root := a.Roots[idx]
		newRoot := copySubtree(a, out, root, arbors.NoNode)
		out.Roots = append(out.Roots, newRoot)
	}
	return out
}

// copySubtree deep-copies the subtree rooted at src (in a) into dst,
// appending pool entries and node records, and returns the new node id.
func copySubtree(a, dst *arbors.Arbor, src arbors.NodeID, newParent arbors.NodeID) arbors.NodeID {
	n := a.Nodes[src]
	nn := arbors.Node{Type: n.Type, KeyID: n.KeyID, Parent: newParent}

	if n.Type.HasPool() {
		pt, _ := arbors.PoolTypeFor(n.Type)
		nn.PoolIndex = copyPoolEntry(a, dst, pt, n.PoolIndex)
	}

	newID := arbors.NodeID(len(dst.Nodes))
	dst.Nodes = append(dst.Nodes, nn)

	if n.Type.IsContainer() && n.ChildrenCount > 0 {
		start := int32(len(dst.Nodes))
		children := a.Children(src)
		for _, c := range children {
			copySubtree(a, dst, c, newID)
		}
		dst.Nodes[newID].ChildrenStart = start
		dst.Nodes[newID].ChildrenCount = n.ChildrenCount
	}
	return newID
}

func copyPoolEntry(a, dst *arbors.Arbor, pt arbors.PoolType, idx int32) int32 {
	switch pt {
	case arbors.PoolBool:
		v, ok := a.Pools.Bools.Get(int(idx))
		return appendOne(dst.Pools.Bools, v, ok)
	case arbors.PoolInt64:
		v, ok := a.Pools.Int64s.Get(int(idx))
		return appendOne(dst.Pools.Int64s, v, ok)
	case arbors.PoolFloat64:
		v, ok := a.Pools.Float64s.Get(int(idx))
		return appendOne(dst.Pools.Float64s, v, ok)
	case arbors.PoolString:
		v, ok := a.Pools.Strings.Get(int(idx))
		return appendOneVariable(dst.Pools.Strings, v, ok)
	case arbors.PoolDate:
		v, ok := a.Pools.Dates.Get(int(idx))
		return appendOne(dst.Pools.Dates, v, ok)
	case arbors.PoolDateTime:
		v, ok := a.Pools.DateTimes.Get(int(idx))
		return appendOne(dst.Pools.DateTimes, v, ok)
	case arbors.PoolDuration:
		v, ok := a.Pools.Durations.Get(int(idx))
		return appendOne(dst.Pools.Durations, v, ok)
	case arbors.PoolBinary:
		v, ok := a.Pools.Binaries.Get(int(idx))
		return appendOneVariable(dst.Pools.Binaries, v, ok)
	default:
		return 0
	}
}

func appendOne[T any](dst *arbors.FixedPool[T], v T, ok bool) int32 {
	if ok {
		return int32(dst.Append(v))
	}
	return int32(dst.AppendNull())
}

func appendOneVariable(dst *arbors.VariablePool, v []byte, ok bool) int32 {
	if ok {
		return int32(dst.Append(v))
	}
	return int32(dst.AppendNull())
}
