package exec

import (
	"fmt"
	"sort"

	"github.com/arbors/arbors"
	"github.com/arbors/arbors/expr"
)

// transformSpecForSelect and transformSpecForAddField convert a
// plan.LogicalPlan Select/AddFields node into its TransformSpec (spec §4.8 GLOSSARY "TransformSpec").
func transformSpecForSelect(fields []string) TransformSpec {
	return TransformSpec{Kind: TransformSelect, Fields: fields}
}

func transformSpecForAddField(name string, e *expr.Expr) TransformSpec {
	return TransformSpec{Kind: TransformAddField, FieldName: name, FieldExpr: e}
}

// materialize applies base+indices+transforms in order, producing a
// fresh self-contained Arbor (spec §4.8 "Materialization"). Select keeps
// fields of the running output; AddField evaluates its expression against
// the ORIGINAL source tree (base), not a partially-rebuilt copy, so it can
// only reference fields that existed in the source — chaining multiple
// AddFields that reference each other is out of scope (documented in
// DESIGN.md as a deliberate limitation, since the spec's example chains
// AddFields before Filter, never AddFields before AddFields).
func materialize(base *arbors.Arbor, indices []int, transforms []TransformSpec) (*arbors.Arbor, error) {
	sliced := sliceByIndices(base, indices)
	out := sliced
	for _, t := range transforms {
		var err error
		switch t.Kind {
		case TransformSelect:
			out = applySelect(sliced, out, t.Fields)
		case TransformAddField:
			out, err = applyAddField(sliced, out, t.FieldName, t.FieldExpr)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// applySelect rebuilds every root of prev (the transform chain's running
// output) keeping only the named fields as present on prev, so a field
// added by an earlier AddField transform can be selected. source is not
// read.
func applySelect(source, prev *arbors.Arbor, fields []string) *arbors.Arbor {
	out := &arbors.Arbor{Interner: prev.Interner, Schema: prev.Schema, Pools: arbors.NewPools()}
	for i := 0; i < prev.Len(); i++ {
		root, _ := prev.Get(i)
		newRoot := copySelectedFields(prev, out, root, fields)
		out.Roots = append(out.Roots, newRoot)
	}
	return out
}

func copySelectedFields(a, dst *arbors.Arbor, root arbors.NodeID, fields []string) arbors.NodeID {
	newRootID := arbors.NodeID(len(dst.Nodes))
	dst.Nodes = append(dst.Nodes, arbors.Node{Type: arbors.Object, Parent: arbors.NoNode, KeyID: arbors.NoIntern})

	type childInfo struct {
		keyID arbors.InternId
		srcID arbors.NodeID
	}
	var kids []childInfo
	for _, f := range fields {
		childID, ok := a.GetField(root, f)
		if !ok {
			continue
		}
		kids = append(kids, childInfo{a.Nodes[childID].KeyID, childID})
	}
	sort.Slice(kids, func(i, j int) bool { return kids[i].keyID < kids[j].keyID })

	start := int32(len(dst.Nodes))
	for _, k := range kids {
		copySubtree(a, dst, k.srcID, newRootID)
	}
	dst.Nodes[newRootID].ChildrenStart = start
	dst.Nodes[newRootID].ChildrenCount = int32(len(kids))
	return newRootID
}

// applyAddField rebuilds every root of prev, copying it wholesale and
// appending one new field computed by evaluating expression e against
// the ORIGINAL source tree (so the added value is computed from the
// real data, not from a half-built copy). Field names not already
// interned are interned into a fresh clone of prev's interner, since an
// Arbor's interner must never be mutated once handed to a query (spec §5).
func applyAddField(source, prev *arbors.Arbor, name string, e *expr.Expr) (*arbors.Arbor, error) {
	out := &arbors.Arbor{Interner: prev.Interner.Clone(), Schema: prev.Schema, Pools: arbors.NewPools()}
	keyID := out.Interner.Intern(name)

	for i := 0; i < prev.Len(); i++ {
		prevRoot, _ := prev.Get(i)
		sourceRoot, _ := source.Get(i)

		v, err := e.Eval(source, sourceRoot)
		if err != nil {
			return nil, fmt.Errorf("exec: evaluating added field %q: %w", name, err)
		}

		newRootID := arbors.NodeID(len(out.Nodes))
		out.Nodes = append(out.Nodes, arbors.Node{Type: arbors.Object, Parent: arbors.NoNode, KeyID: arbors.NoIntern})

		type child struct {
			keyID arbors.InternId
			copy  func() arbors.NodeID
		}
		var kids []child
		for _, c := range prev.Children(prevRoot) {
			c := c
			kids = append(kids, child{prev.Nodes[c].KeyID, func() arbors.NodeID { return copySubtree(prev, out, c, newRootID) }})
		}
		kids = append(kids, child{keyID, func() arbors.NodeID { return appendValueNode(out, v, keyID, newRootID) }})
		sort.Slice(kids, func(i, j int) bool { return kids[i].keyID < kids[j].keyID })

		start := int32(len(out.Nodes))
		for _, k := range kids {
			k.copy()
		}
		out.Nodes[newRootID].ChildrenStart = start
		out.Nodes[newRootID].ChildrenCount = int32(len(kids))
		out.Roots = append(out.Roots, newRootID)
	}
	return out, nil
}

// appendValueNode appends a scalar expr.Value as a new child node of
// parent, allocating its pool entry, and returns the new node id.
func appendValueNode(dst *arbors.Arbor, v expr.Value, keyID arbors.InternId, parent arbors.NodeID) arbors.NodeID {
	n := arbors.Node{KeyID: keyID, Parent: parent}
	switch v.Kind {
	case expr.KindNull:
		n.Type = arbors.Null
	case expr.KindBool:
		n.Type = arbors.Bool
		n.PoolIndex = int32(dst.Pools.Bools.Append(v.B))
	case expr.KindInt64:
		n.Type = arbors.Int64
		n.PoolIndex = int32(dst.Pools.Int64s.Append(v.I))
	case expr.KindFloat64:
		n.Type = arbors.Float64
		n.PoolIndex = int32(dst.Pools.Float64s.Append(v.F))
	case expr.KindString:
		n.Type = arbors.String
		n.PoolIndex = int32(dst.Pools.Strings.Append([]byte(v.S)))
	}
	id := arbors.NodeID(len(dst.Nodes))
	dst.Nodes = append(dst.Nodes, n)
	return id
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
