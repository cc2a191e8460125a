package arbors

import (
	"fmt"
	"sort"

	"github.com/arbors/arbors/schema"
)

// Arbor is a columnar, depth-first-ordered tree store for one or more
// root documents (spec §3.3). It owns a dense node table, an ordered list
// of root node ids (one per source document), a string interner, eight
// primitive value pools, and an optional schema handle describing the
// data's shape.
//
// An Arbor handle is never mutated in place once it has been produced for
// the query layer (spec §3.3 "Immutable handle"); transforms always
// produce a new Arbor, possibly sharing its pools and interner by
// reference.
type Arbor struct {
	Nodes    []Node
	Roots    []NodeID
	Interner *Interner
	Pools    *Pools
	Schema   *schema.Registry // nil when the arbor was built without a schema

	// LoadedPools is nil for a canonical, fully-loaded Arbor. A non-nil
	// value marks this Arbor as a projection view produced by
	// view-decode-with-plan: pools outside the plan were never decoded
	// and accessing them must fail loudly (spec §3.3, §4.5, §4.8).
	LoadedPools *DecodePlan
}

// NewArbor returns an empty, fully-loaded Arbor (LoadedPools == nil) ready
// to be filled in by a parser.
func NewArbor() *Arbor {
	return &Arbor{
		Interner: NewInterner(),
		Pools:    NewPools(),
	}
}

// Len returns the number of root documents.
func (a *Arbor) Len() int { return len(a.Roots) }

// Get returns the root node id of the i-th original document, regardless
// of any view transform applied to this Arbor (spec §3.3 "Root
// stability"). If i is out of range it returns NoNode and an error
// wrapping ErrIndexOutOfBounds.
func (a *Arbor) Get(i int) (NodeID, error) {
	if i < 0 || i >= len(a.Roots) {
		return NoNode, fmt.Errorf("%w: root index %d (len %d)", ErrIndexOutOfBounds, i, len(a.Roots))
	}
	return a.Roots[i], nil
}

// Node returns the Node record for id.
func (a *Arbor) Node(id NodeID) Node {
	return a.Nodes[id]
}

// Children returns the child node ids of a container node, in their
// stored DFS-contiguous order (ascending key_id for Object children).
func (a *Arbor) Children(id NodeID) []NodeID {
	n := a.Nodes[id]
	if !n.Type.IsContainer() || n.ChildrenCount == 0 {
		return nil
	}
	out := make([]NodeID, n.ChildrenCount)
	for i := range out {
		out[i] = NodeID(int32(n.ChildrenStart) + int32(i))
	}
	return out
}

// GetField looks up an object child by property name via binary search
// over the sorted-by-key_id children range (spec §3.3 "Sorted keys",
// §8 "O(log n)"). It returns (NoNode, false) if obj is not an Object node
// or name is not one of its children.
func (a *Arbor) GetField(obj NodeID, name string) (NodeID, bool) {
	n := a.Nodes[obj]
	if n.Type != Object || n.ChildrenCount == 0 {
		return NoNode, false
	}
	keyID, ok := a.Interner.Get(name)
	if !ok {
		return NoNode, false
	}
	start := int32(n.ChildrenStart)
	count := int32(n.ChildrenCount)
	lo, hi := 0, int(count)
	for lo < hi {
		mid := (lo + hi) / 2
		child := a.Nodes[NodeID(start+int32(mid))]
		switch {
		case child.KeyID == keyID:
			return NodeID(start + int32(mid)), true
		case child.KeyID < keyID:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return NoNode, false
}

// GetPath resolves a dotted path (e.g. "user.name") starting at root
// against nested Object children. It returns (NoNode, false) if any
// segment is missing or traverses through a non-object.
func (a *Arbor) GetPath(root NodeID, path string) (NodeID, bool) {
	cur := root
	seg := ""
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if seg == "" {
				return NoNode, false
			}
			next, ok := a.GetField(cur, seg)
			if !ok {
				return NoNode, false
			}
			cur = next
			seg = ""
			continue
		}
		seg += string(path[i])
	}
	return cur, true
}

// IsNull reports whether id names a Null node.
func (a *Arbor) IsNull(id NodeID) bool {
	return a.Nodes[id].Type == Null
}

// assertPoolLoaded panics with ErrPoolNotLoaded if this Arbor is a
// projection view that did not decode pt. This is the single guard point
// mandated by spec §4.8/§4.5/§9: projection-pushdown correctness is
// enforced as a deterministic programming-error panic, not a recoverable
// condition.
func (a *Arbor) assertPoolLoaded(pt PoolType) {
	if a.LoadedPools != nil && !a.LoadedPools.Has(pt) {
		panic(fmt.Errorf("%w: pool %s was excluded by this view's decode plan", ErrPoolNotLoaded, pt))
	}
}

// GetBool returns a node's boolean value. Panics if id is not a Bool node
// or if the Bool pool was excluded from this Arbor's projection view.
func (a *Arbor) GetBool(id NodeID) bool {
	a.assertPoolLoaded(PoolBool)
	v, _ := a.Pools.Bools.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// GetInt64 returns a node's int64 value.
func (a *Arbor) GetInt64(id NodeID) int64 {
	a.assertPoolLoaded(PoolInt64)
	v, _ := a.Pools.Int64s.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// GetFloat64 returns a node's float64 value.
func (a *Arbor) GetFloat64(id NodeID) float64 {
	a.assertPoolLoaded(PoolFloat64)
	v, _ := a.Pools.Float64s.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// GetString returns a node's string value.
func (a *Arbor) GetString(id NodeID) string {
	a.assertPoolLoaded(PoolString)
	v, _ := a.Pools.Strings.Get(int(a.Nodes[id].PoolIndex))
	return string(v)
}

// GetBinary returns a node's raw binary value.
func (a *Arbor) GetBinary(id NodeID) []byte {
	a.assertPoolLoaded(PoolBinary)
	v, _ := a.Pools.Binaries.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// GetDateDays returns a node's Date value as days since the Unix epoch.
func (a *Arbor) GetDateDays(id NodeID) int32 {
	a.assertPoolLoaded(PoolDate)
	v, _ := a.Pools.Dates.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// GetDateTimeMicros returns a node's DateTime value as microseconds since
// the Unix epoch.
func (a *Arbor) GetDateTimeMicros(id NodeID) int64 {
	a.assertPoolLoaded(PoolDateTime)
	v, _ := a.Pools.DateTimes.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// GetDurationMicros returns a node's Duration value in microseconds.
func (a *Arbor) GetDurationMicros(id NodeID) int64 {
	a.assertPoolLoaded(PoolDuration)
	v, _ := a.Pools.Durations.Get(int(a.Nodes[id].PoolIndex))
	return v
}

// CheckInvariants verifies the universal invariants from spec §8 over the
// whole node table: DFS-contiguity of children ranges and ascending
// key_id order among adjacent object children. It is called from tests,
// not from the query path.
func (a *Arbor) CheckInvariants() error {
	for id, n := range a.Nodes {
		if !n.Type.IsContainer() {
			continue
		}
		if n.ChildrenCount == 0 {
			continue
		}
		start := int(n.ChildrenStart)
		count := int(n.ChildrenCount)
		if start < 0 || start+count > len(a.Nodes) {
			return fmt.Errorf("node %d: children range [%d,%d) out of bounds", id, start, start+count)
		}
		if n.Type == Object {
			for i := start + 1; i < start+count; i++ {
				if a.Nodes[i].KeyID < a.Nodes[i-1].KeyID {
					return fmt.Errorf("node %d: children not sorted by key_id at offset %d", id, i)
				}
			}
		}
	}
	return nil
}

// sortObjectChildrenByKey sorts a slice of Node in place by ascending
// KeyID. Nothing in this package calls it; the parser restores the
// sorted-keys invariant with its own sortChildrenByKey.
func sortObjectChildrenByKey(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].KeyID < nodes[j].KeyID
	})
}
