// Package exec implements the physical executor: it evaluates a
// LogicalPlan against an in-memory or stored source, producing
// PhysicalResult values and materializing them into queryable Arbors
// (spec §4.8).
package exec

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// IndexSet is an ordered sequence of tree indices relative to some root
// (spec §4.8, §9 "Index-set arithmetic"). Two representations coexist:
// a plain slice for small, arbitrarily-ordered result sets (a selective
// Filter, a Shuffle permutation), and a roaring-bitmap-backed set for
// large near-full memberships produced by an unfiltered scan, where a
// plain []int of the same size would cost much more memory for no
// benefit. Iteration order for the dense representation is always
// ascending index order; only the sparse representation can hold an
// arbitrary permutation (Shuffle always uses Sparse for this reason —
// see DESIGN.md "IndexSet representation split").
type IndexSet interface {
	Len() int
	At(i int) int
	ToSlice() []int
}

// Sparse is an explicitly ordered index list.
type Sparse []int

func (s Sparse) Len() int        { return len(s) }
func (s Sparse) At(i int) int    { return s[i] }
func (s Sparse) ToSlice() []int  { return []int(s) }

// Dense is a roaring-bitmap-backed ascending index set, used for large
// memberships where order is always the natural ascending scan order.
type Dense struct {
	bm  *roaring.Bitmap
	arr []int
}

// NewDense builds a Dense set covering every index in [0, n).
func NewDense(n int) *Dense {
	bm := roaring.New()
	for i := 0; i < n; i++ {
		bm.Add(uint32(i))
	}
	return &Dense{bm: bm}
}

// NewDenseFromSlice builds a Dense set from an explicit (ascending)
// index slice.
func NewDenseFromSlice(indices []int) *Dense {
	bm := roaring.New()
	for _, i := range indices {
		bm.Add(uint32(i))
	}
	return &Dense{bm: bm}
}

func (d *Dense) ensure() {
	if d.arr != nil {
		return
	}
	raw := d.bm.ToArray()
	d.arr = make([]int, len(raw))
	for i, v := range raw {
		d.arr[i] = int(v)
	}
}

func (d *Dense) Len() int { return int(d.bm.GetCardinality()) }

func (d *Dense) At(i int) int {
	d.ensure()
	return d.arr[i]
}

func (d *Dense) ToSlice() []int {
	d.ensure()
	return d.arr
}

// Contains reports whether idx is a member.
func (d *Dense) Contains(idx int) bool {
	return d.bm.Contains(uint32(idx))
}
