package arbors

// InternId is a stable integer identifier for an interned string. IDs are
// assigned monotonically in first-intern order, starting at 0.
type InternId uint32

// Interner is a bijection between byte strings and stable InternIds. Each
// Arbor refers to exactly one Interner, which Arbors derived from one
// another (batches, slices, concatenations) share by reference; it is
// never mutated once the Arbor handle has been handed to a query.
type Interner struct {
	byID   []string
	byName map[string]InternId
}

// NewInterner returns an empty Interner ready to intern strings.
func NewInterner() *Interner {
	return &Interner{
		byName: make(map[string]InternId),
	}
}

// Intern returns the stable id for s, allocating a new one if s has not
// been seen before. Idempotent: interning the same string twice returns
// the same id.
func (in *Interner) Intern(s string) InternId {
	if id, ok := in.byName[s]; ok {
		return id
	}
	id := InternId(len(in.byID))
	in.byID = append(in.byID, s)
	in.byName[s] = id
	return id
}

// Get returns the id for s without inserting it, reporting false if s has
// never been interned.
func (in *Interner) Get(s string) (InternId, bool) {
	id, ok := in.byName[s]
	return id, ok
}

// Resolve returns the string for id. It panics if id is out of range,
// since an Arbor never constructs a Node with an id its own Interner did
// not assign.
func (in *Interner) Resolve(id InternId) string {
	return in.byID[id]
}

// Len returns the number of distinct interned strings.
func (in *Interner) Len() int {
	return len(in.byID)
}

// Strings returns the interned strings in id order. The returned slice
// must not be mutated by callers.
func (in *Interner) Strings() []string {
	return in.byID
}

// Clone returns an independent copy of in, safe to Intern new names into
// without mutating the original (spec §5 "The string interner inside an
// Arbor is exclusively owned by that Arbor"). Used when materializing a
// query result that adds fields not present in the source schema/data.
func (in *Interner) Clone() *Interner {
	out := &Interner{
		byID:   append([]string(nil), in.byID...),
		byName: make(map[string]InternId, len(in.byName)),
	}
	for k, v := range in.byName {
		out.byName[k] = v
	}
	return out
}
