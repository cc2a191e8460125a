package schema

// refState tracks a $defs entry through the three-phase cycle-safe
// resolution state machine (spec §3.4, §4.9): a definition is Unvisited
// until first referenced, InFlight while its body is being compiled (so a
// recursive $ref back to it resolves to the already-allocated placeholder
// instead of recursing forever), and Resolved once its StorageSchema has
// been filled in.
type refState int

const (
	unvisited refState = iota
	inFlight
	resolved
)

// refTracker holds the per-definition resolution bookkeeping used by the
// compiler while it walks $ref edges.
type refTracker struct {
	defs  map[string]any
	state map[string]refState
	ids   map[string]SchemaId
}

func newRefTracker(defs map[string]any) *refTracker {
	return &refTracker{
		defs:  defs,
		state: make(map[string]refState),
		ids:   make(map[string]SchemaId),
	}
}

// resolveRef returns the SchemaId for the local $defs entry named name,
// compiling its body on first reference. If name is already InFlight (a
// cycle through this definition), it returns the placeholder id allocated
// for it without recursing further — later writes via registry.set will
// still reach every holder of that id once the body finishes compiling.
func (c *compiler) resolveRef(name, path string) (SchemaId, error) {
	switch c.refs.state[name] {
	case resolved, inFlight:
		return c.refs.ids[name], nil
	}
	doc, ok := c.refs.defs[name]
	if !ok {
		return 0, &RefNotFoundError{Ref: "#/$defs/" + name, Path: path}
	}
	id := c.registry.allocate(StorageSchema{Type: StorageType{Kind: KindAny}})
	c.refs.ids[name] = id
	c.refs.state[name] = inFlight
	compiled, err := c.compileRootBody(doc, "#/$defs/"+name)
	if err != nil {
		return 0, err
	}
	c.registry.set(id, compiled)
	c.refs.state[name] = resolved
	return id, nil
}
