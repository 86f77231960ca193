package node

import "sync"

// Group is a pure container node: no value of its own, only children.
// The root node (id 0) and the metadata group are both Groups.
type Group struct {
	Base

	mu       sync.RWMutex
	children []Node
	byName   map[string]Node
}

// NewGroup registers a group node. Groups default to any-read access;
// no access control is applied to groups themselves.
func NewGroup(id, parentID uint16, name string) *Group {
	return &Group{
		Base:   NewBase(id, parentID, name, AccessAnyRead, 0),
		byName: make(map[string]Node),
	}
}

func (g *Group) Kind() Kind { return KindGroup }

func (g *Group) AsParent() (Parent, bool) { return g, true }

// AddChild appends a node to this group's child list. It does not
// register the node in any registry; callers register separately and
// the registry calls AddChild when it discovers the parent/child
// relationship (possibly out of order).
func (g *Group) AddChild(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.children = append(g.children, n)
	g.byName[n.Name()] = n
}

// RemoveChild detaches a previously added child.
func (g *Group) RemoveChild(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range g.children {
		if c.ID() == n.ID() {
			g.children = append(g.children[:i], g.children[i+1:]...)
			break
		}
	}
	delete(g.byName, n.Name())
}

func (g *Group) Children() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, len(g.children))
	copy(out, g.children)
	return out
}

func (g *Group) FindChild(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byName[name]
	return n, ok
}
