// Package registry implements the node repository: a bucketed,
// intrusively-linked node map with name/ID lookup, parent/child wiring,
// and subset iteration.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/thingset-go/thingset-go/pkg/node"
)

const bucketCount = 8

const (
	rootID     = 0
	metadataID = 0x1d
)

// Registry is a repository of nodes, addressable by ID or by
// slash-separated path. Each of the 8 buckets holds its members as a
// singly-linked list threaded through Node.Next/SetNext, avoiding a
// separate per-node allocation for list membership.
type Registry struct {
	mu      sync.RWMutex
	buckets [bucketCount]node.Node // head of each bucket's list

	root     *node.Group
	metadata *node.Group

	// orphans holds nodes registered before their declared parent
	// exists. When the parent later registers, it is spliced in as a
	// child via AddChild (if the parent is a *node.Group) and removed
	// from this map.
	orphans map[uint16][]node.Node
}

// New constructs an empty registry, pre-populated with the synthetic
// root (id 0) and metadata (id 0x1d) groups.
func New() *Registry {
	r := &Registry{
		root:     node.NewGroup(rootID, rootID, ""),
		metadata: node.NewGroup(metadataID, rootID, "_Metadata"),
		orphans:  make(map[uint16][]node.Node),
	}
	r.insertLocked(r.root)
	r.insertLocked(r.metadata)
	r.root.AddChild(r.metadata)
	return r
}

// Root returns the synthetic root group (id 0).
func (r *Registry) Root() *node.Group { return r.root }

// Metadata returns the synthetic metadata group (id 0x1d).
func (r *Registry) Metadata() *node.Group { return r.metadata }

func bucketIndex(id uint16) int { return int(id % bucketCount) }

// insertLocked threads n into its bucket's linked list. Caller holds mu.
func (r *Registry) insertLocked(n node.Node) {
	idx := bucketIndex(n.ID())
	n.SetNext(r.buckets[idx])
	r.buckets[idx] = n
}

// removeLocked unthreads n from its bucket. Caller holds mu.
func (r *Registry) removeLocked(n node.Node) {
	idx := bucketIndex(n.ID())
	cur := r.buckets[idx]
	if cur == nil {
		return
	}
	if cur.ID() == n.ID() {
		r.buckets[idx] = cur.Next()
		return
	}
	for cur.Next() != nil {
		if cur.Next().ID() == n.ID() {
			cur.SetNext(cur.Next().Next())
			return
		}
		cur = cur.Next()
	}
}

// Register adds n to the registry and, if its declared parent is
// already present and exposes AsParent, links it as a child. If the
// parent is not yet registered, n is held as an orphan until the
// parent arrives.
func (r *Registry) Register(n node.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findByIDLocked(n.ID()); existing != nil {
		return fmt.Errorf("registry: id %d already registered", n.ID())
	}

	r.insertLocked(n)

	if parent := r.findByIDLocked(n.ParentID()); parent != nil {
		r.linkChild(parent, n)
	} else if n.ID() != n.ParentID() {
		r.orphans[n.ParentID()] = append(r.orphans[n.ParentID()], n)
	}

	// n may itself be the parent other orphans were waiting for.
	if waiting, ok := r.orphans[n.ID()]; ok {
		for _, child := range waiting {
			r.linkChild(n, child)
		}
		delete(r.orphans, n.ID())
	}

	return nil
}

// linkChild attaches child to parent if parent exposes an AddChild
// method (currently only *node.Group does); other parent kinds
// (Function, RecordArray) build their child list at construction time
// and do not accept late registration.
func (r *Registry) linkChild(parent, child node.Node) {
	if g, ok := parent.(interface{ AddChild(node.Node) }); ok {
		g.AddChild(child)
	}
}

// Unregister removes n from the registry and, if its parent is a
// *node.Group, detaches it as a child.
func (r *Registry) Unregister(n node.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(n)
	if parent := r.findByIDLocked(n.ParentID()); parent != nil {
		if g, ok := parent.(interface{ RemoveChild(node.Node) }); ok {
			g.RemoveChild(n)
		}
	}
}

func (r *Registry) findByIDLocked(id uint16) node.Node {
	for cur := r.buckets[bucketIndex(id)]; cur != nil; cur = cur.Next() {
		if cur.ID() == id {
			return cur
		}
	}
	return nil
}

// FindByID looks up a node by its integer ID.
func (r *Registry) FindByID(id uint16) (node.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.findByIDLocked(id)
	return n, n != nil
}

// FindParentByID looks up a node by ID and confirms it exposes AsParent.
func (r *Registry) FindParentByID(id uint16) (node.Parent, bool) {
	n, ok := r.FindByID(id)
	if !ok {
		return nil, false
	}
	return n.AsParent()
}

// FindByPath resolves a slash-separated path such as "dGroup/dValue"
// starting from the root. A trailing numeric segment that does not
// match a child by name is returned as a record index against the last
// resolved node, consistent with the record-array "index in endpoint"
// convention.
func (r *Registry) FindByPath(path string) (node.Node, int, bool) {
	path = strings.Trim(path, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cur node.Node = r.root
	if path == "" {
		return cur, -1, true
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		parent, ok := cur.AsParent()
		if !ok {
			return nil, -1, false
		}
		child, ok := parent.FindChild(seg)
		if ok {
			cur = child
			continue
		}
		// Last segment might be a record index into cur.
		if i == len(segments)-1 {
			if idx, ok := parseIndex(seg); ok {
				return cur, idx, true
			}
		}
		return nil, -1, false
	}
	return cur, -1, true
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Path reconstructs a node's fully-qualified path by walking ParentID
// links back to the root. Returns "" for the root itself.
func (r *Registry) Path(n node.Node) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var segs []string
	for cur := n; cur != nil && cur.ID() != rootID; cur = r.findByIDLocked(cur.ParentID()) {
		segs = append([]string{cur.Name()}, segs...)
	}
	return strings.Join(segs, "/")
}

// All returns every registered node across all buckets, in no
// particular order. Used by NodesInSubset and diagnostic tooling.
func (r *Registry) All() []node.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []node.Node
	for _, head := range r.buckets {
		for cur := head; cur != nil; cur = cur.Next() {
			out = append(out, cur)
		}
	}
	return out
}

// NodesInSubset lazily yields every node whose Subset contains want,
// via yield; yield returning false stops iteration early. Mirrors the
// ThingSet++ registry's filtered-view iterator without building an
// intermediate slice.
func (r *Registry) NodesInSubset(want node.Subset, yield func(node.Node) bool) {
	r.mu.RLock()
	buckets := r.buckets
	r.mu.RUnlock()
	for _, head := range buckets {
		for cur := head; cur != nil; cur = cur.Next() {
			if cur.Subset().Contains(want) {
				if !yield(cur) {
					return
				}
			}
		}
	}
}
