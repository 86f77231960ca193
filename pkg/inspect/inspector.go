package inspect

import (
	"fmt"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/node"
	"github.com/thingset-go/thingset-go/pkg/registry"
)

// Inspector walks a registry's node tree for local introspection: it
// reads and writes node values directly against the registry rather
// than through a wire transport, for tooling that runs in the same
// process as the node it inspects.
type Inspector struct {
	reg *registry.Registry
}

// NewInspector creates an Inspector over reg.
func NewInspector(reg *registry.Registry) *Inspector {
	return &Inspector{reg: reg}
}

// Registry returns the underlying registry.
func (i *Inspector) Registry() *registry.Registry { return i.reg }

// NodeInfo is the display-ready snapshot of a single node.
type NodeInfo struct {
	ID     uint16
	Name   string
	Path   string
	Kind   string
	Access string
	Subset string
	Value  string
}

// NodeTree is a NodeInfo together with its recursively inspected
// children, for a full subtree walk starting at any node.
type NodeTree struct {
	NodeInfo
	Children []NodeTree
}

func (i *Inspector) nodeInfo(n node.Node, f *Formatter) NodeInfo {
	return NodeInfo{
		ID:     n.ID(),
		Name:   n.Name(),
		Path:   i.reg.Path(n),
		Kind:   FormatKind(n.Kind()),
		Access: FormatAccess(n.Access()),
		Subset: FormatSubset(n.Subset()),
		Value:  f.FormatValue(n),
	}
}

// InspectTree resolves path and returns the full subtree rooted there.
// An empty path inspects the registry root.
func (i *Inspector) InspectTree(path string) (*NodeTree, error) {
	var root node.Node
	if path == "" || path == "/" {
		root = i.reg.Root()
	} else {
		n, _, ok := i.reg.FindByPath(path)
		if !ok {
			return nil, fmt.Errorf("inspect: path %q not found", path)
		}
		root = n
	}
	f := NewFormatter()
	tree := i.buildTree(root, f)
	return &tree, nil
}

func (i *Inspector) buildTree(n node.Node, f *Formatter) NodeTree {
	tree := NodeTree{NodeInfo: i.nodeInfo(n, f)}
	parent, ok := n.AsParent()
	if !ok {
		return tree
	}
	for _, child := range parent.Children() {
		tree.Children = append(tree.Children, i.buildTree(child, f))
	}
	return tree
}

// ReadAttribute returns the formatted value of the node at path.
func (i *Inspector) ReadAttribute(path string) (string, error) {
	n, _, ok := i.reg.FindByPath(path)
	if !ok {
		return "", fmt.Errorf("inspect: path %q not found", path)
	}
	return NewFormatter().FormatValue(n), nil
}

// ReadAllAttributes returns one row per child of the group or function
// parameter list at path.
func (i *Inspector) ReadAllAttributes(path string) ([]AttributeRow, error) {
	n, _, ok := i.reg.FindByPath(path)
	if !ok {
		return nil, fmt.Errorf("inspect: path %q not found", path)
	}
	parent, ok := n.AsParent()
	if !ok {
		return nil, fmt.Errorf("inspect: %q has no children", path)
	}
	f := NewFormatter()
	var rows []AttributeRow
	for _, child := range parent.Children() {
		rows = append(rows, NewAttributeRow(child, f))
	}
	return rows, nil
}

// WriteAttribute decodes valueText (text-mode wire syntax, e.g. "42",
// "\"on\"", "1") and writes it to the node at path.
func (i *Inspector) WriteAttribute(path string, valueText string) error {
	n, _, ok := i.reg.FindByPath(path)
	if !ok {
		return fmt.Errorf("inspect: path %q not found", path)
	}
	dec, ok := n.Decodable()
	if !ok {
		return fmt.Errorf("inspect: %q is not writable", path)
	}
	return dec.DecodeFrom(codec.NewTextDecoder([]byte(valueText)))
}

// InvokeCommand calls the function node at path with argsText encoding
// its positional arguments as a text-mode array, returning the
// function's formatted return value.
func (i *Inspector) InvokeCommand(path string, argsText string) (string, error) {
	n, _, ok := i.reg.FindByPath(path)
	if !ok {
		return "", fmt.Errorf("inspect: path %q not found", path)
	}
	invoker, ok := n.Invocable()
	if !ok {
		return "", fmt.Errorf("inspect: %q is not invocable", path)
	}
	if argsText == "" {
		argsText = "null"
	}
	dec := codec.NewTextDecoder([]byte(argsText))
	enc := codec.NewTextEncoder()
	if err := invoker.Invoke(dec, enc); err != nil {
		return "", fmt.Errorf("inspect: invoke %q: %w", path, err)
	}
	return string(enc.Bytes()), nil
}

// FormatTree renders a NodeTree as an indented listing, recursing to
// arbitrary depth.
func FormatTree(tree *NodeTree, f *Formatter) string {
	var out string
	formatNode(tree, 0, f, &out)
	return out
}

func formatNode(tree *NodeTree, depth int, f *Formatter, out *string) {
	label := tree.Name
	if label == "" {
		label = "/"
	}
	line := label
	if f.ShowIDs {
		line = fmt.Sprintf("[%d] %s", tree.ID, label)
	}
	if tree.Kind == "property" || tree.Kind == "record-member" {
		line += fmt.Sprintf(" = %s", tree.Value)
	}
	if f.ShowMetadata {
		line += fmt.Sprintf(" (%s, %s)", tree.Kind, tree.Access)
	}
	*out += f.Indent(depth, line) + "\n"
	for i := range tree.Children {
		formatNode(&tree.Children[i], depth+1, f, out)
	}
}
