// Package inspect formats a registered node tree for human
// consumption: CLI tree listings, attribute tables, and single-value
// display, over an arbitrary-depth pkg/registry tree.
package inspect

import (
	"fmt"
	"strings"

	"github.com/thingset-go/thingset-go/pkg/codec"
	"github.com/thingset-go/thingset-go/pkg/node"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes kind and access information.
	ShowMetadata bool

	// ShowIDs includes numeric IDs alongside names.
	ShowIDs bool

	// IndentWidth is the number of spaces per indent level.
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata: true,
		ShowIDs:      false,
		IndentWidth:  2,
	}
}

// Indent returns content prefixed with depth levels of indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width) + content
}

// FormatValue renders n's current value using the text codec, the same
// JSON-ish rendering the text wire format uses, so a displayed value
// round-trips through WriteAttribute unchanged. Nodes with no value
// (groups, functions) render as "-".
func (f *Formatter) FormatValue(n node.Node) string {
	enc, ok := n.Encodable()
	if !ok {
		return "-"
	}
	te := codec.NewTextEncoder()
	if err := enc.EncodeTo(te); err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return string(te.Bytes())
}

// FormatKind renders a node's taxonomy tag.
func FormatKind(k node.Kind) string { return k.String() }

// FormatAccess renders an access bitmask as a compact role/verb list,
// e.g. "user:rw,expert:rw,mfg:r".
func FormatAccess(a node.Access) string {
	roles := []struct {
		name        string
		read, write node.Access
	}{
		{"user", node.AccessUserRead, node.AccessUserWrite},
		{"expert", node.AccessExpertRead, node.AccessExpertWrite},
		{"mfg", node.AccessManufacturerRead, node.AccessManufacturerWrite},
	}

	var parts []string
	for _, r := range roles {
		canRead := a&r.read != 0
		canWrite := a&r.write != 0
		switch {
		case canRead && canWrite:
			parts = append(parts, r.name+":rw")
		case canRead:
			parts = append(parts, r.name+":r")
		case canWrite:
			parts = append(parts, r.name+":w")
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// FormatSubset renders a subset bitmask as a comma-separated label
// list, e.g. "persisted,live". Bits above the two protocol-reserved
// ones render as their hex value.
func FormatSubset(s node.Subset) string {
	var parts []string
	if s.Contains(node.SubsetPersisted) {
		parts = append(parts, "persisted")
	}
	if s.Contains(node.SubsetLive) {
		parts = append(parts, "live")
	}
	if rest := s &^ (node.SubsetPersisted | node.SubsetLive); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

// AttributeRow is a formatted node for tabular display.
type AttributeRow struct {
	ID     uint16
	Name   string
	Value  string
	Kind   string
	Access string
	Subset string
}

// NewAttributeRow formats n into a display row.
func NewAttributeRow(n node.Node, f *Formatter) AttributeRow {
	return AttributeRow{
		ID:     n.ID(),
		Name:   n.Name(),
		Value:  f.FormatValue(n),
		Kind:   FormatKind(n.Kind()),
		Access: FormatAccess(n.Access()),
		Subset: FormatSubset(n.Subset()),
	}
}

// FormatAttributeTable formats rows as an aligned listing.
func (f *Formatter) FormatAttributeTable(rows []AttributeRow) string {
	if len(rows) == 0 {
		return "  (no attributes)"
	}

	var sb strings.Builder
	for _, row := range rows {
		if f.ShowIDs {
			sb.WriteString(fmt.Sprintf("  [%d] %s: %s", row.ID, row.Name, row.Value))
		} else {
			sb.WriteString(fmt.Sprintf("  %s: %s", row.Name, row.Value))
		}
		if f.ShowMetadata {
			sb.WriteString(fmt.Sprintf(" (%s, %s)", row.Kind, row.Access))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
