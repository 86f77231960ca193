package inspect

import (
	"strings"
	"testing"

	"github.com/thingset-go/thingset-go/pkg/node"
)

func TestFormatValueScalarProperty(t *testing.T) {
	p := node.NewProperty[int32](2, 1, "dValue", node.AccessAnyReadWrite, 0, 42)
	f := NewFormatter()
	if got := f.FormatValue(p); got != "42" {
		t.Errorf("FormatValue() = %q, want %q", got, "42")
	}
}

func TestFormatValueStringProperty(t *testing.T) {
	p := node.NewProperty[string](2, 1, "sName", node.AccessAnyReadWrite, 0, "evse-1")
	f := NewFormatter()
	if got := f.FormatValue(p); got != `"evse-1"` {
		t.Errorf("FormatValue() = %q, want %q", got, `"evse-1"`)
	}
}

func TestFormatValueGroupHasNoValue(t *testing.T) {
	g := node.NewGroup(1, 0, "dGroup")
	f := NewFormatter()
	if got := f.FormatValue(g); got != "-" {
		t.Errorf("FormatValue() = %q, want %q", got, "-")
	}
}

func TestFormatAccess(t *testing.T) {
	tests := []struct {
		name   string
		access node.Access
		want   string
	}{
		{"any read-write", node.AccessAnyReadWrite, "user:rw,expert:rw,mfg:rw"},
		{"any read only", node.AccessAnyRead, "user:r,expert:r,mfg:r"},
		{"user only read-write", node.AccessUserReadWrite, "user:rw"},
		{"no access", node.Access(0), "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAccess(tt.access); got != tt.want {
				t.Errorf("FormatAccess(%v) = %q, want %q", tt.access, got, tt.want)
			}
		})
	}
}

func TestFormatSubset(t *testing.T) {
	tests := []struct {
		name   string
		subset node.Subset
		want   string
	}{
		{"none", node.Subset(0), "-"},
		{"persisted", node.SubsetPersisted, "persisted"},
		{"persisted and live", node.SubsetPersisted | node.SubsetLive, "persisted,live"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSubset(tt.subset); got != tt.want {
				t.Errorf("FormatSubset(%v) = %q, want %q", tt.subset, got, tt.want)
			}
		})
	}
}

func TestFormatAttributeTable(t *testing.T) {
	f := NewFormatter()
	rows := []AttributeRow{
		{ID: 2, Name: "dValue", Value: "42", Kind: "property", Access: "user:rw"},
	}
	out := f.FormatAttributeTable(rows)
	if !strings.Contains(out, "dValue: 42") {
		t.Errorf("FormatAttributeTable() = %q, missing name/value", out)
	}
	if !strings.Contains(out, "(property, user:rw)") {
		t.Errorf("FormatAttributeTable() = %q, missing metadata", out)
	}
}

func TestFormatAttributeTableEmpty(t *testing.T) {
	f := NewFormatter()
	if got := f.FormatAttributeTable(nil); got != "  (no attributes)" {
		t.Errorf("FormatAttributeTable(nil) = %q", got)
	}
}

func TestIndent(t *testing.T) {
	f := &Formatter{IndentWidth: 2}
	if got := f.Indent(2, "x"); got != "    x" {
		t.Errorf("Indent(2, %q) = %q, want %q", "x", got, "    x")
	}
}
