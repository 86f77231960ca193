package node

import "testing"

func TestGroupAddFindRemoveChild(t *testing.T) {
	g := NewGroup(1, 0, "dGroup")
	child := NewProperty[int32](2, 1, "dValue", AccessAnyReadWrite, 0, 0)

	g.AddChild(child)

	found, ok := g.FindChild("dValue")
	if !ok || found.ID() != 2 {
		t.Fatal("expected to find dValue after AddChild")
	}
	if got := g.Children(); len(got) != 1 {
		t.Fatalf("expected 1 child, got %d", len(got))
	}

	g.RemoveChild(child)
	if _, ok := g.FindChild("dValue"); ok {
		t.Fatal("expected dValue removed after RemoveChild")
	}
	if got := g.Children(); len(got) != 0 {
		t.Fatalf("expected 0 children after remove, got %d", len(got))
	}
}

func TestGroupChildrenIsDefensiveCopy(t *testing.T) {
	g := NewGroup(1, 0, "dGroup")
	g.AddChild(NewProperty[int32](2, 1, "a", AccessAnyRead, 0, 0))

	got := g.Children()
	got[0] = nil

	again := g.Children()
	if again[0] == nil {
		t.Fatal("expected Children to return a defensive copy")
	}
}

func TestGroupDefaultsToAnyRead(t *testing.T) {
	g := NewGroup(1, 0, "dGroup")
	if g.Access() != AccessAnyRead {
		t.Fatalf("expected AccessAnyRead, got %v", g.Access())
	}
}

func TestGroupAsParent(t *testing.T) {
	g := NewGroup(1, 0, "dGroup")
	if _, ok := g.AsParent(); !ok {
		t.Fatal("expected group to expose AsParent")
	}
}
