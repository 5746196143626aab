package arena

import "testing"

type node struct {
	kind int
	next *node
}

func TestMakeReturnsDistinctZeroedValues(t *testing.T) {
	a := New[node](4)
	seen := make(map[*node]bool)
	for i := 0; i < 100; i++ {
		n := a.Make()
		if n.kind != 0 || n.next != nil {
			t.Fatalf("Make returned non-zero value at %d: %+v", i, n)
		}
		if seen[n] {
			t.Fatalf("Make returned the same pointer twice at %d", i)
		}
		seen[n] = true
		n.kind = i
	}
	if a.Len() != 100 {
		t.Fatalf("Len = %d, want 100", a.Len())
	}
}

func TestPointersSurviveChunkGrowth(t *testing.T) {
	a := New[node](2)
	var ptrs []*node
	for i := 0; i < 50; i++ {
		n := a.Make()
		n.kind = i
		ptrs = append(ptrs, n)
	}
	for i, p := range ptrs {
		if p.kind != i {
			t.Fatalf("value at %d clobbered by chunk growth: got %d", i, p.kind)
		}
	}
}

func TestReset(t *testing.T) {
	a := NewBytes[node](1 << 12)
	for i := 0; i < 10; i++ {
		a.Make()
	}
	a.Reset()
	if a.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", a.Len())
	}
	if n := a.Make(); n.kind != 0 {
		t.Fatalf("Make after Reset returned non-zero value")
	}
}
