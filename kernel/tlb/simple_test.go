package tlb

import (
	"testing"

	"memsim/kernel/addr"
	"memsim/kernel/mem"
)

func buildWalkableImage(t *testing.T) *mem.Physical {
	t.Helper()
	m, err := mem.NewPhysical(0x10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := []struct{ base, val uint32 }{
		{0x0000, 0x1000},
		{0x1000, 0x2000},
		{0x2000, 0x3000},
		{0x3000, 0x4000},
	}
	for _, e := range entries {
		if werr := m.WriteWord(e.base, e.val); werr != nil {
			t.Fatalf("unexpected error: %v", werr)
		}
	}
	return m
}

func TestSimpleTLBMissThenHit(t *testing.T) {
	m := buildWalkableImage(t)
	tl := NewSimpleTLB(4)
	v, _ := addr.FromUint64(0xABC)

	p, hit, err := tl.Search(m, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("first search should miss")
	}
	if p.Uint32() != 0x4ABC {
		t.Errorf("paddr = %#x, want %#x", p.Uint32(), 0x4ABC)
	}

	p2, hit2, err := tl.Search(m, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit2 {
		t.Error("second search should hit")
	}
	if p2 != p {
		t.Errorf("paddr mismatch: %#x vs %#x", p2.Uint32(), p.Uint32())
	}
}

func TestSimpleTLBEvictsLRU(t *testing.T) {
	m := buildWalkableImage(t)
	tl := NewSimpleTLB(1)
	v1, _ := addr.FromUint64(0xABC)
	if _, _, err := tl.Search(m, v1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Build a second translation path sharing the same page tables but a
	// different VPN (different pgd index) so it evicts the only line.
	if werr := m.WriteWord(4, 0x5000); werr != nil {
		t.Fatalf("unexpected error: %v", werr)
	}
	if werr := m.WriteWord(0x5000, 0x2000); werr != nil {
		t.Fatalf("unexpected error: %v", werr)
	}
	v2, _ := addr.New(1, 0, 0, 0, 0)
	if _, hit, err := tl.Search(m, v2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if hit {
		t.Error("expected miss for a fresh VPN in a 1-line TLB")
	}

	if _, hit, err := tl.Search(m, v1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if hit {
		t.Error("expected v1's entry to have been evicted")
	}
}
