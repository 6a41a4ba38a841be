package tlb

import (
	"memsim/kernel/addr"
	"memsim/kernel/kerr"
	"memsim/kernel/mem"
	"memsim/kernel/vmm"
)

// AccessKind distinguishes instruction fetches from data accesses, used to
// pick between the split L1-I and L1-D TLBs (and, in kernel/cache, caches).
type AccessKind int

const (
	// Instruction selects the L1-I TLB / I-cache.
	Instruction AccessKind = iota
	// Data selects the L1-D TLB / D-cache.
	Data
)

func (k AccessKind) String() string {
	if k == Instruction {
		return "INSTRUCTION"
	}
	return "DATA"
}

func log2(n int) uint {
	var l uint
	for (1 << l) < n {
		l++
	}
	return l
}

type directEntry struct {
	valid bool
	tag   uint64
	ppn   uint32
}

// directMapped is one direct-mapped, VPN-indexed TLB level (L1-I, L1-D, or
// L2). Set index = VPN mod lines; tag = VPN >> log2(lines).
type directMapped struct {
	entries []directEntry
	shift   uint
}

func newDirectMapped(lines int) *directMapped {
	return &directMapped{entries: make([]directEntry, lines), shift: log2(lines)}
}

func (d *directMapped) set(vpn uint64) uint64 {
	return vpn % uint64(len(d.entries))
}

func (d *directMapped) probe(vpn uint64) (uint32, bool) {
	e := d.entries[d.set(vpn)]
	if e.valid && e.tag == vpn>>d.shift {
		return e.ppn, true
	}
	return 0, false
}

func (d *directMapped) install(vpn uint64, ppn uint32) {
	d.entries[d.set(vpn)] = directEntry{valid: true, tag: vpn >> d.shift, ppn: ppn}
}

// invalidateIfPresent clears the entry for vpn if it is currently mapping
// that exact VPN, reporting whether it did.
func (d *directMapped) invalidateIfPresent(vpn uint64) bool {
	idx := d.set(vpn)
	e := d.entries[idx]
	if e.valid && e.tag == vpn>>d.shift {
		d.entries[idx] = directEntry{}
		return true
	}
	return false
}

// Hierarchy is the split L1-I/L1-D plus unified L2 TLB hierarchy of C5,
// enforcing a one-sided inclusion/invalidation rule: a VPN present in
// L2 exists in at most one L1 TLB.
type Hierarchy struct {
	l1i *directMapped
	l1d *directMapped
	l2  *directMapped
}

// NewHierarchy builds a Hierarchy with independent L1-I, L1-D (each
// l1Lines deep) and a unified L2 (l2Lines deep).
func NewHierarchy(l1Lines, l2Lines int) *Hierarchy {
	return &Hierarchy{
		l1i: newDirectMapped(l1Lines),
		l1d: newDirectMapped(l1Lines),
		l2:  newDirectMapped(l2Lines),
	}
}

func (h *Hierarchy) l1For(kind AccessKind) (this, other *directMapped) {
	if kind == Instruction {
		return h.l1i, h.l1d
	}
	return h.l1d, h.l1i
}

// Search probes L1 first, then L2 (installing into L1 and invalidating
// the other L1 on an L2 hit), then falls back to a page walk (installing
// into both L1 and L2 and invalidating the other L1). It returns the
// translated physical address and whether it was an L1 hit.
func (h *Hierarchy) Search(m *mem.Physical, vaddr addr.Virtual, kind AccessKind) (addr.Physical, bool, *kerr.Error) {
	this, other := h.l1For(kind)
	vpn := vaddr.VPN()

	if ppn, hit := this.probe(vpn); hit {
		p, err := addr.FromPPN(ppn, vaddr.Offset())
		return p, true, err
	}

	if ppn, hit := h.l2.probe(vpn); hit {
		this.install(vpn, ppn)
		other.invalidateIfPresent(vpn)
		p, err := addr.FromPPN(ppn, vaddr.Offset())
		return p, false, err
	}

	p, err := vmm.Walk(m, vaddr)
	if err != nil {
		return 0, false, err
	}
	h.l2.install(vpn, p.PPN())
	this.install(vpn, p.PPN())
	other.invalidateIfPresent(vpn)
	return p, false, nil
}

// L1Has reports whether the given VPN is resident (valid) in the L1-I or
// L1-D TLB of kind, and with what PPN -- used by tests to check the
// inclusion property.
func (h *Hierarchy) L1Has(kind AccessKind, vpn uint64) (ppn uint32, present bool) {
	this, _ := h.l1For(kind)
	ppn, present = this.probe(vpn)
	return
}

// L2Has reports whether vpn is resident in L2.
func (h *Hierarchy) L2Has(vpn uint64) (ppn uint32, present bool) {
	return h.l2.probe(vpn)
}
