// Package vmm implements the page walker (C3): translating a virtual
// address through a 4-level radix-tree page table.
//
// The original kernel's kernel/mem/vmm/walk.go walks a *live,
// self-mapped* page table by dereferencing unsafe.Pointer through a
// pageTableWalker callback invoked once per level -- a trick that only
// works because the walking code runs with the real MMU enabled. This
// simulator has no MMU: the page table is just bytes inside the same
// Physical buffer being translated, so the walk below reads each level
// directly out of []byte instead. The per-level, one-call-per-table shape
// is kept even though the mechanism underneath changed completely.
package vmm

import (
	"memsim/kernel/addr"
	"memsim/kernel/kerr"
	"memsim/kernel/mem"
)

const module = "vmm"

// ReadEntry reads the 32-bit word at byte offset base+4*index from raw
// physical memory. No fault handling: the page table is assumed complete.
func ReadEntry(m *mem.Physical, base uint32, index uint32) (uint32, *kerr.Error) {
	return m.ReadWord(base + 4*index)
}

// Walk translates vaddr through the 4-level page table rooted at physical
// address 0, returning the resulting physical address.
func Walk(m *mem.Physical, vaddr addr.Virtual) (addr.Physical, *kerr.Error) {
	pudBase, err := ReadEntry(m, 0, vaddr.PGD())
	if err != nil {
		return 0, err
	}
	pmdBase, err := ReadEntry(m, pudBase, vaddr.PUD())
	if err != nil {
		return 0, err
	}
	pteBase, err := ReadEntry(m, pmdBase, vaddr.PMD())
	if err != nil {
		return 0, err
	}
	pageBase, err := ReadEntry(m, pteBase, vaddr.PTE())
	if err != nil {
		return 0, err
	}
	return addr.NewPhysical(pageBase, vaddr.Offset())
}

// WalkUint64 is the kernel/mem.WalkFunc-shaped adapter used to resolve the
// descriptor file's (virt_addr, filename) pairs without introducing an
// import of kernel/vmm into kernel/mem.
func WalkUint64(m *mem.Physical, vaddr uint64) (uint32, *kerr.Error) {
	v, err := addr.FromUint64(vaddr)
	if err != nil {
		return 0, err
	}
	p, err := Walk(m, v)
	if err != nil {
		return 0, err
	}
	return p.Uint32(), nil
}
