// Package addr implements the virtual and physical address codec (C1):
// packing and unpacking address bitfields and virtual-page-number
// arithmetic. Every constructor validates its inputs and returns a
// *kerr.Error instead of silently truncating, the way the original
// kernel's pageTableEntry flag/frame accessors validate against
// FrameAddressMask before storing a frame.
package addr

import (
	"fmt"

	"memsim/kernel/kerr"
)

const module = "addr"

const (
	// OffsetBits is the width of the page offset field shared by virtual
	// and physical addresses.
	OffsetBits = 12
	// PTEBits, PMDBits, PUDBits, PGDBits are the widths of the four
	// page-table index fields of a virtual address.
	PTEBits = 9
	PMDBits = 9
	PUDBits = 9
	PGDBits = 9

	// VPNBits is the width of the virtual page number: the concatenation
	// of the four 9-bit index fields.
	VPNBits = PGDBits + PUDBits + PMDBits + PTEBits // 36

	// VirtualBits is the number of meaningful bits in a virtual address;
	// the remaining high bits of the 64-bit container must be zero.
	VirtualBits = VPNBits + OffsetBits // 48

	// PhysicalBits is the width of a physical address.
	PhysicalBits = 32
	// PPNBits is the width of a physical page number.
	PPNBits = PhysicalBits - OffsetBits // 20

	// PageSize is the size in bytes of one page / cache alignment unit
	// for the page table.
	PageSize = 1 << OffsetBits

	offsetShift = 0
	pteShift    = offsetShift + OffsetBits
	pmdShift    = pteShift + PTEBits
	pudShift    = pmdShift + PMDBits
	pgdShift    = pudShift + PUDBits

	offsetMask uint64 = (1 << OffsetBits) - 1
	pteMask    uint64 = (1 << PTEBits) - 1
	pmdMask    uint64 = (1 << PMDBits) - 1
	pudMask    uint64 = (1 << PUDBits) - 1
	pgdMask    uint64 = (1 << PGDBits) - 1
	vpnMask    uint64 = (1 << VPNBits) - 1

	virtualMask uint64 = (1 << VirtualBits) - 1
)

// Virtual is a 64-bit virtual address. Only the low 48 bits are meaningful;
// the high 16 bits are always zero in a validly constructed value.
type Virtual uint64

// Physical is a 32-bit physical address: a 20-bit PPN and a 12-bit offset.
type Physical uint32

// New builds a Virtual address from its five fields, rejecting any field
// that exceeds its declared bit width.
func New(pgd, pud, pmd, pte, offset uint32) (Virtual, *kerr.Error) {
	if uint64(pgd) > pgdMask {
		return 0, kerr.BadParameterf(module, "pgd index %#x exceeds %d bits", pgd, PGDBits)
	}
	if uint64(pud) > pudMask {
		return 0, kerr.BadParameterf(module, "pud index %#x exceeds %d bits", pud, PUDBits)
	}
	if uint64(pmd) > pmdMask {
		return 0, kerr.BadParameterf(module, "pmd index %#x exceeds %d bits", pmd, PMDBits)
	}
	if uint64(pte) > pteMask {
		return 0, kerr.BadParameterf(module, "pte index %#x exceeds %d bits", pte, PTEBits)
	}
	if uint64(offset) > offsetMask {
		return 0, kerr.BadParameterf(module, "offset %#x exceeds %d bits", offset, OffsetBits)
	}
	v := uint64(pgd)<<pgdShift | uint64(pud)<<pudShift | uint64(pmd)<<pmdShift |
		uint64(pte)<<pteShift | uint64(offset)<<offsetShift
	return Virtual(v), nil
}

// FromUint64 builds a Virtual address from a raw 64-bit integer, rejecting
// values that set any of the 16 reserved high bits.
func FromUint64(v uint64) (Virtual, *kerr.Error) {
	if v > virtualMask {
		return 0, kerr.BadParameterf(module, "value %#x sets reserved high bits (max %#x)", v, virtualMask)
	}
	return Virtual(v), nil
}

// Uint64 returns the raw 64-bit representation: (VPN<<12) | offset.
func (v Virtual) Uint64() uint64 {
	return uint64(v) & virtualMask
}

// PGD returns the page-global-directory index field.
func (v Virtual) PGD() uint32 { return uint32((uint64(v) >> pgdShift) & pgdMask) }

// PUD returns the page-upper-directory index field.
func (v Virtual) PUD() uint32 { return uint32((uint64(v) >> pudShift) & pudMask) }

// PMD returns the page-middle-directory index field.
func (v Virtual) PMD() uint32 { return uint32((uint64(v) >> pmdShift) & pmdMask) }

// PTE returns the page-table-entry index field.
func (v Virtual) PTE() uint32 { return uint32((uint64(v) >> pteShift) & pteMask) }

// Offset returns the 12-bit page offset.
func (v Virtual) Offset() uint32 { return uint32(uint64(v) & offsetMask) }

// VPN returns the 36-bit virtual page number: (pgd<<27)|(pud<<18)|(pmd<<9)|pte.
func (v Virtual) VPN() uint64 {
	return (uint64(v) >> OffsetBits) & vpnMask
}

// FromVPN reconstructs a Virtual address from a VPN and a page offset.
func FromVPN(vpn uint64, offset uint32) (Virtual, *kerr.Error) {
	if vpn > vpnMask {
		return 0, kerr.BadParameterf(module, "vpn %#x exceeds %d bits", vpn, VPNBits)
	}
	if uint64(offset) > offsetMask {
		return 0, kerr.BadParameterf(module, "offset %#x exceeds %d bits", offset, OffsetBits)
	}
	return Virtual(vpn<<OffsetBits | uint64(offset)), nil
}

// String renders the address as 16 uppercase hex digits.
func (v Virtual) String() string {
	return fmt.Sprintf("%016X", uint64(v))
}

// NewPhysical builds a Physical address from a page-aligned base and a
// 12-bit offset. pageBase must be a multiple of PageSize.
func NewPhysical(pageBase uint32, offset uint32) (Physical, *kerr.Error) {
	if pageBase%PageSize != 0 {
		return 0, kerr.BadParameterf(module, "page base %#x is not %d-byte aligned", pageBase, PageSize)
	}
	if uint64(offset) > offsetMask {
		return 0, kerr.BadParameterf(module, "offset %#x exceeds %d bits", offset, OffsetBits)
	}
	return Physical(pageBase | offset), nil
}

// FromPPN builds a Physical address from a 20-bit page frame number and a
// 12-bit offset.
func FromPPN(ppn uint32, offset uint32) (Physical, *kerr.Error) {
	if ppn >= 1<<PPNBits {
		return 0, kerr.BadParameterf(module, "ppn %#x exceeds %d bits", ppn, PPNBits)
	}
	if offset > uint32(offsetMask) {
		return 0, kerr.BadParameterf(module, "offset %#x exceeds %d bits", offset, OffsetBits)
	}
	return Physical(ppn<<OffsetBits | offset), nil
}

// PPN returns the 20-bit physical page number.
func (p Physical) PPN() uint32 { return uint32(p) >> OffsetBits }

// Offset returns the 12-bit page offset.
func (p Physical) Offset() uint32 { return uint32(p) & uint32(offsetMask) }

// PageBase returns the physical address of the start of the page
// containing p (offset cleared).
func (p Physical) PageBase() uint32 { return uint32(p) &^ uint32(offsetMask) }

// Uint32 returns the raw 32-bit representation.
func (p Physical) Uint32() uint32 { return uint32(p) }

// String renders the address as 8 uppercase hex digits.
func (p Physical) String() string {
	return fmt.Sprintf("%08X", uint32(p))
}
