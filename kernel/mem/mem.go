// Package mem implements the physical memory component (C2): a flat byte
// buffer with word-indexed reads/writes, plus two loaders -- a raw dump
// and a multi-page descriptor. The byte-buffer shape and word-aligned
// accessors follow the original kernel's mem.Size/Frame arithmetic and
// the word-oriented Memory type found in MIPS emulator references,
// adapted here to a single contiguous []byte rather than a sparse page
// map since the simulator's image is always small and whole.
package mem

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	"memsim/kernel/addr"
	"memsim/kernel/kerr"
)

const module = "mem"

// Size is a byte count.
type Size uint64

// Pages rounds a Size up to a whole number of PageSize-sized pages.
func (s Size) Pages() uint64 {
	return (uint64(s) + addr.PageSize - 1) / addr.PageSize
}

// PageFrame is a 4 KiB-aligned physical page index, modeled on the
// original kernel's pmm.Frame -- without its buddy-allocator page-order
// bit, since this simulator never splits or merges physical pages.
type PageFrame uint32

// InvalidFrame marks the absence of a frame.
const InvalidFrame PageFrame = 0xFFFFFFFF

// IsValid reports whether f refers to an actual frame.
func (f PageFrame) IsValid() bool { return f != InvalidFrame }

// Address returns the physical byte address of the start of the frame.
func (f PageFrame) Address() uint32 { return uint32(f) * addr.PageSize }

// Physical is the simulator's flat, byte-addressable RAM.
type Physical struct {
	buf []byte
}

// NewPhysical allocates a zero-filled physical memory of the given size.
func NewPhysical(size Size) (*Physical, *kerr.Error) {
	if size == 0 {
		return nil, kerr.BadParameterf(module, "memory size must be non-zero")
	}
	return &Physical{buf: make([]byte, size)}, nil
}

// Size returns the number of bytes backing the buffer.
func (p *Physical) Size() Size { return Size(len(p.buf)) }

// Bytes exposes the raw backing buffer without copying; cmd/memsim's dump
// subcommand reads it directly.
func (p *Physical) Bytes() []byte { return p.buf }

func (p *Physical) checkRange(paddr uint32, n int) *kerr.Error {
	if uint64(paddr)+uint64(n) > uint64(len(p.buf)) {
		return kerr.BadParameterf(module, "access [%#x, %#x) exceeds memory size %#x", paddr, uint64(paddr)+uint64(n), len(p.buf))
	}
	return nil
}

// ReadWord reads the 32-bit little-endian word at paddr. paddr need not be
// word-aligned for the page-walker's raw entry reads, but must be for
// command-level word accesses (checked by the cache layer, not here).
func (p *Physical) ReadWord(paddr uint32) (uint32, *kerr.Error) {
	if err := p.checkRange(paddr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p.buf[paddr : paddr+4]), nil
}

// WriteWord writes a 32-bit little-endian word at paddr.
func (p *Physical) WriteWord(paddr uint32, word uint32) *kerr.Error {
	if err := p.checkRange(paddr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p.buf[paddr:paddr+4], word)
	return nil
}

// ReadByte reads the byte at paddr.
func (p *Physical) ReadByte(paddr uint32) (byte, *kerr.Error) {
	if err := p.checkRange(paddr, 1); err != nil {
		return 0, err
	}
	return p.buf[paddr], nil
}

// WriteByte writes the byte at paddr.
func (p *Physical) WriteByte(paddr uint32, value byte) *kerr.Error {
	if err := p.checkRange(paddr, 1); err != nil {
		return err
	}
	p.buf[paddr] = value
	return nil
}

// LoadRawDump builds a Physical whose contents are the entirety of the file
// at path; the memory size becomes the file size.
func LoadRawDump(path string) (*Physical, *kerr.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerr.IOf(module, "reading raw dump %q: %v", path, err)
	}
	if len(data) == 0 {
		return nil, kerr.BadParameterf(module, "raw dump %q is empty", path)
	}
	return &Physical{buf: data}, nil
}

// WalkFunc resolves a virtual address to a physical address by page-walking
// against memory already loaded into p. It is supplied by the caller (which
// imports kernel/vmm) rather than called directly, avoiding an import cycle
// between kernel/mem and kernel/vmm -- the same function-variable injection
// seam used for activePDTFn/mapFn in the original kernel's vmm package.
type WalkFunc func(p *Physical, vaddr uint64) (uint32, *kerr.Error)

// LoadDescriptor builds a Physical from the descriptor grammar: total
// size, a page-table dump loaded at physical offset 0, K (phys_addr,
// filename) pairs, then any number of (virt_addr, filename) pairs
// resolved through walk against the tables already loaded. Every page
// file must be exactly 4096 bytes.
func LoadDescriptor(path string, walk WalkFunc) (*Physical, *kerr.Error) {
	f, oerr := os.Open(path)
	if oerr != nil {
		return nil, kerr.IOf(module, "opening descriptor %q: %v", path, oerr)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	next := func(what string) (string, *kerr.Error) {
		if !sc.Scan() {
			return "", kerr.IOf(module, "descriptor %q: unexpected EOF reading %s", path, what)
		}
		return sc.Text(), nil
	}

	sizeTok, derr := next("memory size")
	if derr != nil {
		return nil, derr
	}
	size, perr := strconv.ParseUint(sizeTok, 0, 64)
	if perr != nil {
		return nil, kerr.BadParameterf(module, "descriptor %q: invalid memory size %q", path, sizeTok)
	}

	pmem, merr := NewPhysical(Size(size))
	if merr != nil {
		return nil, merr
	}

	dir := dirOf(path)

	ptTok, derr := next("page table filename")
	if derr != nil {
		return nil, derr
	}
	if err := pmem.loadPageAt(0, resolve(dir, ptTok)); err != nil {
		return nil, err
	}

	kTok, derr := next("page count K")
	if derr != nil {
		return nil, derr
	}
	k, perr := strconv.ParseUint(kTok, 0, 32)
	if perr != nil {
		return nil, kerr.BadParameterf(module, "descriptor %q: invalid page count %q", path, kTok)
	}

	for i := uint64(0); i < k; i++ {
		addrTok, derr := next("physical page address")
		if derr != nil {
			return nil, derr
		}
		nameTok, derr := next("physical page filename")
		if derr != nil {
			return nil, derr
		}
		paddr, perr := strconv.ParseUint(addrTok, 0, 32)
		if perr != nil {
			return nil, kerr.BadParameterf(module, "descriptor %q: invalid physical address %q", path, addrTok)
		}
		if err := pmem.loadPageAt(uint32(paddr), resolve(dir, nameTok)); err != nil {
			return nil, err
		}
	}

	for sc.Scan() {
		vaddrTok := sc.Text()
		nameTok, derr := next("virtual page filename")
		if derr != nil {
			return nil, derr
		}
		vaddr, perr := strconv.ParseUint(vaddrTok, 0, 64)
		if perr != nil {
			return nil, kerr.BadParameterf(module, "descriptor %q: invalid virtual address %q", path, vaddrTok)
		}
		paddr, werr := walk(pmem, vaddr)
		if werr != nil {
			return nil, werr
		}
		pageBase := paddr &^ (addr.PageSize - 1)
		if err := pmem.loadPageAt(pageBase, resolve(dir, nameTok)); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, kerr.IOf(module, "descriptor %q: %v", path, err)
	}

	return pmem, nil
}

func (p *Physical) loadPageAt(paddr uint32, filename string) *kerr.Error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return kerr.IOf(module, "reading page %q: %v", filename, err)
	}
	if len(data) != addr.PageSize {
		return kerr.IOf(module, "page %q is %d bytes, want %d", filename, len(data), addr.PageSize)
	}
	if err := p.checkRange(paddr, len(data)); err != nil {
		return err
	}
	copy(p.buf[paddr:], data)
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i+1]
		}
	}
	return ""
}

func resolve(dir, name string) string {
	if strings.HasPrefix(name, "/") || dir == "" {
		return name
	}
	return fmt.Sprintf("%s%s", dir, name)
}
