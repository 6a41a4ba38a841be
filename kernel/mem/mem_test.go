package mem

import (
	"os"
	"path/filepath"
	"testing"

	"memsim/kernel/addr"
	"memsim/kernel/kerr"
)

func TestReadWriteWord(t *testing.T) {
	p, err := NewPhysical(4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.WriteWord(0x10, 0xDEADBEEF); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.ReadWord(0x10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("ReadWord = %#x, want %#x", got, 0xDEADBEEF)
	}
}

func TestReadWriteByte(t *testing.T) {
	p, _ := NewPhysical(16)
	if err := p.WriteByte(3, 0x42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.ReadByte(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0x42 {
		t.Errorf("ReadByte = %#x, want 0x42", got)
	}
}

func TestOutOfRangeAccess(t *testing.T) {
	p, _ := NewPhysical(16)
	if _, err := p.ReadWord(14); err == nil {
		t.Fatal("expected error reading past end of memory")
	} else if err.Kind != kerr.BadParameter {
		t.Errorf("expected BadParameter, got %v", err.Kind)
	}
}

func TestLoadRawDump(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.img")
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p, err := LoadRawDump(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != Size(len(want)) {
		t.Errorf("Size() = %d, want %d", p.Size(), len(want))
	}
	got, _ := p.ReadByte(0)
	if got != 1 {
		t.Errorf("ReadByte(0) = %d, want 1", got)
	}
}

func page(fill byte) []byte {
	buf := make([]byte, addr.PageSize)
	for i := range buf {
		buf[i] = fill
	}
	return buf
}

// TestLoadDescriptor exercises S1's image shape: a page-table dump at
// physical 0, one extra physical page, and no virtual pages, so the stub
// walker is never called.
func TestLoadDescriptor(t *testing.T) {
	dir := t.TempDir()
	ptPath := filepath.Join(dir, "pt.bin")
	physPath := filepath.Join(dir, "phys.bin")

	if err := os.WriteFile(ptPath, page(0xAA), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(physPath, page(0xBB), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	descriptor := "65536\npt.bin\n1\n0x4000 phys.bin\n"
	descPath := filepath.Join(dir, "desc.txt")
	if err := os.WriteFile(descPath, []byte(descriptor), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	walkCalled := false
	walk := func(p *Physical, vaddr uint64) (uint32, *kerr.Error) {
		walkCalled = true
		return 0, nil
	}

	p, err := LoadDescriptor(descPath, walk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != 65536 {
		t.Errorf("Size() = %d, want 65536", p.Size())
	}
	if walkCalled {
		t.Error("walk should not be invoked without any virtual pairs")
	}
	b, _ := p.ReadByte(0)
	if b != 0xAA {
		t.Errorf("page table byte = %#x, want 0xAA", b)
	}
	b, _ = p.ReadByte(0x4000)
	if b != 0xBB {
		t.Errorf("physical page byte = %#x, want 0xBB", b)
	}
}

func TestLoadDescriptorRejectsWrongSizedPage(t *testing.T) {
	dir := t.TempDir()
	ptPath := filepath.Join(dir, "pt.bin")
	if err := os.WriteFile(ptPath, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	descPath := filepath.Join(dir, "desc.txt")
	if err := os.WriteFile(descPath, []byte("4096\npt.bin\n0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadDescriptor(descPath, nil); err == nil {
		t.Fatal("expected IO error for undersized page file")
	} else if err.Kind != kerr.IO {
		t.Errorf("expected IO kind, got %v", err.Kind)
	}
}

func TestPageFrame(t *testing.T) {
	f := PageFrame(3)
	if got, want := f.Address(), uint32(3*addr.PageSize); got != want {
		t.Errorf("Address() = %#x, want %#x", got, want)
	}
	if !f.IsValid() {
		t.Error("expected frame 3 to be valid")
	}
	if InvalidFrame.IsValid() {
		t.Error("expected InvalidFrame to be invalid")
	}
}
