package program

import (
	"os"
	"path/filepath"
	"testing"

	"memsim/kernel/tlb"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseAllFiveForms(t *testing.T) {
	path := writeFile(t, `
R  I     @0000000000000ABC
R  DW    @0000000000000ABC
R  DB    @0000000000000ABC
W  DW  CAFEBABE  @0000000000000ABC
W  DB  42        @0000000000000ABC
`)
	p, err := Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Commands) != 5 {
		t.Fatalf("len(Commands) = %d, want 5", len(p.Commands))
	}

	want := []Command{
		{Order: Read, Kind: tlb.Instruction, DataSize: 4},
		{Order: Read, Kind: tlb.Data, DataSize: 4},
		{Order: Read, Kind: tlb.Data, DataSize: 1},
		{Order: Write, Kind: tlb.Data, DataSize: 4, WriteData: 0xCAFEBABE},
		{Order: Write, Kind: tlb.Data, DataSize: 1, WriteData: 0x42},
	}
	for i, w := range want {
		got := p.Commands[i]
		if got.Order != w.Order || got.Kind != w.Kind || got.DataSize != w.DataSize || got.WriteData != w.WriteData {
			t.Errorf("command %d = %+v, want order/kind/size/data matching %+v", i, got, w)
		}
		if got.VAddr.Uint64() != 0xABC {
			t.Errorf("command %d vaddr = %#x, want 0xABC", i, got.VAddr.Uint64())
		}
	}
}

func TestParseRejectsWriteInstruction(t *testing.T) {
	path := writeFile(t, "W  I  @0000000000000ABC\n")
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for \"W I\"")
	}
}

func TestParseSkipsBlankAndCommentLines(t *testing.T) {
	path := writeFile(t, "\n# a comment\nR I @0000000000000ABC\n; another comment\n")
	p, err := Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Commands) != 1 {
		t.Fatalf("len(Commands) = %d, want 1", len(p.Commands))
	}
}

func TestParseRejectsUnknownOrder(t *testing.T) {
	path := writeFile(t, "X I @0000000000000ABC\n")
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for unknown order")
	}
}

func TestParseRejectsMissingVAddr(t *testing.T) {
	path := writeFile(t, "R DW\n")
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for missing vaddr")
	}
}

func TestParseAcceptsOptional0xPrefix(t *testing.T) {
	path := writeFile(t, "R DW @0xABC\nW DW 0xCAFEBABE @0xABC\n")
	p, err := Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Commands[0].VAddr.Uint64() != 0xABC {
		t.Errorf("vaddr = %#x, want 0xABC", p.Commands[0].VAddr.Uint64())
	}
	if p.Commands[1].WriteData != 0xCAFEBABE {
		t.Errorf("write data = %#x, want 0xCAFEBABE", p.Commands[1].WriteData)
	}
}
