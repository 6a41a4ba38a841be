package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should be valid: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	geo, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo != Default() {
		t.Errorf("Load(\"\") = %+v, want Default() %+v", geo, Default())
	}
}

func TestLoadOverridesSubsetOfFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geometry.yaml")
	content := "l1_lines: 32\nl2_lines: 256\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	geo, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.L1Lines != 32 {
		t.Errorf("L1Lines = %d, want 32", geo.L1Lines)
	}
	if geo.L2Lines != 256 {
		t.Errorf("L2Lines = %d, want 256", geo.L2Lines)
	}
	if geo.WordsPerLine != Default().WordsPerLine {
		t.Errorf("WordsPerLine = %d, want default %d", geo.WordsPerLine, Default().WordsPerLine)
	}
}

func TestValidateRejectsNonPowerOfTwo(t *testing.T) {
	geo := Default()
	geo.L1Lines = 10
	if err := geo.Validate(); err == nil {
		t.Fatal("expected error for non-power-of-two l1_lines")
	}
}

func TestValidateRejectsNonPositive(t *testing.T) {
	geo := Default()
	geo.L2Ways = 0
	if err := geo.Validate(); err == nil {
		t.Fatal("expected error for zero l2_ways")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/geometry.yaml"); err == nil {
		t.Fatal("expected IO error for missing file")
	}
}
