// Package config loads the simulator's cache/TLB geometry, overridable via
// an optional YAML file through spf13/viper, paired with spf13/cobra in
// cmd/memsim. Absent a file, Default returns the bit-exact geometry
// constants, so behavior never changes unless a user opts in to a
// different geometry.
package config

import (
	"github.com/spf13/viper"

	"memsim/kernel/kerr"
)

const module = "config"

// Geometry parameterizes every line/way count the TLB and cache
// hierarchies need.
type Geometry struct {
	L1TLBLines   int `mapstructure:"l1_tlb_lines" yaml:"l1_tlb_lines"`
	L2TLBLines   int `mapstructure:"l2_tlb_lines" yaml:"l2_tlb_lines"`
	L1Ways       int `mapstructure:"l1_ways" yaml:"l1_ways"`
	L1Lines      int `mapstructure:"l1_lines" yaml:"l1_lines"`
	L2Ways       int `mapstructure:"l2_ways" yaml:"l2_ways"`
	L2Lines      int `mapstructure:"l2_lines" yaml:"l2_lines"`
	WordsPerLine int `mapstructure:"words_per_line" yaml:"words_per_line"`
}

// Default is the geometry used when no override file is supplied.
func Default() Geometry {
	return Geometry{
		L1TLBLines:   8,
		L2TLBLines:   64,
		L1Ways:       4,
		L1Lines:      16,
		L2Ways:       8,
		L2Lines:      128,
		WordsPerLine: 4,
	}
}

// Load reads a YAML geometry file at path, starting from Default() and
// overwriting only the fields the file sets. An empty path returns
// Default() unchanged.
func Load(path string) (Geometry, *kerr.Error) {
	geo := Default()
	if path == "" {
		return geo, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Geometry{}, kerr.IOf(module, "reading geometry config %q: %v", path, err)
	}
	if err := v.Unmarshal(&geo); err != nil {
		return Geometry{}, kerr.BadParameterf(module, "parsing geometry config %q: %v", path, err)
	}
	if verr := geo.Validate(); verr != nil {
		return Geometry{}, verr
	}
	return geo, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks that every field is positive and that line counts (which
// the TLB/cache set-index arithmetic derives via log2) are powers of two.
func (g Geometry) Validate() *kerr.Error {
	fields := []struct {
		name string
		val  int
	}{
		{"l1_tlb_lines", g.L1TLBLines},
		{"l2_tlb_lines", g.L2TLBLines},
		{"l1_ways", g.L1Ways},
		{"l1_lines", g.L1Lines},
		{"l2_ways", g.L2Ways},
		{"l2_lines", g.L2Lines},
		{"words_per_line", g.WordsPerLine},
	}
	for _, f := range fields {
		if f.val <= 0 {
			return kerr.BadParameterf(module, "%s must be positive, got %d", f.name, f.val)
		}
	}
	powerOfTwoFields := []struct {
		name string
		val  int
	}{
		{"l1_tlb_lines", g.L1TLBLines},
		{"l2_tlb_lines", g.L2TLBLines},
		{"l1_lines", g.L1Lines},
		{"l2_lines", g.L2Lines},
		{"words_per_line", g.WordsPerLine},
	}
	for _, f := range powerOfTwoFields {
		if !isPowerOfTwo(f.val) {
			return kerr.BadParameterf(module, "%s must be a power of two, got %d", f.name, f.val)
		}
	}
	return nil
}
