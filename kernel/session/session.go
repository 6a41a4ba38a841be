// Package session wires physical memory, the TLB hierarchy, and the cache
// hierarchy into one owner and drives the command executor (C8). The
// single-struct-owns-everything shape follows the original kernel's
// PageDirectoryTable (one struct owning the resources of one address
// space); here one Session owns the resources of one simulator run.
package session

import (
	"io"

	"github.com/sirupsen/logrus"

	"memsim/internal/config"
	"memsim/kernel/cache"
	"memsim/kernel/kerr"
	"memsim/kernel/mem"
	"memsim/kernel/program"
	"memsim/kernel/tlb"
)

const module = "session"

// Session is not safe for concurrent use from multiple goroutines: it owns
// one physical-memory buffer, one TLB hierarchy, and one cache hierarchy,
// mutated in place by every Execute call.
type Session struct {
	Mem   *mem.Physical
	TLB   *tlb.Hierarchy
	Cache *cache.Hierarchy

	log   *logrus.Logger
	trace bool
}

// New builds a Session over an already-loaded physical memory, sizing the
// TLB and cache hierarchies from geo.
func New(m *mem.Physical, geo config.Geometry) *Session {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	return &Session{
		Mem:   m,
		TLB:   tlb.NewHierarchy(geo.L1TLBLines, geo.L2TLBLines),
		Cache: cache.NewHierarchy(geo.L1Ways, geo.L1Lines, geo.L2Ways, geo.L2Lines, geo.WordsPerLine),
		log:   log,
	}
}

// EnableTrace turns on a structured logrus trace line per executed
// command, written to w.
func (s *Session) EnableTrace(w io.Writer) {
	s.trace = true
	s.log.SetOutput(w)
	s.log.SetLevel(logrus.DebugLevel)
}

// Execute translates cmd's virtual address through the TLB hierarchy,
// then dispatches to the cache hierarchy's read or write path according
// to cmd's order and data size.
func (s *Session) Execute(cmd program.Command) (uint32, *kerr.Error) {
	paddr, l1Hit, err := s.TLB.Search(s.Mem, cmd.VAddr, cmd.Kind)
	if err != nil {
		if s.trace {
			s.log.WithFields(logrus.Fields{
				"line":  cmd.Line,
				"vaddr": cmd.VAddr.String(),
				"stage": "tlb",
			}).WithError(err).Debug("translation failed")
		}
		return 0, err
	}

	result, rerr := s.dispatch(cmd, paddr.Uint32())

	if s.trace {
		fields := logrus.Fields{
			"line":   cmd.Line,
			"order":  cmd.Order.String(),
			"kind":   cmd.Kind.String(),
			"size":   cmd.DataSize,
			"vaddr":  cmd.VAddr.String(),
			"paddr":  paddr.String(),
			"tlbHit": l1Hit,
			"result": result,
		}
		if rerr != nil {
			s.log.WithFields(fields).WithError(rerr).Debug("command failed")
		} else {
			s.log.WithFields(fields).Debug("command executed")
		}
	}

	return result, rerr
}

func (s *Session) dispatch(cmd program.Command, paddr uint32) (uint32, *kerr.Error) {
	switch {
	case cmd.Order == program.Read && cmd.DataSize == 4:
		return s.Cache.ReadWord(s.Mem, cmd.Kind, paddr)
	case cmd.Order == program.Read && cmd.DataSize == 1:
		b, err := s.Cache.ReadByte(s.Mem, cmd.Kind, paddr)
		return uint32(b), err
	case cmd.Order == program.Write && cmd.DataSize == 4:
		err := s.Cache.WriteWord(s.Mem, paddr, cmd.WriteData)
		return cmd.WriteData, err
	case cmd.Order == program.Write && cmd.DataSize == 1:
		err := s.Cache.WriteByte(s.Mem, paddr, byte(cmd.WriteData))
		return uint32(byte(cmd.WriteData)), err
	default:
		return 0, kerr.BadParameterf(module, "unsupported command shape order=%v size=%d", cmd.Order, cmd.DataSize)
	}
}

// Run executes every command in prog in order, stopping at the first
// error. It returns the results produced so far and, if execution stopped
// early, the error that stopped it.
func (s *Session) Run(prog *program.Program) ([]uint32, *kerr.Error) {
	results := make([]uint32, 0, len(prog.Commands))
	for _, cmd := range prog.Commands {
		word, err := s.Execute(cmd)
		if err != nil {
			return results, err
		}
		results = append(results, word)
	}
	return results, nil
}
