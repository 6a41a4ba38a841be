package tlb

import (
	"memsim/kernel/addr"
	"memsim/kernel/kerr"
	"memsim/kernel/mem"
	"memsim/kernel/vmm"
)

type simpleEntry struct {
	valid bool
	tag   uint64
	ppn   uint32
}

// SimpleTLB is the fully-associative TLB of C4: TLB_LINES entries, tag
// equal to the full VPN, and a pluggable ReplacementPolicy collaborator.
type SimpleTLB struct {
	entries []simpleEntry
	policy  ReplacementPolicy
}

// NewSimpleTLB builds a SimpleTLB of the given line count using the
// default doubly linked list LRU policy.
func NewSimpleTLB(lines int) *SimpleTLB {
	return NewSimpleTLBWithPolicy(lines, NewLRUList(lines))
}

// NewSimpleTLBWithPolicy builds a SimpleTLB using a caller-supplied
// replacement policy.
func NewSimpleTLBWithPolicy(lines int, policy ReplacementPolicy) *SimpleTLB {
	return &SimpleTLB{entries: make([]simpleEntry, lines), policy: policy}
}

// Hit scans entries in most-recently-used-first order, comparing the full
// VPN against each valid entry's tag. On match it fills paddr, moves the
// hit line to the back of the policy, and returns true.
func (t *SimpleTLB) Hit(vaddr addr.Virtual) (addr.Physical, bool, *kerr.Error) {
	vpn := vaddr.VPN()
	for _, idx := range t.policy.MostRecentFirst() {
		e := t.entries[idx]
		if e.valid && e.tag == vpn {
			p, err := addr.FromPPN(e.ppn, vaddr.Offset())
			if err != nil {
				return 0, false, err
			}
			if err := t.policy.MoveBack(idx); err != nil {
				return 0, false, err
			}
			return p, true, nil
		}
	}
	return 0, false, nil
}

// Search implements C4's full contract: try Hit; on miss, page-walk,
// install the new entry at the policy's front (the current victim), and
// move that line to the back.
func (t *SimpleTLB) Search(m *mem.Physical, vaddr addr.Virtual) (addr.Physical, bool, *kerr.Error) {
	if p, hit, err := t.Hit(vaddr); err != nil {
		return 0, false, err
	} else if hit {
		return p, true, nil
	}

	p, err := vmm.Walk(m, vaddr)
	if err != nil {
		return 0, false, err
	}
	victim, err := t.policy.Front()
	if err != nil {
		return 0, false, err
	}
	t.entries[victim] = simpleEntry{valid: true, tag: vaddr.VPN(), ppn: p.PPN()}
	if err := t.policy.MoveBack(victim); err != nil {
		return 0, false, err
	}
	return p, false, nil
}
