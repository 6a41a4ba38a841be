package cache

import (
	"memsim/kernel/kerr"
	"memsim/kernel/mem"
	"memsim/kernel/tlb"
)

const module = "cache"

func log2(n int) uint {
	var l uint
	for (1 << l) < n {
		l++
	}
	return l
}

type entry struct {
	valid bool
	tag   uint64
	words []uint32
}

// level is one direct or set-associative cache level (L1-I, L1-D, or L2).
// Index and tag are derived from a physical address as
// set = (P / lineBytes) mod lines, tag = P >> (log2(lineBytes)+log2(lines)).
type level struct {
	ways         int
	lines        int
	wordsPerLine int
	lineShift    uint
	linesLog2    uint
	entries      [][]entry
	ages         [][]int
}

func newLevel(ways, lines, wordsPerLine int) *level {
	entries := make([][]entry, lines)
	ages := make([][]int, lines)
	for s := range entries {
		entries[s] = make([]entry, ways)
		ages[s] = make([]int, ways)
	}
	return &level{
		ways:         ways,
		lines:        lines,
		wordsPerLine: wordsPerLine,
		lineShift:    log2(wordsPerLine * 4),
		linesLog2:    log2(lines),
		entries:      entries,
		ages:         ages,
	}
}

func (lv *level) setIndex(paddr uint32) uint64 {
	return (uint64(paddr) >> lv.lineShift) % uint64(lv.lines)
}

func (lv *level) tagOf(paddr uint32) uint64 {
	return uint64(paddr) >> (lv.lineShift + lv.linesLog2)
}

// lineBase reconstructs the physical address of the first byte of the line
// identified by (tag, set) in this level's geometry.
func (lv *level) lineBase(tag, set uint64) uint32 {
	return uint32(((tag << lv.linesLog2) | set) << lv.lineShift)
}

func (lv *level) wordIndex(paddr uint32) int {
	return int((paddr >> 2) % uint32(lv.wordsPerLine))
}

// flush zeroes every entry (C7's flush(cache) primitive).
func (lv *level) flush() {
	for s := range lv.entries {
		for w := range lv.entries[s] {
			lv.entries[s][w] = entry{}
			lv.ages[s][w] = 0
		}
	}
}

// probe computes (set, tag) for paddr and scans the set's ways for a valid
// match, applying the LRU update-on-hit primitive when found.
func (lv *level) probe(paddr uint32) (way int, hit bool) {
	set := lv.setIndex(paddr)
	tag := lv.tagOf(paddr)
	for w, e := range lv.entries[set] {
		if e.valid && e.tag == tag {
			UpdateOnHit(lv.ages[set], w)
			return w, true
		}
	}
	return -1, false
}

// pickVictim returns an invalid way if one exists in the set (evict=false),
// otherwise the way with maximal age (evict=true).
func (lv *level) pickVictim(set uint64) (way int, evict bool) {
	es := lv.entries[set]
	for w, e := range es {
		if !e.valid {
			return w, false
		}
	}
	ages := lv.ages[set]
	maxWay, maxAge := 0, -1
	for w, a := range ages {
		if a > maxAge {
			maxAge, maxWay = a, w
		}
	}
	return maxWay, true
}

// initEntry builds a fresh entry for paddr's line by copying
// wordsPerLine words starting at the line-aligned address from memory.
func (lv *level) initEntry(m *mem.Physical, paddr uint32) (entry, *kerr.Error) {
	set := lv.setIndex(paddr)
	tag := lv.tagOf(paddr)
	base := lv.lineBase(tag, set)
	words := make([]uint32, lv.wordsPerLine)
	for i := range words {
		w, err := m.ReadWord(base + uint32(i*4))
		if err != nil {
			return entry{}, err
		}
		words[i] = w
	}
	return entry{valid: true, tag: tag, words: words}, nil
}

// insert overwrites (set, way) with e and applies update-on-insert.
func (lv *level) insert(set uint64, way int, e entry) {
	lv.entries[set][way] = e
	UpdateOnInsert(lv.ages[set], way, lv.ways)
}

// Hierarchy is the split L1-I/L1-D plus unified L2 cache hierarchy of C7:
// N-way set-associative, write-through, with LRU replacement and
// victim-promotion/demotion between L1 and L2.
type Hierarchy struct {
	l1i *level
	l1d *level
	l2  *level
}

// NewHierarchy builds a Hierarchy. l1Ways/l1Lines describe the (identical)
// geometry of L1-I and L1-D; l2Ways/l2Lines describe L2; wordsPerLine is
// shared by every level.
func NewHierarchy(l1Ways, l1Lines, l2Ways, l2Lines, wordsPerLine int) *Hierarchy {
	return &Hierarchy{
		l1i: newLevel(l1Ways, l1Lines, wordsPerLine),
		l1d: newLevel(l1Ways, l1Lines, wordsPerLine),
		l2:  newLevel(l2Ways, l2Lines, wordsPerLine),
	}
}

// Flush resets every level to its power-on state.
func (h *Hierarchy) Flush() {
	h.l1i.flush()
	h.l1d.flush()
	h.l2.flush()
}

func (h *Hierarchy) l1For(kind tlb.AccessKind) *level {
	if kind == tlb.Instruction {
		return h.l1i
	}
	return h.l1d
}

// demoteToL2 writes a just-evicted L1 line back into L2, at whatever L2 set
// that line's own address maps to (which need not be the set of the line
// currently being installed into L1).
func (h *Hierarchy) demoteToL2(victim entry, l1 *level, l1Set uint64) {
	victimPaddr := l1.lineBase(victim.tag, l1Set)
	set2 := h.l2.setIndex(victimPaddr)
	tag2 := h.l2.tagOf(victimPaddr)
	way2, _ := h.l2.pickVictim(set2)
	h.l2.insert(set2, way2, entry{valid: true, tag: tag2, words: victim.words})
}

// refill installs fresh into l1 at paddr's line, demoting any evicted L1
// victim into L2 first. When alsoInstallL2 is set, fresh is also installed
// into L2 at paddr's own line (the path taken on a full miss in both
// levels).
func (h *Hierarchy) refill(l1 *level, paddr uint32, fresh entry, alsoInstallL2 bool) {
	set1 := l1.setIndex(paddr)
	tag1 := l1.tagOf(paddr)
	way1, evict := l1.pickVictim(set1)
	if evict {
		h.demoteToL2(l1.entries[set1][way1], l1, set1)
	}
	l1.insert(set1, way1, entry{valid: true, tag: tag1, words: fresh.words})

	if alsoInstallL2 {
		set2 := h.l2.setIndex(paddr)
		tag2 := h.l2.tagOf(paddr)
		way2, _ := h.l2.pickVictim(set2)
		h.l2.insert(set2, way2, entry{valid: true, tag: tag2, words: fresh.words})
	}
}

func checkAligned(paddr uint32) *kerr.Error {
	if paddr%4 != 0 {
		return kerr.BadParameterf(module, "word access at %#x is not 4-byte aligned", paddr)
	}
	return nil
}

// ReadWord reads one word, checking L1 then L2 before falling back to a
// memory fetch, refilling each level it passes through on a miss.
func (h *Hierarchy) ReadWord(m *mem.Physical, kind tlb.AccessKind, paddr uint32) (uint32, *kerr.Error) {
	if err := checkAligned(paddr); err != nil {
		return 0, err
	}
	l1 := h.l1For(kind)

	if way, hit := l1.probe(paddr); hit {
		set := l1.setIndex(paddr)
		return l1.entries[set][way].words[l1.wordIndex(paddr)], nil
	}

	if way, hit := h.l2.probe(paddr); hit {
		set := h.l2.setIndex(paddr)
		fresh := h.l2.entries[set][way]
		word := fresh.words[h.l2.wordIndex(paddr)]
		h.refill(l1, paddr, fresh, false)
		return word, nil
	}

	fresh, err := h.l2.initEntry(m, paddr)
	if err != nil {
		return 0, err
	}
	h.refill(l1, paddr, fresh, true)
	return fresh.words[h.l2.wordIndex(paddr)], nil
}

// WriteWord writes one word write-through, write-no-allocate: memory is
// always updated, an L1-D or L2 hit is updated in place, and a full miss
// leaves the caches untouched. Writes always target the data side;
// instruction writes are rejected upstream by the command parser.
func (h *Hierarchy) WriteWord(m *mem.Physical, paddr uint32, word uint32) *kerr.Error {
	if err := checkAligned(paddr); err != nil {
		return err
	}
	if err := m.WriteWord(paddr, word); err != nil {
		return err
	}

	if way, hit := h.l1d.probe(paddr); hit {
		set := h.l1d.setIndex(paddr)
		h.l1d.entries[set][way].words[h.l1d.wordIndex(paddr)] = word
		return nil
	}

	if way, hit := h.l2.probe(paddr); hit {
		set := h.l2.setIndex(paddr)
		h.l2.entries[set][way].words[h.l2.wordIndex(paddr)] = word
		h.refill(h.l1d, paddr, h.l2.entries[set][way], false)
		return nil
	}

	return nil // write-no-allocate: memory already updated, caches unchanged
}

// ReadByte reads a single byte, defined in terms of ReadWord: the
// containing word is read and the byte at the address's low two bits
// extracted little-endian.
func (h *Hierarchy) ReadByte(m *mem.Physical, kind tlb.AccessKind, paddr uint32) (byte, *kerr.Error) {
	aligned := paddr &^ 3
	word, err := h.ReadWord(m, kind, aligned)
	if err != nil {
		return 0, err
	}
	shift := 8 * (paddr & 3)
	return byte((word >> shift) & 0xFF), nil
}

// WriteByte writes a single byte by merging it into the containing word
// and performing a full word write-through; byte writes always go through
// the data side.
func (h *Hierarchy) WriteByte(m *mem.Physical, paddr uint32, value byte) *kerr.Error {
	aligned := paddr &^ 3
	word, err := h.ReadWord(m, tlb.Data, aligned)
	if err != nil {
		return err
	}
	shift := 8 * (paddr & 3)
	word = (word &^ (0xFF << shift)) | (uint32(value) << shift)
	return h.WriteWord(m, aligned, word)
}
