package linker

import (
	"math"
	"sync/atomic"
	"unsafe"
)

/*
 * SectionFragment is a StringPiece (§3): a unique content unit interned
 * into a MergedSection's pool. winner is an atomic back-pointer to the
 * MergeableSection that currently owns this piece in the output — the
 * one with the lowest file priority among every section that contains
 * an identical piece (§4.4 pass 1). localOffset is -1 until the winning
 * section's own pass 2 assigns it a slot within that section's local
 * byte range; pass 3 then folds the section's base into Offset so
 * GetAddr resolves to the single physical copy regardless of which
 * file the reference came from.
 */
type SectionFragment struct {
	OutputSection *MergedSection
	Offset        uint32
	P2Align       uint32
	IsAlive       bool

	winner      unsafe.Pointer // *MergeableSection
	winnerPrio  int64
	localOffset int64
}

func NewSectionFragment(m *MergedSection) *SectionFragment {
	return &SectionFragment{
		OutputSection: m,
		Offset:        math.MaxUint32,
		winnerPrio:    math.MaxInt64,
		localOffset:   -1,
	}
}

// TryWin implements §4.4 pass 1: a CAS loop that elects the
// MergeableSection whose file has the lowest priority as this piece's
// winner. Ties cannot occur since priorities are unique per file.
func (s *SectionFragment) TryWin(m *MergeableSection) {
	prio := m.File.Priority
	for {
		cur := atomic.LoadPointer(&s.winner)
		if cur != nil && (*MergeableSection)(cur).File.Priority <= prio {
			return
		}
		if atomic.CompareAndSwapPointer(&s.winner, cur, unsafe.Pointer(m)) {
			return
		}
	}
}

func (s *SectionFragment) Winner() *MergeableSection {
	return (*MergeableSection)(atomic.LoadPointer(&s.winner))
}

// AssignLocalOffset implements §4.4 pass 2: the winning section assigns
// the next offset within its own local range exactly once.
func (s *SectionFragment) AssignLocalOffset(offset uint32) bool {
	return atomic.CompareAndSwapInt64(&s.localOffset, -1, int64(offset))
}

func (s *SectionFragment) LocalOffset() int64 {
	return atomic.LoadInt64(&s.localOffset)
}

func (s *SectionFragment) GetAddr() uint64 {
	return s.OutputSection.Shdr.Addr + uint64(s.Offset)
}
