package linker

import (
	"sort"

	"github.com/litaotju/mold/pkg/utils"
)

// MergeableSection holds the pieces one input section was split into
// (§3 MergeableSection/StringPiece): a SHF_MERGE input section sliced at
// null terminators (SHF_STRINGS) or at fixed entsize boundaries.
// Fragments[i] is the pool-wide SectionFragment that Strs[i] interned
// into; multiple MergeableSections across files can point at the same
// SectionFragment when their content is identical.
type MergeableSection struct {
	Parent      *MergedSection
	File        *ObjectFile
	P2Align     uint8
	Strs        []string
	FragOffsets []uint32
	Fragments   []*SectionFragment

	// Size is this section's own local byte range, computed by
	// ComputeFragmentOffsets (§4.4 pass 2) over only the pieces it won.
	Size uint64
	// SectionOffset is this section's base offset within Parent,
	// assigned by MergedSection.AssignOffsets (§4.4 pass 3).
	SectionOffset uint64
}

// ComputeFragmentOffsets implements §4.4 pass 2: walk this section's own
// pieces in input order and, for every piece this section won, assign it
// the next local offset. Pieces won by some other section are skipped —
// they are laid out once, by their winner, not here. A repeated piece
// within this section takes the slot of its first occurrence, and running
// the pass again reproduces the same offsets and Size.
func (m *MergeableSection) ComputeFragmentOffsets() {
	offset := uint64(0)
	for i, frag := range m.Fragments {
		if frag.Winner() != m {
			continue
		}
		offset = utils.AlignTo(offset, uint64(1)<<frag.P2Align)
		if frag.AssignLocalOffset(uint32(offset)) || frag.LocalOffset() == int64(offset) {
			offset += uint64(len(m.Strs[i]))
		}
	}
	m.Size = offset
}

func (m *MergeableSection) GetFragment(offset uint32) (*SectionFragment, uint32) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})

	if pos == 0 {
		return nil, 0
	}

	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}
