package linker

import (
	"sync"
	"sync/atomic"

	"github.com/litaotju/mold/pkg/utils"
)

// MergedSection is the output-side counterpart of every MergeableSection
// sharing the same name/flags/type (§3 MergedSection): a content-addressed
// pool of SectionFragments plus the OutputChunk that eventually holds
// their single deduplicated copies.
type MergedSection struct {
	Chunk

	mu      sync.Mutex
	Map     map[string]*SectionFragment
	p2align uint32
}

func NewMergedSection(name string, flags uint64, typ uint32) *MergedSection {
	m := &MergedSection{
		Chunk: NewChunk(),
		Map:   make(map[string]*SectionFragment),
	}

	m.Name = name
	m.Shdr.Flags = flags
	m.Shdr.Type = typ
	return m
}

// GetMergedSectionInstance returns the MergedSection that every
// MergeableSection named name/flags/typ should intern its pieces into,
// creating one the first time a given name/flags/typ combination is seen.
func GetMergedSectionInstance(ctx *Context, name string, typ uint32, flags uint64) *MergedSection {
	name = GetOutputName(name, flags)

	flags = flags & ^uint64(ShfGroup) & ^uint64(ShfMerge) &
		^uint64(ShfStrings) & ^uint64(ShfCompressed)

	find := func() *MergedSection {
		for _, osec := range ctx.MergedSections {
			if name == osec.Name && flags == osec.Shdr.Flags && typ == osec.Shdr.Type {
				return osec
			}
		}
		return nil
	}

	if osec := find(); osec != nil {
		return osec
	}

	osec := NewMergedSection(name, flags, typ)
	ctx.MergedSections = append(ctx.MergedSections, osec)
	return osec
}

// Insert interns key into the shared pool, growing the fragment's
// recorded alignment if owner demands more, then runs §4.4 pass 1 to
// contend for ownership of the (possibly pre-existing) fragment. Called
// once per piece occurrence, concurrently across every file's
// RegisterSectionPieces.
func (m *MergedSection) Insert(owner *MergeableSection, key string, p2align uint32) *SectionFragment {
	m.mu.Lock()
	frag, ok := m.Map[key]
	if !ok {
		frag = NewSectionFragment(m)
		m.Map[key] = frag
	}
	if frag.P2Align < p2align {
		frag.P2Align = p2align
	}
	m.mu.Unlock()

	for {
		cur := atomic.LoadUint32(&m.p2align)
		if p2align <= cur {
			break
		}
		if atomic.CompareAndSwapUint32(&m.p2align, cur, p2align) {
			break
		}
	}

	frag.TryWin(owner)
	return frag
}

// AssignOffsets implements §4.4 passes 2 and 3: walk every contributing
// file's MergeableSections in input order, run each one's
// ComputeFragmentOffsets, give each a base offset within this
// MergedSection by accumulating local sizes, then fold that base into
// each won fragment's final Offset so every reference — regardless of
// which file it came from — resolves to the single physical copy.
func (m *MergedSection) AssignOffsets(ctx *Context) {
	offset := uint64(0)
	align := uint64(1) << atomic.LoadUint32(&m.p2align)

	var owned []*MergeableSection
	for _, obj := range ctx.Objs {
		for _, ms := range obj.MergeableSections {
			if ms == nil || ms.Parent != m {
				continue
			}
			ms.ComputeFragmentOffsets()
			owned = append(owned, ms)
		}
	}

	for _, ms := range owned {
		if ms.Size == 0 {
			continue
		}
		offset = utils.AlignTo(offset, align)
		ms.SectionOffset = offset
		offset += ms.Size
	}

	for _, ms := range owned {
		for _, frag := range ms.Fragments {
			if frag.Winner() != ms {
				continue
			}
			local := frag.LocalOffset()
			if local < 0 {
				continue
			}
			frag.Offset = uint32(ms.SectionOffset) + uint32(local)
			frag.IsAlive = true
		}
	}

	m.Shdr.Size = utils.AlignTo(offset, align)
	m.Shdr.AddrAlign = align
}

func (m *MergedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[m.Shdr.Offset:]
	for key, frag := range m.Map {
		if frag.IsAlive {
			copy(buf[frag.Offset:], key)
		}
	}
}
