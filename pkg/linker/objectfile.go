package linker

import (
	"bytes"
	"sync"

	"github.com/litaotju/mold/pkg/utils"
)

// ComdatGroup is one (signature, member-section-indices) pair read out of
// a SHT_GROUP section (§4.3).
type ComdatGroup struct {
	Signature string
	Indices   []uint32
}

/*
 * ObjectFile is the parsed view of one relocatable input: local and
 * global symbols, input sections, mergeable sections, COMDAT groups, and
 * the per-file counters/offsets the relocation scanner fills in.
 *
 * @SymtabSec: the SHT_SYMTAB section header, nil for files with no
 *   symbol table (possible for a lone archive member with only locals
 *   stripped, though rare in practice).
 * @SymtabShndxSec: SHT_SYMTAB_SHNDX extension for symbols whose section
 *   index doesn't fit in 16 bits.
 * @Sections: one *InputSection per ELF section, nil for sections this
 *   linker doesn't model as chunks (symtab, strtab, relocation tables,
 *   groups).
 * @MergeableSections: parallel array, populated for SHF_MERGE sections.
 * @ComdatGroups: every COMDAT group this file lists.
 * @IsDSO/@IsInArchive: file-kind flags from §3's data model.
 * Per-file synthetic-table counters and base offsets are plain ints:
 * §4.6 guarantees each is touched by exactly one goroutine (the one
 * processing this file) during slot assignment, so no atomics are
 * needed here even though the phase as a whole is data-parallel.
 */
type ObjectFile struct {
	InputFile
	SymtabSec      *Shdr
	SymtabShndxSec []uint32
	Sections       []*InputSection
	MergeableSections []*MergeableSection
	ComdatGroups   []*ComdatGroup

	IsDSO       bool
	IsInArchive bool

	NumGot, NumPlt, NumGotPlt, NumRelPlt, NumRelDyn int
	GotOffset, PltOffset, GotPltOffset, RelPltOffset, RelDynOffset int

	DynsymIdx int

	mu sync.Mutex
}

func NewObjectFile(ctx *Context, file *File, isAlive bool) *ObjectFile {
	o := &ObjectFile{InputFile: NewInputFile(file)}
	o.IsAlive = isAlive
	o.Priority = ctx.NextPriority()
	return o
}

func (o *ObjectFile) Parse(ctx *Context) {
	o.SymtabSec = o.FindSection(ShtSymtab)
	if o.SymtabSec != nil {
		o.FirstGlobal = int(o.SymtabSec.Info)
		o.FillUpElfSyms(o.SymtabSec)
		o.SymbolStrtab = o.GetBytesFromIdx(int64(o.SymtabSec.Link))
	}

	o.InitializeSections(ctx)
	o.InitializeComdatGroups(ctx)
	o.InitializeSymbols(ctx)
	o.InitializeMergeableSections(ctx)
	o.SkipEhframeSections()
}

// ParseDSO reads just enough of a shared object to intern its exported
// dynamic symbols at rankDSO — its sections, relocations, and section
// contents are never examined, since none of that is copied into the
// output (§3: ObjectFile.IsDSO files contribute no InputSections).
func (o *ObjectFile) ParseDSO(ctx *Context) {
	o.SymtabSec = o.FindSection(ShtDynsym)
	if o.SymtabSec != nil {
		o.FirstGlobal = 1
		o.FillUpElfSyms(o.SymtabSec)
		o.SymbolStrtab = o.GetBytesFromIdx(int64(o.SymtabSec.Link))
	}
	o.InitializeSymbols(ctx)
}

func (o *ObjectFile) InitializeSections(ctx *Context) {
	o.Sections = make([]*InputSection, len(o.ElfSections))
	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.ElfSections[i]
		switch shdr.Type {
		case ShtGroup, ShtSymtab, ShtStrtab, ShtRela, ShtNull:
			continue
		case ShtSymtabShndx:
			o.FillUpSymtabShndxSec(shdr)
		default:
			if shdr.Flags&ShfExclude != 0 {
				continue
			}
			name := ElfGetName(o.InputFile.ShStrtab, shdr.Name)
			o.Sections[i] = NewInputSection(ctx, name, o, uint32(i))
		}
	}

	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.InputFile.ElfSections[i]
		if shdr.Type != ShtRela {
			continue
		}
		utils.Assert(shdr.Info < uint32(len(o.Sections)))
		if target := o.Sections[shdr.Info]; target != nil {
			target.RelsecIdx = uint32(i)
		}
	}
}

// InitializeComdatGroups parses every SHT_GROUP section into a
// ComdatGroup and marks the member InputSections dead up front; COMDAT
// elimination (passes.go) later decides, across all files, which one
// file's sections actually stay alive.
func (o *ObjectFile) InitializeComdatGroups(ctx *Context) {
	for i := range o.ElfSections {
		shdr := &o.ElfSections[i]
		if shdr.Type != ShtGroup {
			continue
		}
		entries := utils.ReadSlice[uint32](o.GetBytesFromShdr(shdr), 4)
		if len(entries) == 0 || entries[0] != 1 { // GRP_COMDAT
			continue
		}
		sigSym := &o.ElfSyms[shdr.Info]
		sig := ElfGetName(o.SymbolStrtab, sigSym.Name)
		group := &ComdatGroup{
			Signature: sig,
			Indices:   entries[1:],
		}
		o.ComdatGroups = append(o.ComdatGroups, group)

		for _, idx := range group.Indices {
			if int(idx) < len(o.Sections) && o.Sections[idx] != nil {
				o.Sections[idx].IsAlive = false
			}
		}
	}
}

func (o *ObjectFile) FillUpSymtabShndxSec(s *Shdr) {
	bs := o.GetBytesFromShdr(s)
	o.SymtabShndxSec = utils.ReadSlice[uint32](bs, 4)
}

func (o *ObjectFile) InitializeSymbols(ctx *Context) {
	if o.SymtabSec == nil {
		return
	}

	o.LocalSymbols = make([]Symbol, o.FirstGlobal)
	for i := range o.LocalSymbols {
		o.LocalSymbols[i] = *NewSymbol("")
	}
	o.LocalSymbols[0].File = o

	for i := 1; i < len(o.LocalSymbols); i++ {
		esym := &o.ElfSyms[i]
		sym := &o.LocalSymbols[i]
		sym.Name = ElfGetName(o.SymbolStrtab, esym.Name)
		sym.File = o
		sym.Value = esym.Val
		sym.SymIdx = i

		if !esym.IsAbs() {
			sym.SetInputSection(o.Sections[o.GetShndx(esym, i)])
		}
	}

	o.Symbols = make([]*Symbol, len(o.ElfSyms))
	for i := range o.LocalSymbols {
		o.Symbols[i] = &o.LocalSymbols[i]
	}
	for i := len(o.LocalSymbols); i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		name := ElfGetName(o.SymbolStrtab, esym.Name)
		o.Symbols[i] = GetSymbolByName(ctx, name)
	}
}

func (o *ObjectFile) GetShndx(esym *Sym, idx int) int64 {
	utils.Assert(idx >= 0 && idx < len(o.ElfSyms))
	if esym.Shndx == uint16(ShnXindex) {
		return int64(o.SymtabShndxSec[idx])
	}
	return int64(esym.Shndx)
}

// rankFor reports this symbol's dominance rank as defined by esym, the file
// that defines it, and whether that definition is still lazy (§4.2).
func rankFor(o *ObjectFile, esym *Sym, isLazy bool) int {
	if isLazy {
		return rankLazy
	}
	if o.IsDSO {
		return rankDSO
	}
	if esym.IsCommon() {
		return rankCommon
	}
	return rankStrong
}

// ResolveSymbols implements §4.2 phase 1 ("register definitions"): every
// file, running concurrently with every other file, tries to claim
// ownership of each global symbol it defines via a CAS loop on the
// symbol's packed (rank, priority) owner field. Strongest rank wins;
// ties are broken by lower file priority, and archive members whose file
// is not yet alive register at the weaker "lazy" rank so a primary
// definition or an earlier, stronger archive member always outranks them.
func (o *ObjectFile) ResolveSymbols() {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsUndef() {
			continue
		}

		isLazy := o.IsInArchive && !o.IsAlive
		rank := rankFor(o, esym, isLazy)

		if rank == rankStrong {
			sym.noteStrongDefiner(o)
		}

		if !sym.TryClaim(rank, o.Priority) {
			continue
		}

		var isec *InputSection
		if !o.IsDSO && !esym.IsAbs() && !esym.IsCommon() {
			isec = o.GetSection(esym, i)
		}

		sym.File = o
		sym.SetInputSection(isec)
		sym.Value = esym.Val
		sym.SymIdx = i
		sym.IsWeak = esym.IsWeak()

		if sym.Traced {
			utils.TraceLogf("%s: claims %s", o.File.Name, sym.Name)
		}
	}
}

func (o *ObjectFile) GetSection(esym *Sym, idx int) *InputSection {
	shndx := o.GetShndx(esym, idx)
	if shndx < 0 || shndx >= int64(len(o.Sections)) {
		return nil
	}
	return o.Sections[shndx]
}

// MarkLiveObjects is the per-file step of §4.2 phase 2: for every
// undefined symbol this (now-alive) file references, if the file that
// currently owns it is a not-yet-alive archive member, flip it alive and
// feed it back into the work queue so the traversal continues from there.
func (o *ObjectFile) MarkLiveObjects(feeder func(*ObjectFile)) {
	utils.Assert(o.IsAlive)

	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if sym.File == nil || !esym.IsUndef() {
			continue
		}
		if sym.File.IsInArchive && !sym.File.IsAlive {
			sym.File.mu.Lock()
			alreadyAlive := sym.File.IsAlive
			sym.File.IsAlive = true
			sym.File.mu.Unlock()
			if !alreadyAlive {
				feeder(sym.File)
			}
		}
	}
}

func (o *ObjectFile) ClearSymbols() {
	for _, sym := range o.Symbols[o.FirstGlobal:] {
		if sym.File == o {
			sym.Clear()
		}
	}
}

// ValidateSymbols is §4.2 phase 3 and its failure mode, run once the
// archive pull-in traversal (phase 2) has settled: for every symbol this
// file references that nobody ever claimed, a weak reference is simply
// left alone (GetAddr already falls through to Value, zero by
// construction, so "bound as absolute zero" needs no further write); a
// non-weak reference is a fatal link error, unless the output is dynamic
// and can still pick it up from a shared library at load time.
func (o *ObjectFile) ValidateSymbols(ctx *Context) {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if sym.File != nil || !esym.IsUndef() || esym.IsWeak() {
			continue
		}
		if ctx.Args.Static {
			Fatalf("%s: undefined symbol: %s", o.File.Name, sym.Name)
		}
	}
}

func (o *ObjectFile) InitializeMergeableSections(ctx *Context) {
	o.MergeableSections = make([]*MergeableSection, len(o.Sections))
	for i := 0; i < len(o.Sections); i++ {
		isec := o.Sections[i]
		if isec != nil && isec.IsAlive && isec.Shdr().Flags&ShfMerge != 0 {
			o.MergeableSections[i] = splitSection(ctx, isec)
			isec.IsAlive = false
		}
	}
}

func findNull(data []byte, entSize int) int {
	if entSize == 1 {
		return bytes.IndexByte(data, 0)
	}
	for i := 0; i <= len(data)-entSize; i += entSize {
		if utils.AllZeros(data[i : i+entSize]) {
			return i
		}
	}
	return -1
}

func splitSection(ctx *Context, isec *InputSection) *MergeableSection {
	m := &MergeableSection{}
	shdr := isec.Shdr()

	m.Parent = GetMergedSectionInstance(ctx, isec.Name(), shdr.Type, shdr.Flags)
	m.File = isec.File
	m.P2Align = isec.P2Align

	data := isec.Contents
	offset := uint64(0)
	if shdr.Flags&ShfStrings != 0 {
		for len(data) > 0 {
			end := findNull(data, int(shdr.EntSize))
			if end == -1 {
				Fatalf("%s: string is not null terminated", isec.Name())
			}
			sz := uint64(end) + shdr.EntSize
			m.Strs = append(m.Strs, string(data[:sz]))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			data = data[sz:]
			offset += sz
		}
	} else {
		if shdr.EntSize == 0 || uint64(len(data))%shdr.EntSize != 0 {
			Fatalf("%s: section size is not a multiple of entsize", isec.Name())
		}
		for len(data) > 0 {
			m.Strs = append(m.Strs, string(data[:shdr.EntSize]))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			data = data[shdr.EntSize:]
			offset += shdr.EntSize
		}
	}

	return m
}

func (o *ObjectFile) RegisterSectionPieces() {
	for _, m := range o.MergeableSections {
		if m == nil {
			continue
		}
		m.Fragments = make([]*SectionFragment, 0, len(m.Strs))
		for i := range m.Strs {
			m.Fragments = append(m.Fragments, m.Parent.Insert(m, m.Strs[i], uint32(m.P2Align)))
		}
	}

	for i := 1; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
			continue
		}

		shndx := o.GetShndx(esym, i)
		if shndx < 0 || shndx >= int64(len(o.MergeableSections)) {
			continue
		}
		m := o.MergeableSections[shndx]
		if m == nil {
			continue
		}

		frag, fragOffset := m.GetFragment(uint32(esym.Val))
		if frag == nil {
			Fatalf("%s: bad symbol value for %s", o.File.Name, sym.Name)
		}
		sym.SetSectionFragment(frag)
		sym.Value = uint64(fragOffset)
	}
}

func (o *ObjectFile) SkipEhframeSections() {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Name() == ".eh_frame" {
			isec.IsAlive = false
		}
	}
}

func (o *ObjectFile) ScanRelocations(ctx *Context) {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Shdr().Flags&ShfAlloc != 0 {
			isec.ScanRelocations(ctx)
		}
	}
}

// AssignSlots is the per-file half of §4.6's "assign slots" step: iterate
// this file's own defined symbols and, based on the accumulated
// relocation-need bits, grow this file's local dense counters. Only this
// file's own goroutine ever touches these counters, so no synchronization
// is needed here — the cross-file prefix sum happens afterwards,
// sequentially, in passes.go.
func (o *ObjectFile) AssignSlots(ctx *Context) {
	assign := func(sym *Symbol) {
		rels := sym.Rels()
		if rels&NeedsGot != 0 && sym.GotIdx < 0 {
			sym.GotIdx = int32(o.NumGot)
			o.NumGot++
		}
		if rels&NeedsGotTp != 0 && sym.GotTpIdx < 0 {
			sym.GotTpIdx = int32(o.NumGot)
			o.NumGot++
		}
		if rels&(NeedsTlsGd|NeedsTlsLd) != 0 {
			Fatalf("TLSGD/TLSLD relocations are not implemented")
		}
		// In a static link the only PLT entries that exist at all are
		// IRELATIVE stubs for IFUNC resolvers: there's no dynamic linker
		// to JMP_SLOT-relocate a regular PLT entry against, so a
		// non-IFUNC symbol gets no PLT/GOTPLT/RELPLT slot when static.
		// PltIdx and GotPltIdx must stay in lockstep — PltSection.CopyBuf
		// wires stub i to GOTPLT slot 3+i positionally — so this can
		// never assign one without the other.
		if rels&NeedsPlt != 0 && sym.PltIdx < 0 && (!ctx.Args.Static || sym.IsIFunc()) {
			sym.PltIdx = int32(o.NumPlt)
			o.NumPlt++
			sym.GotPltIdx = int32(o.NumGotPlt)
			o.NumGotPlt++
			sym.RelPltIdx = int32(o.NumRelPlt)
			o.NumRelPlt++
		}
		// A GOT entry owned by a DSO can't be filled in at link time —
		// the dynamic linker must GLOB_DAT it in once the library is
		// mapped — so it needs a .rela.dyn entry instead of a static
		// value written by GotSection.CopyBuf.
		if !ctx.Args.Static && rels&NeedsGot != 0 && o.IsDSO {
			o.NumRelDyn++
		}
	}

	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		if sym.File == o {
			assign(sym)
		}
	}
}

// ApplySlotOffsets rebases every local index AssignSlots produced onto
// the global GOT/PLT/GOTPLT/RELPLT tables, using the GotOffset/PltOffset/
// GotPltOffset/RelPltOffset base this file was given by the sequential
// prefix sum that runs between the two data-parallel phases. Like
// AssignSlots, only this file's own goroutine touches these symbols.
func (o *ObjectFile) ApplySlotOffsets() {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		if sym.File != o {
			continue
		}
		if sym.GotIdx >= 0 {
			sym.GotIdx += int32(o.GotOffset)
		}
		if sym.GotTpIdx >= 0 {
			sym.GotTpIdx += int32(o.GotOffset)
		}
		if sym.PltIdx >= 0 {
			sym.PltIdx += int32(o.PltOffset)
		}
		if sym.GotPltIdx >= 0 {
			sym.GotPltIdx += int32(o.GotPltOffset)
		}
		if sym.RelPltIdx >= 0 {
			sym.RelPltIdx += int32(o.RelPltOffset)
		}
	}
}
