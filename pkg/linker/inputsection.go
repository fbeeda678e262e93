package linker

import (
	"math"
	"math/bits"

	"github.com/litaotju/mold/pkg/utils"
)

/*
 * InputSection mirrors one ELF section of one ObjectFile: its raw bytes,
 * the OutputSection it contributes to, its eventual intra-output offset,
 * and its relocation list. A section that turned out to be mergeable is
 * represented instead by a MergeableSection and has IsAlive cleared here
 * so it is never binned or copied as a regular chunk.
 *
 * @ShSize: tracked separately from len(Contents) since NOBITS (.bss)
 *   sections have a size but no backing bytes.
 * @P2Align: sh_addralign expressed as a power-of-two exponent.
 * @Offset: this section's byte offset within its OutputSection, assigned
 *   by the intra-section layout pass (§4.5); MaxUint32 until then.
 */
type InputSection struct {
	File     *ObjectFile
	Contents []byte
	Shndx    uint32
	ShSize   uint32
	IsAlive  bool
	P2Align  uint8

	Offset        uint32
	OutputSection *OutputSection

	RelsecIdx uint32
	Rels      []Rela
}

func NewInputSection(ctx *Context, name string, file *ObjectFile, shndx uint32) *InputSection {
	s := &InputSection{
		File:      file,
		Shndx:     shndx,
		IsAlive:   true,
		Offset:    math.MaxUint32,
		RelsecIdx: math.MaxUint32,
		ShSize:    math.MaxUint32,
	}

	shdr := s.Shdr()
	if shdr.Type != ShtNobits {
		s.Contents = file.File.Contents[shdr.Offset : shdr.Offset+shdr.Size]
	}
	utils.Assert(shdr.Flags&ShfCompressed == 0)
	s.ShSize = uint32(shdr.Size)

	toP2Align := func(align uint64) uint8 {
		if align == 0 {
			return 0
		}
		return uint8(bits.TrailingZeros64(align))
	}
	s.P2Align = toP2Align(shdr.AddrAlign)

	s.OutputSection = GetOutputSection(ctx, name, shdr.Type, shdr.Flags)

	return s
}

func (i *InputSection) Shdr() *Shdr {
	utils.Assert(i.Shndx < uint32(len(i.File.ElfSections)))
	return &i.File.ElfSections[i.Shndx]
}

func (i *InputSection) Name() string {
	return ElfGetName(i.File.ShStrtab, i.Shdr().Name)
}

func (i *InputSection) WriteTo(ctx *Context, buf []byte) {
	if i.Shdr().Type == ShtNobits || i.ShSize == 0 {
		return
	}
	i.CopyContents(buf)
	if i.Shdr().Flags&ShfAlloc != 0 {
		i.ApplyRelocAlloc(ctx, buf)
	}
}

func (i *InputSection) CopyContents(buf []byte) {
	copy(buf, i.Contents)
}

func (i *InputSection) GetRels() []Rela {
	if i.RelsecIdx == math.MaxUint32 || i.Rels != nil {
		return i.Rels
	}
	bs := i.File.GetBytesFromShdr(&i.File.InputFile.ElfSections[i.RelsecIdx])
	i.Rels = utils.ReadSlice[Rela](bs, RelaSize)
	return i.Rels
}

func (i *InputSection) GetAddr() uint64 {
	return i.OutputSection.Shdr.Addr + uint64(i.Offset)
}

// MakePlaceholder turns a losing COMDAT group member into a zero-size,
// alive placeholder (§4.3): it contributes no bytes and no relocations
// to the output, but stays alive and binned so a local symbol that still
// references it by section index resolves to a valid, empty section
// rather than a dangling dead one.
func (i *InputSection) MakePlaceholder() {
	i.Contents = nil
	i.ShSize = 0
	i.RelsecIdx = math.MaxUint32
	i.Rels = nil
	i.IsAlive = true
}

// ScanRelocations classifies this section's relocations (§4.6 "classify"):
// for each referenced symbol, OR the relevant need bits into its
// relaxed-atomic rels bitset. Called concurrently across every alive,
// allocatable section in the link.
func (i *InputSection) ScanRelocations(ctx *Context) {
	for _, rel := range i.GetRels() {
		symIdx := rel.Sym()
		if int(symIdx) >= len(i.File.Symbols) {
			continue
		}
		sym := i.File.Symbols[symIdx]
		if sym.File == nil {
			continue
		}

		switch rel.Type() {
		case RX8664GOT32, RX8664GOTPCRel, RX8664GOTPCRelX, RX8664RelaxedGOTPCRelX, RX8664GOTPC32, RX8664GOTOff64:
			sym.AddRels(NeedsGot)
		case RX8664PLT32:
			// A call to an IFUNC always goes through the PLT, even when
			// the call is within the same file: the actual target isn't
			// known until its resolver runs at load time.
			if sym.File != i.File || sym.IsIFunc() {
				sym.AddRels(NeedsPlt)
			}
		case RX8664GOTTPOff:
			sym.AddRels(NeedsGotTp)
		case RX8664TLSGD:
			sym.AddRels(NeedsTlsGd)
		case RX8664TLSLD:
			sym.AddRels(NeedsTlsLd)
		}

		if sym.Traced {
			utils.TraceLogf("%s: relocation %d references %s", i.Name(), rel.Type(), sym.Name)
		}
	}
}

// ApplyRelocAlloc applies every relocation in this section against the
// copy already placed at base (the writer's copy_to pass, §4.8). Only
// the x86-64 forms this linker actually needs to produce a runnable
// executable are implemented; anything else is an out-of-scope
// per-relocation-application concern left to an external collaborator.
func (i *InputSection) ApplyRelocAlloc(ctx *Context, base []byte) {
	rels := i.GetRels()

	for _, rel := range rels {
		if rel.Type() == RX8664None {
			continue
		}

		symIdx := rel.Sym()
		if int(symIdx) >= len(i.File.Symbols) {
			continue
		}
		sym := i.File.Symbols[symIdx]
		if sym.File == nil {
			continue
		}

		loc := base[rel.Offset:]
		S := sym.GetAddr()
		A := uint64(rel.Addend)
		P := i.GetAddr() + rel.Offset

		switch rel.Type() {
		case RX866464:
			utils.Write[uint64](loc, S+A)
		case RX866432, RX866432S:
			utils.Write[uint32](loc, uint32(S+A))
		case RX866416:
			utils.Write[uint16](loc, uint16(S+A))
		case RX86648:
			loc[0] = byte(S + A)
		case RX8664PC32:
			utils.Write[uint32](loc, uint32(S+A-P))
		case RX8664PLT32:
			// A call through the PLT must land on the PLT stub, not
			// the symbol's own (possibly still unresolved) address;
			// GetPltAddr falls back to S for a symbol that never
			// needed one.
			utils.Write[uint32](loc, uint32(sym.GetPltAddr(ctx)+A-P))
		case RX8664PC64:
			utils.Write[uint64](loc, S+A-P)
		case RX8664PC16:
			utils.Write[uint16](loc, uint16(S+A-P))
		case RX8664PC8:
			loc[0] = byte(S + A - P)
		case RX8664GOTPCRel, RX8664GOTPCRelX, RX8664RelaxedGOTPCRelX:
			utils.Write[uint32](loc, uint32(sym.GetGotAddr(ctx)+A-P))
		case RX8664GOT32:
			utils.Write[uint32](loc, uint32(sym.GetGotAddr(ctx)+A-ctx.Got.Shdr.Addr))
		case RX8664GOTTPOff:
			utils.Write[uint32](loc, uint32(sym.GetGotTpAddr(ctx)+A-P))
		case RX8664TPOff32:
			utils.Write[uint32](loc, uint32(S+A-ctx.TpAddr))
		case RX8664TPOff64:
			utils.Write[uint64](loc, S+A-ctx.TpAddr)
		case RX8664DTPOff32:
			utils.Write[uint32](loc, uint32(S+A))
		case RX8664DTPOff64:
			utils.Write[uint64](loc, S+A)
		case RX8664TLSGD, RX8664TLSLD:
			Fatalf("%s: TLSGD/TLSLD relocations are not implemented", i.Name())
		}
	}
}
