package linker

import "github.com/litaotju/mold/pkg/utils"

// DynsymSection is ".dynsym": the subset of global symbols the dynamic
// linker needs to know about, because something in the link referenced
// them through the GOT, GOTPLT, or PLT. Entry 0 is the mandatory null
// symbol; DynsymIdx on each Symbol is assigned by Context.BuildDynsym.
type DynsymSection struct {
	Chunk
	Symbols []*Symbol
}

func NewDynsymSection() *DynsymSection {
	o := &DynsymSection{Chunk: NewChunk()}
	o.Name = ".dynsym"
	o.Shdr.Type = ShtDynsym
	o.Shdr.Flags = ShfAlloc
	o.Shdr.AddrAlign = 8
	o.Shdr.EntSize = uint64(SymSize)
	o.Shdr.Info = 1
	o.Shdr.Size = uint64(SymSize)
	return o
}

// BuildDynsym scans every live symbol once, sequentially, and assigns
// DynsymIdx to every one the dynamic tables need to name. Kept
// sequential since it's a single linear scan over already-small
// per-file symbol tables.
func (ctx *Context) BuildDynsym() {
	for _, file := range ctx.AllFiles() {
		for _, sym := range file.Symbols[file.FirstGlobal:] {
			if sym.File != file {
				continue
			}
			if sym.GotIdx < 0 && sym.GotTpIdx < 0 && sym.GotPltIdx < 0 && sym.PltIdx < 0 {
				continue
			}
			// An IFUNC's PLT entry resolves via IRELATIVE, not a symbol
			// lookup, so it needs no .dynsym entry at all.
			if sym.IsIFunc() {
				continue
			}
			sym.DynsymIdx = int32(len(ctx.Dynsym.Symbols) + 1)
			ctx.Dynsym.Symbols = append(ctx.Dynsym.Symbols, sym)
			ctx.Dynstr.AddString(sym.Name)
		}
	}
	ctx.Dynsym.Shdr.Size = uint64(len(ctx.Dynsym.Symbols)+1) * uint64(SymSize)
}

func (o *DynsymSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	for i, sym := range o.Symbols {
		esym := Sym{
			Name: uint32(ctx.Dynstr.Offset(sym.Name)),
			Info: byte(StbGlobal << 4),
		}
		// A symbol this binary exports keeps its real address so a
		// program dlopen-ing it can resolve it; one imported from a
		// DSO stays SHN_UNDEF/0, exactly as ld.so expects to find it
		// before filling it in itself.
		if sym.File != nil && !sym.File.IsDSO {
			esym.Val = sym.GetAddr()
		}
		utils.Write[Sym](buf[(i+1)*SymSize:], esym)
	}
}
