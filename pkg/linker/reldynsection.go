package linker

import "github.com/litaotju/mold/pkg/utils"

// RelDynSection is ".rela.dyn": one R_X86_64_GLOB_DAT entry per GOT
// slot whose value can only be known at load time, because the symbol
// it addresses is defined in a DSO (§4.6's NumRelDyn counter).
type RelDynSection struct {
	Chunk
}

func NewRelDynSection() *RelDynSection {
	o := &RelDynSection{Chunk: NewChunk()}
	o.Name = ".rela.dyn"
	o.Shdr.Type = ShtRela
	o.Shdr.Flags = ShfAlloc
	o.Shdr.AddrAlign = 8
	o.Shdr.EntSize = uint64(RelaSize)
	return o
}

func (o *RelDynSection) SetNumEntries(n int) {
	o.Shdr.Size = uint64(n) * uint64(RelaSize)
}

func (o *RelDynSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	i := 0
	for _, file := range ctx.AllFiles() {
		if !file.IsDSO {
			continue
		}
		for _, sym := range file.Symbols[file.FirstGlobal:] {
			if sym.File != file || sym.GotIdx < 0 {
				continue
			}
			if sym.Rels()&NeedsGot == 0 {
				continue
			}
			rel := Rela{
				Offset: sym.GetGotAddr(ctx),
				Info:   uint64(RX8664GlobDat) | uint64(sym.DynsymIdx)<<32,
			}
			utils.Write[Rela](buf[i*RelaSize:], rel)
			i++
		}
	}
}
