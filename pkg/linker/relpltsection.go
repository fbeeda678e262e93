package linker

import "github.com/litaotju/mold/pkg/utils"

// RelPltSection is ".rela.plt": one R_X86_64_JMP_SLOT entry per PLT
// symbol, pointing the dynamic linker at the GOTPLT slot it must
// overwrite once it has resolved that symbol, or an R_X86_64_IRELATIVE
// entry for an IFUNC symbol, whose addend is the resolver's address.
type RelPltSection struct {
	Chunk
}

func NewRelPltSection() *RelPltSection {
	o := &RelPltSection{Chunk: NewChunk()}
	o.Name = ".rela.plt"
	o.Shdr.Type = ShtRela
	o.Shdr.Flags = ShfAlloc | ShfInfoLink
	o.Shdr.AddrAlign = 8
	o.Shdr.EntSize = uint64(RelaSize)
	return o
}

func (o *RelPltSection) SetNumEntries(n int) {
	o.Shdr.Size = uint64(n) * uint64(RelaSize)
}

func (o *RelPltSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	for _, file := range ctx.AllFiles() {
		for _, sym := range file.Symbols[file.FirstGlobal:] {
			if sym.File != file || sym.RelPltIdx < 0 {
				continue
			}
			var rel Rela
			if sym.IsIFunc() {
				// Resolved locally at load time: the addend is the
				// resolver's own address, no .dynsym symbol involved.
				rel = Rela{
					Offset: sym.GetGotPltAddr(ctx),
					Info:   uint64(RX8664IRelative),
					Addend: int64(sym.GetAddr()),
				}
			} else {
				rel = Rela{
					Offset: sym.GetGotPltAddr(ctx),
					Info:   uint64(RX8664JumpSlot) | uint64(sym.DynsymIdx)<<32,
				}
			}
			utils.Write[Rela](buf[sym.RelPltIdx*int32(RelaSize):], rel)
		}
	}
}
