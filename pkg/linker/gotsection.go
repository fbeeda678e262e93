package linker

import "github.com/litaotju/mold/pkg/utils"

// GotSection is ".got": one 8-byte slot per symbol needing NeedsGot or
// NeedsGotTp (§4.6). Slot values are resolved addresses for ordinary GOT
// entries and TP-relative offsets for the GOTTPOFF TLS model; the two
// need-kinds share one dense index space, assigned by AssignSlots.
type GotSection struct {
	Chunk
	numEntries int
}

func NewGotSection() *GotSection {
	o := &GotSection{Chunk: NewChunk()}
	o.Name = ".got"
	o.Shdr.Type = ShtProgbits
	o.Shdr.Flags = ShfAlloc | ShfWrite
	o.Shdr.AddrAlign = 8
	return o
}

func (o *GotSection) SetNumEntries(n int) {
	o.numEntries = n
	o.Shdr.Size = uint64(n) * 8
}

func (o *GotSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	for _, file := range ctx.AllFiles() {
		for _, sym := range file.Symbols[file.FirstGlobal:] {
			if sym.File != file {
				continue
			}
			// A slot owned by a DSO is left zero here; .rela.dyn's
			// GLOB_DAT entry is what the dynamic linker uses to fill
			// it in once the library is loaded.
			if sym.GotIdx >= 0 && !file.IsDSO {
				utils.Write[uint64](buf[sym.GotIdx*8:], sym.GetAddr())
			}
			if sym.GotTpIdx >= 0 {
				utils.Write[uint64](buf[sym.GotTpIdx*8:], sym.GetAddr()-ctx.TpAddr)
			}
		}
	}
}
