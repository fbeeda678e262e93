package linker

import "github.com/litaotju/mold/pkg/utils"

// GotPltSection is ".got.plt": the three dynamic-linker-reserved slots
// (_DYNAMIC, link_map, PLT resolver) followed by one slot per NeedsPlt
// symbol, lazily bound to jump back into that symbol's own PLT stub
// until the dynamic linker resolves and overwrites it.
type GotPltSection struct {
	Chunk
	numEntries int
}

func NewGotPltSection() *GotPltSection {
	o := &GotPltSection{Chunk: NewChunk()}
	o.Name = ".got.plt"
	o.Shdr.Type = ShtProgbits
	o.Shdr.Flags = ShfAlloc | ShfWrite
	o.Shdr.AddrAlign = 8
	o.Shdr.Size = 24
	return o
}

func (o *GotPltSection) SetNumEntries(n int) {
	o.numEntries = n
	o.Shdr.Size = uint64(n+3) * 8
}

func (o *GotPltSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	if ctx.Dynamic != nil {
		utils.Write[uint64](buf[0:], ctx.Dynamic.Shdr.Addr)
	}
	for i := 0; i < o.numEntries; i++ {
		stub := ctx.Plt.Shdr.Addr + uint64(i+1)*16 + 6
		utils.Write[uint64](buf[(3+i)*8:], stub)
	}
}
