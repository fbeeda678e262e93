package linker

import "github.com/litaotju/mold/pkg/utils"

// OutputShdr is the section header table chunk: index 0 is the
// mandatory all-zero null section, followed by one header per chunk
// that was given a section index (GetShndx > 0) by AssignShndx.
type OutputShdr struct {
	Chunk
}

func NewOutputShdr() *OutputShdr {
	o := &OutputShdr{Chunk: NewChunk()}
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputShdr) UpdateShdr(ctx *Context) {
	n := int64(0)
	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() > n {
			n = chunk.GetShndx()
		}
	}
	o.Shdr.Size = uint64(n+1) * uint64(ShdrSize)
}

func (o *OutputShdr) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	utils.Write[Shdr](base, Shdr{})

	for _, chunk := range ctx.Chunks {
		if idx := chunk.GetShndx(); idx > 0 {
			utils.Write[Shdr](base[idx*int64(ShdrSize):], *chunk.GetShdr())
		}
	}
}

// AssignShndx numbers every chunk that needs a section header entry —
// everything except the three header chunks (ELF header, program header
// table, section header table), which are described by the program
// header and ELF header instead (§4.7).
func AssignShndx(ctx *Context) {
	idx := int64(1)
	for _, chunk := range ctx.Chunks {
		switch chunk.(type) {
		case *OutputEhdr, *OutputPhdr, *OutputShdr:
			continue
		}
		chunk.SetShndx(idx)
		idx++
	}
}
