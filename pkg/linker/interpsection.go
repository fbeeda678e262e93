package linker

// OutputInterp is the ".interp" chunk naming the dynamic linker,
// present whenever the link isn't -static.
type OutputInterp struct {
	Chunk
}

func NewOutputInterp() *OutputInterp {
	o := &OutputInterp{Chunk: NewChunk()}
	o.Name = ".interp"
	o.Shdr.Type = ShtProgbits
	o.Shdr.Flags = ShfAlloc
	o.Shdr.AddrAlign = 1
	o.Shdr.Size = uint64(len(DefaultInterp) + 1)
	return o
}

func (o *OutputInterp) CopyBuf(ctx *Context) {
	copy(ctx.Buf[o.Shdr.Offset:], DefaultInterp)
}
