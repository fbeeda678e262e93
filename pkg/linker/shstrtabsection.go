package linker

// ShstrtabSection is ".shstrtab", the name pool the section header table
// points into. Built once, last, after every other chunk has its final
// name (merged-section names never change after §4.4's passes run).
type ShstrtabSection struct {
	Chunk
	buf     []byte
	offsets map[string]uint32
}

func NewShstrtabSection() *ShstrtabSection {
	o := &ShstrtabSection{Chunk: NewChunk(), offsets: map[string]uint32{}}
	o.Name = ".shstrtab"
	o.Shdr.Type = ShtStrtab
	o.Shdr.AddrAlign = 1
	o.buf = []byte{0}
	return o
}

func (o *ShstrtabSection) Build(ctx *Context) {
	for _, chunk := range ctx.Chunks {
		name := chunk.GetName()
		if name == "" || chunk.GetShndx() <= 0 {
			continue
		}
		if _, ok := o.offsets[name]; ok {
			continue
		}
		o.offsets[name] = uint32(len(o.buf))
		o.buf = append(o.buf, []byte(name)...)
		o.buf = append(o.buf, 0)
	}
	o.Shdr.Size = uint64(len(o.buf))
}

func (o *ShstrtabSection) Offset(name string) uint32 {
	return o.offsets[name]
}

func (o *ShstrtabSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[o.Shdr.Offset:], o.buf)
}
