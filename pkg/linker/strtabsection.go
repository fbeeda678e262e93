package linker

// StrtabSection is ".strtab", the name pool backing .symtab.
type StrtabSection struct {
	Chunk
	buf     []byte
	offsets map[string]uint32
}

func NewStrtabSection() *StrtabSection {
	o := &StrtabSection{Chunk: NewChunk(), offsets: map[string]uint32{}}
	o.Name = ".strtab"
	o.Shdr.Type = ShtStrtab
	o.Shdr.AddrAlign = 1
	o.buf = []byte{0}
	o.Shdr.Size = 1
	return o
}

func (o *StrtabSection) AddString(name string) {
	if _, ok := o.offsets[name]; ok {
		return
	}
	o.offsets[name] = uint32(len(o.buf))
	o.buf = append(o.buf, []byte(name)...)
	o.buf = append(o.buf, 0)
	o.Shdr.Size = uint64(len(o.buf))
}

func (o *StrtabSection) Offset(name string) uint32 {
	return o.offsets[name]
}

func (o *StrtabSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[o.Shdr.Offset:], o.buf)
}
