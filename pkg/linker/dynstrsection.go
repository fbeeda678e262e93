package linker

// DynstrSection is ".dynstr": the null-terminated name pool backing
// .dynsym, built incrementally as BuildDynsym registers each symbol.
type DynstrSection struct {
	Chunk
	buf     []byte
	offsets map[string]uint32
}

func NewDynstrSection() *DynstrSection {
	o := &DynstrSection{Chunk: NewChunk(), offsets: map[string]uint32{}}
	o.Name = ".dynstr"
	o.Shdr.Type = ShtStrtab
	o.Shdr.Flags = ShfAlloc
	o.Shdr.AddrAlign = 1
	o.buf = []byte{0}
	o.Shdr.Size = 1
	return o
}

func (o *DynstrSection) AddString(name string) {
	if _, ok := o.offsets[name]; ok {
		return
	}
	o.offsets[name] = uint32(len(o.buf))
	o.buf = append(o.buf, []byte(name)...)
	o.buf = append(o.buf, 0)
	o.Shdr.Size = uint64(len(o.buf))
}

func (o *DynstrSection) Offset(name string) uint32 {
	return o.offsets[name]
}

func (o *DynstrSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[o.Shdr.Offset:], o.buf)
}
