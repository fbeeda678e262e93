package linker

import "github.com/litaotju/mold/pkg/utils"

// HashSection is ".hash": the classic SysV ELF hash table over .dynsym,
// letting the dynamic linker look up an exported symbol by name.
type HashSection struct {
	Chunk
}

func NewHashSection() *HashSection {
	o := &HashSection{Chunk: NewChunk()}
	o.Name = ".hash"
	o.Shdr.Type = ShtHash
	o.Shdr.Flags = ShfAlloc
	o.Shdr.AddrAlign = 4
	o.Shdr.EntSize = 4
	return o
}

// elfHash is the SysV ELF hash function (elf(5)).
func elfHash(name string) uint32 {
	var h uint32
	for _, c := range []byte(name) {
		h = (h << 4) + uint32(c)
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

func (o *HashSection) SetNumEntries(n int) {
	nbucket := uint32(n)
	if nbucket == 0 {
		nbucket = 1
	}
	o.Shdr.Size = uint64(2+int(nbucket)+n+1) * 4
}

func (o *HashSection) CopyBuf(ctx *Context) {
	syms := ctx.Dynsym.Symbols
	nbucket := uint32(len(syms))
	if nbucket == 0 {
		nbucket = 1
	}
	nchain := uint32(len(syms) + 1)

	buckets := make([]uint32, nbucket)
	chains := make([]uint32, nchain)
	for i, sym := range syms {
		idx := uint32(i + 1)
		b := elfHash(sym.Name) % nbucket
		chains[idx] = buckets[b]
		buckets[b] = idx
	}

	buf := ctx.Buf[o.Shdr.Offset:]
	utils.Write[uint32](buf[0:], nbucket)
	utils.Write[uint32](buf[4:], nchain)
	for i, b := range buckets {
		utils.Write[uint32](buf[8+i*4:], b)
	}
	for i, c := range chains {
		utils.Write[uint32](buf[8+int(nbucket)*4+i*4:], c)
	}
}
