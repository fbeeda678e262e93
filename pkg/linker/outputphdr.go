package linker

import "github.com/litaotju/mold/pkg/utils"

// OutputPhdr is the program header table chunk. Its contents depend on
// the final, sorted chunk order, so it is sized and filled in during
// layout (§4.7), after SortOutputSections and SetOutputSectionOffsets
// have run once to place everything else.
type OutputPhdr struct {
	Chunk
	Phdrs []Phdr
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{Chunk: NewChunk()}
	o.Shdr.Flags = ShfAlloc
	o.Shdr.AddrAlign = 8
	return o
}

func ToPhdrFlags(chunk Chunker) uint32 {
	ret := PfR
	if chunk.GetShdr().Flags&ShfWrite != 0 {
		ret |= PfW
	}
	if chunk.GetShdr().Flags&ShfExecinstr != 0 {
		ret |= PfX
	}
	return ret
}

// isTbss reports whether chunk is the zero-initialized TLS image —
// like .bss it contributes no file bytes, and unlike .bss it does not
// advance the running vaddr either; it is left out of every PT_LOAD
// and covered only by PT_TLS.
func isTbss(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return shdr.Type == ShtNobits && shdr.Flags&ShfTls != 0
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// CreatePhdr builds the PT_PHDR/PT_INTERP/PT_NOTE/PT_LOAD/PT_TLS/
// PT_DYNAMIC segments (PT_INTERP and PT_DYNAMIC only when .interp and
// .dynamic exist, i.e. for a dynamic link) covering
// ctx.Chunks in its final sorted order (§4.7), grouping consecutive
// chunks that share read/write/exec permissions into one PT_LOAD so the
// loader maps them with one mmap instead of one per section.
func CreatePhdr(ctx *Context) []Phdr {
	var vec []Phdr

	define := func(typ, flags uint32, minAlign uint64, chunk Chunker) {
		shdr := chunk.GetShdr()
		p := Phdr{
			Type:     typ,
			Flags:    flags,
			Align:    maxU64(minAlign, shdr.AddrAlign),
			Offset:   shdr.Offset,
			VAddr:    shdr.Addr,
			PAddr:    shdr.Addr,
			FileSize: shdr.Size,
			MemSize:  shdr.Size,
		}
		if shdr.Type == ShtNobits {
			p.FileSize = 0
		}
		vec = append(vec, p)
	}

	push := func(chunk Chunker) {
		p := &vec[len(vec)-1]
		shdr := chunk.GetShdr()
		p.Align = maxU64(p.Align, shdr.AddrAlign)
		end := shdr.Addr + shdr.Size
		if shdr.Type != ShtNobits {
			p.FileSize = end - p.VAddr
		}
		p.MemSize = end - p.VAddr
	}

	isTls := func(c Chunker) bool { return c.GetShdr().Flags&ShfTls != 0 }
	isBss := func(c Chunker) bool { return c.GetShdr().Type == ShtNobits && !isTls(c) }
	isNote := func(c Chunker) bool {
		shdr := c.GetShdr()
		return shdr.Type == ShtNote && shdr.Flags&ShfAlloc != 0
	}

	define(PtPhdr, PfR, 8, ctx.Phdr)

	if ctx.Interp != nil {
		define(PtInterp, PfR, 1, ctx.Interp)
	}

	for i := 0; i < len(ctx.Chunks); {
		first := ctx.Chunks[i]
		i++
		if !isNote(first) {
			continue
		}
		flags := ToPhdrFlags(first)
		define(PtNote, flags, first.GetShdr().AddrAlign, first)
		for i < len(ctx.Chunks) && isNote(ctx.Chunks[i]) && ToPhdrFlags(ctx.Chunks[i]) == flags {
			push(ctx.Chunks[i])
			i++
		}
	}

	{
		chunks := make([]Chunker, 0, len(ctx.Chunks))
		for _, c := range ctx.Chunks {
			if !isTbss(c) {
				chunks = append(chunks, c)
			}
		}

		for i := 0; i < len(chunks); {
			first := chunks[i]
			i++
			if first.GetShdr().Flags&ShfAlloc == 0 {
				break
			}

			flags := ToPhdrFlags(first)
			define(PtLoad, flags, PageSize, first)

			if !isBss(first) {
				for i < len(chunks) && !isBss(chunks[i]) && ToPhdrFlags(chunks[i]) == flags {
					push(chunks[i])
					i++
				}
			}
			for i < len(chunks) && isBss(chunks[i]) && ToPhdrFlags(chunks[i]) == flags {
				push(chunks[i])
				i++
			}
		}
	}

	tlsStart := len(vec)
	for i := 0; i < len(ctx.Chunks); i++ {
		if !isTls(ctx.Chunks[i]) {
			continue
		}
		define(PtTls, ToPhdrFlags(ctx.Chunks[i]), 1, ctx.Chunks[i])
		i++
		for i < len(ctx.Chunks) && isTls(ctx.Chunks[i]) {
			push(ctx.Chunks[i])
			i++
		}
		break
	}
	if len(vec) > tlsStart {
		ctx.TpAddr = vec[tlsStart].VAddr
	}

	if ctx.Dynamic != nil {
		define(PtDynamic, ToPhdrFlags(ctx.Dynamic), 8, ctx.Dynamic)
	}

	return vec
}

func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Phdrs = CreatePhdr(ctx)
	o.Shdr.Size = uint64(len(o.Phdrs)) * uint64(ProgramHeaderSize)
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	utils.Write[[]Phdr](ctx.Buf[o.Shdr.Offset:], o.Phdrs)
}
