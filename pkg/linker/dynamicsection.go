package linker

import "github.com/litaotju/mold/pkg/utils"

// DynamicSection is ".dynamic": the DT_* tag/value pairs that point the
// dynamic linker at every other dynamic-linking chunk.
type DynamicSection struct {
	Chunk
	entries []Dyn
}

func NewDynamicSection() *DynamicSection {
	o := &DynamicSection{Chunk: NewChunk()}
	o.Name = ".dynamic"
	o.Shdr.Type = ShtDynamic
	o.Shdr.Flags = ShfAlloc | ShfWrite
	o.Shdr.AddrAlign = 8
	o.Shdr.EntSize = uint64(DynSize)
	return o
}

// UpdateShdr only fixes the entry count (and so the section size): it
// runs before SetOutputSectionOffsets has assigned every other chunk its
// final address, so the values themselves are filled in later, in
// CopyBuf.
func (o *DynamicSection) UpdateShdr(ctx *Context) {
	n := 5 // DT_HASH, DT_STRTAB, DT_SYMTAB, DT_STRSZ, DT_SYMENT
	if ctx.RelDyn.Shdr.Size > 0 {
		n += 3 // DT_RELA, DT_RELASZ, DT_RELAENT
	}
	if ctx.RelPlt.Shdr.Size > 0 {
		n += 1 // DT_JMPREL
	}
	n += 1 // DT_NULL

	o.Shdr.Size = uint64(n) * uint64(DynSize)
}

func (o *DynamicSection) CopyBuf(ctx *Context) {
	push := func(tag int64, val uint64) { o.entries = append(o.entries, Dyn{Tag: tag, Val: val}) }

	push(DtHash, ctx.Hash.Shdr.Addr)
	push(DtStrtab, ctx.Dynstr.Shdr.Addr)
	push(DtSymtab, ctx.Dynsym.Shdr.Addr)
	push(DtStrSz, ctx.Dynstr.Shdr.Size)
	push(DtSymEnt, uint64(SymSize))
	if ctx.RelDyn.Shdr.Size > 0 {
		push(DtRela, ctx.RelDyn.Shdr.Addr)
		push(DtRelaSz, ctx.RelDyn.Shdr.Size)
		push(DtRelaEnt, uint64(RelaSize))
	}
	if ctx.RelPlt.Shdr.Size > 0 {
		push(DtJmpRel, ctx.RelPlt.Shdr.Addr)
	}
	push(DtNull, 0)

	utils.Write[[]Dyn](ctx.Buf[o.Shdr.Offset:], o.entries)
}
