package linker

import "github.com/litaotju/mold/pkg/utils"

// OutputEhdr is the file's ELF header chunk, always first in ctx.Chunks.
type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	o := &OutputEhdr{Chunk: NewChunk()}
	o.Shdr.Flags = ShfAlloc
	o.Shdr.Size = uint64(EhdrSize)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	var ehdr Ehdr
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[4] = 2 // ELFCLASS64
	ehdr.Ident[5] = 1 // ELFDATA2LSB
	ehdr.Ident[6] = 1 // EV_CURRENT

	ehdr.Type = EtExec
	ehdr.Machine = uint16(ctx.Args.Emulation.ElfMachine())
	ehdr.Version = 1
	ehdr.Entry = GetEntryAddress(ctx)
	ehdr.PhOff = ctx.Phdr.Shdr.Offset
	ehdr.ShOff = ctx.Shdr.Shdr.Offset
	ehdr.EhSize = uint16(EhdrSize)
	ehdr.PhEntSize = uint16(ProgramHeaderSize)
	ehdr.PhNum = uint16(ctx.Phdr.Shdr.Size) / uint16(ProgramHeaderSize)
	ehdr.ShEntSize = uint16(ShdrSize)
	ehdr.ShNum = uint16(ctx.Shdr.Shdr.Size) / uint16(ShdrSize)

	utils.Write[Ehdr](ctx.Buf[o.Shdr.Offset:], ehdr)
}

// GetEntryAddress reports the address of _start if defined, else the
// base of .text — close enough for a linker that doesn't run crt0.
func GetEntryAddress(ctx *Context) uint64 {
	if sym := ctx.LookupSymbolIfDefined("_start"); sym != nil {
		return sym.GetAddr()
	}
	for _, osec := range ctx.OutputSections {
		if osec.Name == ".text" {
			return osec.Shdr.Addr
		}
	}
	return 0
}
