package linker

import "github.com/litaotju/mold/pkg/utils"

// SymtabSection is ".symtab": the full, non-stripped symbol table —
// every local symbol from every live file, then every global symbol
// this file's own goroutine won during resolution, in file order. Local
// symbols come first because st_info's bind field must be monotone
// non-decreasing across the table (sh_info records the boundary).
type SymtabSection struct {
	Chunk
	locals  []*Symbol
	globals []*Symbol
}

func NewSymtabSection() *SymtabSection {
	o := &SymtabSection{Chunk: NewChunk()}
	o.Name = ".symtab"
	o.Shdr.Type = ShtSymtab
	o.Shdr.AddrAlign = 8
	o.Shdr.EntSize = uint64(SymSize)
	return o
}

// Build walks every live file once, sequentially, collecting the local
// and globally-won symbols it contributes. Like BuildDynsym, this is a
// single linear closing pass rather than a parallel phase.
func (o *SymtabSection) Build(ctx *Context) {
	for _, file := range ctx.Objs {
		for i := 1; i < len(file.LocalSymbols); i++ {
			sym := &file.LocalSymbols[i]
			if sym.Name == "" {
				continue
			}
			o.locals = append(o.locals, sym)
			ctx.Strtab.AddString(sym.Name)
		}
		for i := file.FirstGlobal; i < len(file.ElfSyms); i++ {
			sym := file.Symbols[i]
			if sym.File == file {
				o.globals = append(o.globals, sym)
				ctx.Strtab.AddString(sym.Name)
			}
		}
	}
	o.Shdr.Info = uint32(len(o.locals) + 1)
	o.Shdr.Size = uint64(len(o.locals)+len(o.globals)+1) * uint64(SymSize)
}

func (o *SymtabSection) UpdateShdr(ctx *Context) {
	o.Shdr.Link = uint32(ctx.Strtab.GetShndx())
}

func (o *SymtabSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	write := func(i int, sym *Symbol, bind byte) {
		esym := Sym{
			Name:  ctx.Strtab.Offset(sym.Name),
			Info:  bind << 4,
			Shndx: 0,
			Val:   sym.GetAddr(),
		}
		utils.Write[Sym](buf[i*SymSize:], esym)
	}
	for i, sym := range o.locals {
		write(i+1, sym, byte(StbLocal))
	}
	base := len(o.locals) + 1
	for i, sym := range o.globals {
		bind := byte(StbGlobal)
		if sym.IsWeak {
			bind = byte(StbWeak)
		}
		write(base+i, sym, bind)
	}
}
