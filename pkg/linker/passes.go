package linker

import (
	"sort"
	"sync"

	"github.com/litaotju/mold/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// forEachFile fans func out across every live object file on its own
// goroutine and blocks until every one returns, implementing the
// data-parallel phases the design separates with barriers (§5): the
// barrier is this call returning.
func forEachFile(ctx *Context, files []*ObjectFile, fn func(*ObjectFile)) {
	var g errgroup.Group
	for _, file := range files {
		file := file
		g.Go(func() error {
			fn(file)
			return nil
		})
	}
	_ = g.Wait()
}

// ResolveSymbols implements §4.2's three phases: every file registers
// its definitions concurrently (a CAS race refereed by Symbol.TryClaim,
// flagging any multiply-defined strong symbol along the way), the live
// set is traced out from the command-line roots and every file that
// never became reachable is dropped, and finally every surviving file
// validates what's left of its undefined references — weak ones are
// left to resolve to absolute zero, anything else is a link error in a
// static output.
func ResolveSymbols(ctx *Context) {
	// DSOs register their exports too, at the weaker rankDSO, so a
	// regular object's strong definition always wins a tie but an
	// otherwise-undefined reference still resolves to the library.
	forEachFile(ctx, ctx.AllFiles(), func(file *ObjectFile) {
		file.ResolveSymbols()
	})

	MarkLiveObjects(ctx)

	forEachFile(ctx, ctx.Objs, func(file *ObjectFile) {
		if !file.IsAlive {
			file.ClearSymbols()
		}
	})

	ctx.Objs = utils.RemoveIf(ctx.Objs, func(file *ObjectFile) bool {
		return !file.IsAlive
	})

	forEachFile(ctx, ctx.Objs, func(file *ObjectFile) {
		file.ValidateSymbols(ctx)
	})
}

// MarkLiveObjects implements §4.2 phase 2's archive pull-in traversal: a
// work queue seeded with every already-alive file, drained breadth-first.
// Each dequeued file's MarkLiveObjects may discover more archive members
// to pull in and feed them back onto the queue. The traversal itself is
// inherently sequential (each step can enqueue new work the next step
// must see), but every file already on the queue at a given step is
// independent, so they're dispatched together and joined before the
// next round starts.
func MarkLiveObjects(ctx *Context) {
	var roots []*ObjectFile
	for _, file := range ctx.Objs {
		if file.IsAlive {
			roots = append(roots, file)
		}
	}
	utils.Assert(len(roots) > 0)

	for len(roots) > 0 {
		var mu sync.Mutex
		var next []*ObjectFile
		round := roots

		forEachFile(ctx, round, func(file *ObjectFile) {
			file.MarkLiveObjects(func(newFile *ObjectFile) {
				mu.Lock()
				next = append(next, newFile)
				mu.Unlock()
			})
		})

		roots = next
	}
}

// RegisterSectionPieces implements §4.4's intern step: every file interns
// the pieces its mergeable sections were split into at parse time,
// concurrently, contending only on each MergedSection's own mutex.
func RegisterSectionPieces(ctx *Context) {
	forEachFile(ctx, ctx.Objs, func(file *ObjectFile) {
		file.RegisterSectionPieces()
	})
}

// ResolveComdatGroups implements §4.3's two-phase elimination: every
// file claims its groups concurrently, then — after the barrier — every
// file re-enables the sections of groups it actually won.
func ResolveComdatGroups(ctx *Context) {
	forEachFile(ctx, ctx.Objs, func(file *ObjectFile) {
		file.ClaimComdatGroups(ctx)
	})
	forEachFile(ctx, ctx.Objs, func(file *ObjectFile) {
		file.EnableWinningComdatGroups(ctx)
	})
}

// ComputeMergedSectionSizes closes out §4.4 with passes 2 and 3, one
// sequential, deterministic walk per MergedSection (independent of every other
// MergedSection, so still dispatched concurrently).
func ComputeMergedSectionSizes(ctx *Context) {
	var g errgroup.Group
	for _, osec := range ctx.MergedSections {
		osec := osec
		g.Go(func() error {
			osec.AssignOffsets(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// ScanRelocations implements §4.6's classification phase: every alive
// section, across every file, is scanned concurrently to accumulate
// relocation-need bits on the symbols it references.
func ScanRelocations(ctx *Context) {
	forEachFile(ctx, ctx.Objs, func(file *ObjectFile) {
		file.ScanRelocations(ctx)
	})
}

// AssignSlots implements §4.6's slot-assignment phase: every file
// computes its own local GOT/PLT/GOTPLT/RELPLT/RELDYN counts
// concurrently, a single sequential prefix sum turns those into global
// base offsets, and a second concurrent pass rebases every symbol's
// local index onto that global offset.
func AssignSlots(ctx *Context) {
	files := ctx.AllFiles()

	forEachFile(ctx, files, func(file *ObjectFile) {
		file.AssignSlots(ctx)
	})

	var got, plt, gotplt, relplt, reldyn int
	for _, file := range files {
		file.GotOffset = got
		file.PltOffset = plt
		file.GotPltOffset = gotplt
		file.RelPltOffset = relplt
		file.RelDynOffset = reldyn
		got += file.NumGot
		plt += file.NumPlt
		gotplt += file.NumGotPlt
		relplt += file.NumRelPlt
		reldyn += file.NumRelDyn
	}

	forEachFile(ctx, files, func(file *ObjectFile) {
		file.ApplySlotOffsets()
	})

	ctx.Got.SetNumEntries(got)
	ctx.Plt.SetNumEntries(plt)
	ctx.GotPlt.SetNumEntries(gotplt)
	ctx.RelPlt.SetNumEntries(relplt)
	ctx.RelDyn.SetNumEntries(reldyn)
	ctx.Hash.SetNumEntries(0)

	ctx.Stat.NumGot = got
	ctx.Stat.NumPlt = plt
	ctx.Stat.NumGotPlt = gotplt
	ctx.Stat.NumRelPlt = relplt
	ctx.Stat.NumRelDyn = reldyn
}

// CreateSyntheticSections implements the synthetic-chunk setup. The
// header chunks are always present. PLT/GOTPLT/RELPLT are pushed even
// for a static link: a static binary's own startup code resolves
// STT_GNU_IFUNC symbols at load time by walking .rela.plt itself (the
// __rela_iplt_{start,end} synthetic symbols exist for exactly this), so
// IFUNC/IRELATIVE support (spec.md §8 scenario 6) needs these three
// chunks regardless of -static. Only the chunks that exist purely to
// support the dynamic linker — .dynsym/.dynstr/.hash/.dynamic and
// .rela.dyn's GLOB_DAT content — are gated on dynamic linking.
func CreateSyntheticSections(ctx *Context) {
	push := func(chunk Chunker) {
		ctx.Chunks = append(ctx.Chunks, chunk)
	}

	ctx.Ehdr = NewOutputEhdr()
	ctx.Phdr = NewOutputPhdr()
	ctx.Shdr = NewOutputShdr()
	push(ctx.Ehdr)
	push(ctx.Phdr)
	push(ctx.Shdr)

	if !ctx.Args.Static {
		ctx.Interp = NewOutputInterp()
		push(ctx.Interp)
	}

	ctx.Got = NewGotSection()
	push(ctx.Got)

	ctx.GotPlt = NewGotPltSection()
	ctx.Plt = NewPltSection()
	ctx.RelPlt = NewRelPltSection()
	push(ctx.GotPlt)
	push(ctx.Plt)
	push(ctx.RelPlt)

	// These exist even for a static link, since AssignSlots sizes
	// .rela.dyn and .hash unconditionally; they're simply
	// never pushed onto ctx.Chunks when static, so they occupy no output
	// bytes and never get a section index.
	ctx.RelDyn = NewRelDynSection()
	ctx.Dynsym = NewDynsymSection()
	ctx.Dynstr = NewDynstrSection()
	ctx.Hash = NewHashSection()

	if !ctx.Args.Static {
		ctx.Dynamic = NewDynamicSection()
		push(ctx.RelDyn)
		push(ctx.Dynsym)
		push(ctx.Dynstr)
		push(ctx.Hash)
		push(ctx.Dynamic)
	}
}

// FinalizeSyntheticSections fills in the tables that depend on the final
// live-symbol set: .symtab/.strtab always, plus .dynsym/.dynstr/.hash
// when dynamic linking is in play.
func FinalizeSyntheticSections(ctx *Context) {
	ctx.Symtab = NewSymtabSection()
	ctx.Strtab = NewStrtabSection()
	ctx.Chunks = append(ctx.Chunks, ctx.Symtab, ctx.Strtab)

	ctx.Symtab.Build(ctx)

	if !ctx.Args.Static {
		ctx.BuildDynsym()
		ctx.Hash.SetNumEntries(len(ctx.Dynsym.Symbols))
	}

	ctx.Shstrtab = NewShstrtabSection()
	ctx.Chunks = append(ctx.Chunks, ctx.Shstrtab)
}

// BinSections implements §4.5's binning phase: every alive input section
// is dropped into its OutputSection's member bucket, indexed directly by
// OutputSection.Idx so no lock is needed even though every file's
// sections are being binned "at once" conceptually.
func BinSections(ctx *Context) {
	groups := make([][]*InputSection, len(ctx.OutputSections))
	for _, file := range ctx.Objs {
		for _, isec := range file.Sections {
			if isec == nil || !isec.IsAlive {
				continue
			}
			groups[isec.OutputSection.Idx] = append(groups[isec.OutputSection.Idx], isec)
		}
	}
	for idx, osec := range ctx.OutputSections {
		osec.Members = groups[idx]
	}
}

// CollectOutputSections gathers every chunk that will actually occupy
// space in the output — OutputSections with members and MergedSections
// that ended up non-empty — ready to be appended to ctx.Chunks.
func CollectOutputSections(ctx *Context) []Chunker {
	var chunks []Chunker
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) > 0 {
			chunks = append(chunks, osec)
		}
	}
	for _, osec := range ctx.MergedSections {
		if osec.Shdr.Size > 0 {
			chunks = append(chunks, osec)
		}
	}
	return chunks
}

// ComputeSectionSizes implements §4.5's intra-section layout: within one
// OutputSection, lay out member InputSections back to back respecting
// each one's own alignment. Independent across OutputSections, so every
// one runs concurrently.
func ComputeSectionSizes(ctx *Context) {
	var g errgroup.Group
	for _, osec := range ctx.OutputSections {
		osec := osec
		g.Go(func() error {
			offset := uint64(0)
			align := uint64(1)
			for _, isec := range osec.Members {
				offset = utils.AlignTo(offset, uint64(1)<<isec.P2Align)
				isec.Offset = uint32(offset)
				offset += uint64(isec.ShSize)
				if a := uint64(1) << isec.P2Align; a > align {
					align = a
				}
			}
			osec.Shdr.Size = offset
			osec.Shdr.AddrAlign = align
			return nil
		})
	}
	_ = g.Wait()
}

// SortOutputSections implements §4.7's output-section ordering: the ELF
// header and program header table first, then NOTE, then every other
// alloc chunk grouped by writable/executable/TLS/bss so PT_LOAD segments
// need only a handful of permission transitions, then the non-alloc
// chunks, with the section header table after them.
func SortOutputSections(ctx *Context) {
	rank := func(chunk Chunker) int32 {
		shdr := chunk.GetShdr()

		if chunk == ctx.Shdr {
			return 1<<31 - 1
		}
		if shdr.Flags&ShfAlloc == 0 {
			return 1<<31 - 2
		}
		if chunk == ctx.Ehdr {
			return 0
		}
		if chunk == ctx.Phdr {
			return 1
		}
		if shdr.Type == ShtNote {
			return 2
		}

		b2i := func(b bool) int32 {
			if b {
				return 1
			}
			return 0
		}

		writable := b2i(shdr.Flags&ShfWrite != 0)
		exec := b2i(shdr.Flags&ShfExecinstr != 0)
		notTls := b2i(shdr.Flags&ShfTls == 0)
		isBss := b2i(shdr.Type == ShtNobits)

		return writable<<7 | exec<<6 | notTls<<5 | isBss<<4
	}

	sort.SliceStable(ctx.Chunks, func(i, j int) bool {
		return rank(ctx.Chunks[i]) < rank(ctx.Chunks[j])
	})
}

// startsNewPtload reports, for every chunk in ctx.Chunks, whether it opens
// a new PT_LOAD: the first alloc, non-tbss chunk, or one whose read/write/
// exec permissions differ from the alloc chunk immediately before it in
// that same filtered sequence. This mirrors the grouping CreatePhdr uses
// when it folds runs of same-permission chunks into one segment, so vaddr
// only gets re-aligned to a page boundary at the same points a PT_LOAD
// boundary will actually fall.
func startsNewPtload(ctx *Context) map[Chunker]bool {
	starts := make(map[Chunker]bool, len(ctx.Chunks))
	var prevFlags uint32
	havePrev := false
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&ShfAlloc == 0 || isTbss(chunk) {
			continue
		}
		flags := ToPhdrFlags(chunk)
		if !havePrev || flags != prevFlags {
			starts[chunk] = true
		}
		prevFlags = flags
		havePrev = true
	}
	return starts
}

// SetOutputSectionOffsets implements §4.7's file/vaddr layout. fileoff and
// vaddr are tracked independently rather than deriving one from the other:
// a NOBITS section (.bss, .tbss) never advances fileoff, since it has no
// file content, and a NOBITS TLS section (.tbss) never advances vaddr
// either, since its image lives in the TLS template rather than at its
// nominal runtime address. Every other chunk advances both.
func SetOutputSectionOffsets(ctx *Context) uint64 {
	starts := startsNewPtload(ctx)

	fileoff := uint64(0)
	vaddr := ImageBase

	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()

		if starts[chunk] {
			vaddr = utils.AlignTo(vaddr, PageSize)
		}

		isBss := shdr.Type == ShtNobits

		if !isBss {
			if vaddr%PageSize > fileoff%PageSize {
				fileoff += vaddr%PageSize - fileoff%PageSize
			} else if vaddr%PageSize < fileoff%PageSize {
				fileoff = utils.AlignTo(fileoff, PageSize) + vaddr%PageSize
			}
		}

		fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
		vaddr = utils.AlignTo(vaddr, shdr.AddrAlign)

		shdr.Offset = fileoff
		if shdr.Flags&ShfAlloc != 0 {
			shdr.Addr = vaddr
		}

		if !isBss {
			fileoff += shdr.Size
		}
		if !isTbss(chunk) {
			vaddr += shdr.Size
		}
	}

	ctx.Phdr.UpdateShdr(ctx)
	return fileoff
}

// DefineSyntheticSymbols implements §4.7's synthetic-symbol assignment:
// after layout has settled every chunk's address and size, a handful of
// well-known names are interned and pinned to addresses derived from the
// final chunk list, so relocations in input object code that reference
// them (e.g. a runtime's "__bss_start") resolve without those names ever
// having been defined by any input file.
func DefineSyntheticSymbols(ctx *Context) {
	start := func(chunk Chunker, sym *Symbol) {
		sym.Value = chunk.GetShdr().Addr
	}
	stop := func(chunk Chunker, sym *Symbol) {
		shdr := chunk.GetShdr()
		sym.Value = shdr.Addr + shdr.Size
	}

	for _, chunk := range ctx.Chunks {
		if chunk.GetName() == ".bss" {
			start(chunk, GetSymbolByName(ctx, "__bss_start"))
			break
		}
	}

	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() == 1 {
			GetSymbolByName(ctx, "__ehdr_start").Value = ctx.Ehdr.GetShdr().Addr
			break
		}
	}

	start(ctx.RelPlt, GetSymbolByName(ctx, "__rela_iplt_start"))
	stop(ctx.RelPlt, GetSymbolByName(ctx, "__rela_iplt_end"))

	for _, chunk := range ctx.Chunks {
		switch chunk.GetShdr().Type {
		case ShtInitArr:
			start(chunk, GetSymbolByName(ctx, "__init_array_start"))
			stop(chunk, GetSymbolByName(ctx, "__init_array_end"))
		case ShtFiniArr:
			start(chunk, GetSymbolByName(ctx, "__fini_array_start"))
			stop(chunk, GetSymbolByName(ctx, "__fini_array_end"))
		}
	}

	end := GetSymbolByName(ctx, "_end")
	etext := GetSymbolByName(ctx, "_etext")
	edata := GetSymbolByName(ctx, "_edata")
	for _, chunk := range ctx.Chunks {
		if chunk == ctx.Ehdr || chunk == ctx.Phdr || chunk == ctx.Shdr {
			continue
		}
		shdr := chunk.GetShdr()
		if shdr.Flags&ShfAlloc != 0 {
			stop(chunk, end)
		}
		if shdr.Flags&ShfExecinstr != 0 {
			stop(chunk, etext)
		}
		if shdr.Type != ShtNobits && shdr.Flags&ShfAlloc != 0 {
			stop(chunk, edata)
		}
	}

	if ctx.Dynamic != nil {
		start(ctx.Dynamic, GetSymbolByName(ctx, "_DYNAMIC"))
	}
	if ctx.GotPlt != nil && !ctx.Args.Static {
		start(ctx.GotPlt, GetSymbolByName(ctx, "_GLOBAL_OFFSET_TABLE_"))
	}

	for _, chunk := range ctx.Chunks {
		name := chunk.GetName()
		if !utils.IsCIdent(name) {
			continue
		}
		start(chunk, GetSymbolByName(ctx, "__start_"+name))
		stop(chunk, GetSymbolByName(ctx, "__stop_"+name))
	}
}
