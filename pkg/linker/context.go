package linker

import (
	"sync"
	"sync/atomic"

	"github.com/litaotju/mold/pkg/utils"
)

// ContextArgs holds the parsed command-line configuration.
type ContextArgs struct {
	Output       string
	Emulation    MachineType
	LibraryPaths []string
	Static       bool
	Filler       *byte
	ThreadCount  int
	Trace        bool
	TraceSymbol  string
	PrintMap     bool
	Stat         bool
}

// Stat collects the "-stat" counters.
type Stat struct {
	NumFiles   int
	NumSymbols int
	NumGot     int
	NumPlt     int
	NumGotPlt  int
	NumRelPlt  int
	NumRelDyn  int
}

/*
 * Context is the single process-wide registry for a pipeline run: every
 * OutputSection/MergedSection instance list, the symbol intern pool and the
 * synthetic sections live here instead of as package-level globals, and are
 * threaded explicitly through every phase.
 *
 * @Args: parsed command-line options.
 * @Buf: the mmap'd (or, pre-mmap, heap) output buffer.
 * @Ehdr/@Phdr/@Shdr: the three header chunks; @Interp: .interp, nil for
 *  a static link.
 * @Got/@Plt/@GotPlt/@RelPlt/@RelDyn/@Dynsym/@Dynstr/@Symtab/@Strtab/
 *  @Shstrtab/@Hash/@Dynamic: synthetic sections, created in
 *  CreateSyntheticSections (@Symtab/@Strtab/@Shstrtab in
 *  FinalizeSyntheticSections) and pushed onto Chunks. For a static link
 *  @RelDyn/@Dynsym/@Dynstr/@Hash are created but not pushed, and
 *  @Dynamic stays nil.
 * @OutputSections/@MergedSections: the canonical registries; entries are
 *  created lazily the first time an input section needs one — the
 *  process-wide registry pattern every OutputChunk factory uses.
 * @Objs: every live ObjectFile, including archive-extracted members.
 * @Dsos: every DSO (shared object) opened for dynamic linking.
 * @symbolMap: the concurrent symbol intern pool (§4.1 in the design
 *  ledger) — a single RWMutex-guarded map keyed by name with stable
 *  storage, so a returned *Symbol never moves and may be cached across
 *  phases by callers that already hold a pointer.
 */
type Context struct {
	Args ContextArgs
	Buf  []byte

	Ehdr   *OutputEhdr
	Phdr   *OutputPhdr
	Shdr   *OutputShdr
	Interp *OutputInterp

	Got      *GotSection
	Plt      *PltSection
	GotPlt   *GotPltSection
	RelPlt   *RelPltSection
	RelDyn   *RelDynSection
	Dynsym   *DynsymSection
	Dynstr   *DynstrSection
	Symtab   *SymtabSection
	Strtab   *StrtabSection
	Shstrtab *ShstrtabSection
	Hash     *HashSection
	Dynamic  *DynamicSection

	TpAddr uint64

	OutputSections []*OutputSection
	MergedSections []*MergedSection
	Chunks         []Chunker

	Objs []*ObjectFile
	Dsos []*ObjectFile

	symbolMapMu sync.RWMutex
	symbolMap   map[string]*Symbol

	// comdatMu/comdatGroups back §4.3 COMDAT elimination: one winner slot
	// per group signature, contended via CAS across every file that
	// defines a group with that signature.
	comdatMu     sync.Mutex
	comdatGroups map[string]*atomic.Pointer[comdatWinner]

	// nextPriority hands out monotone file priorities in stable input
	// order: files named on the command line in command-line order, then
	// archive members in enumeration order (ReadInputFiles renumbers
	// them once every argument is read).
	nextPriority int64

	// Visited is a set of names; no phase of the pipeline reads it.
	// Archive pull-in dedups through each file's IsAlive flag instead.
	Visited utils.MapSet[string]

	Stat Stat
}

func NewContext() *Context {
	return &Context{
		Args: ContextArgs{
			Emulation:   MachineTypeNone,
			ThreadCount: DefaultThreadCount(),
		},
		symbolMap:    make(map[string]*Symbol),
		comdatGroups: make(map[string]*atomic.Pointer[comdatWinner]),
		nextPriority: 1,
		Visited:      utils.NewMapSet[string](),
	}
}

// AllFiles returns every live object file followed by every opened DSO
// — the set the GOT/PLT/dynamic-table builders need to walk, since a
// symbol the link needs a slot for may be owned by a DSO's ObjectFile
// rather than one pulled from ctx.Objs.
func (ctx *Context) AllFiles() []*ObjectFile {
	files := make([]*ObjectFile, 0, len(ctx.Objs)+len(ctx.Dsos))
	files = append(files, ctx.Objs...)
	files = append(files, ctx.Dsos...)
	return files
}

// NextPriority hands out the next monotone file priority. Only called
// while input files are being opened, which happens on a single goroutine,
// so a plain atomic add is enough to keep this contention-free without
// needing a CAS retry loop.
func (ctx *Context) NextPriority() int64 {
	return atomic.AddInt64(&ctx.nextPriority, 1) - 1
}
