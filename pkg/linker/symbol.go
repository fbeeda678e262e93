package linker

import (
	"sync/atomic"

	"github.com/litaotju/mold/pkg/utils"
)

// Relocation-need bits, ORed into Symbol.rels by many goroutines
// concurrently during relocation scanning (§4.6). A relaxed atomic-OR: no
// dependent load is ordered by it, readers only care about the final
// value once the scanning barrier has passed.
const (
	NeedsGot uint32 = 1 << iota
	NeedsPlt
	NeedsGotTp
	NeedsTlsGd
	NeedsTlsLd
)

// Dominance rank, strongest first (§4.2). Lower numeric value wins.
const (
	rankStrong = iota // strong-defined (not common), live non-DSO file
	rankCommon        // common, live non-DSO file
	rankDSO           // defined by a DSO
	rankLazy          // archive member not yet alive
	rankUndef         // undefined
)

/*
 * Symbol is the linker's view of one globally-unique name. It corresponds
 * to an ELF Elf64_Sym but carries the extra bookkeeping resolution, COMDAT
 * elimination, mergeable-string coalescing and relocation scanning all
 * need: current owner, dominance rank, relocation-need bitset, and one
 * slot index per synthetic table.
 *
 * File and SymIdx/InputSection/SectionFragment are written by exactly the
 * thread that currently owns this symbol during resolution (protected by
 * the owner CAS below); once resolution's barrier has passed they are
 * read-only for the rest of the pipeline.
 */
type Symbol struct {
	// owner packs (rank<<56 | priority) so a single atomic CAS can
	// decide a dominance comparison without a separate lock. Start at
	// ^uint64(0) ("weaker than undefined") so the first writer always
	// wins.
	owner uint64

	File     *ObjectFile
	Name     string
	Value    uint64
	SymIdx   int
	IsWeak   bool

	InputSection    *InputSection
	SectionFragment *SectionFragment

	// rels is the relocation-need bitset, updated with atomic OR.
	rels uint32

	// Slot indices, each -1 until assigned in the single-threaded-per-file
	// slot-assignment pass of §4.6.
	GotIdx    int32
	GotTpIdx  int32
	GotPltIdx int32
	PltIdx    int32
	RelPltIdx int32
	DynsymIdx int32

	// firstStrongDefiner records the first file seen claiming this name
	// at rankStrong, so a second, distinct strong definer can be caught
	// as a multiply-defined-symbol diagnostic (§4.2 failure modes).
	firstStrongDefiner atomic.Pointer[ObjectFile]

	Traced bool
}

func NewSymbol(name string) *Symbol {
	return &Symbol{
		Name:      name,
		SymIdx:    -1,
		GotIdx:    -1,
		GotTpIdx:  -1,
		GotPltIdx: -1,
		PltIdx:    -1,
		RelPltIdx: -1,
		DynsymIdx: -1,
		owner:     ^uint64(0),
	}
}

func packOwner(rank int, priority int64) uint64 {
	return uint64(rank)<<56 | uint64(priority)
}

// TryClaim attempts to become the defining file for this symbol under the
// dominance comparison of §4.2: lower rank wins outright, ties broken by
// lower priority. It is a CAS loop — on failure it re-reads the current
// owner and retries the comparison, matching the "re-read after failure"
// requirement in the design notes (no ABA risk: priorities are monotone
// and never reused).
func (s *Symbol) TryClaim(rank int, priority int64) bool {
	want := packOwner(rank, priority)
	for {
		cur := atomic.LoadUint64(&s.owner)
		if cur <= want {
			// An equal or strictly stronger owner already holds this
			// symbol; our claim does not improve on it.
			return false
		}
		if atomic.CompareAndSwapUint64(&s.owner, cur, want) {
			return true
		}
	}
}

// noteStrongDefiner flags a multiply-defined strong symbol (§4.2 failure
// modes). The first file to reach here for this name owns the slot
// uncontested; every later, distinct file triggers a warning naming both
// files. This runs independently of TryClaim's outcome — the priority
// tie-break still decides the owner either way, this only diagnoses.
func (s *Symbol) noteStrongDefiner(o *ObjectFile) {
	for {
		prev := s.firstStrongDefiner.Load()
		if prev == nil {
			if s.firstStrongDefiner.CompareAndSwap(nil, o) {
				return
			}
			continue
		}
		if prev != o {
			Warnf("multiple definition of %q: %s and %s", s.Name, prev.File.Name, o.File.Name)
		}
		return
	}
}

// Rank decodes the current owner's dominance rank.
func (s *Symbol) Rank() int {
	return int(atomic.LoadUint64(&s.owner) >> 56)
}

func (s *Symbol) SetInputSection(isec *InputSection) {
	s.InputSection = isec
	s.SectionFragment = nil
}

func (s *Symbol) SetSectionFragment(frag *SectionFragment) {
	s.InputSection = nil
	s.SectionFragment = frag
}

// AddRels ORs need bits into the symbol's relocation-need bitset. Safe for
// concurrent callers across every input section that references this
// symbol during relocation scanning.
func (s *Symbol) AddRels(bits uint32) {
	for {
		cur := atomic.LoadUint32(&s.rels)
		if cur&bits == bits {
			return
		}
		if atomic.CompareAndSwapUint32(&s.rels, cur, cur|bits) {
			return
		}
	}
}

func (s *Symbol) Rels() uint32 {
	return atomic.LoadUint32(&s.rels)
}

// GetSymbolByName interns name into the process-wide symbol pool,
// returning the same *Symbol for repeated calls. The pool is a single map
// guarded by a RWMutex: reads (the overwhelmingly common case, since most
// symbol references occur after all files are parsed) take the read lock;
// only the first reference to a brand-new name needs the write lock. This
// is the "concurrent hash map with stable value storage" §4.1 asks for —
// values are heap-allocated *Symbol, never moved or copied once created.
func GetSymbolByName(ctx *Context, name string) *Symbol {
	ctx.symbolMapMu.RLock()
	sym, ok := ctx.symbolMap[name]
	ctx.symbolMapMu.RUnlock()
	if ok {
		return sym
	}

	ctx.symbolMapMu.Lock()
	defer ctx.symbolMapMu.Unlock()
	if sym, ok := ctx.symbolMap[name]; ok {
		return sym
	}
	sym = NewSymbol(name)
	if ctx.Args.TraceSymbol != "" && ctx.Args.TraceSymbol == name {
		sym.Traced = true
	}
	ctx.symbolMap[name] = sym
	return sym
}

// LookupSymbolIfDefined returns the interned symbol by name, or nil if
// either it was never referenced or no file ever claimed it.
func (ctx *Context) LookupSymbolIfDefined(name string) *Symbol {
	ctx.symbolMapMu.RLock()
	sym, ok := ctx.symbolMap[name]
	ctx.symbolMapMu.RUnlock()
	if !ok || sym.File == nil {
		return nil
	}
	return sym
}

func (s *Symbol) ElfSym() *Sym {
	utils.Assert(s.SymIdx < len(s.File.ElfSyms))
	return &s.File.ElfSyms[s.SymIdx]
}

func (s *Symbol) Clear() {
	s.File = nil
	s.InputSection = nil
	s.SymIdx = -1
}

func (s *Symbol) IsUndef() bool {
	return s.File == nil || (s.InputSection == nil && s.SectionFragment == nil && s.Value == 0 && s.SymIdx < 0)
}

func (s *Symbol) GetAddr() uint64 {
	if s.SectionFragment != nil {
		return s.SectionFragment.GetAddr() + s.Value
	}
	if s.InputSection != nil && s.InputSection.IsAlive {
		return s.InputSection.GetAddr() + s.Value
	}
	return s.Value
}

func (s *Symbol) GetGotAddr(ctx *Context) uint64 {
	return ctx.Got.Shdr.Addr + uint64(s.GotIdx)*8
}

func (s *Symbol) GetGotTpAddr(ctx *Context) uint64 {
	return ctx.Got.Shdr.Addr + uint64(s.GotTpIdx)*8
}

// GetGotPltAddr skips the three GOTPLT slots the dynamic linker reserves
// for itself (_DYNAMIC, link_map, and the PLT resolver stub).
func (s *Symbol) GetGotPltAddr(ctx *Context) uint64 {
	return ctx.GotPlt.Shdr.Addr + (3+uint64(s.GotPltIdx))*8
}

// GetPltAddr skips PLT[0], the resolver stub every other entry jumps
// through on a cache miss.
func (s *Symbol) GetPltAddr(ctx *Context) uint64 {
	if s.PltIdx < 0 {
		return s.GetAddr()
	}
	return ctx.Plt.Shdr.Addr + 16*(1+uint64(s.PltIdx))
}

func (s *Symbol) IsIFunc() bool {
	return s.File != nil && s.SymIdx >= 0 && s.ElfSym().Info&0xf == byte(SttGnuIFunc)
}
