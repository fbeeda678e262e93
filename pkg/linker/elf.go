package linker

import (
	"bytes"
	"debug/elf"
	"unsafe"
)

// PageSize is the x86-64 page granularity used for PT_LOAD alignment.
const PageSize = 4096

// ImageBase is the default base virtual address for the first PT_LOAD.
const ImageBase uint64 = 0x200000

// DefaultInterp is the platform dynamic linker path stamped into PT_INTERP.
const DefaultInterp = "/lib64/ld-linux-x86-64.so.2"

// Ehdr/Shdr/Sym/Rela/Phdr/Dyn are this linker's own on-disk struct
// layouts rather than aliases of debug/elf's — debug/elf's reader is one
// of the external collaborators named out of core scope, so the core
// reads raw ELF64 structures itself via utils.Read, the way the whole
// rvld lineage does.
type Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

func (s *Sym) IsUndef() bool   { return s.Shndx == uint16(ShnUndef) }
func (s *Sym) IsDefined() bool { return !s.IsUndef() }
func (s *Sym) IsCommon() bool  { return s.Shndx == uint16(ShnCommon) }
func (s *Sym) IsAbs() bool     { return s.Shndx == uint16(ShnAbs) }
func (s *Sym) Bind() uint8     { return s.Info >> 4 }
func (s *Sym) IsWeak() bool    { return s.Bind() == uint8(StbWeak) }
func (s *Sym) IsUndefWeak() bool { return s.IsUndef() && s.IsWeak() }
func (s *Sym) Type() uint8     { return s.Info & 0xf }

type Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

func (r *Rela) Type() uint32 { return uint32(r.Info) }
func (r *Rela) Sym() uint32  { return uint32(r.Info >> 32) }

type Phdr struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Dyn struct {
	Tag int64
	Val uint64
}

// ProgramHeader is Phdr under the name the layout engine uses.
type ProgramHeader = Phdr

func WriteMagic(ident []byte) {
	copy(ident, []byte{0x7f, 'E', 'L', 'F'})
}

const (
	ShtNull        = uint32(elf.SHT_NULL)
	ShtProgbits    = uint32(elf.SHT_PROGBITS)
	ShtSymtab      = uint32(elf.SHT_SYMTAB)
	ShtStrtab      = uint32(elf.SHT_STRTAB)
	ShtRela        = uint32(elf.SHT_RELA)
	ShtHash        = uint32(elf.SHT_HASH)
	ShtDynamic     = uint32(elf.SHT_DYNAMIC)
	ShtNote        = uint32(elf.SHT_NOTE)
	ShtNobits      = uint32(elf.SHT_NOBITS)
	ShtDynsym      = uint32(elf.SHT_DYNSYM)
	ShtInitArr     = uint32(elf.SHT_INIT_ARRAY)
	ShtFiniArr     = uint32(elf.SHT_FINI_ARRAY)
	ShtGroup       = uint32(elf.SHT_GROUP)
	ShtSymtabShndx = uint32(elf.SHT_SYMTAB_SHNDX)
)

const (
	ShfWrite      = uint64(elf.SHF_WRITE)
	ShfAlloc      = uint64(elf.SHF_ALLOC)
	ShfExecinstr  = uint64(elf.SHF_EXECINSTR)
	ShfMerge      = uint64(elf.SHF_MERGE)
	ShfStrings    = uint64(elf.SHF_STRINGS)
	ShfTls        = uint64(elf.SHF_TLS)
	ShfCompressed = uint64(elf.SHF_COMPRESSED)
	ShfGroup      = uint64(elf.SHF_GROUP)
	ShfInfoLink   = uint64(elf.SHF_INFO_LINK)
	ShfLinkOrder  = uint64(elf.SHF_LINK_ORDER)
	ShfExclude    = uint64(0x80000000)
)

const (
	EtRel  = uint16(elf.ET_REL)
	EtDyn  = uint16(elf.ET_DYN)
	EtExec = uint16(elf.ET_EXEC)
)

const (
	PtLoad    = uint32(elf.PT_LOAD)
	PtPhdr    = uint32(elf.PT_PHDR)
	PtInterp  = uint32(elf.PT_INTERP)
	PtDynamic = uint32(elf.PT_DYNAMIC)
	PtTls     = uint32(elf.PT_TLS)
	PtNote    = uint32(elf.PT_NOTE)
)

const (
	PfX = uint32(elf.PF_X)
	PfW = uint32(elf.PF_W)
	PfR = uint32(elf.PF_R)
)

// x86-64 relocation types this linker recognises. Only the subset needed
// to size and write GOT/PLT/GOTPLT/RELA and apply the common code/data
// relocations is implemented; anything else is left to the per-relocation
// application collaborator named out of core scope.
const (
	RX8664None             = uint32(elf.R_X86_64_NONE)
	RX866464               = uint32(elf.R_X86_64_64)
	RX8664PC32             = uint32(elf.R_X86_64_PC32)
	RX8664GOT32            = uint32(elf.R_X86_64_GOT32)
	RX8664PLT32            = uint32(elf.R_X86_64_PLT32)
	RX8664Copy             = uint32(elf.R_X86_64_COPY)
	RX8664GlobDat          = uint32(elf.R_X86_64_GLOB_DAT)
	RX8664JumpSlot         = uint32(elf.R_X86_64_JMP_SLOT)
	RX8664Relative         = uint32(elf.R_X86_64_RELATIVE)
	RX8664GOTPCRel         = uint32(elf.R_X86_64_GOTPCREL)
	RX866432               = uint32(elf.R_X86_64_32)
	RX866432S              = uint32(elf.R_X86_64_32S)
	RX866416               = uint32(elf.R_X86_64_16)
	RX8664PC16             = uint32(elf.R_X86_64_PC16)
	RX86648                = uint32(elf.R_X86_64_8)
	RX8664PC8              = uint32(elf.R_X86_64_PC8)
	RX8664DTPMod64         = uint32(elf.R_X86_64_DTPMOD64)
	RX8664DTPOff64         = uint32(elf.R_X86_64_DTPOFF64)
	RX8664TPOff64          = uint32(elf.R_X86_64_TPOFF64)
	RX8664TLSGD            = uint32(elf.R_X86_64_TLSGD)
	RX8664TLSLD            = uint32(elf.R_X86_64_TLSLD)
	RX8664DTPOff32         = uint32(elf.R_X86_64_DTPOFF32)
	RX8664GOTTPOff         = uint32(elf.R_X86_64_GOTTPOFF)
	RX8664TPOff32          = uint32(elf.R_X86_64_TPOFF32)
	RX8664PC64             = uint32(elf.R_X86_64_PC64)
	RX8664GOTOff64         = uint32(elf.R_X86_64_GOTOFF64)
	RX8664GOTPC32          = uint32(elf.R_X86_64_GOTPC32)
	RX8664IRelative        = uint32(elf.R_X86_64_IRELATIVE)
	RX8664RelaxedGOTPCRelX = uint32(elf.R_X86_64_REX_GOTPCRELX)
	RX8664GOTPCRelX        = uint32(elf.R_X86_64_GOTPCRELX)
)

const (
	SttNoType   = uint32(elf.STT_NOTYPE)
	SttObject   = uint32(elf.STT_OBJECT)
	SttFunc     = uint32(elf.STT_FUNC)
	SttSection  = uint32(elf.STT_SECTION)
	SttFile     = uint32(elf.STT_FILE)
	SttCommon   = uint32(elf.STT_COMMON)
	SttTLS      = uint32(elf.STT_TLS)
	SttGnuIFunc = uint32(10) // STT_GNU_IFUNC, not named in debug/elf

	StbLocal  = uint32(elf.STB_LOCAL)
	StbGlobal = uint32(elf.STB_GLOBAL)
	StbWeak   = uint32(elf.STB_WEAK)

	ShnUndef  = uint32(elf.SHN_UNDEF)
	ShnAbs    = uint32(elf.SHN_ABS)
	ShnCommon = uint32(elf.SHN_COMMON)
	ShnXindex = uint32(0xffff)
	ShnLorese = uint32(0xff00)
)

// On-disk struct sizes, used to step through raw section/symbol/relocation
// arrays without an intermediate decode pass.
var (
	EhdrSize          = int(unsafe.Sizeof(Ehdr{}))
	ShdrSize          = int(unsafe.Sizeof(Shdr{}))
	SymSize           = int(unsafe.Sizeof(Sym{}))
	RelaSize          = int(unsafe.Sizeof(Rela{}))
	ProgramHeaderSize = int(unsafe.Sizeof(Phdr{}))
	DynSize           = int(unsafe.Sizeof(Dyn{}))
)

var elfMagic = []byte("\x7fELF")

// CheckMagic reports whether contents begins with the ELF magic number.
func CheckMagic(contents []byte) bool {
	return len(contents) >= 4 && bytes.Equal(contents[:4], elfMagic)
}

const (
	DtNull    = int64(elf.DT_NULL)
	DtNeeded  = int64(elf.DT_NEEDED)
	DtHash    = int64(elf.DT_HASH)
	DtStrtab  = int64(elf.DT_STRTAB)
	DtSymtab  = int64(elf.DT_SYMTAB)
	DtRela    = int64(elf.DT_RELA)
	DtRelaSz  = int64(elf.DT_RELASZ)
	DtRelaEnt = int64(elf.DT_RELAENT)
	DtStrSz   = int64(elf.DT_STRSZ)
	DtSymEnt  = int64(elf.DT_SYMENT)
	DtJmpRel  = int64(elf.DT_JMPREL)
	DtFlags   = int64(elf.DT_FLAGS)
)
