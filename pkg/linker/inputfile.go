package linker

import (
	"fmt"

	"github.com/litaotju/mold/pkg/utils"
)

/*
 * InputFile is the common prefix shared by every ObjectFile (and, once a
 * DSO is opened, its own minimal incarnation): the raw section-header
 * table and section-header string table decoded straight from the mapped
 * buffer.
 *
 * @File: the backing memory-mapped File.
 * @ElfSections: the raw Shdr array.
 * @ShStrtab: the .shstrtab bytes.
 * @ElfSyms: raw Sym array, filled in by ObjectFile.Parse.
 * @FirstGlobal: index of the first STB_GLOBAL symbol in ElfSyms.
 * @SymbolStrtab: the .strtab bytes backing ElfSyms names.
 * @IsAlive: whether this file survives into the output.
 * @Symbols: one *Symbol per entry in ElfSyms — locals point into
 *   LocalSymbols, globals are interned into the process-wide pool.
 * @LocalSymbols: storage for this file's local symbols.
 */
type InputFile struct {
	File         *File
	ElfSections  []Shdr
	ShStrtab     []byte
	ElfSyms      []Sym
	FirstGlobal  int
	SymbolStrtab []byte
	IsAlive      bool
	Symbols      []*Symbol
	LocalSymbols []Symbol

	Priority int64
}

func NewInputFile(file *File) InputFile {
	f := InputFile{File: file}

	if len(file.Contents) < EhdrSize {
		Fatalf("%s: file too small", file.Name)
	}
	if !CheckMagic(file.Contents) {
		Fatalf("%s: not an ELF file", file.Name)
	}

	ehdr := utils.Read[Ehdr](file.Contents)
	contents := file.Contents[ehdr.ShOff:]
	shdr := utils.Read[Shdr](contents)

	numSections := int64(ehdr.ShNum)
	if numSections == 0 {
		numSections = int64(shdr.Size)
	}

	f.ElfSections = []Shdr{shdr}
	for numSections > 1 {
		contents = contents[ShdrSize:]
		f.ElfSections = append(f.ElfSections, utils.Read[Shdr](contents))
		numSections--
	}

	shstrndx := int64(ehdr.ShStrndx)
	if ehdr.ShStrndx == uint16(ShnXindex) {
		shstrndx = int64(shdr.Link)
	}
	f.ShStrtab = f.GetBytesFromIdx(shstrndx)
	return f
}

func (f *InputFile) GetBytesFromShdr(s *Shdr) []byte {
	end := s.Offset + s.Size
	if uint64(len(f.File.Contents)) < end {
		Fatalf("%s: section is out of range: offset=%d size=%d", f.File.Name, s.Offset, s.Size)
	}
	return f.File.Contents[s.Offset:end]
}

func (f *InputFile) GetBytesFromIdx(idx int64) []byte {
	return f.GetBytesFromShdr(&f.ElfSections[idx])
}

func (f *InputFile) FillUpElfSyms(s *Shdr) {
	bs := f.GetBytesFromShdr(s)
	f.ElfSyms = utils.ReadSlice[Sym](bs, SymSize)
}

func (f *InputFile) FindSection(ty uint32) *Shdr {
	for i := range f.ElfSections {
		if f.ElfSections[i].Type == ty {
			return &f.ElfSections[i]
		}
	}
	return nil
}

func (f *InputFile) GetEhdr() Ehdr {
	return utils.Read[Ehdr](f.File.Contents)
}

func (f *InputFile) GetSectionName(shdr *Shdr) string {
	return readStr(f.ShStrtab, shdr.Name)
}

// ElfGetName decodes a null-terminated name out of a string table, the
// helper every section/symbol name lookup in this package goes through.
func ElfGetName(strtab []byte, offset uint32) string {
	return readStr(strtab, offset)
}

func readStr(strtab []byte, offset uint32) string {
	if int(offset) >= len(strtab) {
		return ""
	}
	end := offset
	for int(end) < len(strtab) && strtab[end] != 0 {
		end++
	}
	return string(strtab[offset:end])
}

func (f *InputFile) errorf(format string, args ...any) {
	Fatalf(fmt.Sprintf("%s: %s", f.File.Name, format), args...)
}
