package linker

import (
	"strconv"
	"strings"

	"github.com/litaotju/mold/pkg/utils"
)

// ArHdr is the 60-byte classic-archive member header, fixed-width ASCII
// fields exactly as they appear on disk.
type ArHdr struct {
	Name     [16]byte
	Date     [12]byte
	Uid      [6]byte
	Gid      [6]byte
	Mode     [8]byte
	RawSize  [10]byte
	Fmag     [2]byte
}

var ArHeaderSize = 60

func (h *ArHdr) GetSize() int {
	s := strings.TrimSpace(string(h.RawSize[:]))
	n, err := strconv.Atoi(s)
	utils.MustNo(err)
	return n
}

func (h *ArHdr) IsStrtab() bool {
	return h.Name[0] == '/' && h.Name[1] == '/'
}

func (h *ArHdr) IsSymtab() bool {
	return h.Name[0] == '/' && (h.Name[1] == ' ' || h.Name[1] == '\n')
}

// ReadName decodes the member name, resolving a "/<offset>" indirection
// into the long-name string table when the 16-byte inline field overflows.
func (h *ArHdr) ReadName(strtab []byte) string {
	if h.Name[0] == '/' && h.Name[1] != '/' {
		rest := strings.TrimRight(string(h.Name[1:]), " ")
		off, err := strconv.Atoi(rest)
		utils.MustNo(err)
		end := off
		for end < len(strtab) && strtab[end] != '\n' {
			end++
		}
		return strings.TrimRight(string(strtab[off:end]), "/\n")
	}
	return strings.TrimRight(strings.TrimRight(string(h.Name[:]), " "), "/")
}

// ReadArchiveMembers walks a classic "!<arch>\n" archive and returns one
// File per member, skipping the symbol table ("/") and the long-name
// string table ("//") pseudo-members, and "__.SYMDEF"/"__.SYMDEF SORTED"
// ranlib symdef members some archives still carry.
func ReadArchiveMembers(file *File) []*File {
	utils.Assert(GetFileType(file.Contents) == FileTypeArchive)

	pos := len(archiveMagic)
	var strtab []byte
	var files []*File

	for len(file.Contents)-pos > 1 {
		if pos%2 == 1 {
			pos++
		}

		hdr := utils.Read[ArHdr](file.Contents[pos:])
		dataStart := pos + ArHeaderSize
		if dataStart > len(file.Contents) {
			Fatalf("%s: malformed archive", file.Name)
		}
		size := hdr.GetSize()
		dataEnd := dataStart + size
		if dataEnd > len(file.Contents) {
			Fatalf("%s: malformed archive", file.Name)
		}
		contents := file.Contents[dataStart:dataEnd]
		pos = dataEnd

		if hdr.IsSymtab() {
			continue
		}
		if hdr.IsStrtab() {
			strtab = contents
			continue
		}

		name := hdr.ReadName(strtab)
		if name == "__.SYMDEF" || name == "__.SYMDEF SORTED" {
			continue
		}

		files = append(files, &File{
			Name:     file.Name + "(" + name + ")",
			Contents: contents,
			Parent:   file,
		})
	}

	return files
}
