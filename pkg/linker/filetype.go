package linker

import "bytes"

// FileType classifies a raw input buffer by its magic bytes, the
// detection step needed before an input can be dispatched to the object
// parser, the archive member enumerator, or rejected as an input error.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeObject           // ET_REL ELF relocatable
	FileTypeDSO               // ET_DYN ELF shared object
	FileTypeArchive           // "!<arch>\n" classic archive
)

var archiveMagic = []byte("!<arch>\n")

func GetFileType(contents []byte) FileType {
	if len(contents) >= len(archiveMagic) && bytes.Equal(contents[:len(archiveMagic)], archiveMagic) {
		return FileTypeArchive
	}
	if len(contents) < 20 || string(contents[:4]) != "\x7fELF" {
		return FileTypeUnknown
	}
	etype := uint16(contents[16]) | uint16(contents[17])<<8
	switch etype {
	case uint16(EtRel):
		return FileTypeObject
	case uint16(EtDyn):
		return FileTypeDSO
	default:
		return FileTypeUnknown
	}
}

// CheckFileCompatibility rejects anything that isn't a 64-bit
// little-endian x86-64 ELF relocatable or DSO.
func CheckFileCompatibility(ctx *Context, file *File) {
	if len(file.Contents) < 20 {
		Fatalf("%s: file too small to be ELF", file.Name)
	}
	if string(file.Contents[:4]) != "\x7fELF" {
		Fatalf("%s: not an ELF file", file.Name)
	}
	if file.Contents[4] != 2 { // ELFCLASS64
		Fatalf("%s: not a 64-bit ELF file", file.Name)
	}
	if file.Contents[5] != 1 { // ELFDATA2LSB
		Fatalf("%s: not a little-endian ELF file", file.Name)
	}
	mt := GetMachineTypeFromContents(file.Contents)
	if mt != MachineTypeX86_64 {
		Fatalf("%s: incompatible file type (expected x86-64)", file.Name)
	}
	if ctx.Args.Emulation == MachineTypeNone {
		ctx.Args.Emulation = mt
	} else if ctx.Args.Emulation != mt {
		Fatalf("%s: incompatible file type", file.Name)
	}
}
