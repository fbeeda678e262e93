package linker

import (
	"os"

	"github.com/litaotju/mold/pkg/utils"
	"golang.org/x/sys/unix"
)

// File is a memory-mapped input: a primary object/DSO/archive named on the
// command line, or an archive member carved out of one. Contents is a
// read-only mapping retained for the whole run, per the design notes'
// "memory mapping of inputs" — not a heap copy, so large archives don't
// double their resident size.
//
// Name: the file's path (members use "archive.a(member.o)").
// Contents: the mapped bytes.
// Parent: the enclosing archive's File, if this is a member.
type File struct {
	Name     string
	Contents []byte
	Parent   *File

	mapping []byte // the full mmap, for unmapping; nil for archive members.
}

// MustNewFile maps filename read-only and terminates the process on any
// failure to open, stat, or map it (an input error, §7).
func MustNewFile(filename string) *File {
	f, err := os.Open(filename)
	utils.MustNo(err)
	defer f.Close()

	st, err := f.Stat()
	utils.MustNo(err)

	if st.Size() == 0 {
		return &File{Name: filename}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	utils.MustNo(err)

	return &File{Name: filename, Contents: data, mapping: data}
}

// Close unmaps the file's backing memory, a no-op for archive members
// (which share their parent's mapping) and for empty files.
func (f *File) Close() {
	if f.mapping != nil {
		_ = unix.Munmap(f.mapping)
		f.mapping = nil
	}
}

func OpenLibrary(path string) *File {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return MustNewFile(path)
}

func FindLibrary(ctx *Context, name string) *File {
	for _, dir := range ctx.Args.LibraryPaths {
		if f := OpenLibrary(dir + "/lib" + name + ".a"); f != nil {
			return f
		}
		if f := OpenLibrary(dir + "/lib" + name + ".so"); f != nil {
			return f
		}
	}

	utils.Fatal("library not found: -l" + name)
	return nil
}
