package linker

import "github.com/litaotju/mold/pkg/utils"

// ReadInputFiles walks the command line's non-option arguments — object
// files, archives, DSOs, and -lNAME library references — and turns each
// into one or more ObjectFiles in ctx.Objs/ctx.Dsos. Sequential: the
// work here is dominated by mmap and parse, not the kind of
// cross-file computation the data-parallel phases exist for, and the
// priority each file is assigned must reflect command-line order. Once
// every argument is read, archive members are renumbered after all other
// files, keeping their enumeration order.
func ReadInputFiles(ctx *Context, remaining []string) {
	for _, arg := range remaining {
		if name, ok := utils.RemovePrefix(arg, "-l"); ok {
			ReadFile(ctx, FindLibrary(ctx, name))
		} else {
			ReadFile(ctx, MustNewFile(arg))
		}
	}
	for _, obj := range ctx.Objs {
		if obj.IsInArchive {
			obj.Priority = ctx.NextPriority()
		}
	}
}

func ReadFile(ctx *Context, file *File) {
	switch GetFileType(file.Contents) {
	case FileTypeObject:
		ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, file, false))
	case FileTypeArchive:
		for _, child := range ReadArchiveMembers(file) {
			if GetFileType(child.Contents) != FileTypeObject {
				continue
			}
			ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, child, true))
		}
	case FileTypeDSO:
		ctx.Dsos = append(ctx.Dsos, CreateDSO(ctx, file))
	default:
		utils.Fatal("unknown file type: " + file.Name)
	}
}

func CreateObjectFile(ctx *Context, file *File, inArchive bool) *ObjectFile {
	CheckFileCompatibility(ctx, file)

	obj := NewObjectFile(ctx, file, !inArchive)
	obj.IsInArchive = inArchive
	obj.Parse(ctx)
	return obj
}

// CreateDSO parses a shared object only far enough to harvest its
// dynamic symbol table (§3's ObjectFile.IsDSO), so an executable linked
// against it can resolve undefined references without the library's
// code or data ever being copied into the output.
func CreateDSO(ctx *Context, file *File) *ObjectFile {
	CheckFileCompatibility(ctx, file)

	obj := NewObjectFile(ctx, file, true)
	obj.IsDSO = true
	obj.ParseDSO(ctx)
	return obj
}
