package linker

import (
	"fmt"
	"io"
)

// PrintMap writes a link map: one line per output section naming it and
// its final address/size, followed by one indented line per contributing
// input section naming the file it came from. This is the "map-file
// printer" collaborator of §1, built in rather than external, kept to
// what §6's CLI table actually promises.
func PrintMap(ctx *Context, w io.Writer) {
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) == 0 {
			continue
		}
		fmt.Fprintf(w, "%-20s 0x%016x 0x%x\n", osec.Name, osec.Shdr.Addr, osec.Shdr.Size)
		for _, isec := range osec.Members {
			fmt.Fprintf(w, "  0x%016x 0x%-8x %s:(%s)\n",
				osec.Shdr.Addr+uint64(isec.Offset), isec.ShSize, isec.File.File.Name, isec.Name())
		}
	}
}

// PrintStat writes the "-stat" counters accumulated during the run.
func PrintStat(ctx *Context, w io.Writer) {
	fmt.Fprintf(w, "files: %d\n", ctx.Stat.NumFiles)
	fmt.Fprintf(w, "got entries: %d\n", ctx.Stat.NumGot)
	fmt.Fprintf(w, "plt entries: %d\n", ctx.Stat.NumPlt)
	fmt.Fprintf(w, "gotplt entries: %d\n", ctx.Stat.NumGotPlt)
	fmt.Fprintf(w, "rela.plt entries: %d\n", ctx.Stat.NumRelPlt)
	fmt.Fprintf(w, "rela.dyn entries: %d\n", ctx.Stat.NumRelDyn)
}

// PrintTrace writes one line per surviving input file, for "-trace".
func PrintTrace(ctx *Context, w io.Writer) {
	for _, file := range ctx.Objs {
		fmt.Fprintf(w, "%s\n", file.File.Name)
	}
}
