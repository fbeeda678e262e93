package linker

import (
	"os"

	"github.com/litaotju/mold/pkg/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// OpenOutputFile implements §4.8's writer setup: the output file is
// created (or truncated) at its final size up front and mmap'd, so every
// chunk's CopyBuf can write its own slice of ctx.Buf concurrently instead
// of serializing through a single io.Writer.
func OpenOutputFile(ctx *Context, size uint64) (*os.File, error) {
	perm := os.FileMode(0777)
	file, err := os.OpenFile(ctx.Args.Output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, err
	}

	buf, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, err
	}

	if ctx.Args.Filler != nil {
		fill := *ctx.Args.Filler
		for i := range buf {
			buf[i] = fill
		}
	}

	ctx.Buf = buf
	return file, nil
}

// WriteOutput implements §4.8's parallel copy phase: every chunk writes
// its own region of the mmap'd file concurrently — regions never
// overlap, since SetOutputSectionOffsets already laid them out
// back-to-back, so no chunk's CopyBuf needs to take a lock on ctx.Buf.
func WriteOutput(ctx *Context, file *os.File) {
	var g errgroup.Group
	for _, chunk := range ctx.Chunks {
		chunk := chunk
		g.Go(func() error {
			chunk.CopyBuf(ctx)
			return nil
		})
	}
	utils.MustNo(g.Wait())

	utils.MustNo(unix.Msync(ctx.Buf, unix.MS_SYNC))
	utils.MustNo(unix.Munmap(ctx.Buf))
	utils.MustNo(file.Close())
	utils.MustNo(os.Chmod(ctx.Args.Output, 0777))
}
