package linker

// Chunker is implemented by every kind of OutputChunk: a regular output
// section, a merged (mergeable-string) section, a synthetic table, or one
// of the three header chunks. Go has no base-class pointers, so dispatch
// that a C++ linker would get from a common OutputChunk base is done
// through this interface instead.
type Chunker interface {
	GetName() string
	GetShdr() *Shdr
	GetShndx() int64
	SetShndx(idx int64)
	UpdateShdr(ctx *Context)
	CopyBuf(ctx *Context)
}

// Chunk is the common state every Chunker embeds: its output section
// name, its section header, and the section index AssignShndx gives it
// once the final chunk order is known (0 for the header chunks, which
// never get a section header entry of their own).
type Chunk struct {
	Name  string
	Shdr  Shdr
	Shndx int64
}

func NewChunk() Chunk {
	return Chunk{Shdr: Shdr{AddrAlign: 1}}
}

func (c *Chunk) GetName() string {
	return c.Name
}

func (c *Chunk) GetShdr() *Shdr {
	return &c.Shdr
}

func (c *Chunk) GetShndx() int64 {
	return c.Shndx
}

func (c *Chunk) SetShndx(idx int64) {
	c.Shndx = idx
}

func (c *Chunk) UpdateShdr(ctx *Context) {}

func (c *Chunk) CopyBuf(ctx *Context) {}
