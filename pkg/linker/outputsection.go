package linker

// OutputSection is the binning target (§3) for every InputSection that
// reduces to the same GetOutputName/type/flags key: one physical range
// in the output file holding many input sections end to end (§4.5).
//
// @Idx: this section's position in ctx.OutputSections, fixed at creation
// and used by BinSections to index directly into a per-section bucket
// slice instead of a map, so binning never needs a lock.
type OutputSection struct {
	Chunk
	Members []*InputSection
	Idx     uint32
}

func NewOutputSection(name string, typ uint32, flags uint64, idx uint32) *OutputSection {
	o := &OutputSection{Chunk: NewChunk()}
	o.Name = name
	o.Shdr.Type = typ
	o.Shdr.Flags = flags
	o.Idx = idx
	return o
}

func (o *OutputSection) CopyBuf(ctx *Context) {
	if o.Shdr.Type == ShtNobits {
		return
	}

	base := ctx.Buf[o.Shdr.Offset:]
	for _, isec := range o.Members {
		isec.WriteTo(ctx, base[isec.Offset:])
	}
}

// GetOutputSection returns the OutputSection that an input section with
// this name/type/flags bins into, creating one on first sight. Called
// once per InputSection at NewInputSection time; contention is bounded
// by the small number of distinct output sections, so a single global
// slice scan under no lock (callers run during the still-sequential
// parse phase) is simpler than a map and fine in practice.
func GetOutputSection(ctx *Context, name string, typ uint32, flags uint64) *OutputSection {
	name = GetOutputName(name, flags)
	flags = flags &^ ShfGroup &^ ShfCompressed &^ ShfLinkOrder

	for _, osec := range ctx.OutputSections {
		if name == osec.Name && typ == osec.Shdr.Type && flags == osec.Shdr.Flags {
			return osec
		}
	}

	osec := NewOutputSection(name, typ, flags, uint32(len(ctx.OutputSections)))
	ctx.OutputSections = append(ctx.OutputSections, osec)
	return osec
}
