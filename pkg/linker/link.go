package linker

// Link runs the full pipeline end to end: every phase below is either a
// data-parallel fan-out over ctx.Objs/ctx.OutputSections/ctx.MergedSections
// or a short sequential step gluing two such phases together, in the
// order the design's barriers require.
func Link(ctx *Context, remaining []string) {
	ReadInputFiles(ctx, remaining)

	ResolveSymbols(ctx)

	ResolveComdatGroups(ctx)

	RegisterSectionPieces(ctx)

	ComputeMergedSectionSizes(ctx)

	ScanRelocations(ctx)

	AssignSlots(ctx)

	CreateSyntheticSections(ctx)

	BinSections(ctx)

	ctx.Chunks = append(ctx.Chunks, CollectOutputSections(ctx)...)

	ComputeSectionSizes(ctx)

	SortOutputSections(ctx)

	FinalizeSyntheticSections(ctx)

	AssignShndx(ctx)

	ctx.Shstrtab.Build(ctx)
	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() <= 0 {
			continue
		}
		chunk.GetShdr().Name = ctx.Shstrtab.Offset(chunk.GetName())
	}

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}

	fileSize := SetOutputSectionOffsets(ctx)

	DefineSyntheticSymbols(ctx)

	outFile, err := OpenOutputFile(ctx, fileSize)
	if err != nil {
		Fatalf("cannot open output file %s: %v", ctx.Args.Output, err)
	}

	WriteOutput(ctx, outFile)

	ctx.Stat.NumFiles = len(ctx.Objs)
}
