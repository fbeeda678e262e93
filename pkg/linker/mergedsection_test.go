package linker

import "testing"

// newTestFile returns a minimal *ObjectFile carrying only the priority
// MergedSection/SectionFragment dominance logic actually reads.
func newTestFile(priority int64) *ObjectFile {
	o := &ObjectFile{}
	o.Priority = priority
	return o
}

func TestIdenticalStringsCollapseToOneFragment(t *testing.T) {
	merged := NewMergedSection(".rodata.str1.1", ShfAlloc|ShfMerge|ShfStrings, ShtProgbits)

	files := []*ObjectFile{newTestFile(3), newTestFile(1), newTestFile(2)}
	var sections []*MergeableSection
	var frags []*SectionFragment

	for _, f := range files {
		ms := &MergeableSection{Parent: merged, File: f, Strs: []string{"hello\x00"}}
		frag := merged.Insert(ms, "hello\x00", 0)
		ms.Fragments = append(ms.Fragments, frag)
		sections = append(sections, ms)
		frags = append(frags, frag)
	}

	// Every file's occurrence interns into the very same fragment.
	for i := 1; i < len(frags); i++ {
		if frags[i] != frags[0] {
			t.Fatalf("occurrence %d interned into a different fragment than occurrence 0", i)
		}
	}

	// The file with the lowest priority (1, sections[1]) must win, not
	// the one that happened to insert first.
	winner := frags[0].Winner()
	if winner != sections[1] {
		t.Fatalf("Winner() = priority %d's section, want priority 1's section", winner.File.Priority)
	}

	for _, ms := range sections {
		ms.ComputeFragmentOffsets()
	}
	if sections[1].Size != uint64(len("hello\x00")) {
		t.Errorf("winning section Size = %d, want %d", sections[1].Size, len("hello\x00"))
	}
	if sections[0].Size != 0 || sections[2].Size != 0 {
		t.Error("losing sections must not lay out the piece they didn't win")
	}

	ctx := NewContext()
	ctx.MergedSections = append(ctx.MergedSections, merged)
	ctx.Objs = append(ctx.Objs, files...)
	for i, f := range files {
		f.MergeableSections = []*MergeableSection{sections[i]}
	}

	merged.AssignOffsets(ctx)

	if !frags[0].IsAlive {
		t.Fatal("the single surviving fragment must be marked alive after AssignOffsets")
	}
	if merged.Shdr.Size != uint64(len("hello\x00")) {
		t.Errorf("MergedSection.Shdr.Size = %d, want %d (one copy only)", merged.Shdr.Size, len("hello\x00"))
	}
}
