package linker

import "testing"

func TestComdatLowerPriorityWins(t *testing.T) {
	ctx := NewContext()
	low := &ObjectFile{}
	low.Priority = 1
	high := &ObjectFile{}
	high.Priority = 5

	ctx.claimComdatGroup("inline_f", high)
	ctx.claimComdatGroup("inline_f", low)

	if got := ctx.comdatGroupWinner("inline_f"); got != low {
		t.Fatalf("comdatGroupWinner = %p, want the lower-priority file %p", got, low)
	}
}

func TestComdatHigherPriorityLoses(t *testing.T) {
	ctx := NewContext()
	low := &ObjectFile{}
	low.Priority = 1
	high := &ObjectFile{}
	high.Priority = 5

	ctx.claimComdatGroup("inline_f", low)
	ctx.claimComdatGroup("inline_f", high)

	if got := ctx.comdatGroupWinner("inline_f"); got != low {
		t.Fatalf("comdatGroupWinner = %p, want %p (first, lower-priority claim keeps winning)", got, low)
	}
}

func TestComdatUnknownSignature(t *testing.T) {
	ctx := NewContext()
	if got := ctx.comdatGroupWinner("never-claimed"); got != nil {
		t.Fatalf("comdatGroupWinner(unknown) = %v, want nil", got)
	}
}

func TestEnableWinningComdatGroupsOnlyEnablesWinner(t *testing.T) {
	ctx := NewContext()
	winner := &ObjectFile{
		ComdatGroups: []*ComdatGroup{{Signature: "inline_f", Indices: []uint32{0}}},
		Sections:     []*InputSection{{IsAlive: false, ShSize: 42, Contents: []byte{1, 2, 3}}},
	}
	winner.Priority = 1
	loser := &ObjectFile{
		ComdatGroups: []*ComdatGroup{{Signature: "inline_f", Indices: []uint32{0}}},
		Sections:     []*InputSection{{IsAlive: false, ShSize: 42, Contents: []byte{1, 2, 3}}},
	}
	loser.Priority = 2

	winner.ClaimComdatGroups(ctx)
	loser.ClaimComdatGroups(ctx)

	winner.EnableWinningComdatGroups(ctx)
	loser.EnableWinningComdatGroups(ctx)

	if !winner.Sections[0].IsAlive {
		t.Error("winning file's member section should be re-enabled")
	}
	if winner.Sections[0].ShSize != 42 {
		t.Error("winning file's member section must keep its real content")
	}

	// The losing file's member section is not left permanently dead: it
	// becomes a zero-size, alive placeholder so a local symbol that still
	// references it by section index stays valid.
	if !loser.Sections[0].IsAlive {
		t.Error("losing file's member section must become an alive placeholder")
	}
	if loser.Sections[0].ShSize != 0 || loser.Sections[0].Contents != nil {
		t.Error("losing file's placeholder section must contribute zero bytes")
	}
}
