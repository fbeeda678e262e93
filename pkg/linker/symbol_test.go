package linker

import "testing"

func TestTryClaimDominance(t *testing.T) {
	// A strong definition at higher priority still beats a common
	// definition at lower priority: rank dominates priority.
	sym := NewSymbol("foo")
	if !sym.TryClaim(rankCommon, 5) {
		t.Fatal("first claim should always succeed")
	}
	if sym.TryClaim(rankDSO, 1) {
		t.Fatal("weaker rank (DSO) must not displace an existing common definition")
	}
	if !sym.TryClaim(rankStrong, 9) {
		t.Fatal("stronger rank (strong) must displace a common definition regardless of priority")
	}
	if sym.Rank() != rankStrong {
		t.Fatalf("Rank() = %d, want rankStrong (%d)", sym.Rank(), rankStrong)
	}
}

func TestTryClaimTieBreakByPriority(t *testing.T) {
	sym := NewSymbol("bar")
	if !sym.TryClaim(rankStrong, 5) {
		t.Fatal("first claim should always succeed")
	}
	if sym.TryClaim(rankStrong, 7) {
		t.Fatal("same rank, higher (weaker) priority must not displace the lower-priority owner")
	}
	if !sym.TryClaim(rankStrong, 2) {
		t.Fatal("same rank, lower priority must displace the higher-priority owner")
	}
}

func TestTryClaimUndefBaseline(t *testing.T) {
	sym := NewSymbol("baz")
	// A fresh symbol's owner starts weaker than every real rank
	// (including rankUndef itself), so even the weakest real claim,
	// archive-lazy, must succeed against it.
	if !sym.TryClaim(rankLazy, 100) {
		t.Fatal("even a lazy archive-member claim should beat the fresh baseline")
	}
	if sym.Rank() != rankLazy {
		t.Fatalf("Rank() = %d, want rankLazy (%d)", sym.Rank(), rankLazy)
	}
}

func TestAddRelsIsIdempotentOr(t *testing.T) {
	sym := NewSymbol("needs")
	sym.AddRels(NeedsGot)
	sym.AddRels(NeedsPlt)
	if sym.Rels()&NeedsGot == 0 || sym.Rels()&NeedsPlt == 0 {
		t.Fatalf("Rels() = %b, want both NeedsGot and NeedsPlt set", sym.Rels())
	}
	sym.AddRels(NeedsGot)
	if sym.Rels()&(NeedsGotTp|NeedsTlsGd|NeedsTlsLd) != 0 {
		t.Fatalf("Rels() = %b, unrelated bits must stay clear", sym.Rels())
	}
}

func TestSlotAddressArithmetic(t *testing.T) {
	ctx := NewContext()
	ctx.Got = NewGotSection()
	ctx.Got.Shdr.Addr = 0x1000
	ctx.GotPlt = NewGotPltSection()
	ctx.GotPlt.Shdr.Addr = 0x2000
	ctx.Plt = NewPltSection()
	ctx.Plt.Shdr.Addr = 0x3000

	sym := NewSymbol("puts")
	sym.GotIdx = 2
	if got := sym.GetGotAddr(ctx); got != 0x1000+2*8 {
		t.Errorf("GetGotAddr = %#x, want %#x", got, 0x1000+2*8)
	}

	sym.GotPltIdx = 0
	if got := sym.GetGotPltAddr(ctx); got != 0x2000+3*8 {
		t.Errorf("GetGotPltAddr = %#x, want %#x (3 reserved slots)", got, 0x2000+3*8)
	}

	sym.PltIdx = 0
	if got := sym.GetPltAddr(ctx); got != 0x3000+16 {
		t.Errorf("GetPltAddr = %#x, want %#x (PLT[0] skipped)", got, 0x3000+16)
	}
}

func TestGetPltAddrFallsBackWithoutPltEntry(t *testing.T) {
	ctx := NewContext()
	ctx.Plt = NewPltSection()
	ctx.Plt.Shdr.Addr = 0x3000

	sym := NewSymbol("local")
	sym.Value = 0x4242
	if got := sym.GetPltAddr(ctx); got != sym.GetAddr() {
		t.Errorf("GetPltAddr without a PLT entry = %#x, want GetAddr() = %#x", got, sym.GetAddr())
	}
}

func TestIsUndef(t *testing.T) {
	sym := NewSymbol("undef")
	if !sym.IsUndef() {
		t.Fatal("freshly interned symbol must be undefined")
	}
	sym.File = &ObjectFile{}
	sym.Value = 1
	if sym.IsUndef() {
		t.Fatal("symbol with a non-zero value and owning file must not be undefined")
	}
}
