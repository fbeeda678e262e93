package linker

// PltSection is ".plt": a 16-byte resolver stub (PLT[0]) followed by one
// 16-byte stub per NeedsPlt symbol. Each stub jumps through its GOTPLT
// slot, falling back to the resolver on the first, lazy call.
type PltSection struct {
	Chunk
	numEntries int
}

func NewPltSection() *PltSection {
	o := &PltSection{Chunk: NewChunk()}
	o.Name = ".plt"
	o.Shdr.Type = ShtProgbits
	o.Shdr.Flags = ShfAlloc | ShfExecinstr
	o.Shdr.AddrAlign = 16
	o.Shdr.Size = 16
	return o
}

func (o *PltSection) SetNumEntries(n int) {
	o.numEntries = n
	o.Shdr.Size = uint64(n+1) * 16
}

// CopyBuf emits the standard x86-64 PLT stub shapes. PLT[0] pushes the
// link_map pointer GOTPLT holds and jumps into the dynamic linker's
// resolver; every other entry jumps indirect through its own GOTPLT
// slot, which GotPltSection.CopyBuf seeds to point back at the matching
// "push index; jmp PLT[0]" tail below the jump so a first call lazily
// resolves through the same path.
func (o *PltSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[o.Shdr.Offset:]
	gotplt := ctx.GotPlt.Shdr.Addr

	// PLT[0]: ff 35 <gotplt+8 rel32>; ff 25 <gotplt+16 rel32>; 0f 1f 40 00
	stub0 := buf[:16]
	writeIndirect(stub0, 0x35, pcRel32(ctx.Plt.Shdr.Addr+2, ctx.GotPlt.Shdr.Addr+8))
	writeIndirect(stub0[6:], 0x25, pcRel32(ctx.Plt.Shdr.Addr+8, ctx.GotPlt.Shdr.Addr+16))
	stub0[12], stub0[13], stub0[14], stub0[15] = 0x0f, 0x1f, 0x40, 0x00

	for i := 0; i < o.numEntries; i++ {
		off := (i + 1) * 16
		stub := buf[off : off+16]
		entryAddr := ctx.Plt.Shdr.Addr + uint64(off)
		slotAddr := gotplt + uint64(3+i)*8
		writeIndirect(stub, 0x25, pcRel32(entryAddr+2, slotAddr))
		stub[6] = 0x68 // push imm32
		writeU32(stub[7:], uint32(i))
		stub[11] = 0xe9 // jmp rel32
		writeU32(stub[12:], uint32(int64(ctx.Plt.Shdr.Addr)-int64(entryAddr+16)))
	}
}

// writeIndirect emits "ff <modrm> <rel32>" — an indirect push (modrm
// 0x35) or jmp (modrm 0x25) through a RIP-relative pointer.
func writeIndirect(stub []byte, modrm byte, rel32 uint32) {
	stub[0] = 0xff
	stub[1] = modrm
	writeU32(stub[2:], rel32)
}

func pcRel32(pc, target uint64) uint32 {
	return uint32(int64(target) - int64(pc+4))
}

func writeU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
