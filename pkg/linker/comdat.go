package linker

import "sync/atomic"

// comdatWinner is the immutable value behind one signature's CAS slot
// (§4.3): the file with the lowest priority currently claiming that
// group. Swapped wholesale rather than field-by-field so a reader never
// observes a priority paired with the wrong file.
type comdatWinner struct {
	priority int64
	file     *ObjectFile
}

// claimComdatGroup implements §4.3's two-phase elimination, phase one:
// every file defining a group with this signature contends for it via a
// CAS loop, exactly as Symbol.TryClaim contends for a name. Lower file
// priority wins; called concurrently across every file.
func (ctx *Context) claimComdatGroup(sig string, file *ObjectFile) {
	ctx.comdatMu.Lock()
	slot, ok := ctx.comdatGroups[sig]
	if !ok {
		slot = &atomic.Pointer[comdatWinner]{}
		ctx.comdatGroups[sig] = slot
	}
	ctx.comdatMu.Unlock()

	for {
		cur := slot.Load()
		if cur != nil && file.Priority >= cur.priority {
			return
		}
		if slot.CompareAndSwap(cur, &comdatWinner{priority: file.Priority, file: file}) {
			return
		}
	}
}

func (ctx *Context) comdatGroupWinner(sig string) *ObjectFile {
	ctx.comdatMu.Lock()
	slot := ctx.comdatGroups[sig]
	ctx.comdatMu.Unlock()
	if slot == nil {
		return nil
	}
	if w := slot.Load(); w != nil {
		return w.file
	}
	return nil
}

// ClaimComdatGroups registers every group this file defines (§4.3 phase
// one). Run concurrently across every file, before the barrier that
// precedes EnableWinningComdatGroups.
func (o *ObjectFile) ClaimComdatGroups(ctx *Context) {
	for _, g := range o.ComdatGroups {
		ctx.claimComdatGroup(g.Signature, o)
	}
}

// EnableWinningComdatGroups implements §4.3 phase two: after every file
// has registered, re-enable the member sections of groups this file
// actually won. A file that lost a group does not simply leave its
// member sections dead forever — InitializeComdatGroups already cleared
// IsAlive on every member section up front, but a local symbol elsewhere
// in the same file may still reference a losing member by section index,
// so each one is turned into a zero-size, alive placeholder instead of a
// permanently dangling dead section.
func (o *ObjectFile) EnableWinningComdatGroups(ctx *Context) {
	for _, g := range o.ComdatGroups {
		won := ctx.comdatGroupWinner(g.Signature) == o
		for _, idx := range g.Indices {
			if int(idx) >= len(o.Sections) || o.Sections[idx] == nil {
				continue
			}
			if won {
				o.Sections[idx].IsAlive = true
			} else {
				o.Sections[idx].MakePlaceholder()
			}
		}
	}
}
