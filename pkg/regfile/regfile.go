// Package regfile is the register file (SPEC_FULL.md §4.1): it owns the
// finite set of general-purpose registers, decides spill victims, and
// performs the storage.Cell rewrites that make a spill transparent to
// the node holding the cell. It is grounded on the teacher's
// Z80RegisterAllocator (pkg/codegen/register_allocator.go): a free-set
// bitmap plus a reverse "register -> what's in it" map, generalized from
// Z80's 8/16-bit register pairs to x86-64's uniform 8-byte GP registers,
// and from the teacher's simple LRU-ish spill choice to an explicit
// ordered victim search.
//
// Only caller-saved x86-64 registers are ever handed out as temporaries
// (RAX, RCX, RDX, RSI, RDI, R8-R11); callee-saved registers (RBX, RBP,
// R12-R15) are never handed out; of those, only RBP is used at all, as the
// frame base, and it is the one register the generated prologue/epilogue
// saves and restores. This trades a couple of temporaries for not having
// to emit callee-save push/pop bookkeeping for the rest, reasonable given
// this core targets small expression trees, not general-purpose
// functions.
package regfile

import (
	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/storage"
)

// Class distinguishes the (future) floating-point register set from the
// general-purpose one. Only Integer is exercised by any node today —
// SPEC_FULL.md's Non-goals exclude floating-point lowering — but the
// parallel FP bitset is kept per spec.md §4.1 so a future float node has
// somewhere to reserve from without a register-file redesign.
type Class uint8

const (
	ClassInteger Class = iota
	ClassFloat
)

// allocationOrder is the fixed, deterministic order Reserve searches in.
// Determinism here is what gives two identical trees byte-identical
// machine code (SPEC_FULL.md §5).
var allocationOrder = []amd64.Register{
	amd64.RAX, amd64.RCX, amd64.RDX, amd64.RSI, amd64.RDI,
	amd64.R8, amd64.R9, amd64.R10, amd64.R11,
}

// FrameSlots is the fixed number of 8-byte spill slots reserved in the
// prologue. Each spill takes a fresh slot and slots are never reused, so
// a tree that spills more than this many times in total fails with
// jiterr.KindRegisterExhausted — see DESIGN.md for why
// a fixed frame (rather than a two-pass size computation) was chosen.
const FrameSlots = 64

// FrameSize is FrameSlots*8, rounded up to the 16-byte System V stack
// alignment the prologue must maintain.
const FrameSize = FrameSlots * 8

// File is the register file for one compilation.
type File struct {
	asm *amd64.Assembler

	free     map[amd64.Register]bool
	claimed  map[amd64.Register]bool // permanently reserved for a Parameter
	pinned   map[amd64.Register]bool // temporarily protected against Reserve/spill
	refcount map[amd64.Register]int
	contents map[amd64.Register]*storage.Cell

	nextSpillSlot int32
	frameBase     amd64.Register

	// fpFree is provisioned but never drawn from by any node today.
	fpFree map[int]bool
}

// New creates a File bound to asm, with rbp as the frame base used for
// spill slots.
func New(asm *amd64.Assembler) *File {
	f := &File{
		asm:       asm,
		free:      make(map[amd64.Register]bool, len(allocationOrder)),
		claimed:   make(map[amd64.Register]bool),
		pinned:    make(map[amd64.Register]bool),
		refcount:  make(map[amd64.Register]int),
		contents:  make(map[amd64.Register]*storage.Cell),
		frameBase: amd64.RBP,
		fpFree:    make(map[int]bool),
	}
	for _, r := range allocationOrder {
		f.free[r] = true
	}
	return f
}

// ClaimFixed permanently removes reg from the general allocation pool
// (used once per Parameter node, in ABI argument order) and returns a
// Direct cell naming it with refcount 1.
func (f *File) ClaimFixed(reg amd64.Register) *storage.Cell {
	delete(f.free, reg)
	f.claimed[reg] = true
	cell := storage.Direct(reg)
	f.refcount[reg] = 1
	f.contents[reg] = cell
	return cell
}

// Reserve returns a Direct cell naming a free register of the given
// class, spilling an existing occupant if necessary.
func (f *File) Reserve(class Class) (*storage.Cell, error) {
	if class == ClassFloat {
		return nil, jiterr.Newf(jiterr.KindRegisterExhausted, "no floating-point registers are allocatable in this core")
	}
	reg, ok := f.firstFree()
	if !ok {
		var err error
		reg, err = f.spillOne()
		if err != nil {
			return nil, err
		}
	}
	delete(f.free, reg)
	f.refcount[reg] = 1
	cell := storage.Direct(reg)
	f.contents[reg] = cell
	return cell, nil
}

func (f *File) firstFree() (amd64.Register, bool) {
	for _, r := range allocationOrder {
		if f.free[r] && !f.pinned[r] {
			return r, true
		}
	}
	return amd64.NoRegister, false
}

// Pin temporarily protects cell's register from Reserve and from being
// picked as a spill victim, independent of its refcount. binaryNode and
// compareNode use this to hold one operand's register stable while
// evaluating the other operand's subtree, which may itself reserve or
// spill registers — without Pin, such a nested reservation could steal
// a register whose value hasn't been read by the pending instruction
// yet, even though the register file's own refcount bookkeeping may
// already have dropped to zero for it.
func (f *File) Pin(cell *storage.Cell) {
	if cell.Kind() != storage.KindDirect {
		return
	}
	f.pinned[cell.Register()] = true
}

// Unpin releases a Pin. It does not affect refcount or free/contents
// bookkeeping — whatever state Release or Claim already established for
// the register stands.
func (f *File) Unpin(cell *storage.Cell) {
	if cell.Kind() != storage.KindDirect {
		return
	}
	delete(f.pinned, cell.Register())
}

// spillOne picks a victim register, writes its value to a fresh stack
// slot, rewrites every storage.Cell that named it into an indirect
// reference to that slot, and returns the now-free register.
func (f *File) spillOne() (amd64.Register, error) {
	victim, ok := f.victimRegister()
	if !ok {
		return amd64.NoRegister, jiterr.Newf(jiterr.KindRegisterExhausted,
			"no register available and nothing to spill (frame has %d/%d slots used)",
			f.nextSpillSlot/8, FrameSlots)
	}
	if f.nextSpillSlot >= FrameSize {
		return amd64.NoRegister, jiterr.Newf(jiterr.KindRegisterExhausted,
			"spill frame exhausted after %d slots", FrameSlots)
	}

	f.nextSpillSlot += 8
	slot := -f.nextSpillSlot
	f.asm.EmitStoreMem(f.frameBase, slot, victim)

	cell := f.contents[victim]
	storage.MutateToIndirect(cell, f.frameBase, slot)

	delete(f.contents, victim)
	delete(f.refcount, victim)
	return victim, nil
}

// victimRegister picks a spill candidate: the first claimed-for-content
// register in allocation order that isn't permanently claimed by a
// Parameter (those never spill — reloading a parameter is just as
// expensive and parameters are already memory-backed via the incoming
// stack in the general case, but more importantly spilling a claimed
// register would desynchronize Parameter nodes' cached storage with no
// node left to consult before release).
func (f *File) victimRegister() (amd64.Register, bool) {
	for _, r := range allocationOrder {
		if f.claimed[r] || f.pinned[r] {
			continue
		}
		if _, occupied := f.contents[r]; occupied {
			return r, true
		}
	}
	return amd64.NoRegister, false
}

// Retain increments the refcount on the register a Direct cell names,
// for when a node with multiple parents hands the same cell to another
// consumer.
func (f *File) Retain(cell *storage.Cell) {
	if cell.Kind() != storage.KindDirect {
		return
	}
	f.refcount[cell.Register()]++
}

// Release decrements the refcount on the register a Direct cell names,
// returning it to the free pool once the count reaches zero. Indirect
// and Immediate cells are no-ops: they hold no register.
func (f *File) Release(cell *storage.Cell) {
	if cell.Kind() != storage.KindDirect {
		return
	}
	reg := cell.Register()
	if f.claimed[reg] {
		// Parameters are released when the tree tears down, not per-use.
		return
	}
	f.refcount[reg]--
	if f.refcount[reg] <= 0 {
		delete(f.refcount, reg)
		delete(f.contents, reg)
		f.free[reg] = true
	}
}

// ToDirect materializes cell into a register, mutating it in place
// (SPEC_FULL.md §4.3). For an already-Direct cell this is a no-op. For
// Indirect, preserveAddress true keeps the cell's register as a base
// pointer for further offset arithmetic (no load emitted beyond moving
// the address itself if it's not already in a fresh register); false
// emits a load of the pointed-to value. For Immediate, the constant is
// moved into a freshly reserved register; per SPEC_FULL.md §4.3/§4.5,
// this must never otherwise touch the register file's bookkeeping beyond
// that one reservation, so it stays safe to sequence after a conditional
// jump.
func (f *File) ToDirect(cell *storage.Cell, preserveAddress bool) error {
	switch cell.Kind() {
	case storage.KindDirect:
		return nil
	case storage.KindImmediate:
		dst, err := f.Reserve(ClassInteger)
		if err != nil {
			return err
		}
		reg := dst.Register()
		f.Release(dst) // the register now belongs to `cell`, not `dst`
		delete(f.free, reg)
		f.refcount[reg] = 1
		f.contents[reg] = cell
		f.asm.EmitMovRegImm64(reg, cell.ImmediateValue())
		storage.MutateToDirect(cell, reg)
		return nil
	case storage.KindIndirect:
		base := cell.Register()
		disp := cell.Displacement()
		if preserveAddress {
			dst, err := f.Reserve(ClassInteger)
			if err != nil {
				return err
			}
			reg := dst.Register()
			if disp == 0 {
				f.asm.EmitMovRegReg(reg, base)
			} else {
				f.asm.EmitMovRegReg(reg, base)
				f.asm.EmitArithRegImm32(amd64.OpAdd, reg, disp)
			}
			f.Release(dst)
			delete(f.free, reg)
			f.refcount[reg] = 1
			f.contents[reg] = cell
			storage.MutateToDirect(cell, reg)
			return nil
		}
		dst, err := f.Reserve(ClassInteger)
		if err != nil {
			return err
		}
		reg := dst.Register()
		f.asm.EmitLoadMem(reg, base, disp)
		f.Release(dst)
		delete(f.free, reg)
		f.refcount[reg] = 1
		f.contents[reg] = cell
		storage.MutateToDirect(cell, reg)
		return nil
	default:
		return jiterr.Newf(jiterr.KindTypeMismatch, "unknown storage kind %v", cell.Kind())
	}
}

// Claim (re-)establishes regfile ownership of an already-Direct cell,
// used by binary-arithmetic code-gen: the left operand's register is
// reused in place as the result (SPEC_FULL.md §4.3, "the result replaces
// the left storage in-place"), so once the node that used to own it has
// released its last reference, the binary node claims the same register
// back for its own storage rather than it going back through Reserve.
func (f *File) Claim(cell *storage.Cell) {
	reg := cell.Register()
	delete(f.free, reg)
	f.refcount[reg] = 1
	f.contents[reg] = cell
}

// ResultRegister is the ABI return-value register for every type this
// core supports (they're all 8-byte integer/pointer values returned in
// RAX per System V AMD64).
func ResultRegister() amd64.Register { return amd64.ResultRegister }

// FrameBase returns the register spill slots are addressed relative to.
func (f *File) FrameBase() amd64.Register { return f.frameBase }
