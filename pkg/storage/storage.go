// Package storage implements the Storage cell (SPEC_FULL.md §3/§4.1): a
// tagged value describing where a node's result currently lives. A Cell
// is plain data — construction and mutation (reservation, spilling,
// materialization) are regfile's job, since those operations need the
// register file's bookkeeping; storage only defines the shape and the
// read-only queries every node's code-gen needs.
package storage

import "github.com/exprjit/exprjit/pkg/amd64"

// Kind tags which of the three storage variants a Cell currently holds.
type Kind uint8

const (
	// KindImmediate: the value is a compile-time constant, not yet
	// realized in any register.
	KindImmediate Kind = iota
	// KindDirect: the value lives in Register.
	KindDirect
	// KindIndirect: the value lives at [Register + Displacement].
	KindIndirect
)

// Cell is the storage cell described in SPEC_FULL.md §3. Nodes cache a
// *Cell (not a copy) so that regfile can rewrite it in place — e.g. when
// spilling turns a KindDirect cell into a KindIndirect one, every parent
// holding the same *Cell observes the rewrite on its next access.
type Cell struct {
	kind         Kind
	reg          amd64.Register // KindDirect: value register. KindIndirect: base register.
	displacement int32          // KindIndirect only
	immediate    uint64         // KindImmediate only
}

// Direct builds a Cell whose value lives directly in reg.
func Direct(reg amd64.Register) *Cell {
	return &Cell{kind: KindDirect, reg: reg}
}

// Indirect builds a Cell whose value lives at [base+displacement].
func Indirect(base amd64.Register, displacement int32) *Cell {
	return &Cell{kind: KindIndirect, reg: base, displacement: displacement}
}

// Immediate builds a Cell holding a compile-time constant.
func Immediate(value uint64) *Cell {
	return &Cell{kind: KindImmediate, immediate: value}
}

// Kind reports which variant this cell currently holds.
func (c *Cell) Kind() Kind { return c.kind }

// Register returns the direct value register, or the indirect base
// register. Meaningless for KindImmediate.
func (c *Cell) Register() amd64.Register { return c.reg }

// Displacement returns the byte offset for a KindIndirect cell.
func (c *Cell) Displacement() int32 { return c.displacement }

// ImmediateValue returns the constant for a KindImmediate cell.
func (c *Cell) ImmediateValue() uint64 { return c.immediate }

// IsImmediateZero reports whether this is the immediate constant 0,
// useful for binary-node identity-element peepholes.
func (c *Cell) IsImmediateZero() bool {
	return c.kind == KindImmediate && c.immediate == 0
}

// rewriteToDirect is called only by regfile, once it has materialized the
// value into reg (or confirmed it's already there).
func (c *Cell) rewriteToDirect(reg amd64.Register) {
	c.kind = KindDirect
	c.reg = reg
	c.displacement = 0
}

// rewriteToIndirect is called only by regfile when spilling a register:
// every *Cell that named the spilled register becomes an indirect
// reference to its stack slot.
func (c *Cell) rewriteToIndirect(base amd64.Register, displacement int32) {
	c.kind = KindIndirect
	c.reg = base
	c.displacement = displacement
}

// MutateToDirect is the regfile-facing hook for rewriteToDirect. It is
// exported because regfile lives in a separate package, but it is not
// meant to be called from node/tree code — callers should go through
// regfile.File.ToDirect instead.
func MutateToDirect(c *Cell, reg amd64.Register) { c.rewriteToDirect(reg) }

// MutateToIndirect is the regfile-facing hook for rewriteToIndirect.
func MutateToIndirect(c *Cell, base amd64.Register, displacement int32) {
	c.rewriteToIndirect(base, displacement)
}
