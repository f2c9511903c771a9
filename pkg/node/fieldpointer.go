package node

import (
	"fmt"

	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// fieldPointerNode is a typed pointer derived from a base pointer by
// adding a compile-time field offset (SPEC_FULL.md §4.3), grounded
// directly on original_source's FieldPointerNode: at construction it
// checks whether its own base is itself collapsible and, if so, folds
// the chain into one base register plus one summed offset, marking the
// interior base node referenced so it is never code-generated.
type fieldPointerNode struct {
	*Base
	base   Evaluable // the node this was built from, for diagnostics
	offset int32     // the offset relative to base, for diagnostics

	collapsedBase   Evaluable
	collapsedOffset int32
}

// NewFieldPointer builds a FieldPointer(OBJECT, FIELD, base-node, offset)
// node.
func NewFieldPointer(a *arena.Arena, id int, typ types.Info, base Evaluable, offset int32) (Evaluable, error) {
	n, err := arena.New[fieldPointerNode](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	n.base = base
	n.offset = offset
	if c, ok := base.(Collapsible); ok {
		grandBase, grandOffset := c.CollapsedBaseAndOffset()
		base.MarkReferenced()
		n.collapsedBase = grandBase
		n.collapsedOffset = grandOffset + offset
	} else {
		n.collapsedBase = base
		n.collapsedOffset = offset
	}
	n.collapsedBase.AddParent()
	baseHdr, err := newBase(a, id, typ, n)
	if err != nil {
		return nil, err
	}
	n.Base = baseHdr
	return n, nil
}

// CollapsedBaseAndOffset implements Collapsible so an outer FieldPointer
// chained onto this one folds all the way down to the real base.
func (n *fieldPointerNode) CollapsedBaseAndOffset() (Evaluable, int32) {
	return n.collapsedBase, n.collapsedOffset
}

func (n *fieldPointerNode) labelSelf() int { return n.collapsedBase.Label() }

func (n *fieldPointerNode) emit(m Machine) (*storage.Cell, error) {
	addr, ok := n.collapsedBase.(Addressable)
	if !ok {
		return nil, jiterr.Newf(jiterr.KindTypeMismatch, "field-pointer base node %d does not produce an address", n.collapsedBase.ID())
	}
	baseCell, err := addr.CodeGenAsBase(m)
	if err != nil {
		return nil, err
	}
	if err := m.Registers().ToDirect(baseCell, true); err != nil {
		return nil, err
	}
	if n.collapsedOffset != 0 {
		m.Assembler().EmitArithRegImm32(amd64.OpAdd, baseCell.Register(), n.collapsedOffset)
	}
	return baseCell, nil
}

// CodeGenAsBase lets a FieldPointer serve as the base of an outer
// Indirect or (uncollapsed) FieldPointer: its value already is an
// address.
func (n *fieldPointerNode) CodeGenAsBase(m Machine) (*storage.Cell, error) {
	return n.Use(m)
}

func (n *fieldPointerNode) describe() string {
	return fmt.Sprintf("field-pointer<%s>(#%d, %+d)#%d", n.typ.Name, n.collapsedBase.ID(), n.collapsedOffset, n.id)
}
