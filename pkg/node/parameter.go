package node

import (
	"fmt"

	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// parameterNode is a function parameter bound to an ABI input register at
// prologue time (SPEC_FULL.md §4.3). Unlike every other node kind, its
// storage is bound eagerly at construction (by tree.NewParameter, which
// owns the register file and decides ABI slot assignment), not lazily on
// first Use — but it still goes through Base's ordinary materialization
// bookkeeping on first Use so its refcount is primed correctly against
// however many parents end up referencing it.
type parameterNode struct {
	*Base
	argIndex int
}

// NewParameter builds a Parameter(T, slot) node whose storage is already
// bound to cell (the ABI register tree.NewParameter claimed for it).
func NewParameter(a *arena.Arena, id int, typ types.Info, argIndex int, cell *storage.Cell) (Evaluable, error) {
	n, err := arena.New[parameterNode](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	n.argIndex = argIndex
	base, err := newBase(a, id, typ, n)
	if err != nil {
		return nil, err
	}
	n.Base = base
	n.Base.storage = cell
	return n, nil
}

func (n *parameterNode) labelSelf() int { return 1 }

// emit is never actually invoked in the ordinary flow since storage is
// pre-bound at construction, but satisfies variant for completeness and
// defends against a future caller bypassing NewParameter's binding.
func (n *parameterNode) emit(m Machine) (*storage.Cell, error) {
	return n.storage, nil
}

// CodeGenAsBase lets a pointer-typed parameter serve as a FieldPointer or
// Indirect base: for a pointer value, "address" and "value" coincide, so
// this is simply Use.
func (n *parameterNode) CodeGenAsBase(m Machine) (*storage.Cell, error) {
	return n.Use(m)
}

func (n *parameterNode) describe() string {
	return fmt.Sprintf("parameter<%s>(slot %d)#%d", n.typ.Name, n.argIndex, n.id)
}
