package node

import (
	"fmt"

	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/regfile"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// Return is the terminal node produced by return-of<T> (SPEC_FULL.md
// §4.3 and §4.6): it consumes a value node and marks the ABI result
// register. Unlike every other node kind it has no parent of its own —
// Generate, not Use, is how the tree drives it, exactly once, from
// Finalize.
type Return struct {
	*Base
	value Evaluable
}

// NewReturn builds a return-of<T> node over value.
func NewReturn(a *arena.Arena, id int, typ types.Info, value Evaluable) (*Return, error) {
	n, err := arena.New[Return](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	n.value = value
	value.AddParent()
	base, err := newBase(a, id, typ, n)
	if err != nil {
		return nil, err
	}
	n.Base = base
	return n, nil
}

func (n *Return) labelSelf() int { return n.value.Label() }

// emit is never invoked through the ordinary Use path — Return is driven
// exclusively through Generate — but is required to satisfy variant.
func (n *Return) emit(m Machine) (*storage.Cell, error) {
	return nil, jiterr.Newf(jiterr.KindUnfinalized, "return node %d must be driven through Generate, not Use", n.id)
}

func (n *Return) describe() string {
	return fmt.Sprintf("return<%s>(#%d)#%d", n.typ.Name, n.value.ID(), n.id)
}

// Generate labels the value subtree, code-generates it, moves the result
// into the ABI result register unless it is already there, and emits the
// jump to the shared epilogue.
func (n *Return) Generate(m Machine) error {
	n.Label()
	cell, err := n.value.Use(m)
	if err != nil {
		return err
	}
	if err := m.Registers().ToDirect(cell, false); err != nil {
		return err
	}
	result := regfile.ResultRegister()
	if cell.Register() != result {
		m.Assembler().EmitMovRegReg(result, cell.Register())
	}
	m.Assembler().EmitJump(m.EpilogueLabel())
	return nil
}
