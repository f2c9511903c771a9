package node

import (
	"fmt"

	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// immediateNode is a compile-time constant (SPEC_FULL.md §4.3): it never
// spills and never allocates ahead of a consumer demanding Direct, and
// crucially never alters the register file merely by being evaluated —
// the property precond relies on to sequence a failure value after a
// conditional jump.
type immediateNode struct {
	*Base
	value uint64
}

// NewImmediate builds an Immediate(T, value) node, carved from a.
func NewImmediate(a *arena.Arena, id int, typ types.Info, value uint64) (Evaluable, error) {
	n, err := arena.New[immediateNode](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	n.value = value
	base, err := newBase(a, id, typ, n)
	if err != nil {
		return nil, err
	}
	n.Base = base
	return n, nil
}

func (n *immediateNode) IsImmediate() bool { return true }

func (n *immediateNode) labelSelf() int { return 1 }

func (n *immediateNode) emit(m Machine) (*storage.Cell, error) {
	return storage.Immediate(n.value), nil
}

func (n *immediateNode) describe() string {
	return fmt.Sprintf("immediate<%s>(%d)#%d", n.typ.Name, n.value, n.id)
}
