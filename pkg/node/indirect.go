package node

import (
	"fmt"

	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// indirectNode is the value at [pointer + offset] (SPEC_FULL.md §4.3):
// it code-gens ptr to a register, then reports its own storage as
// Indirect against that register — the load itself is deferred to
// whichever consumer later demands Direct.
type indirectNode struct {
	*Base
	ptr    Evaluable
	offset int32
}

// NewIndirect builds an Indirect(T, pointer-node, offset) node.
func NewIndirect(a *arena.Arena, id int, typ types.Info, ptr Evaluable, offset int32) (Evaluable, error) {
	n, err := arena.New[indirectNode](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	n.ptr = ptr
	n.offset = offset
	ptr.AddParent()
	base, err := newBase(a, id, typ, n)
	if err != nil {
		return nil, err
	}
	n.Base = base
	return n, nil
}

func (n *indirectNode) labelSelf() int { return n.ptr.Label() }

func (n *indirectNode) emit(m Machine) (*storage.Cell, error) {
	ptrCell, err := n.ptr.Use(m)
	if err != nil {
		return nil, err
	}
	// ptr's own value (the pointer) must be in a register before it can
	// serve as a base; if ptr itself was stored indirectly (a pointer
	// loaded from memory), this is the load of that pointer value, not
	// of what it points to.
	if err := m.Registers().ToDirect(ptrCell, false); err != nil {
		return nil, err
	}
	return storage.Indirect(ptrCell.Register(), n.offset), nil
}

// CodeGenAsBase lets Indirect<T*> (dereferencing to get another pointer)
// serve as a FieldPointer/Indirect base in turn.
func (n *indirectNode) CodeGenAsBase(m Machine) (*storage.Cell, error) {
	return n.Use(m)
}

func (n *indirectNode) describe() string {
	return fmt.Sprintf("deref<%s>(#%d, %+d)#%d", n.typ.Name, n.ptr.ID(), n.offset, n.id)
}
