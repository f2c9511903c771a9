package node

import (
	"fmt"

	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/regfile"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// Op selects the arithmetic performed by a binaryNode.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	default:
		return "?"
	}
}

// binaryNode is `left op right` (SPEC_FULL.md §4.3): children are
// code-generated in Sethi-Ullman "heavier first" order, the left operand
// is converted to Direct and becomes the result register in place, and
// the right operand is consumed in whatever form it arrives (only
// Immediate is special-cased into the immediate-operand opcode form, and
// only for add and sub — mul materializes it into a register first;
// Indirect is materialized to Direct first, a conservative simplification
// of the spec's allowance for a memory-operand second operand, since the
// amd64 emitter doesn't implement register-memory arithmetic forms).
type binaryNode struct {
	*Base
	left, right Evaluable
	op          Op
}

// NewBinary builds a Binary(L, R, op, left, right) node.
func NewBinary(a *arena.Arena, id int, typ types.Info, op Op, left, right Evaluable) (Evaluable, error) {
	n, err := arena.New[binaryNode](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	n.left, n.right, n.op = left, right, op
	left.AddParent()
	right.AddParent()
	base, err := newBase(a, id, typ, n)
	if err != nil {
		return nil, err
	}
	n.Base = base
	return n, nil
}

func (n *binaryNode) labelSelf() int {
	l := n.left.Label()
	r := n.right.Label()
	if l == r {
		return l + 1
	}
	if l > r {
		return l
	}
	return r
}

// emit evaluates whichever child has the higher Sethi-Ullman label
// first, pinning its register for the duration of evaluating the other
// child so a nested subtree's own register pressure can never reclaim a
// register this node still needs to read — independent of refcount,
// since the register may already have been logically released by its
// own last parent's Use before this node reads it. The pin is dropped
// once both operands are materialized.
//
// If this is the left operand's last remaining parent, its register is
// reused in place as this node's own result storage (the spec's
// in-place reuse); otherwise the left value is still visible to another
// parent elsewhere in the tree, so it is copied into a fresh register
// first rather than mutated.
func (n *binaryNode) emit(m Machine) (*storage.Cell, error) {
	leftFirst := n.left.Label() >= n.right.Label()
	lastUseOfLeft := n.left.ParentCount() == 1

	var leftCell, rightCell *storage.Cell
	var err error
	if leftFirst {
		leftCell, err = n.left.Use(m)
		if err != nil {
			return nil, err
		}
		if err = m.Registers().ToDirect(leftCell, false); err != nil {
			return nil, err
		}
		m.Registers().Pin(leftCell)
		rightCell, err = n.right.Use(m)
		m.Registers().Unpin(leftCell)
		if err != nil {
			return nil, err
		}
	} else {
		rightCell, err = n.right.Use(m)
		if err != nil {
			return nil, err
		}
		rightPinned := rightCell.Kind() != storage.KindImmediate
		if rightPinned {
			if err = m.Registers().ToDirect(rightCell, false); err != nil {
				return nil, err
			}
			m.Registers().Pin(rightCell)
		}
		leftCell, err = n.left.Use(m)
		if rightPinned {
			m.Registers().Unpin(rightCell)
		}
		if err != nil {
			return nil, err
		}
		if err = m.Registers().ToDirect(leftCell, false); err != nil {
			return nil, err
		}
	}

	if !lastUseOfLeft {
		fresh, err := m.Registers().Reserve(regfile.ClassInteger)
		if err != nil {
			return nil, err
		}
		m.Assembler().EmitMovRegReg(fresh.Register(), leftCell.Register())
		leftCell = fresh
	}

	immOperand := rightCell.Kind() == storage.KindImmediate
	if !immOperand {
		if err = m.Registers().ToDirect(rightCell, false); err != nil {
			return nil, err
		}
	}

	dst := leftCell.Register()
	switch n.op {
	case OpAdd:
		if immOperand {
			m.Assembler().EmitArithRegImm32(amd64.OpAdd, dst, int32(rightCell.ImmediateValue()))
		} else {
			m.Assembler().EmitArithRegReg(amd64.OpAdd, dst, rightCell.Register())
		}
	case OpSub:
		if immOperand {
			m.Assembler().EmitArithRegImm32(amd64.OpSub, dst, int32(rightCell.ImmediateValue()))
		} else {
			m.Assembler().EmitArithRegReg(amd64.OpSub, dst, rightCell.Register())
		}
	case OpMul:
		if immOperand {
			if err = m.Registers().ToDirect(rightCell, false); err != nil {
				return nil, err
			}
		}
		m.Assembler().EmitIMulRegReg(dst, rightCell.Register())
	}

	if lastUseOfLeft {
		m.Registers().Claim(leftCell)
	}
	return leftCell, nil
}

func (n *binaryNode) describe() string {
	return fmt.Sprintf("%s<%s>(#%d, #%d)#%d", n.op, n.typ.Name, n.left.ID(), n.right.ID(), n.id)
}
