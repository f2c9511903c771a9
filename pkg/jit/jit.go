// Package jit is the type-safe driver API (SPEC_FULL.md §4.6): the
// generic factory functions a caller composes into an expression tree,
// and the typed Func/Func1/Func2 callables Finalize hands back. Every
// factory here is a thin, compile-time-checked wrapper around the
// untyped tree/node core — the type parameters exist only so a caller
// composing e.g. Add[int64] with mismatched operand types gets a
// compile error instead of a jiterr.KindTypeMismatch at Finalize time.
package jit

import (
	"unsafe"

	"github.com/exprjit/exprjit/internal/trampoline"
	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/node"
	"github.com/exprjit/exprjit/pkg/tree"
	"github.com/exprjit/exprjit/pkg/types"
)

// Builder accumulates one function's expression tree.
type Builder struct {
	t *tree.Tree
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...tree.Option) *Builder {
	return &Builder{t: tree.New(opts...)}
}

// toBits reinterprets an 8-byte value (a 64-bit integer or any pointer
// type — the types types.Of resolves to a valid Kind) as its raw bit pattern, the
// same representation the register file moves in and out of registers.
func toBits[T any](v T) uint64 {
	return *(*uint64)(unsafe.Pointer(&v))
}

// fromBits is toBits' inverse, used to decode a compiled function's
// RAX result back into its Go type.
func fromBits[T any](bits uint64) T {
	return *(*T)(unsafe.Pointer(&bits))
}

// Immediate builds a compile-time constant of type T.
func Immediate[T any](b *Builder, value T) (node.Node[T], error) {
	ev, err := b.t.NewImmediate(types.Of[T](), toBits(value))
	if err != nil {
		return node.Node[T]{}, err
	}
	return node.Wrap[T](ev), nil
}

// Parameter binds the next System V argument register to a node of
// type T, in the order Parameter is called.
func Parameter[T any](b *Builder) (node.Node[T], error) {
	ev, err := b.t.NewParameter(types.Of[T]())
	if err != nil {
		return node.Node[T]{}, err
	}
	return node.Wrap[T](ev), nil
}

// Deref dereferences a *T-typed node, yielding its pointee.
func Deref[T any](b *Builder, ptr node.Node[*T]) (node.Node[T], error) {
	ev, err := b.t.NewIndirect(types.Of[T](), ptr.Unwrap(), 0)
	if err != nil {
		return node.Node[T]{}, err
	}
	return node.Wrap[T](ev), nil
}

// FieldPointer builds a *F pointing offset bytes into the *O base
// pointed to by base, collapsing any chain of FieldPointer accesses
// into one base register plus summed offset.
func FieldPointer[O, F any](b *Builder, base node.Node[*O], offset uintptr) (node.Node[*F], error) {
	ev, err := b.t.NewFieldPointer(types.Of[*F](), base.Unwrap(), int32(offset))
	if err != nil {
		return node.Node[*F]{}, err
	}
	return node.Wrap[*F](ev), nil
}

func binary[T any](b *Builder, op node.Op, left, right node.Node[T]) (node.Node[T], error) {
	ev, err := b.t.NewBinary(types.Of[T](), op, left.Unwrap(), right.Unwrap())
	if err != nil {
		return node.Node[T]{}, err
	}
	return node.Wrap[T](ev), nil
}

// Add builds left + right.
func Add[T any](b *Builder, left, right node.Node[T]) (node.Node[T], error) {
	return binary(b, node.OpAdd, left, right)
}

// Sub builds left - right.
func Sub[T any](b *Builder, left, right node.Node[T]) (node.Node[T], error) {
	return binary(b, node.OpSub, left, right)
}

// Mul builds left * right.
func Mul[T any](b *Builder, left, right node.Node[T]) (node.Node[T], error) {
	return binary(b, node.OpMul, left, right)
}

// AddIndex builds ptr + index*sizeof(T) — the pointer-plus-index
// desugaring of SPEC_FULL.md §4.3: a fresh Immediate holding the
// element stride, a Mul against index, and a pointer-typed Add against
// ptr. There is no generic Add[*T, int64] composition; this exists
// specifically for that case.
func AddIndex[T any](b *Builder, ptr node.Node[*T], index node.Node[int64]) (node.Node[*T], error) {
	var zero T
	stride := uint64(unsafe.Sizeof(zero))
	strideImm, err := b.t.NewImmediate(types.Of[int64](), stride)
	if err != nil {
		return node.Node[*T]{}, err
	}
	scaled, err := b.t.NewBinary(types.Of[int64](), node.OpMul, index.Unwrap(), strideImm)
	if err != nil {
		return node.Node[*T]{}, err
	}
	sum, err := b.t.NewBinary(types.Of[*T](), node.OpAdd, ptr.Unwrap(), scaled)
	if err != nil {
		return node.Node[*T]{}, err
	}
	return node.Wrap[*T](sum), nil
}

// Condition is a flag-producing comparison, usable only as the guard of
// an execution-precondition statement.
type Condition struct {
	ev node.Evaluable
}

func newCondition[T any](b *Builder, left, right node.Node[T], cc amd64.ConditionCode) (Condition, error) {
	ev, err := b.t.NewCompare(left.Unwrap(), right.Unwrap(), cc)
	if err != nil {
		return Condition{}, err
	}
	return Condition{ev: ev}, nil
}

// orderedCodes picks the signed or unsigned condition-code family for
// T, per SPEC_FULL.md §3 (i64 compares signed, u64/pointer unsigned).
func orderedCodes[T any]() (lt, le, gt, ge amd64.ConditionCode) {
	if types.Of[T]().IsSigned() {
		return amd64.CondLess, amd64.CondLessEqual, amd64.CondGreater, amd64.CondGreaterEqual
	}
	return amd64.CondBelow, amd64.CondBelowEqual, amd64.CondAbove, amd64.CondAboveEqual
}

// Equal builds the condition left == right.
func Equal[T any](b *Builder, left, right node.Node[T]) (Condition, error) {
	return newCondition(b, left, right, amd64.CondEqual)
}

// NotEqual builds the condition left != right.
func NotEqual[T any](b *Builder, left, right node.Node[T]) (Condition, error) {
	return newCondition(b, left, right, amd64.CondNotEqual)
}

// Less builds the condition left < right.
func Less[T any](b *Builder, left, right node.Node[T]) (Condition, error) {
	lt, _, _, _ := orderedCodes[T]()
	return newCondition(b, left, right, lt)
}

// LessEqual builds the condition left <= right.
func LessEqual[T any](b *Builder, left, right node.Node[T]) (Condition, error) {
	_, le, _, _ := orderedCodes[T]()
	return newCondition(b, left, right, le)
}

// Greater builds the condition left > right.
func Greater[T any](b *Builder, left, right node.Node[T]) (Condition, error) {
	_, _, gt, _ := orderedCodes[T]()
	return newCondition(b, left, right, gt)
}

// GreaterEqual builds the condition left >= right.
func GreaterEqual[T any](b *Builder, left, right node.Node[T]) (Condition, error) {
	_, _, _, ge := orderedCodes[T]()
	return newCondition(b, left, right, ge)
}

// AddPrecondition registers cond as a guard: when it doesn't hold, the
// compiled function returns failure immediately instead of evaluating
// the rest of the tree. failure must have been built by Immediate.
func AddPrecondition[T any](b *Builder, cond Condition, failure node.Node[T]) error {
	return b.t.AddPrecondition(cond.ev, failure.Unwrap())
}

// ReturnOf builds the terminal return-of<T> node over value.
func ReturnOf[T any](b *Builder, value node.Node[T]) (*node.Return, error) {
	return b.t.NewReturn(types.Of[T](), value.Unwrap())
}

// Func is a finalized, callable, zero-argument compiled function.
type Func[R any] struct{ c *tree.Callable }

// Call invokes the compiled function.
func (f Func[R]) Call() R {
	return fromBits[R](uint64(trampoline.Call(f.c.Addr())))
}

// Release frees the function's executable memory immediately.
func (f Func[R]) Release() error { return f.c.Release() }

// Func1 is a finalized, callable, one-argument compiled function.
type Func1[P1, R any] struct{ c *tree.Callable }

// Call invokes the compiled function with a0.
func (f Func1[P1, R]) Call(a0 P1) R {
	return fromBits[R](uint64(trampoline.Call(f.c.Addr(), int64(toBits(a0)))))
}

// Release frees the function's executable memory immediately.
func (f Func1[P1, R]) Release() error { return f.c.Release() }

// Func2 is a finalized, callable, two-argument compiled function.
type Func2[P1, P2, R any] struct{ c *tree.Callable }

// Call invokes the compiled function with a0, a1.
func (f Func2[P1, P2, R]) Call(a0 P1, a1 P2) R {
	return fromBits[R](uint64(trampoline.Call(f.c.Addr(), int64(toBits(a0)), int64(toBits(a1)))))
}

// Release frees the function's executable memory immediately.
func (f Func2[P1, P2, R]) Release() error { return f.c.Release() }

// FinalizeFunc lowers and assembles b's tree into a zero-argument
// callable returning R.
func FinalizeFunc[R any](b *Builder, ret *node.Return) (Func[R], error) {
	c, err := b.t.Finalize(ret)
	if err != nil {
		return Func[R]{}, err
	}
	return Func[R]{c: c}, nil
}

// FinalizeFunc1 lowers and assembles b's tree into a one-argument
// callable.
func FinalizeFunc1[P1, R any](b *Builder, ret *node.Return) (Func1[P1, R], error) {
	c, err := b.t.Finalize(ret)
	if err != nil {
		return Func1[P1, R]{}, err
	}
	return Func1[P1, R]{c: c}, nil
}

// FinalizeFunc2 lowers and assembles b's tree into a two-argument
// callable.
func FinalizeFunc2[P1, P2, R any](b *Builder, ret *node.Return) (Func2[P1, P2, R], error) {
	c, err := b.t.Finalize(ret)
	if err != nil {
		return Func2[P1, P2, R]{}, err
	}
	return Func2[P1, P2, R]{c: c}, nil
}
