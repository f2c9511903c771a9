// Package node implements the expression-tree vertices (SPEC_FULL.md §3):
// a shared node header (Base) carrying identity, parent-count
// bookkeeping, the referenced flag, the cached Sethi-Ullman label, and
// the four-state lifecycle, plus six concrete node kinds implementing a
// capability-based Evaluable interface over it, per §9's "capability-
// based abstraction" alternative to the source's virtual dispatch.
//
// Concrete node kinds are unexported and untyped internally (they carry
// a runtime types.Info rather than a Go type parameter); Node[T] is the
// generic, type-safe handle the driver API (pkg/jit) hands callers, so
// the compile-time type checking the spec's typed factory signatures
// promise happens in Go's own type system at the jit package boundary,
// while the tree-walking core stays ordinary (non-generic) Go.
package node

import (
	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/regfile"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// State is a node's position in the four-state lifecycle of SPEC_FULL.md
// §4.4.
type State uint8

const (
	StateConstructed State = iota
	StateLabeled
	StateEvaluated
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateLabeled:
		return "labeled"
	case StateEvaluated:
		return "evaluated"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Logger is the minimal surface node code-gen borrows from jitlog.Logger,
// declared locally so this package doesn't need to import jitlog.
type Logger interface {
	Trace(format string, args ...any)
}

// Machine is the subset of tree.Tree nodes drive during code-gen: the
// instruction emitter, the register file, and the epilogue label.
// Declared here (rather than node importing tree) to keep the dependency
// graph acyclic — tree owns and constructs nodes; nodes call back into it
// through this narrow seam instead.
type Machine interface {
	Assembler() *amd64.Assembler
	Registers() *regfile.File
	EpilogueLabel() amd64.Label
	Log() Logger
}

// Evaluable is the capability set the tree and sibling nodes drive a node
// through.
type Evaluable interface {
	ID() int
	Type() types.Info
	AddParent()
	ParentCount() int
	Label() int
	Use(m Machine) (*storage.Cell, error)
	MarkReferenced()
	IsReferenced() bool
	IsImmediate() bool
	State() State
	String() string
}

// Addressable is implemented by pointer-producing nodes (Parameter<T*>,
// Indirect<T*>, FieldPointer): CodeGenAsBase yields storage representing
// an address, which for a pointer-typed node is simply its value.
type Addressable interface {
	CodeGenAsBase(m Machine) (*storage.Cell, error)
}

// FlagProducer is implemented by comparison-producing nodes, consumed by
// the precond package's execution-precondition statement.
type FlagProducer interface {
	CodeGenFlags(m Machine) (amd64.ConditionCode, error)
}

// Collapsible is implemented by FieldPointer nodes so a chained
// FieldPointer can discover whether its own base is itself one, folding
// the whole chain into a single base register plus summed offset
// (SPEC_FULL.md §4.3, grounded on original_source's
// FieldPointerNode::GetBaseAndOffset).
type Collapsible interface {
	CollapsedBaseAndOffset() (base Evaluable, offset int32)
}

// variant is implemented by each concrete node kind; Base wraps it with
// the labeling/code-gen memoization and parent-count bookkeeping every
// node kind needs identically.
type variant interface {
	labelSelf() int
	emit(m Machine) (*storage.Cell, error)
	describe() string
}

// Base is the shared node header of SPEC_FULL.md §3. Concrete node kinds
// embed *Base and supply the variant interface; Base does the rest.
type Base struct {
	id          int
	typ         types.Info
	parentCount int
	referenced  bool
	label       int
	storage     *storage.Cell
	materialize bool
	state       State
	impl        variant
}

// newBase carves a Base out of a's slabs (SPEC_FULL.md §4.10: nodes are
// arena-owned for the tree's lifetime, never individually freed) rather
// than a plain heap allocation.
func newBase(a *arena.Arena, id int, typ types.Info, impl variant) (*Base, error) {
	b, err := arena.New[Base](a)
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindArenaOverflow, err, "allocating node %d", id)
	}
	*b = Base{id: id, typ: typ, impl: impl}
	return b, nil
}

func (b *Base) ID() int            { return b.id }
func (b *Base) Type() types.Info   { return b.typ }
func (b *Base) State() State       { return b.state }
func (b *Base) IsReferenced() bool { return b.referenced }
func (b *Base) IsImmediate() bool  { return false }
func (b *Base) String() string     { return b.impl.describe() }

// AddParent registers one more consumer of this node's result. Called by
// whichever constructor builds a node that will call Use (or
// CodeGenAsBase) on this one.
func (b *Base) AddParent() { b.parentCount++ }

// ParentCount reports the number of not-yet-consumed parents.
func (b *Base) ParentCount() int { return b.parentCount }

// MarkReferenced sets the referenced flag (SPEC_FULL.md §3 invariant 3)
// and short-circuits the node directly to Released: a referenced node's
// value is never materialized, so there is nothing left for it to
// transition through.
func (b *Base) MarkReferenced() {
	b.referenced = true
	b.state = StateReleased
}

// Label computes (once) and caches this node's Sethi-Ullman register
// count.
func (b *Base) Label() int {
	if b.state == StateConstructed {
		b.label = b.impl.labelSelf()
		b.state = StateLabeled
	}
	return b.label
}

// Use is how a parent consumes this node's value: it materializes
// storage on first call (or returns the cached cell on later calls),
// decrements the parent count, and once every expected parent has
// consumed it, releases the backing register.
//
// The register-file refcount is primed to match the node's total parent
// count at first materialization (one implicit hold from the reservation
// itself, plus one Retain per additional parent), so that the register
// returns to the free pool exactly when the last parent calls Use — not
// before, even though intermediate parents each trigger one Release.
func (b *Base) Use(m Machine) (*storage.Cell, error) {
	if b.referenced {
		return nil, jiterr.Newf(jiterr.KindUnfinalized, "node %d is referenced-only and must never be code-generated directly", b.id)
	}
	if b.state == StateConstructed {
		return nil, jiterr.Newf(jiterr.KindUnfinalized, "node %d used before labeling", b.id)
	}
	if b.parentCount <= 0 {
		return nil, jiterr.Newf(jiterr.KindDoubleFinalize, "node %d consumed more times than it has parents", b.id)
	}
	if !b.materialize {
		if b.storage == nil {
			cell, err := b.impl.emit(m)
			if err != nil {
				return nil, err
			}
			b.storage = cell
		}
		b.state = StateEvaluated
		for i := 1; i < b.parentCount; i++ {
			m.Registers().Retain(b.storage)
		}
		b.materialize = true
	}
	cell := b.storage
	b.parentCount--
	m.Registers().Release(cell)
	if b.parentCount == 0 {
		b.state = StateReleased
	}
	return cell, nil
}

// Node is the type-safe handle the driver API hands callers: a thin
// generic wrapper carrying no behavior of its own. T is used only by the
// jit package's factory-function signatures to reject mismatched
// compositions at compile time; Node itself just forwards to Evaluable.
type Node[T any] struct {
	eval Evaluable
}

// Wrap builds a typed Node[T] handle around an internal Evaluable.
func Wrap[T any](e Evaluable) Node[T] { return Node[T]{eval: e} }

// Unwrap returns the untyped Evaluable backing this handle, for passing
// to other nodes' constructors.
func (n Node[T]) Unwrap() Evaluable { return n.eval }
