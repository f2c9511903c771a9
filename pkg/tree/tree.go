// Package tree is the expression tree and its two-phase lowering
// (SPEC_FULL.md §4.2): it owns the arena nodes are carved from, the
// register file, the instruction emitter, and the list of registered
// execution-precondition statements, and drives Label then Generate
// across the whole graph exactly once, in Finalize.
//
// tree implements node.Machine so node and precond code-gen can call
// back into the assembler and register file without either of those
// packages importing tree.
package tree

import (
	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/execmem"
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/jitlog"
	"github.com/exprjit/exprjit/pkg/node"
	"github.com/exprjit/exprjit/pkg/precond"
	"github.com/exprjit/exprjit/pkg/regfile"
	"github.com/exprjit/exprjit/pkg/types"
)

// Option configures a Tree at construction.
type Option func(*Tree)

// WithLogger attaches a logger. Finalize logs the code-gen phase timing
// (debug level) and a one-line compile summary (info level); individual
// labeling and code-gen decisions are not logged.
func WithLogger(l *jitlog.Logger) Option {
	return func(t *Tree) { t.log = l }
}

// Tree is one function's worth of expression graph under construction.
type Tree struct {
	asm  *amd64.Assembler
	regs *regfile.File
	ar   *arena.Arena
	log  *jitlog.Logger

	nextID  int
	nextArg int

	preconds []*precond.Statement

	epilogue  amd64.Label
	finalized bool
}

// New creates an empty Tree ready to accept Parameter/Immediate/...
// nodes.
func New(opts ...Option) *Tree {
	asm := amd64.New()
	t := &Tree{
		asm:  asm,
		regs: regfile.New(asm),
		ar:   arena.New(),
		log:  jitlog.Silent(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Assembler implements node.Machine.
func (t *Tree) Assembler() *amd64.Assembler { return t.asm }

// Registers implements node.Machine.
func (t *Tree) Registers() *regfile.File { return t.regs }

// EpilogueLabel implements node.Machine. Valid only once Finalize has
// allocated it, which happens before any node is ever driven through
// Use or Generate.
func (t *Tree) EpilogueLabel() amd64.Label { return t.epilogue }

// Log implements node.Machine.
func (t *Tree) Log() node.Logger { return t.log }

func (t *Tree) nextNodeID() int {
	id := t.nextID
	t.nextID++
	return id
}

// NewImmediate builds a compile-time constant node of type typ.
func (t *Tree) NewImmediate(typ types.Info, value uint64) (node.Evaluable, error) {
	return node.NewImmediate(t.ar, t.nextNodeID(), typ, value)
}

// NewParameter binds the next System V integer argument register, in
// call order, to a new Parameter node. Only the first
// len(amd64.ArgRegisters) parameters are representable — this core
// never spills incoming arguments to the stack.
func (t *Tree) NewParameter(typ types.Info) (node.Evaluable, error) {
	if t.nextArg >= len(amd64.ArgRegisters) {
		return nil, jiterr.Newf(jiterr.KindRegisterExhausted,
			"parameter %d requested but only %d argument registers are available", t.nextArg, len(amd64.ArgRegisters))
	}
	argIndex := t.nextArg
	cell := t.regs.ClaimFixed(amd64.ArgRegisters[argIndex])
	t.nextArg++
	return node.NewParameter(t.ar, t.nextNodeID(), typ, argIndex, cell)
}

// NewIndirect builds the value at [ptr + offset].
func (t *Tree) NewIndirect(typ types.Info, ptr node.Evaluable, offset int32) (node.Evaluable, error) {
	return node.NewIndirect(t.ar, t.nextNodeID(), typ, ptr, offset)
}

// NewFieldPointer builds a pointer offset by a compile-time field
// displacement from base, collapsing chained field-pointer accesses at
// construction time.
func (t *Tree) NewFieldPointer(typ types.Info, base node.Evaluable, offset int32) (node.Evaluable, error) {
	return node.NewFieldPointer(t.ar, t.nextNodeID(), typ, base, offset)
}

// NewBinary builds `left op right`.
func (t *Tree) NewBinary(typ types.Info, op node.Op, left, right node.Evaluable) (node.Evaluable, error) {
	return node.NewBinary(t.ar, t.nextNodeID(), typ, op, left, right)
}

// NewCompare builds the condition `left cc right`, for use as an
// execution-precondition's guard.
func (t *Tree) NewCompare(left, right node.Evaluable, cc amd64.ConditionCode) (node.Evaluable, error) {
	return node.NewCompare(t.ar, t.nextNodeID(), left, right, cc)
}

// NewReturn builds the terminal return-of<T> node.
func (t *Tree) NewReturn(typ types.Info, value node.Evaluable) (*node.Return, error) {
	return node.NewReturn(t.ar, t.nextNodeID(), typ, value)
}

// AddPrecondition registers a guard evaluated, in registration order,
// before the tree's own return value is computed: if condition's flags
// don't hold, the compiled function returns failure immediately.
func (t *Tree) AddPrecondition(condition, failure node.Evaluable) error {
	stmt, err := precond.New(condition, failure)
	if err != nil {
		return err
	}
	t.preconds = append(t.preconds, stmt)
	return nil
}

// Finalize emits the prologue, drives every registered precondition and
// then the return node through code generation, emits the epilogue, and
// hands the resulting machine code to execmem. It may be called at most
// once per Tree.
func (t *Tree) Finalize(ret *node.Return) (*Callable, error) {
	if t.finalized {
		return nil, jiterr.Sentinel(jiterr.KindDoubleFinalize)
	}
	t.finalized = true
	t.epilogue = t.asm.AllocateLabel()

	t.log.MarkStart("codegen")
	frameBase := t.regs.FrameBase()
	t.asm.EmitPush(frameBase)
	t.asm.EmitMovRegReg(frameBase, amd64.RSP)
	t.asm.EmitArithRegImm32(amd64.OpSub, amd64.RSP, regfile.FrameSize)

	for _, stmt := range t.preconds {
		if err := stmt.Evaluate(t); err != nil {
			return nil, err
		}
	}
	if err := ret.Generate(t); err != nil {
		return nil, err
	}

	t.asm.PlaceLabel(t.epilogue)
	t.asm.EmitMovRegReg(amd64.RSP, frameBase)
	t.asm.EmitPop(frameBase)
	t.asm.EmitRet()
	t.log.MarkEnd("codegen")

	code, err := t.asm.Finalize()
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindUnfinalized, err, "resolving jump targets")
	}

	buf, err := execmem.Allocate(len(code))
	if err != nil {
		return nil, jiterr.Wrap(jiterr.KindUnfinalized, err, "allocating executable memory")
	}
	if err := buf.Write(code); err != nil {
		return nil, jiterr.Wrap(jiterr.KindUnfinalized, err, "writing compiled code")
	}
	if err := buf.MakeExecutable(); err != nil {
		return nil, jiterr.Wrap(jiterr.KindUnfinalized, err, "marking compiled code executable")
	}
	t.log.Info("compiled %d bytes, %d parameters, %d preconditions", len(code), t.nextArg, len(t.preconds))

	return &Callable{buf: buf, argc: t.nextArg}, nil
}

// Callable is the machine-code entry point produced by Finalize. The
// jit package wraps it in a typed Func[...] that knows how many and
// which argument types to pass through the trampoline.
type Callable struct {
	buf  *execmem.Buffer
	argc int
}

// Addr returns the callable's entry point.
func (c *Callable) Addr() uintptr { return uintptr(c.buf.Addr()) }

// Argc returns the number of parameters the compiled function expects.
func (c *Callable) Argc() int { return c.argc }

// Release frees the underlying executable memory immediately, rather
// than waiting for the garbage collector. The Callable must not be
// invoked again afterward.
func (c *Callable) Release() error { return c.buf.Release() }
