// Package precond implements the execution-precondition statement
// (SPEC_FULL.md §4.5), grounded directly on
// original_source/src/NativeJIT/ExecutionPreconditionTest.h: a guarded
// early return that lets a compiled expression assert something about
// its inputs (a null pointer, an out-of-range index) without the caller
// writing that check by hand around every call.
package precond

import (
	"github.com/exprjit/exprjit/pkg/jiterr"
	"github.com/exprjit/exprjit/pkg/node"
	"github.com/exprjit/exprjit/pkg/regfile"
)

// Statement is one registered precondition: if condition's flags don't
// satisfy its condition code, the tree returns failure immediately
// instead of continuing to the function's ordinary body.
type Statement struct {
	condition node.FlagProducer
	failure   node.Evaluable
}

// New builds a Statement. condition must implement node.FlagProducer
// (built via node.NewCompare) and failure must be an immediate
// (SPEC_FULL.md §4.5: the failure value must never itself perturb
// register-file state before the guard is known to have failed).
func New(condition node.Evaluable, failure node.Evaluable) (*Statement, error) {
	fp, ok := condition.(node.FlagProducer)
	if !ok {
		return nil, jiterr.Newf(jiterr.KindTypeMismatch, "precondition node %d does not produce flags", condition.ID())
	}
	if !failure.IsImmediate() {
		return nil, jiterr.Newf(jiterr.KindTypeMismatch, "precondition failure node %d must be an immediate", failure.ID())
	}
	failure.AddParent()
	return &Statement{condition: fp, failure: failure}, nil
}

// Evaluate emits the guard: evaluate the condition, jump past the
// failure path when it holds, otherwise materialize the failure value
// into the ABI result register and jump straight to the epilogue.
//
// The failure value is code-generated only on the path where the guard
// has already failed — on the success path nothing about the failure
// node ever touches the register file, which is exactly what lets an
// Immediate failure value stay neutral until the moment it's needed.
func (s *Statement) Evaluate(m node.Machine) error {
	asm := m.Assembler()
	continueLabel := asm.AllocateLabel()

	cc, err := s.condition.CodeGenFlags(m)
	if err != nil {
		return err
	}
	asm.EmitConditionalJump(cc, continueLabel)

	s.failure.Label()
	cell, err := s.failure.Use(m)
	if err != nil {
		return err
	}
	if err := m.Registers().ToDirect(cell, false); err != nil {
		return err
	}
	result := regfile.ResultRegister()
	if cell.Register() != result {
		asm.EmitMovRegReg(result, cell.Register())
	}
	asm.EmitJump(m.EpilogueLabel())

	asm.PlaceLabel(continueLabel)
	return nil
}
