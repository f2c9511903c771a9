package node

import (
	"testing"

	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/arena"
	"github.com/exprjit/exprjit/pkg/regfile"
	"github.com/exprjit/exprjit/pkg/storage"
	"github.com/exprjit/exprjit/pkg/types"
)

// silentLogger satisfies Logger without pulling in jitlog, matching the
// same "declare the seam locally" reasoning node.Logger itself documents.
type silentLogger struct{}

func (silentLogger) Trace(format string, args ...any) {}

// testMachine is a minimal node.Machine, standing in for tree.Tree so
// this package's tests don't need to import tree (which would be a cycle
// anyway).
type testMachine struct {
	asm  *amd64.Assembler
	regs *regfile.File
	epi  amd64.Label
}

func newTestMachine() *testMachine {
	asm := amd64.New()
	return &testMachine{asm: asm, regs: regfile.New(asm), epi: asm.AllocateLabel()}
}

func (m *testMachine) Assembler() *amd64.Assembler { return m.asm }
func (m *testMachine) Registers() *regfile.File    { return m.regs }
func (m *testMachine) EpilogueLabel() amd64.Label  { return m.epi }
func (m *testMachine) Log() Logger                 { return silentLogger{} }

func TestLabelingEqualChildren(t *testing.T) {
	a := arena.New()
	l, err := NewImmediate(a, 0, types.Of[int64](), 1)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	r, err := NewImmediate(a, 1, types.Of[int64](), 2)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	bin, err := NewBinary(a, 2, types.Of[int64](), OpAdd, l, r)
	if err != nil {
		t.Fatalf("NewBinary: %v", err)
	}
	// Both children are leaves (label 1); equal labels bump by one.
	if got := bin.Label(); got != 2 {
		t.Errorf("Label() = %d, want 2", got)
	}
}

func TestUseMaterializesOnce(t *testing.T) {
	a := arena.New()
	imm, err := NewImmediate(a, 0, types.Of[int64](), 99)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	imm.AddParent()
	imm.AddParent()
	imm.Label()

	m := newTestMachine()
	c1, err := imm.Use(m)
	if err != nil {
		t.Fatalf("first Use: %v", err)
	}
	if imm.State() != StateEvaluated {
		t.Errorf("state after first of two Use calls = %v, want evaluated", imm.State())
	}
	c2, err := imm.Use(m)
	if err != nil {
		t.Fatalf("second Use: %v", err)
	}
	if c1 != c2 {
		t.Error("repeated Use on the same node should return the same cached cell")
	}
	if imm.State() != StateReleased {
		t.Errorf("state after the last parent's Use = %v, want released", imm.State())
	}
}

func TestUseBeyondParentCountFails(t *testing.T) {
	a := arena.New()
	imm, err := NewImmediate(a, 0, types.Of[int64](), 1)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	imm.AddParent()
	imm.Label()
	m := newTestMachine()
	if _, err := imm.Use(m); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if _, err := imm.Use(m); err == nil {
		t.Fatal("consuming a node more times than it has parents should fail")
	}
}

func TestFieldPointerCollapsesChain(t *testing.T) {
	a := arena.New()
	base, err := NewParameter(a, 0, types.Of[*int64](), 0, storage.Direct(amd64.RDI))
	if err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	inner, err := NewFieldPointer(a, 1, types.Of[*int64](), base, 8)
	if err != nil {
		t.Fatalf("NewFieldPointer (inner): %v", err)
	}
	outer, err := NewFieldPointer(a, 2, types.Of[*int64](), inner, 16)
	if err != nil {
		t.Fatalf("NewFieldPointer (outer): %v", err)
	}

	if !inner.IsReferenced() {
		t.Error("the interior FieldPointer should be marked referenced once collapsed into outer")
	}
	if inner.State() != StateReleased {
		t.Errorf("referenced node state = %v, want released", inner.State())
	}

	collapsible, ok := outer.(Collapsible)
	if !ok {
		t.Fatal("fieldPointerNode should implement Collapsible")
	}
	collapsedBase, collapsedOffset := collapsible.CollapsedBaseAndOffset()
	if collapsedBase.ID() != base.ID() {
		t.Errorf("collapsed base = node #%d, want #%d (the original parameter)", collapsedBase.ID(), base.ID())
	}
	if collapsedOffset != 24 {
		t.Errorf("collapsed offset = %d, want 24 (8+16)", collapsedOffset)
	}
}

func TestReferencedNodeRejectsUse(t *testing.T) {
	a := arena.New()
	base, err := NewParameter(a, 0, types.Of[*int64](), 0, storage.Direct(amd64.RDI))
	if err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	inner, err := NewFieldPointer(a, 1, types.Of[*int64](), base, 8)
	if err != nil {
		t.Fatalf("NewFieldPointer: %v", err)
	}
	if _, err := NewFieldPointer(a, 2, types.Of[*int64](), inner, 16); err != nil {
		t.Fatalf("NewFieldPointer (outer): %v", err)
	}
	m := newTestMachine()
	if _, err := inner.Use(m); err == nil {
		t.Fatal("a referenced (collapsed-away) node must never be directly code-generated")
	}
}
