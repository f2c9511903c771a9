package tree

import (
	"testing"

	"github.com/exprjit/exprjit/pkg/types"
)

func TestFinalizeProducesExecutableCallable(t *testing.T) {
	tr := New()
	imm, err := tr.NewImmediate(types.Of[int64](), 7)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	ret, err := tr.NewReturn(types.Of[int64](), imm)
	if err != nil {
		t.Fatalf("NewReturn: %v", err)
	}
	c, err := tr.Finalize(ret)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	defer c.Release()

	if c.Addr() == 0 {
		t.Error("Addr() should be non-zero after Finalize")
	}
	if c.Argc() != 0 {
		t.Errorf("Argc() = %d, want 0", c.Argc())
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	tr := New()
	imm, err := tr.NewImmediate(types.Of[int64](), 1)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	ret, err := tr.NewReturn(types.Of[int64](), imm)
	if err != nil {
		t.Fatalf("NewReturn: %v", err)
	}
	if _, err := tr.Finalize(ret); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if _, err := tr.Finalize(ret); err == nil {
		t.Fatal("a second Finalize on the same tree should fail")
	}
}

func TestNewParameterTracksArgCount(t *testing.T) {
	tr := New()
	if _, err := tr.NewParameter(types.Of[int64]()); err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	if _, err := tr.NewParameter(types.Of[int64]()); err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	p2, err := tr.NewParameter(types.Of[int64]())
	if err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	ret, err := tr.NewReturn(types.Of[int64](), p2)
	if err != nil {
		t.Fatalf("NewReturn: %v", err)
	}
	c, err := tr.Finalize(ret)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	defer c.Release()
	if c.Argc() != 3 {
		t.Errorf("Argc() = %d, want 3", c.Argc())
	}
}

func TestNewParameterExhaustsArgRegisters(t *testing.T) {
	tr := New()
	var lastErr error
	for i := 0; i < 10; i++ {
		if _, err := tr.NewParameter(types.Of[int64]()); err != nil {
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		t.Fatal("expected an error once System V integer argument registers are exhausted")
	}
}
