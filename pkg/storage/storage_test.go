package storage

import (
	"testing"

	"github.com/exprjit/exprjit/pkg/amd64"
)

func TestDirect(t *testing.T) {
	c := Direct(amd64.RAX)
	if c.Kind() != KindDirect {
		t.Fatalf("Kind() = %v, want KindDirect", c.Kind())
	}
	if c.Register() != amd64.RAX {
		t.Errorf("Register() = %v, want RAX", c.Register())
	}
}

func TestIndirect(t *testing.T) {
	c := Indirect(amd64.RBP, -16)
	if c.Kind() != KindIndirect {
		t.Fatalf("Kind() = %v, want KindIndirect", c.Kind())
	}
	if c.Register() != amd64.RBP || c.Displacement() != -16 {
		t.Errorf("got base=%v disp=%d, want RBP/-16", c.Register(), c.Displacement())
	}
}

func TestImmediate(t *testing.T) {
	c := Immediate(42)
	if c.Kind() != KindImmediate {
		t.Fatalf("Kind() = %v, want KindImmediate", c.Kind())
	}
	if c.ImmediateValue() != 42 {
		t.Errorf("ImmediateValue() = %d, want 42", c.ImmediateValue())
	}
	if Immediate(0).IsImmediateZero() != true {
		t.Error("Immediate(0).IsImmediateZero() should be true")
	}
	if c.IsImmediateZero() {
		t.Error("Immediate(42).IsImmediateZero() should be false")
	}
}

func TestMutateToDirect(t *testing.T) {
	c := Immediate(7)
	MutateToDirect(c, amd64.RCX)
	if c.Kind() != KindDirect {
		t.Fatalf("Kind() = %v, want KindDirect after mutation", c.Kind())
	}
	if c.Register() != amd64.RCX {
		t.Errorf("Register() = %v, want RCX", c.Register())
	}
}

func TestMutateToIndirect(t *testing.T) {
	c := Direct(amd64.RDX)
	MutateToIndirect(c, amd64.RBP, -8)
	if c.Kind() != KindIndirect {
		t.Fatalf("Kind() = %v, want KindIndirect after mutation", c.Kind())
	}
	if c.Register() != amd64.RBP || c.Displacement() != -8 {
		t.Errorf("got base=%v disp=%d, want RBP/-8", c.Register(), c.Displacement())
	}
}
