package amd64

import "testing"

func TestRegisterString(t *testing.T) {
	if RAX.String() != "rax" {
		t.Errorf("RAX.String() = %q, want rax", RAX.String())
	}
	if R15.String() != "r15" {
		t.Errorf("R15.String() = %q, want r15", R15.String())
	}
	if NoRegister.String() != "?" {
		t.Errorf("NoRegister.String() = %q, want ?", NoRegister.String())
	}
}

func TestRegisterExtensionBit(t *testing.T) {
	for _, r := range []Register{RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI} {
		if r.ext() {
			t.Errorf("%v should not need REX extension", r)
		}
	}
	for _, r := range []Register{R8, R9, R10, R11, R12, R13, R14, R15} {
		if !r.ext() {
			t.Errorf("%v should need REX extension", r)
		}
	}
}

func TestEmitMovRegImm64(t *testing.T) {
	a := New()
	a.EmitMovRegImm64(RAX, 0x0102030405060708)
	code, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(code) != 10 {
		t.Fatalf("movabs should encode to 10 bytes (REX+opcode+imm64), got %d", len(code))
	}
	if code[0] != 0x48 || code[1] != 0xB8 {
		t.Errorf("unexpected prefix/opcode: % x", code[:2])
	}
}

func TestEmitPushPopExtended(t *testing.T) {
	a := New()
	a.EmitPush(R12)
	a.EmitPop(R12)
	code, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	// R12 needs a REX.B prefix before the push/pop opcode.
	if len(code) != 4 {
		t.Fatalf("expected 4 bytes (2 prefixed push/pop), got %d: % x", len(code), code)
	}
	if code[0] != 0x41 || code[2] != 0x41 {
		t.Errorf("expected REX.B (0x41) prefix on both push and pop, got % x", code)
	}
}

func TestJumpFixupResolution(t *testing.T) {
	a := New()
	l := a.AllocateLabel()
	a.EmitJump(l)
	before := a.Len()
	a.PlaceLabel(l)
	code, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	rel := int32(code[1]) | int32(code[2])<<8 | int32(code[3])<<16 | int32(code[4])<<24
	want := int32(before - 5)
	if rel != want {
		t.Errorf("relative offset = %d, want %d", rel, want)
	}
}

func TestFinalizeUnplacedLabelErrors(t *testing.T) {
	a := New()
	l := a.AllocateLabel()
	a.EmitJump(l)
	if _, err := a.Finalize(); err == nil {
		t.Fatal("Finalize should fail when a referenced label is never placed")
	}
}

func TestEmitLoadMemRBPZeroDisplacement(t *testing.T) {
	// mov reg, [rbp+0] cannot use the zero-displacement encoding (that
	// opcode form means RIP-relative for rbp/r13), so this must always
	// emit an explicit disp8 of 0.
	a := New()
	a.EmitLoadMem(RAX, RBP, 0)
	code, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("expected REX+opcode+modrm+disp8, got %d bytes: % x", len(code), code)
	}
}
