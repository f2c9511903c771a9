package types

import "testing"

func TestOf(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		wantKind Kind
		wantSize int
	}{
		{"int64", Of[int64](), KindI64, 8},
		{"uint64", Of[uint64](), KindU64, 8},
		{"pointer", Of[*int64](), KindPointer, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.info.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", tt.info.Kind, tt.wantKind)
			}
			if tt.info.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", tt.info.Size, tt.wantSize)
			}
		})
	}
}

func TestInfoIsPointer(t *testing.T) {
	if !Of[*int64]().IsPointer() {
		t.Error("pointer type should report IsPointer() true")
	}
	if Of[int64]().IsPointer() {
		t.Error("int64 should report IsPointer() false")
	}
}

func TestInfoIsSigned(t *testing.T) {
	if !Of[int64]().IsSigned() {
		t.Error("int64 should be signed")
	}
	if Of[uint64]().IsSigned() {
		t.Error("uint64 should not be signed")
	}
	if Of[*int64]().IsSigned() {
		t.Error("pointer should not be signed")
	}
}

func TestOfInvalid(t *testing.T) {
	if got := Of[string]().Kind; got != KindInvalid {
		t.Errorf("Of[string]().Kind = %v, want KindInvalid", got)
	}
}
