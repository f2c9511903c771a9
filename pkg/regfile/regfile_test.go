package regfile

import (
	"testing"

	"github.com/exprjit/exprjit/pkg/amd64"
	"github.com/exprjit/exprjit/pkg/storage"
)

func TestReserveDistinctRegisters(t *testing.T) {
	f := New(amd64.New())
	seen := make(map[amd64.Register]bool)
	for i := 0; i < len(allocationOrder); i++ {
		cell, err := f.Reserve(ClassInteger)
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
		if seen[cell.Register()] {
			t.Fatalf("register %v handed out twice", cell.Register())
		}
		seen[cell.Register()] = true
	}
}

func TestReleaseReturnsToPool(t *testing.T) {
	f := New(amd64.New())
	cell, err := f.Reserve(ClassInteger)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	reg := cell.Register()
	f.Release(cell)
	if !f.free[reg] {
		t.Errorf("register %v should be free after Release", reg)
	}
}

func TestRetainDelaysRelease(t *testing.T) {
	f := New(amd64.New())
	cell, err := f.Reserve(ClassInteger)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	reg := cell.Register()
	f.Retain(cell) // refcount now 2
	f.Release(cell)
	if f.free[reg] {
		t.Fatal("register freed after only one of two releases")
	}
	f.Release(cell)
	if !f.free[reg] {
		t.Fatal("register should be free after matching releases")
	}
}

func TestPinBlocksFirstFree(t *testing.T) {
	f := New(amd64.New())
	cell, err := f.Reserve(ClassInteger)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	reg := cell.Register()
	f.Release(cell) // refcount hits zero but the cell stays pinned below
	f.Pin(cell)

	if r, ok := f.firstFree(); ok && r == reg {
		t.Error("firstFree should skip a pinned register even though it was released")
	}

	f.Unpin(cell)
	if r, ok := f.firstFree(); !ok || r != reg {
		t.Error("firstFree should see the register again once unpinned")
	}
}

func TestClaimFixedRemovesFromPool(t *testing.T) {
	f := New(amd64.New())
	fixed := f.ClaimFixed(amd64.RDI)
	if fixed.Register() != amd64.RDI {
		t.Fatalf("ClaimFixed returned register %v, want RDI", fixed.Register())
	}
	if f.free[amd64.RDI] {
		t.Error("RDI must be removed from the general allocation pool after ClaimFixed")
	}
	f.Release(fixed)
	if f.free[amd64.RDI] {
		t.Error("releasing a claimed register must not return it to the free pool")
	}
}

func TestSpillRewritesVictimToIndirect(t *testing.T) {
	f := New(amd64.New())
	held := make([]*storage.Cell, 0, len(allocationOrder))
	for range allocationOrder {
		c, err := f.Reserve(ClassInteger)
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		held = append(held, c)
	}

	if _, err := f.Reserve(ClassInteger); err != nil {
		t.Fatalf("Reserve after exhaustion should trigger a spill, got error: %v", err)
	}

	spilled := 0
	for _, c := range held {
		if c.Kind() == storage.KindIndirect {
			spilled++
		}
	}
	if spilled != 1 {
		t.Errorf("expected exactly one held cell rewritten to indirect after spill, got %d", spilled)
	}
}

func TestClaimReestablishesOwnership(t *testing.T) {
	f := New(amd64.New())
	cell, err := f.Reserve(ClassInteger)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	reg := cell.Register()
	f.Release(cell)
	if !f.free[reg] {
		t.Fatal("register should be free before Claim")
	}
	f.Claim(cell)
	if f.free[reg] {
		t.Error("Claim should remove the register from the free pool")
	}
	if f.refcount[reg] != 1 {
		t.Errorf("refcount after Claim = %d, want 1", f.refcount[reg])
	}
}
