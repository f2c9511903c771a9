// Package arena is a bump allocator for node lifetime (SPEC_FULL.md
// §4.10): nodes are carved out of growable slabs and are never freed
// individually, only all at once when the arena is dropped or Reset.
// This is the "construction-order arena with indices" §9 calls
// sufficient, generalized from the teacher's practice of scoping owned
// structures to one long-lived manager object
// (pkg/module/module.go's ModuleManager owning every *Module it resolves
// for the program's lifetime).
package arena

import (
	"fmt"
	"unsafe"
)

const (
	wordSize        = int(unsafe.Sizeof(uintptr(0)))
	defaultSlabSize = 64 * 1024 / wordSize // words
)

// Arena carves fixed-size slabs and hands out pointers into them. Slabs
// are backed by []unsafe.Pointer rather than []byte: node.Base and the
// node variants it embeds hold real heap pointers (storage *storage.Cell,
// the impl field), and a []byte backing array is noscan under the
// garbage collector, so any pointer reachable only through an
// arena-carved value would be invisible to the collector and could be
// swept out from under it. A []unsafe.Pointer slab is scanned precisely,
// word by word, which keeps every pointer a carved value holds alive for
// as long as the slab itself is.
//
// It is not safe for concurrent use, matching SPEC_FULL.md §5's
// single-threaded construction model.
type Arena struct {
	slabSize int // in words
	slabs    [][]unsafe.Pointer
	offset   int // word offset into the current (last) slab
	maxSlabs int // 0 means unbounded
}

// New creates an Arena that grows by defaultSlabSize each time it's
// exhausted.
func New() *Arena {
	return &Arena{slabSize: defaultSlabSize}
}

// NewBounded creates an Arena whose allocations return an error (which
// the node constructors wrap as KindArenaOverflow) once it would need to
// allocate more than maxSlabs slabs, so a pathological tree
// cannot grow the process's memory without bound. slabSize is given in
// bytes and rounded up to a whole number of words.
func NewBounded(slabSize, maxSlabs int) *Arena {
	words := (slabSize + wordSize - 1) / wordSize
	if words <= 0 {
		words = defaultSlabSize
	}
	return &Arena{slabSize: words, maxSlabs: maxSlabs}
}

func (a *Arena) currentSlab() []unsafe.Pointer {
	if len(a.slabs) == 0 {
		return nil
	}
	return a.slabs[len(a.slabs)-1]
}

// allocate reserves size bytes aligned to align (a power of two) and
// returns a pointer to them. Both are rounded up to whole words: every
// carved value starts on, and occupies, a whole number of pointer-sized
// slots in the underlying []unsafe.Pointer slab.
func (a *Arena) allocate(size, align int) (unsafe.Pointer, error) {
	if size <= 0 {
		size = 1
	}
	words := (size + wordSize - 1) / wordSize
	alignWords := (align + wordSize - 1) / wordSize
	if alignWords < 1 {
		alignWords = 1
	}
	slab := a.currentSlab()
	aligned := (a.offset + alignWords - 1) &^ (alignWords - 1)
	if slab == nil || aligned+words > len(slab) {
		need := words
		if need < a.slabSize {
			need = a.slabSize
		}
		if a.maxSlabs > 0 && len(a.slabs) >= a.maxSlabs {
			return nil, fmt.Errorf("arena: exceeded %d slabs of %d words", a.maxSlabs, a.slabSize)
		}
		slab = make([]unsafe.Pointer, need)
		a.slabs = append(a.slabs, slab)
		a.offset = 0
		aligned = 0
	}
	a.offset = aligned + words
	return unsafe.Pointer(&slab[aligned]), nil
}

// New carves a zero-valued *T out of the arena. The returned error is
// non-nil only when the arena is bounded and exhausted.
func New[T any](a *Arena) (*T, error) {
	var zero T
	ptr, err := a.allocate(int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// Reset discards all allocations, retaining the first slab's backing
// storage for reuse by the next tree built with this arena. This serves
// the "amortize compilation over many invocations" workload when a
// caller also wants to amortize arena slab allocation across many
// short-lived trees.
func (a *Arena) Reset() {
	if len(a.slabs) > 1 {
		a.slabs = a.slabs[:1]
	}
	if len(a.slabs) == 1 {
		clear(a.slabs[0])
	}
	a.offset = 0
}

// SlabCount returns how many slabs have been allocated, for diagnostics.
func (a *Arena) SlabCount() int { return len(a.slabs) }
