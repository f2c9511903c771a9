// Package execmem is the §6 "Executable memory" external collaborator:
// it maps a writable page, lets the tree write machine code into it, then
// flips the page to read+execute (never both writable and executable at
// once) and hands back the mapped address as a callable function
// pointer. Built on golang.org/x/sys/unix, which the teacher already
// carries as an indirect dependency (pulled in by tooling elsewhere in
// the retrieval pack) and which is the standard ecosystem door to
// mmap/mprotect/munmap that the stdlib doesn't expose directly.
package execmem

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Buffer owns a block of mapped memory through its writable and
// executable lifetimes.
type Buffer struct {
	mem  []byte
	addr unsafe.Pointer
}

// Allocate maps size bytes read+write, anonymous and private.
func Allocate(size int) (*Buffer, error) {
	if size <= 0 {
		size = 1
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("execmem: mmap %d bytes: %w", size, err)
	}
	return &Buffer{mem: mem}, nil
}

// Write copies code into the buffer starting at offset 0. It must be
// called before MakeExecutable.
func (b *Buffer) Write(code []byte) error {
	if len(code) > len(b.mem) {
		return fmt.Errorf("execmem: code is %d bytes, buffer holds %d", len(code), len(b.mem))
	}
	copy(b.mem, code)
	return nil
}

// MakeExecutable flips the page from read+write to read+execute and
// records the base address as the callable entry point. After this call
// the buffer must not be written to again.
func (b *Buffer) MakeExecutable() error {
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("execmem: mprotect: %w", err)
	}
	b.addr = unsafe.Pointer(&b.mem[0])
	runtime.SetFinalizer(b, func(buf *Buffer) { _ = unix.Munmap(buf.mem) })
	return nil
}

// Addr returns the mapped executable entry point. Valid only after
// MakeExecutable.
func (b *Buffer) Addr() unsafe.Pointer { return b.addr }

// Release unmaps the buffer immediately rather than waiting for the
// garbage collector to run the finalizer installed by MakeExecutable.
func (b *Buffer) Release() error {
	runtime.SetFinalizer(b, nil)
	return unix.Munmap(b.mem)
}
