// Package cpufeature probes CPU capabilities once at process start. It is
// the Go port of original_source/src/CodeGen/BitOperations.cpp's
// IsPopCntSupported/c_isPopCntSupported: the original hand-rolls a CPUID
// query under _MSC_VER and falls back to "true" elsewhere; here
// golang.org/x/sys/cpu already decodes CPUID into named feature bits, so
// that becomes the one ecosystem dependency standing in for the
// hand-written assembly the original needed.
package cpufeature

import "golang.org/x/sys/cpu"

var popcntSupported = cpu.X86.HasPOPCNT

// HasPOPCNT reports whether the host CPU supports the POPCNT instruction,
// computed once and cached, mirroring the original's single boolean
// surface.
func HasPOPCNT() bool {
	return popcntSupported
}
