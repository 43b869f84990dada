//go:build amd64

package cpuid

// Supported reports whether the CPUID instruction is available.
const Supported = true

func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32)
