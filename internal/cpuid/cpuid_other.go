//go:build !amd64

package cpuid

// Supported reports whether the CPUID instruction is available.
const Supported = false

func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32) {
	return 0, 0, 0, 0
}
