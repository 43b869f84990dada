//go:build windows

package affinity

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32                      = windows.NewLazySystemDLL("kernel32.dll")
	procGetLogicalProcessorInfoEx = kernel32.NewProc("GetLogicalProcessorInformationEx")
	procGetCurrentThread          = kernel32.NewProc("GetCurrentThread")
	procGetThreadGroupAffinity    = kernel32.NewProc("GetThreadGroupAffinity")
	procSetThreadGroupAffinity    = kernel32.NewProc("SetThreadGroupAffinity")
	errNoGroupInMask              = errors.New("affinity mask selects no processor")
)

// groupAffinity mirrors GROUP_AFFINITY.
type groupAffinity struct {
	Mask     uintptr
	Group    uint16
	Reserved [3]uint16
}

func currentThread() uintptr {
	h, _, _ := procGetCurrentThread.Call()
	return h
}

func threadAffinity() (Mask, error) {
	var ga groupAffinity
	ok, _, err := procGetThreadGroupAffinity.Call(currentThread(), uintptr(unsafe.Pointer(&ga)))
	if ok == 0 {
		return nil, fmt.Errorf("GetThreadGroupAffinity: %w", err)
	}
	m := make(Mask, int(ga.Group)+1)
	m[ga.Group] = uint64(ga.Mask)
	return m, nil
}

// setThreadAffinity applies the first non-empty group of m; a Windows thread
// belongs to exactly one processor group.
func setThreadAffinity(m Mask) error {
	for group, word := range m {
		if word == 0 {
			continue
		}
		ga := groupAffinity{Mask: uintptr(word), Group: uint16(group)}
		ok, _, err := procSetThreadGroupAffinity.Call(currentThread(), uintptr(unsafe.Pointer(&ga)), 0)
		if ok == 0 {
			return fmt.Errorf("SetThreadGroupAffinity: %w", err)
		}
		return nil
	}
	return errNoGroupInMask
}

func enumerate() ([]Unit, error) {
	buf, err := sizedQuery(func(buf []byte) (int, error) {
		length := uint32(len(buf))
		var ptr uintptr
		if len(buf) > 0 {
			ptr = uintptr(unsafe.Pointer(&buf[0]))
		}
		ok, _, err := procGetLogicalProcessorInfoEx.Call(
			uintptr(relationProcessorCore), ptr, uintptr(unsafe.Pointer(&length)))
		if ok == 0 {
			return int(length), err
		}
		return int(length), nil
	}, func(err error) bool { return errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) })
	if err != nil {
		return nil, &UnitQueryError{Op: "GetLogicalProcessorInformationEx", Err: err}
	}
	return parseProcessorInfo(buf)
}
