//go:build !linux && !windows

package affinity

import "fmt"

func threadAffinity() (Mask, error) {
	return nil, fmt.Errorf("thread affinity not supported on this platform")
}

func setThreadAffinity(Mask) error {
	return fmt.Errorf("thread affinity not supported on this platform")
}

func enumerate() ([]Unit, error) {
	return nil, &UnitQueryError{Op: "enumerate", Err: fmt.Errorf("processor enumeration not supported on this platform")}
}
