//go:build !linux && !windows

package temps

import (
	"context"
	"errors"
)

var errNoSensors = errors.New("temps: no OS sensor interface on this platform")

type unsupportedReader struct{}

func newPlatformReader() Reader {
	return unsupportedReader{}
}

func (unsupportedReader) GetInfo(context.Context) (*Info, error) {
	return nil, errNoSensors
}
