//go:build linux

package affinity

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/thediveo/cpus"
)

// onlinePath lists the CPUs currently online, in "0-3,8" list format.
var onlinePath = "/sys/devices/system/cpu/online"

func threadAffinity() (Mask, error) {
	set, err := cpus.Affinity(0)
	if err != nil {
		return nil, err
	}
	return Mask(set), nil
}

func setThreadAffinity(m Mask) error {
	return cpus.SetAffinity(0, cpus.Set(m))
}

func enumerate() ([]Unit, error) {
	set, err := cpus.Affinity(os.Getpid())
	if err != nil {
		return nil, &UnitQueryError{Op: "sched_getaffinity", Err: err}
	}
	allowed := Mask(set)
	if b, err := os.ReadFile(onlinePath); err == nil {
		online, err := parseList(bytes.TrimSpace(b))
		if err != nil {
			return nil, &UnitQueryError{Op: "parsing " + onlinePath, Err: err}
		}
		allowed = allowed.Intersect(online)
	}
	units := allowed.Units()
	if len(units) == 0 {
		return nil, &UnitQueryError{Op: "sched_getaffinity", Err: errors.New("no schedulable processors")}
	}
	return units, nil
}

// parseList turns a kernel CPU list such as "0-3,8,10-11" into a Mask.
func parseList(b []byte) (Mask, error) {
	l, err := cpus.NewList(b)
	if err != nil {
		return nil, err
	}
	var m Mask
	for _, r := range l {
		if r[0] > r[1] {
			return nil, fmt.Errorf("invalid range %d-%d", r[0], r[1])
		}
		for cpu := r[0]; cpu <= r[1]; cpu++ {
			word := int(cpu / 64)
			for len(m) <= word {
				m = append(m, 0)
			}
			m[word] |= uint64(1) << (cpu % 64)
		}
	}
	return m, nil
}
