//go:build !linux && !windows

package cpu

// HostModel returns an empty string on unsupported platforms.
func HostModel() string {
	return ""
}
