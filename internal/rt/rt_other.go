//go:build !linux

package rt

// Promote is unavailable outside Linux; callers fall back to the default
// scheduler.
func Promote(Level) error { return ErrUnsupported }

// PinCPU is unavailable outside Linux.
func PinCPU(int) error { return ErrUnsupported }
