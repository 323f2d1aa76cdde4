//go:build linux

package rt

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Promote switches the calling OS thread to SCHED_FIFO at the priority
// implied by lvl. The caller must hold runtime.LockOSThread for the
// promotion to stick to its goroutine.
func Promote(lvl Level) error {
	max, err := maxPriority()
	if err != nil {
		return err
	}
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(max - int(lvl)),
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return fmt.Errorf("rt: promote %s to fifo prio %d: %w", lvl, max-int(lvl), err)
	}
	return nil
}

// PinCPU restricts the calling OS thread to a single CPU. Advisory only.
func PinCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("rt: pin cpu %d: %w", cpu, err)
	}
	return nil
}

func maxPriority() (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MAX, uintptr(unix.SCHED_FIFO), 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("rt: sched_get_priority_max: %w", errno)
	}
	return int(r), nil
}
