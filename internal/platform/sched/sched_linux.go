//go:build linux

package sched

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	ioprioWhoProcess = 1
	ioprioClassBE    = 2
	ioprioClassShift = 13
)

// OS lowers priority with setpriority(2) and ioprio_set(2)
type OS struct{}

// Default returns the platform Lowerer
func Default() Lowerer { return OS{} }

// Lower applies nice and best-effort IO priority to pid
func (OS) Lower(pid int, p Priority) error {
	p = p.Clamp()
	if p.Niceness > 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, pid, p.Niceness); err != nil {
			return fmt.Errorf("setpriority pid=%d nice=%d: %w", pid, p.Niceness, err)
		}
	}
	if p.IOClassData >= 0 {
		prio := uintptr(ioprioClassBE<<ioprioClassShift | p.IOClassData)
		if _, _, errno := unix.Syscall(unix.SYS_IOPRIO_SET, ioprioWhoProcess, uintptr(pid), prio); errno != 0 {
			return fmt.Errorf("ioprio_set pid=%d class=be data=%d: %w", pid, p.IOClassData, errno)
		}
	}
	return nil
}

// Detach starts cmd in its own process group so terminal and group signals aimed at the
// worker do not reach it
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
