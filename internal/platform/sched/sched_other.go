//go:build !linux

package sched

import "os/exec"

// Default returns the platform Lowerer, a no-op off linux
func Default() Lowerer { return Noop{} }

// Detach leaves cmd unchanged off linux
func Detach(*exec.Cmd) {}
