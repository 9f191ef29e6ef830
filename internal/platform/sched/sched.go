// Package sched lowers the CPU and IO scheduling priority of child processes
package sched

// Priority describes how far a process should be deprioritized
type Priority struct {
	// Niceness is the CPU nice value, 0..19; 0 leaves CPU priority alone
	Niceness int
	// IOClassData is the best-effort IO class level, 0..7 with 7 the lowest; negative leaves IO alone
	IOClassData int
}

// Lowerer applies a Priority to a running process
type Lowerer interface {
	Lower(pid int, p Priority) error
}

// Noop ignores every request; used where the platform has no equivalent
type Noop struct{}

// Lower does nothing
func (Noop) Lower(int, Priority) error { return nil }

// Clamp bounds p to the ranges the kernel accepts
func (p Priority) Clamp() Priority {
	p.Niceness = min(max(p.Niceness, 0), 19)
	if p.IOClassData > 7 {
		p.IOClassData = 7
	}
	return p
}
