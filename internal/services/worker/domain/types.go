// Package domain holds the queue worker types
package domain

import (
	"context"
	"fmt"
)

// WorkerPort runs the lease loop until ctx is cancelled
type WorkerPort interface {
	Run(ctx context.Context) error

	// Step leases and handles at most one job; worked is false when the queue had nothing eligible
	Step(ctx context.Context) (worked bool, err error)
}

// Command is one child process invocation
type Command struct {
	Path string
	Args []string
	Env  []string // KEY=VALUE, appended after the worker environment
}

// ExitError reports a child that ended with a non-zero status
type ExitError struct {
	Code int
	Tail string // last stderr line
}

func (e *ExitError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("import exited with status %d", e.Code)
	}
	return fmt.Sprintf("import exited with status %d: %s", e.Code, e.Tail)
}

// Outcomes reported for a handled job
const (
	OutcomeDone   = "done"
	OutcomeRetry  = "retry"
	OutcomeFailed = "failed"
)
