package rack

import (
	"time"

	"go-garden/config"
)

// TaskState is the lifecycle of a patch task.
type TaskState int

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskStopped
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskRunning:
		return "running"
	case TaskStopped:
		return "stopped"
	case TaskFailed:
		return "failed"
	}
	return "unknown"
}

// TaskStatus is a snapshot of one task for display.
type TaskStatus struct {
	Name   string
	Kind   config.PatchKind
	State  TaskState
	Events uint64 // pulses emitted, or samples written for noise
	Last   time.Time
	Err    error
}
