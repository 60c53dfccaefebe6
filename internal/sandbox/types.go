package sandbox

import "time"

// Status represents the lifecycle state of one sandbox run.
// Transitions are Created → Running → {Completed | TimedOut | Failed}.
type Status string

const (
	// StatusCreated indicates the sandbox exists but the run has not started
	StatusCreated Status = "created"

	// StatusRunning indicates the worker process is executing
	StatusRunning Status = "running"

	// StatusCompleted indicates the run finished and produced output
	StatusCompleted Status = "completed"

	// StatusTimedOut indicates the run exceeded the worker's timeout and
	// was abandoned without retry
	StatusTimedOut Status = "timed_out"

	// StatusFailed indicates the run failed for any other reason
	StatusFailed Status = "failed"
)

// Sandbox is the logical façade for one worker run: it limits which
// files the run can see and which sub-commands it can invoke. It is not
// OS-level isolation; the spawned process is confined only by the
// command guard's allow-list and resource bounds.
type Sandbox struct {
	// ID uniquely identifies this sandbox run
	ID string

	// WorkerID is the worker this sandbox was created for
	WorkerID string

	// Iteration is the analysis iteration this run belongs to
	Iteration int

	// Files is the exact validated file set visible to the run
	Files *FileView

	// Subcommands is the restricted sub-command façade for the run
	Subcommands *SubcommandFacade

	// Status is the current lifecycle state
	Status Status

	// Created is when this sandbox was created
	Created time.Time
}
